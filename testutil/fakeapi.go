package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeMessage is the wire shape of a message served by FakeAPI
type FakeMessage struct {
	ID               string   `json:"id"`
	Role             string   `json:"role"`
	Content          string   `json:"content,omitempty"`
	Images           []any    `json:"images,omitempty"`
	CreatedAt        string   `json:"created_at"`
	ThinkingDuration *float64 `json:"thinking_duration,omitempty"`
}

// FakeConversation is a conversation held by FakeAPI
type FakeConversation struct {
	ID       string
	Title    string
	UserID   string
	Messages []FakeMessage
}

// FakeAPI is an httptest backend for the conversation admin API
type FakeAPI struct {
	Server *httptest.Server
	APIKey string

	mu            sync.Mutex
	conversations []*FakeConversation
	failPages     map[int]int
	malformed     map[int]bool
	overlap       int
	requests      []string
}

// NewFakeAPI starts a fake backend that accepts apiKey
func NewFakeAPI(t *testing.T, apiKey string) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		APIKey:    apiKey,
		failPages: make(map[int]int),
		malformed: make(map[int]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake backend
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// AddConversation registers a conversation with n generated messages
func (f *FakeAPI) AddConversation(id, title string, n int) *FakeConversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &FakeConversation{ID: id, Title: title, UserID: "visitor-" + id}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		role := "user"
		if i%2 == 0 {
			role = "assistant"
		}
		conv.Messages = append(conv.Messages, FakeMessage{
			ID:        id + "-" + strconv.Itoa(i),
			Role:      role,
			Content:   "message " + strconv.Itoa(i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}
	f.conversations = append(f.conversations, conv)
	return conv
}

// FailPage makes the next `times` requests for message page `page` return 500
func (f *FakeAPI) FailPage(page, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPages[page] = times
}

// MalformPage makes message page `page` come back without a messages field
func (f *FakeAPI) MalformPage(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.malformed[page] = true
}

// SetOverlap makes every message page repeat the last n messages of the previous page
func (f *FakeAPI) SetOverlap(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlap = n
}

// Requests returns the request paths with query seen so far
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests returns how many requests started with prefix
func (f *FakeAPI) CountRequests(prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *FakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.RequestURI())

	if r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/conversations")
	rest = strings.Trim(rest, "/")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 50)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		f.handleList(w, r, page, pageSize)
	case strings.HasSuffix(rest, "/messages") && r.Method == http.MethodGet:
		f.handleMessages(w, strings.TrimSuffix(rest, "/messages"), page, pageSize)
	case r.Method == http.MethodGet:
		f.handleDetail(w, rest, pageSize)
	case r.Method == http.MethodDelete:
		f.handleDelete(w, rest)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (f *FakeAPI) handleList(w http.ResponseWriter, r *http.Request, page, pageSize int) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	userID := r.URL.Query().Get("user_id")

	var items []map[string]any
	for _, c := range f.conversations {
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) {
			continue
		}
		if userID != "" && c.UserID != userID {
			continue
		}
		items = append(items, map[string]any{
			"id":            c.ID,
			"title":         c.Title,
			"user_id":       c.UserID,
			"message_count": len(c.Messages),
			"created_at":    "2024-01-01T00:00:00Z",
			"updated_at":    "2024-01-02T00:00:00Z",
		})
	}
	total := len(items)
	start, end := bounds(page, pageSize, total)
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     pageItems,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (f *FakeAPI) handleDetail(w http.ResponseWriter, id string, pageSize int) {
	c := f.find(id)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	start, end := bounds(1, pageSize, len(c.Messages))
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         c.ID,
		"title":      c.Title,
		"user_id":    c.UserID,
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-02T00:00:00Z",
		"messages":   append([]FakeMessage{}, c.Messages[start:end]...),
		"total":      len(c.Messages),
		"page":       1,
	})
}

func (f *FakeAPI) handleMessages(w http.ResponseWriter, id string, page, pageSize int) {
	c := f.find(id)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if n := f.failPages[page]; n > 0 {
		f.failPages[page] = n - 1
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backend unavailable"})
		return
	}
	if f.malformed[page] {
		writeJSON(w, http.StatusOK, map[string]any{"page": page})
		return
	}
	start, end := bounds(page, pageSize, len(c.Messages))
	start -= f.overlap
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":  append([]FakeMessage{}, c.Messages[start:end]...),
		"page":      page,
		"page_size": pageSize,
		"total":     len(c.Messages),
	})
}

func (f *FakeAPI) handleDelete(w http.ResponseWriter, id string) {
	for i, c := range f.conversations {
		if c.ID == id {
			f.conversations = append(f.conversations[:i], f.conversations[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (f *FakeAPI) find(id string) *FakeConversation {
	for _, c := range f.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func bounds(page, pageSize, total int) (int, int) {
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
