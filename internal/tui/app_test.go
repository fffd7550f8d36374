package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/iksnae/convo-console/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	convos   map[string][]internal.Message
	failures map[int]int
	pages    []int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		convos:   make(map[string][]internal.Message),
		failures: make(map[int]int),
	}
}

func (f *fakeBackend) add(id string, n int) {
	f.convos[id] = internal.CreateTestMessages(1, n)
}

func (f *fakeBackend) slice(id string, page, pageSize int) []internal.Message {
	msgs := f.convos[id]
	start := min((page-1)*pageSize, len(msgs))
	end := min(start+pageSize, len(msgs))
	return append([]internal.Message{}, msgs[start:end]...)
}

func (f *fakeBackend) ListConversations(ctx context.Context, opts internal.ListOptions) (*internal.ConversationList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := &internal.ConversationList{Page: 1, PageSize: 20}
	for _, id := range []string{"c1", "c2"} {
		if msgs, ok := f.convos[id]; ok {
			list.Items = append(list.Items, internal.ConversationSummary{ID: id, Title: "Conversation " + id, MessageCount: len(msgs)})
		}
	}
	list.Total = len(list.Items)
	return list, nil
}

func (f *fakeBackend) GetConversation(ctx context.Context, id string, pageSize int) (*internal.ConversationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.convos[id]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return internal.CreateTestDetail(id, f.slice(id, 1, pageSize), 1, len(msgs)), nil
}

func (f *fakeBackend) FetchMessagePage(ctx context.Context, id string, page, pageSize int) (*internal.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	if f.failures[page] > 0 {
		f.failures[page]--
		return nil, errors.New("backend unavailable")
	}
	return &internal.MessagePage{Messages: f.slice(id, page, pageSize), Page: page, PageSize: pageSize}, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	return update(t, m, cmd())
}

// openDetail lists conversations and opens the first one. The detail view
// shows 10 lines and every message renders as 3 lines.
func openDetail(t *testing.T, backend *fakeBackend, threshold int) Model {
	t.Helper()
	m := NewModel(context.Background(), backend, Options{PageSize: 5, ScrollThreshold: threshold})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 13})
	m, _ = run(t, m, m.Init())
	require.Len(t, m.items(), 2)

	m, cmd := update(t, m, key("enter"))
	require.Equal(t, modeDetail, m.mode)
	m, cmd = run(t, m, cmd)
	require.NotNil(t, m.loader)
	require.Nil(t, cmd, "first page fills the view")
	return m
}

func TestModel_ListView(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)

	m := NewModel(context.Background(), backend, Options{})
	assert.Contains(t, m.View(), "Loading...")

	m, _ = run(t, m, m.Init())
	view := m.View()
	assert.Contains(t, view, "Conversation c1")
	assert.Contains(t, view, "Conversation c2")

	m, _ = update(t, m, key("j"))
	assert.Equal(t, 1, m.cursor)
	m, _ = update(t, m, key("j"))
	assert.Equal(t, 1, m.cursor, "cursor stops at the last row")
}

func TestModel_ScrollNearEndLoadsNextPage(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)

	m := openDetail(t, backend, 3)
	assert.Equal(t, 5, m.loader.Len())
	assert.Equal(t, 15, m.vp.TotalLineCount())

	// 15 lines, 10 visible: the trigger fires with 2 lines left
	m, cmd := update(t, m, key("j"))
	m, cmd2 := update(t, m, key("j"))
	assert.Nil(t, cmd)
	assert.Nil(t, cmd2)

	m, cmd = update(t, m, key("j"))
	require.NotNil(t, cmd)
	assert.True(t, m.fetching)
	assert.Contains(t, m.View(), "loading more...")

	// no second fetch while one is pending
	m, cmd2 = update(t, m, key("j"))
	assert.Nil(t, cmd2)

	m, _ = run(t, m, cmd)
	assert.False(t, m.fetching)
	assert.Equal(t, 10, m.loader.Len())
	assert.Equal(t, 2, m.loader.CurrentPage())
	assert.Equal(t, []int{2}, backend.pages)
	assert.Contains(t, m.View(), "10/12 messages")
}

func TestModel_ShortContentKeepsLoading(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)

	m := NewModel(context.Background(), backend, Options{PageSize: 2, ScrollThreshold: 0})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 33})
	m, _ = run(t, m, m.Init())
	m, cmd := update(t, m, key("enter"))
	m, cmd = run(t, m, cmd)

	// 30 visible lines fit 10 messages; pages keep coming until the view is full
	for cmd != nil {
		m, cmd = run(t, m, cmd)
	}
	assert.Equal(t, 10, m.loader.Len())
	assert.True(t, m.loader.HasMore())
}

func TestModel_LoadFailureAndRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)
	backend.failures[2] = 1

	m := openDetail(t, backend, 2)

	m, cmd := update(t, m, key("m"))
	m, _ = run(t, m, cmd)
	assert.Equal(t, 5, m.loader.Len())
	assert.Contains(t, m.status, "Failed to load page 2")
	assert.Contains(t, m.View(), "press m to retry")
	assert.True(t, m.loader.HasMore())

	m, cmd = update(t, m, key("m"))
	require.NotNil(t, cmd)
	assert.Empty(t, m.status)
	m, _ = run(t, m, cmd)
	assert.Equal(t, 10, m.loader.Len())
	assert.Empty(t, m.status)
}

func TestModel_LoadMoreWhenExhausted(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 4)
	backend.add("c2", 3)

	m := openDetail(t, backend, 2)
	assert.False(t, m.loader.HasMore())

	m, cmd := update(t, m, key("m"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "all loaded")
}

func TestModel_ResultAfterCloseIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)

	m := openDetail(t, backend, 2)
	m, cmd := update(t, m, key("m"))
	require.NotNil(t, cmd)

	m, _ = update(t, m, key("esc"))
	assert.Equal(t, modeList, m.mode)
	assert.Nil(t, m.loader)

	m, next := run(t, m, cmd)
	assert.Nil(t, next)
	assert.Nil(t, m.loader)
	assert.Equal(t, modeList, m.mode)
}

func TestModel_StaleOpenIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)
	backend.add("c2", 3)

	m := NewModel(context.Background(), backend, Options{PageSize: 5})
	m, _ = run(t, m, m.Init())

	m, openFirst := update(t, m, key("enter"))
	m, _ = update(t, m, key("esc"))
	m, _ = update(t, m, key("j"))
	m, openSecond := update(t, m, key("enter"))

	m, _ = run(t, m, openFirst)
	assert.Nil(t, m.loader, "result for c1 arrives after c2 was opened")

	m, _ = run(t, m, openSecond)
	require.NotNil(t, m.loader)
	assert.Equal(t, "c2", m.loader.ConversationID())
}

func TestModel_ReopenSameConversation(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 12)

	m := NewModel(context.Background(), backend, Options{PageSize: 5})
	m, _ = run(t, m, m.Init())

	m, openFirst := update(t, m, key("enter"))
	m, _ = update(t, m, key("esc"))
	m, openSecond := update(t, m, key("enter"))

	first := openFirst().(detailOpenedMsg)
	m, _ = update(t, m, first)
	assert.Nil(t, m.loader, "result of the abandoned open is dropped")
	assert.False(t, first.loader.HasMore(), "dropped session is closed")

	m, _ = run(t, m, openSecond)
	require.NotNil(t, m.loader)
	assert.NotSame(t, first.loader, m.loader)
	assert.Equal(t, "c1", m.loader.ConversationID())
	assert.True(t, m.loader.HasMore())
}

func TestModel_OpenMissingConversation(t *testing.T) {
	backend := newFakeBackend()
	backend.add("c1", 2)
	m := NewModel(context.Background(), backend, Options{})
	m, _ = run(t, m, m.Init())

	delete(backend.convos, "c1")
	m, cmd := update(t, m, key("enter"))
	m, _ = run(t, m, cmd)
	assert.Nil(t, m.loader)
	assert.Contains(t, m.status, "not found")
}

func TestRenderMessages(t *testing.T) {
	thinking := 3.5
	msgs := []internal.Message{
		{ID: "1", Role: internal.RoleUser, Content: "draw a lighthouse"},
		{ID: "2", Role: internal.RoleThinking, Content: "sketching", ThinkingSeconds: &thinking},
		{ID: "3", Role: internal.RoleAssistant, Content: "done", Images: []internal.Image{
			{URL: "https://cdn.example.com/l.png", Width: 512, Height: 768, Prompt: "a lighthouse at dusk"},
		}},
	}

	out := strings.Join(renderMessages(msgs, 60), "\n")
	for _, want := range []string{
		"USER",
		"draw a lighthouse",
		"thought for 3.5s",
		"ASSISTANT",
		"[image 512x768] https://cdn.example.com/l.png",
		"prompt: a lighthouse at dusk",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"short", 10, []string{"short"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"a\n\nb", 10, []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%d", tt.text, tt.width), func(t *testing.T) {
			assert.Equal(t, tt.want, wrapText(tt.text, tt.width))
		})
	}
}
