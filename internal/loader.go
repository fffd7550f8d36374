package internal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPageSize is the number of messages requested per page
const DefaultPageSize = 50

// MessagePageFetcher fetches one page of a conversation's messages
type MessagePageFetcher interface {
	FetchMessagePage(ctx context.Context, conversationID string, page, pageSize int) (*MessagePage, error)
}

// ConversationFetcher can also fetch the first page of a conversation
type ConversationFetcher interface {
	MessagePageFetcher
	GetConversation(ctx context.Context, conversationID string, pageSize int) (*ConversationDetail, error)
}

// Loader accumulates the messages of one open conversation page by page.
//
// A Loader is owned by the view that opened the conversation and dropped when
// that view closes. At most one page fetch is in flight at a time: the loading
// flag is checked and set before the fetch and cleared after it, so merges
// happen strictly in page order.
type Loader struct {
	fetcher  MessagePageFetcher
	pageSize int
	dedup    *Deduplicator

	mu          sync.Mutex
	meta        ConversationDetail
	messages    []Message
	currentPage int
	total       int
	loading     bool
	closed      bool
	generation  uint64
	lastErr     error
}

// NewLoader creates a loader that fetches pages of pageSize messages
func NewLoader(fetcher MessagePageFetcher, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Loader{
		fetcher:  fetcher,
		pageSize: pageSize,
		dedup:    NewDeduplicator(),
	}
}

// OpenConversation fetches the first page of a conversation and returns a
// loader seeded with it.
func OpenConversation(ctx context.Context, fetcher ConversationFetcher, conversationID string, pageSize int) (*Loader, error) {
	loader := NewLoader(fetcher, pageSize)
	detail, err := fetcher.GetConversation(ctx, conversationID, loader.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation %s: %w", conversationID, err)
	}
	loader.InitializeFromDetail(detail)
	return loader, nil
}

// Initialize seeds the loader state and clears the loading flag. Any fetch
// still in flight from a previous session is ignored when it completes.
func (l *Loader) Initialize(conversationID string, initialMessages []Message, initialPage, totalCount int) {
	l.InitializeFromDetail(&ConversationDetail{
		ID:       conversationID,
		Messages: initialMessages,
		Page:     initialPage,
		Total:    totalCount,
	})
}

// InitializeFromDetail seeds the loader from a fetched conversation detail
func (l *Loader) InitializeFromDetail(detail *ConversationDetail) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.generation++
	l.meta = *detail
	l.meta.Messages = nil
	l.messages = l.dedup.Unique(detail.Messages)
	l.currentPage = detail.Page
	l.total = detail.Total
	if l.total < len(l.messages) {
		l.total = len(l.messages)
	}
	l.loading = false
	l.closed = false
	l.lastErr = nil

	LogDebug("Loader initialized for %s: %d/%d messages, page %d", detail.ID, len(l.messages), l.total, l.currentPage)
}

// Close ends the session. Results of a fetch still in flight are dropped and
// no further pages are requested until the loader is initialized again.
// The messages loaded so far stay readable.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	l.loading = false
	l.closed = true
}

// HasMore reports whether the backend holds messages not loaded yet and the
// session is still open
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMoreLocked()
}

func (l *Loader) hasMoreLocked() bool {
	return !l.closed && len(l.messages) < l.total
}

// Loading reports whether a page fetch is in flight
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// CurrentPage returns the last page merged
func (l *Loader) CurrentPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentPage
}

// Total returns the server-side message count
func (l *Loader) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// ConversationID returns the id of the open conversation
func (l *Loader) ConversationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meta.ID
}

// LastError returns the failure of the most recent page load, if any
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Messages returns a copy of the accumulated messages
func (l *Loader) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of accumulated messages
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Snapshot returns the conversation with everything loaded so far
func (l *Loader) Snapshot() *ConversationDetail {
	l.mu.Lock()
	defer l.mu.Unlock()
	detail := l.meta
	detail.Messages = make([]Message, len(l.messages))
	copy(detail.Messages, l.messages)
	detail.Total = l.total
	detail.Page = l.currentPage
	return &detail
}

// RequestNextPage fetches and merges the page after the current one.
//
// It returns immediately with no state change when a fetch is already in
// flight or everything is loaded. On failure the state is left as it was and
// a *LoadMoreError is returned; the caller may simply try again.
// The returned count is the number of messages appended.
func (l *Loader) RequestNextPage(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.loading || !l.hasMoreLocked() {
		l.mu.Unlock()
		return 0, nil
	}
	l.loading = true
	gen := l.generation
	conversationID := l.meta.ID
	page := l.currentPage + 1
	l.mu.Unlock()

	start := time.Now()
	LogDebug("Fetching page %d of %s", page, conversationID)
	result, err := l.fetcher.FetchMessagePage(ctx, conversationID, page, l.pageSize)
	if err == nil && result == nil {
		err = &MalformedResponseError{Source: "page", Err: fmt.Errorf("empty response")}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		LogDebug("Dropping page %d of %s: session closed", page, conversationID)
		return 0, nil
	}
	l.loading = false

	if err != nil {
		loadErr := &LoadMoreError{ConversationID: conversationID, Page: page, Err: err}
		l.lastErr = loadErr
		LogWarn("Failed to load more messages: %v", loadErr)
		return 0, loadErr
	}

	before := len(l.messages)
	merged, added := l.dedup.Merge(l.messages, result.Messages)
	if len(merged) > l.total {
		LogWarn("Page %d of %s overshoots total %d, dropping %d messages", page, conversationID, l.total, len(merged)-l.total)
		merged = merged[:l.total]
		added = l.total - before
	}
	l.messages = merged
	l.currentPage = page
	l.lastErr = nil

	LogDebug("Merged page %d of %s: +%d (%d dropped as duplicates) in %s", page, conversationID, added, len(result.Messages)-added, time.Since(start))
	return added, nil
}

// LoadMore is the explicit "load more" action. It shares the guarded
// routine with the scroll trigger.
func (l *Loader) LoadMore(ctx context.Context) (int, error) {
	return l.RequestNextPage(ctx)
}

// ShouldLoad reports whether a scroll to v should trigger a page fetch
func (l *Loader) ShouldLoad(v Viewport, threshold int) bool {
	if !v.NearEnd(threshold) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMoreLocked() && !l.loading
}

// OnScroll is the scroll listener: it requests the next page when the view
// is near the end. It reports whether a fetch was attempted.
func (l *Loader) OnScroll(ctx context.Context, v Viewport, threshold int) (bool, error) {
	if !l.ShouldLoad(v, threshold) {
		return false, nil
	}
	_, err := l.RequestNextPage(ctx)
	return true, err
}

// LoadAll fetches the remaining pages one after another. It stops at the
// first failure or when a page brings nothing new.
func (l *Loader) LoadAll(ctx context.Context) (int, error) {
	total := 0
	for l.HasMore() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		added, err := l.RequestNextPage(ctx)
		total += added
		if err != nil {
			return total, err
		}
		if added == 0 {
			LogWarn("Page %d of %s brought no new messages, stopping at %d/%d", l.CurrentPage(), l.ConversationID(), l.Len(), l.Total())
			break
		}
	}
	return total, nil
}
