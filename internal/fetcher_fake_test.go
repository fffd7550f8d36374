package internal

import (
	"context"
	"sync"
)

// fakeFetcher serves scripted pages and records every call
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[int][]Message
	errs    map[int]error
	detail  *ConversationDetail
	calls   []int
	entered chan int
	release chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[int][]Message),
		errs:  make(map[int]error),
	}
}

func (f *fakeFetcher) FetchMessagePage(ctx context.Context, conversationID string, page, pageSize int) (*MessagePage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	entered, release := f.entered, f.release
	msgs, ok := f.pages[page]
	err := f.errs[page]
	f.mu.Unlock()

	if entered != nil {
		entered <- page
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &MessagePage{Messages: []Message{}, Page: page}, nil
	}
	return &MessagePage{Messages: msgs, Page: page, PageSize: pageSize}, nil
}

func (f *fakeFetcher) GetConversation(ctx context.Context, conversationID string, pageSize int) (*ConversationDetail, error) {
	if f.detail == nil {
		return nil, ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeFetcher) setError(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[page] = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
