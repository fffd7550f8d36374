package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrLoadMoreFailed matches every failed incremental page load
	ErrLoadMoreFailed = errors.New("load more failed")
	// ErrNotFound is returned when the backend reports a missing resource
	ErrNotFound = errors.New("not found")
	// ErrMissingAPIKey is returned when a request needs a key and none is configured
	ErrMissingAPIKey = errors.New("api key not configured")
)

// APIError represents a failed call to the conversation backend
type APIError struct {
	Op     string // "list", "detail", "page", "delete", "ping"
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("api error: %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MalformedResponseError represents a backend response that could not be used
type MalformedResponseError struct {
	Source string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response [%s]: %v", e.Source, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// LoadMoreError is the failure signal of an incremental page load.
// The loader state is unchanged when it is returned.
type LoadMoreError struct {
	ConversationID string
	Page           int
	Err            error
}

func (e *LoadMoreError) Error() string {
	return fmt.Sprintf("load more [%s] page %d: %v", e.ConversationID, e.Page, e.Err)
}

func (e *LoadMoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLoadMoreFailed) hold for every LoadMoreError
func (e *LoadMoreError) Is(target error) bool {
	return target == ErrLoadMoreFailed
}

// ConfigError represents an invalid or unreadable configuration
type ConfigError struct {
	Path  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ArchiveError represents errors reading or writing the local archive
type ArchiveError struct {
	Path string
	Op   string // "open", "migrate", "save", "load"
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
