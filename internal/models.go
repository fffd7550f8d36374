package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleThinking  Role = "thinking"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleThinking:
		return true
	}
	return false
}

// Image is a generated or uploaded image embedded in a message
type Image struct {
	URL      string `json:"url" yaml:"url"`
	Width    int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height   int    `json:"height,omitempty" yaml:"height,omitempty"`
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Prompt   string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// Message is a single entry of a conversation
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content,omitempty" yaml:"content,omitempty"`
	Images    []Image   `json:"images,omitempty" yaml:"images,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// ThinkingSeconds is only set on thinking messages.
	ThinkingSeconds *float64 `json:"thinking_duration,omitempty" yaml:"thinking_duration,omitempty"`
}

// ThinkingDuration returns how long the model spent thinking, zero when unknown
func (m Message) ThinkingDuration() time.Duration {
	if m.ThinkingSeconds == nil || m.Role != RoleThinking {
		return 0
	}
	return time.Duration(*m.ThinkingSeconds * float64(time.Second))
}

// ConversationSummary is a row of the admin conversation list
type ConversationSummary struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	UserID       string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// ConversationList is one page of conversation summaries
type ConversationList struct {
	Items    []ConversationSummary `json:"items" yaml:"items"`
	Total    int                   `json:"total" yaml:"total"`
	Page     int                   `json:"page" yaml:"page"`
	PageSize int                   `json:"page_size" yaml:"page_size"`
}

// HasNextPage reports whether another list page exists after this one
func (l *ConversationList) HasNextPage() bool {
	if l.PageSize <= 0 {
		return false
	}
	return l.Page*l.PageSize < l.Total
}

// ConversationDetail is a conversation together with the messages loaded so far
type ConversationDetail struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Messages  []Message `json:"messages" yaml:"messages"`
	Total     int       `json:"total" yaml:"total"`
	Page      int       `json:"page" yaml:"page"`
}

// Summary converts the detail into a list row
func (d *ConversationDetail) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           d.ID,
		Title:        d.Title,
		UserID:       d.UserID,
		MessageCount: d.Total,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MessagePage is one page of messages returned by the backend
type MessagePage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page,omitempty"`
	PageSize int       `json:"page_size,omitempty"`
	Total    int       `json:"total,omitempty"`
}

// rawMessagePage keeps Messages as a pointer so an absent field can be told
// apart from an empty page.
type rawMessagePage struct {
	Messages *[]Message `json:"messages"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
}

type rawConversationDetail struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  *[]Message `json:"messages"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
}

type rawConversationList struct {
	Items    *[]ConversationSummary `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// checkMessages rejects messages the loader cannot merge or render: a missing
// id breaks de-duplication and an unknown role has no presentation.
func checkMessages(msgs []Message) error {
	for i, m := range msgs {
		if m.ID == "" {
			return fmt.Errorf("message %d has no id", i)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("message %s has unknown role %q", m.ID, m.Role)
		}
	}
	return nil
}

// ParseConversationList decodes a conversation list body
func ParseConversationList(source string, body []byte) (*ConversationList, error) {
	var raw rawConversationList
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Source: source, Err: err}
	}
	if raw.Items == nil {
		return nil, &MalformedResponseError{Source: source, Err: fmt.Errorf("missing items field")}
	}
	return &ConversationList{
		Items:    *raw.Items,
		Total:    raw.Total,
		Page:     raw.Page,
		PageSize: raw.PageSize,
	}, nil
}

// ParseMessagePage decodes a page body, rejecting bodies without a messages field
func ParseMessagePage(source string, body []byte) (*MessagePage, error) {
	var raw rawMessagePage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Source: source, Err: err}
	}
	if raw.Messages == nil {
		return nil, &MalformedResponseError{Source: source, Err: fmt.Errorf("missing messages field")}
	}
	if err := checkMessages(*raw.Messages); err != nil {
		return nil, &MalformedResponseError{Source: source, Err: err}
	}
	return &MessagePage{
		Messages: *raw.Messages,
		Page:     raw.Page,
		PageSize: raw.PageSize,
		Total:    raw.Total,
	}, nil
}

// ParseConversationDetail decodes a conversation detail body
func ParseConversationDetail(source string, body []byte) (*ConversationDetail, error) {
	var raw rawConversationDetail
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Source: source, Err: err}
	}
	if raw.ID == "" {
		return nil, &MalformedResponseError{Source: source, Err: fmt.Errorf("missing id field")}
	}
	if raw.Messages == nil {
		return nil, &MalformedResponseError{Source: source, Err: fmt.Errorf("missing messages field")}
	}
	if err := checkMessages(*raw.Messages); err != nil {
		return nil, &MalformedResponseError{Source: source, Err: err}
	}
	detail := &ConversationDetail{
		ID:        raw.ID,
		Title:     raw.Title,
		UserID:    raw.UserID,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		Messages:  *raw.Messages,
		Total:     raw.Total,
		Page:      raw.Page,
	}
	if detail.Page < 1 {
		detail.Page = 1
	}
	if detail.Total < len(detail.Messages) {
		detail.Total = len(detail.Messages)
	}
	return detail, nil
}
