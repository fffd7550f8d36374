package internal

import (
	"fmt"
	"strconv"
	"time"
)

// CreateTestMessages creates messages with ids from..to inclusive, alternating
// between user and assistant roles.
func CreateTestMessages(from, to int) []Message {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]Message, 0, to-from+1)
	for i := from; i <= to; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{
			ID:        strconv.Itoa(i),
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return msgs
}

// CreateTestDetail creates a conversation detail seeded with messages
func CreateTestDetail(id string, messages []Message, page, total int) *ConversationDetail {
	return &ConversationDetail{
		ID:        id,
		Title:     "Test Conversation " + id,
		UserID:    "visitor-1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Messages:  messages,
		Page:      page,
		Total:     total,
	}
}
