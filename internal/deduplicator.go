package internal

// Deduplicator merges batches of messages and conversations by identifier
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Merge appends the incoming messages whose ID is not already present in
// existing. Existing entries are never moved and incoming order is kept.
// It returns the merged slice and how many messages were appended.
func (d *Deduplicator) Merge(existing, incoming []Message) ([]Message, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, msg := range existing {
		seen[msg.ID] = struct{}{}
	}

	added := 0
	for _, msg := range incoming {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		// a page can repeat an id within itself too
		seen[msg.ID] = struct{}{}
		existing = append(existing, msg)
		added++
	}

	return existing, added
}

// Unique returns messages with later duplicates of an ID removed
func (d *Deduplicator) Unique(messages []Message) []Message {
	unique, _ := d.Merge(make([]Message, 0, len(messages)), messages)
	return unique
}

// DeduplicateConversations removes repeated conversation rows, keeping the first
func (d *Deduplicator) DeduplicateConversations(items []ConversationSummary) []ConversationSummary {
	seen := make(map[string]bool)
	var unique []ConversationSummary

	for _, item := range items {
		if !seen[item.ID] {
			seen[item.ID] = true
			unique = append(unique, item)
		}
	}

	return unique
}
