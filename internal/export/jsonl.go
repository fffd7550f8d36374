package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/convo-console/internal"
)

// JSONLExporter exports conversations as JSONL, one message per line
type JSONLExporter struct{}

// Export writes each message on its own line, tagged with the conversation id
func (e *JSONLExporter) Export(detail *internal.ConversationDetail, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range detail.Messages {
		obj := map[string]interface{}{
			"conversation_id": detail.ID,
			"id":              msg.ID,
			"role":            msg.Role,
			"content":         msg.Content,
		}

		if !msg.CreatedAt.IsZero() {
			obj["created_at"] = msg.CreatedAt.UTC().Format(time.RFC3339)
		}
		if len(msg.Images) > 0 {
			obj["images"] = msg.Images
		}
		if d := msg.ThinkingDuration(); d > 0 {
			obj["thinking_duration"] = d.Seconds()
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
