package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/convo-console/internal"
)

// JSONExporter exports conversations as pretty-printed JSON
type JSONExporter struct{}

// Export writes the whole conversation as one JSON document
func (e *JSONExporter) Export(detail *internal.ConversationDetail, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(detail)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
