package export

import (
	"fmt"
	"io"

	"github.com/iksnae/convo-console/internal"
)

// Exporter writes a conversation in one output format
type Exporter interface {
	Export(detail *internal.ConversationDetail, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, &internal.ExportError{Format: format, Err: fmt.Errorf("unsupported format (supported: jsonl, md, yaml, json)")}
	}
}
