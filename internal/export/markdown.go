package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/convo-console/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(detail *internal.ConversationDetail, w io.Writer) error {
	title := detail.Title
	if title == "" {
		title = "Conversation " + detail.ID
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(title))

	_, _ = fmt.Fprintf(w, "**ID:** %s  \n", detail.ID)
	if detail.UserID != "" {
		_, _ = fmt.Fprintf(w, "**User:** %s  \n", detail.UserID)
	}
	if !detail.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", detail.CreatedAt.UTC().Format(time.RFC3339))
	}
	if len(detail.Messages) < detail.Total {
		_, _ = fmt.Fprintf(w, "**Messages:** %d of %d\n\n", len(detail.Messages), detail.Total)
	} else {
		_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(detail.Messages))
	}

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range detail.Messages {
		timestamp := ""
		if !msg.CreatedAt.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.CreatedAt.UTC().Format(time.RFC3339))
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n", msg.Role, timestamp)

		if d := msg.ThinkingDuration(); d > 0 {
			_, _ = fmt.Fprintf(w, "_Thought for %s_\n\n", d.Round(100*time.Millisecond))
		}
		if msg.Content != "" {
			_, _ = fmt.Fprintf(w, "%s\n\n", escapeMarkdown(msg.Content))
		}
		for _, img := range msg.Images {
			_, _ = fmt.Fprintf(w, "![%s](%s)\n\n", imageAlt(img), img.URL)
		}

		if i < len(detail.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func imageAlt(img internal.Image) string {
	alt := img.Prompt
	if alt == "" {
		alt = "image"
	}
	alt = strings.ReplaceAll(alt, "\n", " ")
	alt = strings.ReplaceAll(alt, "]", "\\]")
	if img.Width > 0 && img.Height > 0 {
		alt = fmt.Sprintf("%s (%dx%d)", alt, img.Width, img.Height)
	}
	return alt
}

// escapeMarkdown escapes emphasis and headings outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			if strings.HasPrefix(line, "#") {
				line = "\\" + line
			}
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
