package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/convo-console/internal"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		detail  *internal.ConversationDetail
		want    []string
		notWant []string
	}{
		{
			name:   "partially loaded conversation",
			detail: sampleDetail(),
			want: []string{
				"# Test Conversation c1",
				"**ID:** c1",
				"**User:** visitor-1",
				"**Messages:** 3 of 10",
				"## Messages",
				"**user:** (2024-01-01T00:01:00Z)",
				"**thinking:**",
				"_Thought for 3.5s_",
				"![sunset over mountains (1024x768)](https://cdn.example.com/sunset.png)",
			},
		},
		{
			name: "untitled conversation",
			detail: &internal.ConversationDetail{
				ID:       "c9",
				Messages: []internal.Message{},
			},
			want:    []string{"# Conversation c9", "**Messages:** 0"},
			notWant: []string{"**User:**", "**Created:**"},
		},
		{
			name:    "fully loaded conversation",
			detail:  internal.CreateTestDetail("c2", internal.CreateTestMessages(1, 2), 1, 2),
			want:    []string{"**Messages:** 2\n"},
			notWant: []string{" of "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&MarkdownExporter{}).Export(tt.detail, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q\n%s", want, out)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(out, notWant) {
					t.Errorf("output should not contain %q", notWant)
				}
			}
		})
	}
}

func TestMarkdownExporter_Separators(t *testing.T) {
	var buf bytes.Buffer
	detail := internal.CreateTestDetail("c1", internal.CreateTestMessages(1, 3), 1, 3)
	if err := (&MarkdownExporter{}).Export(detail, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	// one rule after the header, then one between each pair of messages
	if got := strings.Count(buf.String(), "---\n"); got != 3 {
		t.Errorf("separator count = %d, want 3", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bold",
			input: "make it **vivid**",
			want:  "make it \\*\\*vivid\\*\\*",
		},
		{
			name:  "underscore emphasis",
			input: "__init__",
			want:  "\\_\\_init\\_\\_",
		},
		{
			name:  "heading",
			input: "# Not a heading",
			want:  "\\# Not a heading",
		},
		{
			name:  "code block untouched",
			input: "```python\n# comment\nx = a**2\n```",
			want:  "```python\n# comment\nx = a**2\n```",
		},
		{
			name:  "plain text",
			input: "a red fox",
			want:  "a red fox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdown(tt.input); got != tt.want {
				t.Errorf("escapeMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	if got := (&MarkdownExporter{}).Extension(); got != "md" {
		t.Errorf("Extension() = %q, want md", got)
	}
}
