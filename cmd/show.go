package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit int
	showAll   bool
)

var (
	// Styles for show command
	conversationHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	conversationMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	thinkingMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Italic(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show the messages of a conversation",
	Long: `Display a conversation. Only the first page is fetched unless --limit
asks for more messages or --all loads every page.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		id := args[0]
		cache := newCacheManager()

		loader, err := internal.OpenConversation(ctx, newClient(), id, cfg.PageSize)
		if err != nil {
			if errors.Is(err, internal.ErrNotFound) || errors.Is(err, internal.ErrMissingAPIKey) {
				return err
			}
			snapshot, cacheErr := cache.LoadConversation(id)
			if cacheErr != nil {
				return err
			}
			internal.PrintWarning(fmt.Sprintf("Backend unavailable (%v), showing cached snapshot", err))
			displayConversation(cmd.OutOrStdout(), snapshot, showLimit)
			return nil
		}
		defer loader.Close()

		if loadErr := loadRequested(ctx, loader, showAll, showLimit); loadErr != nil {
			internal.PrintWarning(fmt.Sprintf("Stopped after %d of %d messages: %v", loader.Len(), loader.Total(), loadErr))
		}

		snapshot := loader.Snapshot()
		if err := cache.SaveConversation(snapshot); err != nil {
			internal.LogWarn("Failed to cache conversation: %v", err)
		}

		displayConversation(cmd.OutOrStdout(), snapshot, showLimit)
		return nil
	},
}

// loadRequested pulls pages until the loader holds everything (all) or at
// least limit messages.
func loadRequested(ctx context.Context, loader *internal.Loader, all bool, limit int) error {
	if all {
		_, err := internal.LoadAllWithProgress(ctx, loader)
		return err
	}
	for limit > 0 && loader.Len() < limit && loader.HasMore() {
		added, err := loader.LoadMore(ctx)
		if err != nil {
			return err
		}
		if added == 0 {
			break
		}
	}
	return nil
}

func displayConversation(out io.Writer, detail *internal.ConversationDetail, limit int) {
	title := detail.Title
	if title == "" {
		title = "Untitled"
	}
	_, _ = fmt.Fprintln(out, conversationHeaderStyle.Render(title))

	meta := []string{"ID: " + detail.ID}
	if detail.UserID != "" {
		meta = append(meta, "User: "+detail.UserID)
	}
	if !detail.CreatedAt.IsZero() {
		meta = append(meta, "Created: "+detail.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(out, conversationMetaStyle.Render(strings.Join(meta, "  ")))

	msgs := detail.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	for _, msg := range msgs {
		displayMessage(out, msg)
	}

	footer := fmt.Sprintf("Showing %d of %d messages", len(msgs), detail.Total)
	if len(msgs) < detail.Total {
		footer += fmt.Sprintf(" (use --all or convo browse %s for the rest)", detail.ID)
	}
	_, _ = fmt.Fprintln(out, timestampStyle.Render(footer))
}

func displayMessage(out io.Writer, msg internal.Message) {
	var label string
	switch msg.Role {
	case internal.RoleUser:
		label = userMessageStyle.Render("User")
	case internal.RoleThinking:
		text := "Thinking"
		if d := msg.ThinkingDuration(); d > 0 {
			text = fmt.Sprintf("Thought for %s", d.Round(100*time.Millisecond))
		}
		label = thinkingMessageStyle.Render(text)
	default:
		label = assistantMessageStyle.Render("Assistant")
	}
	if !msg.CreatedAt.IsZero() {
		label += " " + timestampStyle.Render(msg.CreatedAt.Local().Format("15:04:05"))
	}
	_, _ = fmt.Fprintln(out, label)

	var body []string
	if msg.Content != "" {
		body = append(body, wrapText(msg.Content, 100))
	}
	for _, img := range msg.Images {
		line := "[image] " + img.URL
		if img.Width > 0 && img.Height > 0 {
			line = fmt.Sprintf("[image %dx%d] %s", img.Width, img.Height, img.URL)
		}
		if img.Prompt != "" {
			line += "\n        prompt: " + img.Prompt
		}
		body = append(body, line)
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(out, messageContentStyle.Render(strings.Join(body, "\n")))
	}
}

// wrapText wraps text at word boundaries
func wrapText(text string, width int) string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = word
				continue
			}
			line += " " + word
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Show at most this many messages, loading pages as needed")
	showCmd.Flags().BoolVar(&showAll, "all", false, "Load every page before printing")
}
