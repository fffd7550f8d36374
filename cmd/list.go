package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var (
	listPage     int
	listPageSize int
	listQuery    string
	listUserID   string
	listCached   bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Long: `List conversations from the admin API, newest first.

Every fetched page is merged into the local index so --cached can show it
again without the backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newCacheManager()
		out := cmd.OutOrStdout()

		if listCached {
			return listFromCache(out, cache)
		}

		client := newClient()
		list, err := client.ListConversations(commandContext(cmd), internal.ListOptions{
			Page:     listPage,
			PageSize: listPageSize,
			Query:    listQuery,
			UserID:   listUserID,
		})
		if err != nil {
			if errors.Is(err, internal.ErrMissingAPIKey) {
				return fmt.Errorf("%w (run `convo config set-key <key>` or set CONVO_API_KEY)", err)
			}
			if index, cacheErr := cache.LoadIndex(); cacheErr == nil && index.Metadata.APIBaseURL == cfg.APIBaseURL {
				internal.PrintWarning(fmt.Sprintf("Backend unavailable (%v), showing cached list from %s", err, index.Metadata.UpdatedAt.Format(time.RFC3339)))
				displayConversations(out, index.Conversations, index.Total, 0)
				return nil
			}
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		if err := cache.SaveList(list, cfg.APIBaseURL); err != nil {
			internal.LogWarn("Failed to update cache: %v", err)
		}

		displayConversations(out, list.Items, list.Total, list.Page)
		if list.HasNextPage() {
			_, _ = fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("More on page %d: convo list --page %d", list.Page+1, list.Page+1)))
		}
		return nil
	},
}

func listFromCache(out io.Writer, cache *internal.CacheManager) error {
	valid, err := cache.IsCacheValid(cfg.APIBaseURL, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	index, err := cache.LoadIndex()
	if err != nil {
		return fmt.Errorf("no cached conversations in %s, run `convo list` first", cache.GetCacheDir())
	}
	if index.Metadata.APIBaseURL != cfg.APIBaseURL {
		return fmt.Errorf("cache was written for %s, not %s", index.Metadata.APIBaseURL, cfg.APIBaseURL)
	}
	if !valid {
		internal.PrintWarning(fmt.Sprintf("Cached list is older than %s", cfg.CacheTTL))
	}

	items := index.Conversations
	if listQuery != "" || listUserID != "" {
		items = filterConversations(items, listQuery, listUserID)
	}
	displayConversations(out, items, len(items), 0)
	return nil
}

func filterConversations(items []internal.ConversationSummary, query, userID string) []internal.ConversationSummary {
	query = strings.ToLower(query)
	var out []internal.ConversationSummary
	for _, c := range items {
		if userID != "" && c.UserID != userID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Title), query) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func displayConversations(out io.Writer, items []internal.ConversationSummary, total, page int) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(out, headerStyle.Render("No conversations found"))
		return
	}

	header := fmt.Sprintf("Found %d conversation(s)", total)
	if page > 0 {
		header += fmt.Sprintf(", page %d", page)
	}
	_, _ = fmt.Fprintln(out, headerStyle.Render(header))
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t"+titleStyle.Render("User")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, c := range items {
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:47]) + "..."
		}

		user := dateStyle.Render("—")
		if c.UserID != "" {
			user = userStyle.Render(c.UserID)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(c.ID),
			title,
			countStyle.Render(strconv.Itoa(c.MessageCount)),
			dateStyle.Render(formatRelative(c.UpdatedAt, time.Now())),
			user)
	}

	_ = w.Flush()
}

// formatRelative renders t more compactly the closer it is to now
func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	t = t.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listPage, "page", 1, "List page to fetch")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 20, "Conversations per page")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Only conversations whose title contains this text")
	listCmd.Flags().StringVar(&listUserID, "user", "", "Only conversations of this user id")
	listCmd.Flags().BoolVar(&listCached, "cached", false, "Show the locally cached list without calling the backend")
}
