package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthReport collects the output of each check. It is printed once the
// steps are done so it does not interleave with the spinner.
type healthReport struct {
	b       strings.Builder
	details bool
	step    int
}

func (r *healthReport) section(title string) {
	r.step++
	if r.step > 1 {
		r.b.WriteString("\n")
	}
	r.b.WriteString(infoStyle.Render(fmt.Sprintf("Step %d: %s...", r.step, title)) + "\n")
}

func (r *healthReport) line(style lipgloss.Style, msg string) {
	r.b.WriteString(style.Render(msg) + "\n")
}

func (r *healthReport) detail(format string, a ...interface{}) {
	if r.details {
		r.b.WriteString("   " + fmt.Sprintf(format, a...) + "\n")
	}
}

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration, backend access and the local archive",
	Long: `Check the health of the console by verifying:
  • Configuration
  • Local archive and cache access
  • Backend reachability
  • API key acceptance

Exits non-zero when the backend cannot be used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		report := &healthReport{details: healthcheckDetails}
		client := newClient()

		steps := []internal.ProgressStep{
			{Message: "Configuration", Fn: func() error { return checkConfig(report) }},
			{Message: "Local storage", Fn: func() error { return checkStorage(ctx, report) }},
			{Message: "Contacting backend", Fn: func() error { return checkBackend(ctx, client, report) }},
			{Message: "Checking admin access", Fn: func() error { return checkAdminAccess(ctx, client, report) }},
		}
		err := internal.ShowProgressWithSteps(ctx, steps)

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, sectionStyle.Render("Console Health Check"))
		_, _ = fmt.Fprintln(out)
		_, _ = io.WriteString(out, report.b.String())
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, sectionStyle.Render("Summary"))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			return fmt.Errorf("health check failed: %w", err)
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

func checkConfig(r *healthReport) error {
	r.section("Configuration")
	path, _ := resolveConfigPath()
	r.line(successStyle, "✅ Configuration loaded")
	r.detail("Config file: %s", path)
	r.detail("API: %s", cfg.APIBaseURL)
	r.detail("Page size: %d, scroll threshold: %d", cfg.PageSize, cfg.ScrollThreshold)
	if cfg.APIKey == "" {
		r.line(warningStyle, "⚠️  No API key configured")
	} else {
		r.detail("API key: %s", cfg.MaskedAPIKey())
	}
	return nil
}

// checkStorage only warns: the console works without archive or cache
func checkStorage(ctx context.Context, r *healthReport) error {
	r.section("Checking local storage")
	archive, err := internal.OpenArchive(cfg.ArchivePath)
	if err != nil {
		r.line(warningStyle, fmt.Sprintf("⚠️  Archive not accessible: %v", err))
	} else {
		rows, err := archive.ListConversations(ctx)
		_ = archive.Close()
		if err != nil {
			r.line(warningStyle, fmt.Sprintf("⚠️  Archive not readable: %v", err))
		} else {
			r.line(successStyle, fmt.Sprintf("✅ Archive holds %d conversation(s)", len(rows)))
		}
	}
	r.detail("Archive: %s", cfg.ArchivePath)

	cache := newCacheManager()
	if valid, err := cache.IsCacheValid(cfg.APIBaseURL, cfg.CacheTTL); err == nil && valid {
		r.line(successStyle, "✅ Conversation cache is fresh")
	} else {
		r.line(infoStyle, "ℹ  Conversation cache is empty or stale")
	}
	r.detail("Cache: %s", cache.GetCacheDir())
	return nil
}

func checkBackend(ctx context.Context, client *internal.Client, r *healthReport) error {
	r.section("Contacting backend")
	if err := client.Ping(ctx); err != nil {
		r.line(errorStyle, fmt.Sprintf("❌ Backend unreachable: %v", err))
		return fmt.Errorf("backend unreachable at %s: %w", cfg.APIBaseURL, err)
	}
	r.line(successStyle, "✅ Backend reachable")
	return nil
}

func checkAdminAccess(ctx context.Context, client *internal.Client, r *healthReport) error {
	r.section("Checking admin access")
	list, err := client.ListConversations(ctx, internal.ListOptions{Page: 1, PageSize: 1})
	var apiErr *internal.APIError
	switch {
	case err == nil:
		r.line(successStyle, fmt.Sprintf("✅ API key accepted, %d conversation(s)", list.Total))
		return nil
	case errors.Is(err, internal.ErrMissingAPIKey):
		r.line(errorStyle, "❌ No API key to authenticate with")
	case errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403):
		r.line(errorStyle, "❌ API key rejected")
	default:
		r.line(errorStyle, fmt.Sprintf("❌ Listing failed: %v", err))
	}
	return err
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckDetails, "details", false, "Show detailed diagnostic information")
}
