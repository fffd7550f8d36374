package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/iksnae/convo-console/internal"
	"github.com/iksnae/convo-console/internal/tui"
	"github.com/spf13/cobra"
)

var (
	browseQuery  string
	browseUserID string
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse conversations interactively",
	Long: `Open the interactive browser. Conversations open on their first page and
load older messages as you scroll toward the end; press m to load more
explicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.APIKey == "" {
			return fmt.Errorf("%w (run `convo config set-key <key>` or set CONVO_API_KEY)", internal.ErrMissingAPIKey)
		}

		model := tui.NewModel(commandContext(cmd), newClient(), tui.Options{
			PageSize:        cfg.PageSize,
			ScrollThreshold: cfg.ScrollThreshold,
			Query:           browseQuery,
			UserID:          browseUserID,
		})

		// log lines would tear the alternate screen
		internal.SetLogOutput(io.Discard)
		defer internal.SetLogOutput(cmd.ErrOrStderr())

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(commandContext(cmd)))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("browser exited: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVarP(&browseQuery, "query", "q", "", "Start with this title filter")
	browseCmd.Flags().StringVar(&browseUserID, "user", "", "Only conversations of this user id")
}
