package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation on the backend",
	Long: `Delete a conversation through the admin API and drop it from the local
cache. The local archive is left untouched. Asks for confirmation unless
--yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		if !deleteYes {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Type %q to delete it: ", id)
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(answer) != id {
				return fmt.Errorf("aborted")
			}
		}

		if err := newClient().DeleteConversation(commandContext(cmd), id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		if err := newCacheManager().RemoveFromIndex(id); err != nil {
			internal.LogWarn("Failed to update cache: %v", err)
		}

		internal.PrintSuccess(fmt.Sprintf("Deleted conversation %s", id))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}
