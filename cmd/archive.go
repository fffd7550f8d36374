package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var archiveList bool

var archiveCmd = &cobra.Command{
	Use:   "archive [conversation-id...]",
	Short: "Save whole conversations to the local archive",
	Long: `Load every page of each conversation and store it in the local SQLite
archive (archive_path in the config). Archiving again only adds messages that
arrived since the last run. Use --list to see what is archived.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !archiveList && len(args) == 0 {
			return fmt.Errorf("give at least one conversation id, or --list")
		}

		archive, err := internal.OpenArchive(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		ctx := commandContext(cmd)
		if archiveList {
			rows, err := archive.ListConversations(ctx)
			if err != nil {
				return err
			}
			displayArchived(cmd.OutOrStdout(), rows)
			return nil
		}

		client := newClient()
		for _, id := range args {
			detail, err := fetchComplete(ctx, client, id)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", id, err)
			}
			inserted, err := archive.SaveConversation(ctx, detail)
			if err != nil {
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Archived %s: %d new of %d messages", id, inserted, len(detail.Messages)))
		}
		return nil
	},
}

func displayArchived(out io.Writer, rows []internal.ArchivedConversation) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, headerStyle.Render("Archive is empty"))
		return
	}
	_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d archived conversation(s)", len(rows))))
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Archived")+"\t"+titleStyle.Render("When")+"\t")
	for _, row := range rows {
		stored := strconv.Itoa(row.Archived)
		if row.Archived < row.MessageCount {
			stored = fmt.Sprintf("%d/%d", row.Archived, row.MessageCount)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(row.ID),
			row.Title,
			countStyle.Render(stored),
			dateStyle.Render(formatRelative(row.ArchivedAt, time.Now())))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().BoolVar(&archiveList, "list", false, "List archived conversations")
}
