package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/convo-console/internal"
	"github.com/iksnae/convo-console/internal/export"
	"github.com/spf13/cobra"
)

var (
	format      string
	outputDir   string
	fromArchive bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>...",
	Short: "Export conversations to files",
	Long: `Export whole conversations to jsonl, md, yaml or json.

Every page of each conversation is loaded before writing. With --archive the
conversation is read from the local archive instead of the backend.
Use --output - to write a single conversation to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}
		if outputDir == "-" && len(args) > 1 {
			return fmt.Errorf("--output - takes a single conversation")
		}

		ctx := commandContext(cmd)
		source, closeSource, err := exportSource(fromArchive)
		if err != nil {
			return err
		}
		defer closeSource()

		for _, id := range args {
			detail, err := source(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", id, err)
			}

			if outputDir == "-" {
				if err := exporter.Export(detail, cmd.OutOrStdout()); err != nil {
					return &internal.ExportError{Format: format, Path: "stdout", Err: err}
				}
				continue
			}

			path, err := writeExport(exporter, detail, outputDir)
			if err != nil {
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Exported %s (%d messages) to %s", id, len(detail.Messages), path))
		}
		return nil
	},
}

type detailSource func(ctx context.Context, id string) (*internal.ConversationDetail, error)

// exportSource returns where conversations are read from, plus a cleanup func
func exportSource(archived bool) (detailSource, func(), error) {
	if archived {
		archive, err := internal.OpenArchive(cfg.ArchivePath)
		if err != nil {
			return nil, nil, err
		}
		return archive.LoadConversation, func() { _ = archive.Close() }, nil
	}

	client := newClient()
	return func(ctx context.Context, id string) (*internal.ConversationDetail, error) {
		return fetchComplete(ctx, client, id)
	}, func() {}, nil
}

// fetchComplete opens a conversation and drains every remaining page
func fetchComplete(ctx context.Context, fetcher internal.ConversationFetcher, id string) (*internal.ConversationDetail, error) {
	loader, err := internal.OpenConversation(ctx, fetcher, id, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	if _, err := internal.LoadAllWithProgress(ctx, loader); err != nil {
		return nil, err
	}
	if loader.HasMore() {
		internal.PrintWarning(fmt.Sprintf("%s: backend returned %d of %d messages", id, loader.Len(), loader.Total()))
	}
	return loader.Snapshot(), nil
}

func writeExport(exporter export.Exporter, detail *internal.ConversationDetail, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: dir, Err: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("conversation_%s.%s", detail.ID, exporter.Extension()))

	f, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(detail, f); err != nil {
		_ = f.Close()
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format: jsonl, md, yaml, json")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "./exports", "Output directory, or - for stdout")
	exportCmd.Flags().BoolVar(&fromArchive, "archive", false, "Read conversations from the local archive")
}
