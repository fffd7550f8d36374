package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the console configuration",
	Long: `Show or change the settings stored in the config file.

Environment variables and flags still override the stored values at run time.`,
	// The file may be incomplete or invalid; these commands exist to fix it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		rows := [][2]string{
			{"config file", path},
			{"api_base_url", cfg.APIBaseURL},
			{"api_key", cfg.MaskedAPIKey()},
			{"page_size", fmt.Sprintf("%d", cfg.PageSize)},
			{"scroll_threshold", fmt.Sprintf("%d", cfg.ScrollThreshold)},
			{"timeout", cfg.Timeout.String()},
			{"cache_dir", cfg.CacheDir},
			{"cache_ttl", cfg.CacheTTL.String()},
			{"archive_path", cfg.ArchivePath},
			{"log_level", cfg.LogLevel},
		}
		for _, row := range rows {
			_, _ = fmt.Fprintf(out, "%-17s %s\n", row[0]+":", row[1])
		}
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the admin API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("api key must not be empty")
		}
		return updateConfigFile(cmd, "api_key", args[0])
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Change a stored setting",
	Long: `Change a stored setting. Fields: api_base_url, api_key, page_size,
scroll_threshold, timeout, cache_dir, cache_ttl, archive_path, log_level.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfigFile(cmd, args[0], args[1])
	},
}

func updateConfigFile(cmd *cobra.Command, field, value string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	stored, err := internal.ReadConfigFile(path)
	if err != nil {
		return err
	}
	if err := stored.Set(field, value); err != nil {
		return err
	}
	if err := internal.SaveConfig(path, stored); err != nil {
		return err
	}

	shown := value
	if field == "api_key" {
		shown = stored.MaskedAPIKey()
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", field, shown, path)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetKeyCmd, configSetCmd)
}
