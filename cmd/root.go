package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/iksnae/convo-console/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	apiKey     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is resolved before every command runs
	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "Admin console for the image-generation chat backend",
	Long: `An operator console for the image-generation chat backend.

Browse, moderate, export and archive user conversations. Long conversations
are loaded page by page as you scroll, so opening one stays fast no matter
how many messages it holds.

Quick Start:
  convo config set-key <api-key>        # Store the admin API key
  convo list                            # List conversations
  convo show <conversation-id>          # Print the first page of a conversation
  convo browse                          # Interactive browser
  convo export <id> --format md         # Export a whole conversation

Configuration is read from ~/.convo-console/config.yaml and CONVO_*
environment variables; flags override both.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	loaded, err := internal.LoadConfig(path)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("api-url") {
		loaded.APIBaseURL = apiURL
	}
	if cmd.Flags().Changed("api-key") {
		loaded.APIKey = apiKey
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	level, _ := internal.ParseLogLevel(loaded.LogLevel)
	internal.SetLogLevel(level)
	if verbose {
		internal.SetVerbose(true)
	}

	cfg = loaded
	internal.LogDebug("Using API at %s", cfg.APIBaseURL)
	return nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return internal.DefaultConfigPath()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newClient() *internal.Client {
	return internal.NewClient(cfg)
}

func newCacheManager() *internal.CacheManager {
	return internal.NewCacheManager(cfg.CacheDir)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.convo-console/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config and CONVO_API_URL)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key (overrides config and CONVO_API_KEY)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
