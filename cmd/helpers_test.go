package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/convo-console/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testAPIKey = "test-admin-key"

type testEnv struct {
	t          *testing.T
	api        *testutil.FakeAPI
	dir        string
	configPath string
}

// newTestEnv points HOME, the cache and the archive at a temp dir and starts
// a fake backend with two conversations.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("CONVO_API_KEY", "")
	t.Setenv("CONVO_PAGE_SIZE", "5")
	t.Setenv("CONVO_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("CONVO_ARCHIVE_PATH", filepath.Join(dir, "archive.db"))

	api := testutil.NewFakeAPI(t, testAPIKey)
	api.AddConversation("c1", "Alpha sunset series", 12)
	api.AddConversation("c2", "Beta portraits", 3)

	return &testEnv{
		t:          t,
		api:        api,
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
	}
}

// run executes the root command against the fake backend
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	base := []string{"--config", e.configPath, "--api-url", e.api.URL(), "--api-key", testAPIKey}
	return runCommand(e.t, "", append(base, args...)...)
}

// runCommand executes the root command with a clean flag state
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags undoes what earlier executions parsed into the package globals
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
