package cmd

import (
	"os"
	"testing"

	"github.com/iksnae/convo-console/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetKey(t *testing.T) {
	env := newTestEnv(t)

	out, err := runCommand(t, "", "--config", env.configPath, "config", "set-key", "sk-abcdef123456")
	require.NoError(t, err)
	assert.Contains(t, out, "Set api_key = ********3456 in ")
	assert.NotContains(t, out, "sk-abcdef")

	stored, err := internal.ReadConfigFile(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef123456", stored.APIKey)

	info, err := os.Stat(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err = runCommand(t, "", "--config", env.configPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "********3456")
	assert.NotContains(t, out, "sk-abcdef")
}

func TestConfigSet(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
	}{
		{name: "page size", field: "page_size", value: "30"},
		{name: "timeout", field: "timeout", value: "45s"},
		{name: "base url", field: "api_base_url", value: "https://admin.example.com/"},
		{name: "unknown field", field: "colour", value: "red", wantErr: true},
		{name: "bad number", field: "page_size", value: "many", wantErr: true},
		{name: "invalid value", field: "page_size", value: "-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := runCommand(t, "", "--config", env.configPath, "config", "set", tt.field, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				_, statErr := os.Stat(env.configPath)
				assert.True(t, os.IsNotExist(statErr), "config file written despite error")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigSet_DoesNotPersistEnvironment(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("CONVO_API_KEY", "from-env")

	_, err := runCommand(t, "", "--config", env.configPath, "config", "set", "page_size", "30")
	require.NoError(t, err)

	stored, err := internal.ReadConfigFile(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.PageSize)
	assert.Empty(t, stored.APIKey)

	data, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-env")
}
