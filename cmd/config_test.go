package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/batchfs/internal/tools/batch"
)

// isolateEnv points HOME at an empty directory and clears the BATCHFS_*
// variables so tests never pick up the developer's configuration.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envRoot, "")
	t.Setenv(envReadOnly, "")
	t.Setenv(envConfig, "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseEngineFlags(t *testing.T, args ...string) (*cobra.Command, *engineFlags) {
	t.Helper()
	var f engineFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, &f
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
root = "/srv/data"
read_only = true

[defaults]
max_concurrent = 4
stop_on_error = true
`)

	cfg, err := loadFileConfig(path, true)
	require.NoError(t, err)

	want := batch.DefaultOptions()
	want.MaxConcurrent = 4
	want.StopOnError = true

	assert.Equal(t, "/srv/data", cfg.Root)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, want, cfg.Defaults)
}

func TestLoadFileConfig_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := loadFileConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, batch.DefaultOptions(), cfg.Defaults)

	_, err = loadFileConfig(path, true)
	assert.Error(t, err)
}

func TestLoadFileConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown key",
			content: "rooot = \"/tmp\"\n",
			wantErr: "rooot",
		},
		{
			name:    "malformed",
			content: "root = \n",
			wantErr: "invalid config file",
		},
		{
			name:    "defaults out of range",
			content: "[defaults]\nretry_attempts = 9\n",
			wantErr: "options.retryAttempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFileConfig(writeConfig(t, tt.content), true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEngineFlags_Resolve(t *testing.T) {
	isolateEnv(t)
	fileRoot := t.TempDir()
	flagRoot := t.TempDir()
	envRootDir := t.TempDir()
	path := writeConfig(t, "root = \""+filepath.ToSlash(fileRoot)+"\"\n[defaults]\ntimeout_ms = 5000\n")

	t.Run("config file", func(t *testing.T) {
		cmd, f := parseEngineFlags(t, "--config", path)
		s, err := f.resolve(cmd)
		require.NoError(t, err)
		assert.Equal(t, fileRoot, s.Root)
		assert.False(t, s.ReadOnly)
		assert.Equal(t, 5000, s.Defaults.TimeoutMs)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv(envRoot, envRootDir)
		t.Setenv(envReadOnly, "true")
		cmd, f := parseEngineFlags(t, "--config", path)
		s, err := f.resolve(cmd)
		require.NoError(t, err)
		assert.Equal(t, envRootDir, s.Root)
		assert.True(t, s.ReadOnly)
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv(envRoot, envRootDir)
		t.Setenv(envReadOnly, "true")
		cmd, f := parseEngineFlags(t, "--config", path, "--root", flagRoot, "--read-only=false")
		s, err := f.resolve(cmd)
		require.NoError(t, err)
		assert.Equal(t, flagRoot, s.Root)
		assert.False(t, s.ReadOnly)
	})

	t.Run("config from env", func(t *testing.T) {
		t.Setenv(envConfig, path)
		cmd, f := parseEngineFlags(t)
		s, err := f.resolve(cmd)
		require.NoError(t, err)
		assert.Equal(t, fileRoot, s.Root)
	})

	t.Run("no config file", func(t *testing.T) {
		cmd, f := parseEngineFlags(t)
		s, err := f.resolve(cmd)
		require.NoError(t, err)
		assert.Empty(t, s.Root)
		assert.Equal(t, batch.DefaultOptions(), s.Defaults)
	})
}

func TestEngineFlags_ResolveErrors(t *testing.T) {
	isolateEnv(t)
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing explicit config",
			args:    []string{"--config", filepath.Join(t.TempDir(), "nope.toml")},
			wantErr: "failed to open config file",
		},
		{
			name:    "root does not exist",
			args:    []string{"--root", filepath.Join(t.TempDir(), "nope")},
			wantErr: "invalid root",
		},
		{
			name:    "root is a file",
			args:    []string{"--root", file},
			wantErr: "is not a directory",
		},
		{
			name:    "bad read-only env",
			env:     map[string]string{envReadOnly: "sometimes"},
			wantErr: envReadOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cmd, f := parseEngineFlags(t, tt.args...)
			_, err := f.resolve(cmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
