package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/teemow/batchfs/internal/tools/batch"
)

// Environment variables read when the matching flag is not set.
const (
	envRoot     = "BATCHFS_ROOT"
	envReadOnly = "BATCHFS_READ_ONLY"
	envConfig   = "BATCHFS_CONFIG"
)

// FileConfig is the TOML config file layout.
//
//	root = "/srv/data"
//	read_only = false
//
//	[defaults]
//	max_concurrent = 10
//	timeout_ms = 30000
//	stop_on_error = false
//	retry_attempts = 1
//	group_by_type = true
type FileConfig struct {
	Root     string        `toml:"root"`
	ReadOnly bool          `toml:"read_only"`
	Defaults batch.Options `toml:"defaults"`
}

// defaultConfigPath returns ~/.batchfs/config.toml.
func defaultConfigPath() string {
	return filepath.Join(homeDir(), ".batchfs", "config.toml")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

// loadFileConfig reads the config file at path. Keys missing from the file
// keep their built-in defaults. A missing file is an error only when
// required is set.
func loadFileConfig(path string, required bool) (*FileConfig, error) {
	cfg := &FileConfig{Defaults: batch.DefaultOptions()}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return nil, fmt.Errorf("invalid config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: defaults: %w", path, err)
	}
	return cfg, nil
}

// engineFlags are the flags shared by every command that executes batches.
type engineFlags struct {
	configPath string
	root       string
	readOnly   bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to the TOML config file (default: ~/.batchfs/config.toml). Can also use BATCHFS_CONFIG env var.")
	cmd.Flags().StringVar(&f.root, "root", "", "Directory every operation path is confined to. Empty uses paths as given. Can also use BATCHFS_ROOT env var.")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "Only accept read operations. Can also use BATCHFS_READ_ONLY env var.")
}

// engineSettings is the resolved configuration of the batch engine.
type engineSettings struct {
	Root     string
	ReadOnly bool
	Defaults batch.Options
}

// resolve merges flags, environment and config file, in that order of
// precedence.
func (f *engineFlags) resolve(cmd *cobra.Command) (engineSettings, error) {
	path, required := f.configPath, true
	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path == "" {
		path, required = defaultConfigPath(), false
	}

	file, err := loadFileConfig(path, required)
	if err != nil {
		return engineSettings{}, err
	}

	settings := engineSettings{
		Root:     file.Root,
		ReadOnly: file.ReadOnly,
		Defaults: file.Defaults,
	}

	switch {
	case cmd.Flags().Changed("root"):
		settings.Root = f.root
	case os.Getenv(envRoot) != "":
		settings.Root = os.Getenv(envRoot)
	}

	switch {
	case cmd.Flags().Changed("read-only"):
		settings.ReadOnly = f.readOnly
	case os.Getenv(envReadOnly) != "":
		v, err := strconv.ParseBool(os.Getenv(envReadOnly))
		if err != nil {
			return engineSettings{}, fmt.Errorf("invalid %s: %w", envReadOnly, err)
		}
		settings.ReadOnly = v
	}

	if settings.Root != "" {
		abs, err := filepath.Abs(settings.Root)
		if err != nil {
			return engineSettings{}, fmt.Errorf("invalid root %q: %w", settings.Root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return engineSettings{}, fmt.Errorf("invalid root: %w", err)
		}
		if !info.IsDir() {
			return engineSettings{}, fmt.Errorf("invalid root: %s is not a directory", abs)
		}
		settings.Root = abs
	}

	return settings, nil
}
