// Package config loads repofleet configuration from file, environment,
// and defaults.
//
// Precedence, highest first: environment (REPOFLEET_*), the config file
// (~/.config/repofleet/config.yaml by default), built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rkeller/repofleet/internal/registry"
)

// Config is the resolved configuration for a repofleet invocation.
type Config struct {
	// Root is the content root directory, laid out root/owner/name.
	Root string `mapstructure:"root"`

	// RegistryPath is the shared registry document. Defaults to the
	// registry filename inside Root so the document travels with the
	// content root.
	RegistryPath string `mapstructure:"registry_path"`

	// StatePath is the machine-local state document. Defaults to the
	// user state directory, never inside Root: local state must not be
	// synchronized between machines.
	StatePath string `mapstructure:"state_path"`

	// Workers bounds per-phase sync concurrency.
	Workers int `mapstructure:"workers"`

	// RemoteName is the remote new clones are configured with.
	RemoteName string `mapstructure:"remote_name"`

	// LogFile enables rotating file logging when set.
	LogFile string `mapstructure:"log_file"`

	// GithubToken raises the metadata enrichment rate limit.
	GithubToken string `mapstructure:"github_token"`
}

// Load reads configuration, optionally from an explicit file path.
func Load(file string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	v.SetDefault("root", filepath.Join(home, "src"))
	v.SetDefault("registry_path", "")
	v.SetDefault("state_path", defaultStatePath(home))
	v.SetDefault("workers", 4)
	v.SetDefault("remote_name", "origin")
	v.SetDefault("log_file", "")
	v.SetDefault("github_token", "")

	v.SetEnvPrefix("REPOFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".config", "repofleet"))
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; anything else is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RegistryPath == "" {
		cfg.RegistryPath = filepath.Join(cfg.Root, registry.Filename)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &cfg, nil
}

// defaultStatePath places local state under XDG_STATE_HOME or its
// conventional fallback.
func defaultStatePath(home string) string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "repofleet", "state.json")
}
