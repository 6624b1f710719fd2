package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	LayoutSibling      = "sibling"
	LayoutSubdirectory = "subdirectory"

	defaultLockStaleAfter = 5 * time.Minute
	defaultLayoutDir      = "worktrees"
)

type Config struct {
	LockStaleAfter       string   `yaml:"lock_stale_after,omitempty"`
	LogLevel             string   `yaml:"log_level,omitempty"`
	LogFile              string   `yaml:"log_file,omitempty"`
	Layout               string   `yaml:"layout,omitempty"`
	LayoutDir            string   `yaml:"layout_dir,omitempty"`
	NewBranchBase        string   `yaml:"new_branch_base,omitempty"`
	FetchBeforeCreate    bool     `yaml:"fetch_before_create,omitempty"`
	DeleteBranchOnRemove bool     `yaml:"delete_branch_on_remove,omitempty"`
	PostCreate           []string `yaml:"post_create,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		LockStaleAfter: defaultLockStaleAfter.String(),
		LogLevel:       "info",
		LayoutDir:      defaultLayoutDir,
	}
}

// Load reads the config from Path(); a missing file yields defaults.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return DefaultConfig(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.LockStaleAfter = strings.TrimSpace(c.LockStaleAfter)
	if c.LockStaleAfter == "" {
		c.LockStaleAfter = defaultLockStaleAfter.String()
	}
	if _, err := time.ParseDuration(c.LockStaleAfter); err != nil {
		return fmt.Errorf("invalid lock_stale_after %q: %w", c.LockStaleAfter, err)
	}
	c.Layout = strings.ToLower(strings.TrimSpace(c.Layout))
	switch c.Layout {
	case "", LayoutSibling, LayoutSubdirectory:
	default:
		return fmt.Errorf("invalid layout %q (want %s or %s)", c.Layout, LayoutSibling, LayoutSubdirectory)
	}
	c.LayoutDir = strings.TrimSpace(c.LayoutDir)
	if c.LayoutDir == "" {
		c.LayoutDir = defaultLayoutDir
	}
	c.NewBranchBase = strings.TrimSpace(c.NewBranchBase)
	c.LogLevel = strings.TrimSpace(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	commands := make([]string, 0, len(c.PostCreate))
	for _, raw := range c.PostCreate {
		if cmd := strings.TrimSpace(raw); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	c.PostCreate = commands
	return nil
}

// StaleAfter returns the parsed lock staleness threshold.
func (c Config) StaleAfter() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.LockStaleAfter))
	if err != nil || d <= 0 {
		return defaultLockStaleAfter
	}
	return d
}

// ResolvedLogFile returns the log file path with ~ expanded, defaulting to
// ~/.wtm/logs/wtm.log.
func (c Config) ResolvedLogFile() (string, error) {
	path := strings.TrimSpace(c.LogFile)
	if path == "" {
		home, err := HomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "logs", "wtm.log"), nil
	}
	return expandHome(path)
}

func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Path honours WTM_CONFIG, then ~/.wtm/config.yaml.
func Path() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WTM_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// HomeDir is the wtm state directory, ~/.wtm unless WTM_HOME is set.
func HomeDir() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WTM_HOME")); explicit != "" {
		return expandHome(explicit)
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return "", errors.New("HOME not set")
	}
	return filepath.Join(home, ".wtm"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return "", errors.New("HOME not set")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
