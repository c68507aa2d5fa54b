// Package config resolves the data directory and loads the optional YAML
// settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/profile"
)

type Config struct {
	DataDir           string `yaml:"-"`
	UserProfileDir    string `yaml:"-"`
	ProjectProfileDir string `yaml:"-"`

	DefaultProfile string `yaml:"default_profile"`
	RawGracePeriod string `yaml:"grace_period"` // e.g. "2s"
	RawMaxOutput   int    `yaml:"max_output"`   // bytes per stream
	OnBusy         string `yaml:"on_busy"`      // reject | restart
	WorkDir        string `yaml:"work_dir"`
	WorkspaceDir   string `yaml:"workspace_dir"`
}

// New returns the defaults for the current environment without reading any
// file.
func New() (*Config, error) {
	dataDir := os.Getenv("SCRIPTVIZ_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".scriptviz")
	}

	return &Config{
		DataDir:           dataDir,
		UserProfileDir:    filepath.Join(dataDir, "profiles"),
		ProjectProfileDir: filepath.Join(".scriptviz", "profiles"),
	}, nil
}

// Load applies the YAML file at path on top of New. An empty path means
// <data_dir>/config.yaml, which may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	c, err := New()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = c.Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch executor.Policy(c.OnBusy) {
	case "", executor.PolicyReject, executor.PolicyRestart:
	default:
		return fmt.Errorf("on_busy must be %q or %q, got %q", executor.PolicyReject, executor.PolicyRestart, c.OnBusy)
	}
	if c.RawGracePeriod != "" {
		d, err := time.ParseDuration(c.RawGracePeriod)
		if err != nil {
			return fmt.Errorf("grace_period: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("grace_period must be positive, got %s", d)
		}
	}
	if c.RawMaxOutput < 0 {
		return fmt.Errorf("max_output must not be negative, got %d", c.RawMaxOutput)
	}
	return nil
}

func (c *Config) Path() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "scriptviz.log")
}

// ProfileDirs lists profile directories in load order; later entries
// override earlier ones.
func (c *Config) ProfileDirs() []string {
	return []string{c.UserProfileDir, c.ProjectProfileDir}
}

func (c *Config) Profile() string {
	if c.DefaultProfile != "" {
		return c.DefaultProfile
	}
	return profile.Default
}

func (c *Config) GracePeriod() time.Duration {
	if c.RawGracePeriod != "" {
		d, err := time.ParseDuration(c.RawGracePeriod)
		if err == nil && d > 0 {
			return d
		}
	}
	return executor.DefaultGracePeriod
}

func (c *Config) MaxOutput() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return executor.DefaultMaxOutput
}

func (c *Config) Policy() executor.Policy {
	if c.OnBusy == "" {
		return executor.PolicyReject
	}
	return executor.Policy(c.OnBusy)
}

// Executor builds the executor configuration for p.
func (c *Config) Executor(p *models.Profile, history executor.Recorder) executor.Config {
	return executor.Config{
		Profile:      p,
		WorkDir:      c.WorkDir,
		WorkspaceDir: c.WorkspaceDir,
		GracePeriod:  c.GracePeriod(),
		MaxOutput:    c.MaxOutput(),
		Policy:       c.Policy(),
		History:      history,
	}
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(c.UserProfileDir, 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	return nil
}
