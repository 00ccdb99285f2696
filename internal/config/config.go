package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	appDir           = "PowerSession"
	envPrefix        = "POWERSESSION"
	DefaultAPIServer = "https://asciinema.org"
	DefaultLogLevel  = "error"
)

type Config struct {
	InstallID string `yaml:"install_id" ignored:"true"`
	APIServer string `yaml:"api_server" split_words:"true"`
	DBPath    string `yaml:"db_path" split_words:"true"`
	LogFile   string `yaml:"log_file" split_words:"true"`
	LogLevel  string `yaml:"log_level" split_words:"true"`
	// Catalog makes rec register its recordings in the sqlite catalog.
	Catalog   bool   `yaml:"catalog,omitempty" split_words:"true"`

	ConfigPath string `yaml:"-" ignored:"true"`
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads the config file at path, filling defaults next to it.
// POWERSESSION_* environment variables override file values. LoadFrom never
// writes: a missing file yields defaults and an empty install id.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{ConfigPath: path}
	if err := cfg.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.applyDefaults()

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// EnsureInstallID generates and saves an install id if the config has none.
// Only the commands that talk to the sharing server need one.
func (c *Config) EnsureInstallID() error {
	if c.InstallID != "" {
		return nil
	}

	onDisk := &Config{ConfigPath: c.ConfigPath}
	if err := onDisk.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if onDisk.InstallID == "" {
		onDisk.InstallID = uuid.NewString()
		if err := onDisk.saveToFile(); err != nil {
			return fmt.Errorf("failed to save config file: %w", err)
		}
	}
	c.InstallID = onDisk.InstallID
	return nil
}

func (c *Config) applyDefaults() {
	dir := filepath.Dir(c.ConfigPath)
	if c.APIServer == "" {
		c.APIServer = DefaultAPIServer
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "sessions.db")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dir, "powersession.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// SetAPIServer validates server and persists it as the upload target.
func (c *Config) SetAPIServer(server string) error {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	u, err := url.Parse(server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api server %q: must be an http(s) URL", server)
	}

	// Write on top of what is on disk so environment overrides stay out of
	// the file.
	onDisk := &Config{ConfigPath: c.ConfigPath}
	if err := onDisk.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if onDisk.InstallID == "" {
		onDisk.InstallID = c.InstallID
	}
	onDisk.APIServer = server
	if err := onDisk.saveToFile(); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	c.APIServer = server
	return nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid yaml in %s: %w", c.ConfigPath, err)
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.ConfigPath, data, 0600)
}
