package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the CLI configuration
type Config struct {
	// Default output format (text, json, ndjson, table, yaml)
	Output string `yaml:"output,omitempty"`

	// Default color mode (auto, always, never)
	Color string `yaml:"color,omitempty"`

	ActiveProvider string `yaml:"active_provider,omitempty"`

	// Session registry storage: "file" (default) or "sqlite"
	SessionBackend string `yaml:"session_backend,omitempty"`

	// Directory holding the session registry and token-update signals (default os.TempDir())
	SessionDir string `yaml:"session_dir,omitempty"`

	// shoutrrr service URLs notified after a token switch
	NotifyURLs []string `yaml:"notify_urls,omitempty"`

	Providers []*provider.Provider `yaml:"providers,omitempty"`

	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// configPathFunc is the function used to get the default config path
// It can be overridden for testing
var configPathFunc = defaultConfigPath

// SetConfigPathFunc sets the config path function for testing.
// Returns the original function so it can be restored.
func SetConfigPathFunc(fn func() (string, error)) func() (string, error) {
	orig := configPathFunc
	configPathFunc = fn
	return orig
}

// defaultConfigPath returns $LLMCTL_CONFIG or ~/.config/llmctl/config.yaml
func defaultConfigPath() (string, error) {
	if p := os.Getenv("LLMCTL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "llmctl", "config.yaml"), nil
}

// DefaultConfigPath returns the config file location.
func DefaultConfigPath() (string, error) {
	return configPathFunc()
}

// Load loads config from the default path, returns empty config if not found
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return &Config{}, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return &cfg, nil
}

// Save saves config to the default path
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveToPath(path)
}

// SaveToPath writes the config atomically and bumps UpdatedAt.
func (c *Config) SaveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// GetOutput returns the effective output format (config default or empty)
func (c *Config) GetOutput() string {
	return c.Output
}

// GetColor returns the effective color mode (config default or empty)
func (c *Config) GetColor() string {
	return c.Color
}

// GetSessionDir returns $LLMCTL_SESSION_DIR, the configured dir, or os.TempDir().
func (c *Config) GetSessionDir() string {
	if d := os.Getenv("LLMCTL_SESSION_DIR"); d != "" {
		return d
	}
	if c.SessionDir != "" {
		return c.SessionDir
	}
	return os.TempDir()
}

// GetSessionBackend returns the session backend, "file" when unset.
func (c *Config) GetSessionBackend() string {
	if c.SessionBackend == "" {
		return BackendFile
	}
	return c.SessionBackend
}

// Set updates a scalar setting by its yaml key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "output":
		c.Output = value
	case "color":
		c.Color = value
	case "session_backend":
		if value != "" && value != BackendFile && value != BackendSQLite {
			return fmt.Errorf("session_backend must be %q or %q", BackendFile, BackendSQLite)
		}
		c.SessionBackend = value
	case "session_dir":
		c.SessionDir = value
	case "notify_urls":
		if value == "" {
			c.NotifyURLs = nil
		} else {
			c.NotifyURLs = append(c.NotifyURLs, value)
		}
	default:
		return fmt.Errorf("unknown config key %q (expected output, color, session_backend, session_dir, notify_urls)", key)
	}
	return nil
}
