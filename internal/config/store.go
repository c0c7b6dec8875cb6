package config

import (
	"sync"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// FileStore implements provider.Store on top of the YAML config file.
// Every call reloads the file so concurrent CLI invocations see each other's writes.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ provider.Store = (*FileStore)(nil)

// NewFileStore returns a store for the config at path. An empty path uses the default location.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load returns the current config.
func (s *FileStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadFromPath(s.path)
}

// Update applies fn to a freshly loaded config and saves it.
func (s *FileStore) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadFromPath(s.path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return cfg.SaveToPath(s.path)
}

func (s *FileStore) GetProvider(id string) (*provider.Provider, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.GetProvider(id)
}

func (s *FileStore) GetAllProviders() ([]*provider.Provider, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Providers, nil
}

// SaveProvider replaces the stored provider with the same id.
func (s *FileStore) SaveProvider(p *provider.Provider) error {
	return s.Update(func(cfg *Config) error {
		return cfg.ReplaceProvider(p)
	})
}

func (s *FileStore) UpdateProvider(id string, fn func(*provider.Provider) error) (*provider.Provider, error) {
	var updated *provider.Provider
	err := s.Update(func(cfg *Config) error {
		p, err := cfg.GetProvider(id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		updated = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
