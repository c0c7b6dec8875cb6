package config

import (
	"fmt"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/provider"
)

// GetProvider returns the provider with the given id.
func (c *Config) GetProvider(id string) (*provider.Provider, error) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, clierrors.ProviderNotFound(id)
}

// AddProvider adds a provider. The first provider becomes active when none is.
func (c *Config) AddProvider(p *provider.Provider) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}
	if _, err := c.GetProvider(p.ID); err == nil {
		return clierrors.NewUserError(
			fmt.Sprintf("provider %q already exists", p.ID),
			fmt.Sprintf("Use 'llmctl provider edit %s' to change it", p.ID),
		)
	}
	c.Providers = append(c.Providers, p)
	if c.ActiveProvider == "" {
		c.ActiveProvider = p.ID
	}
	return nil
}

// ReplaceProvider swaps in p for the provider with the same id.
func (c *Config) ReplaceProvider(p *provider.Provider) error {
	for i, existing := range c.Providers {
		if existing.ID == p.ID {
			c.Providers[i] = p
			return nil
		}
	}
	return clierrors.ProviderNotFound(p.ID)
}

// RemoveProvider deletes a provider and clears the active id if it pointed there.
func (c *Config) RemoveProvider(id string) error {
	for i, p := range c.Providers {
		if p.ID != id {
			continue
		}
		c.Providers = append(c.Providers[:i], c.Providers[i+1:]...)
		if c.ActiveProvider == id {
			c.ActiveProvider = ""
		}
		return nil
	}
	return clierrors.ProviderNotFound(id)
}

// SetActiveProvider selects the provider used by default.
func (c *Config) SetActiveProvider(id string) error {
	if _, err := c.GetProvider(id); err != nil {
		return err
	}
	c.ActiveProvider = id
	return nil
}

// GetActiveProvider returns the active provider.
func (c *Config) GetActiveProvider() (*provider.Provider, error) {
	if c.ActiveProvider == "" {
		return nil, clierrors.NoActiveProviderError()
	}
	return c.GetProvider(c.ActiveProvider)
}

// ListProviderIDs returns provider ids in config order.
func (c *Config) ListProviderIDs() []string {
	ids := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		ids = append(ids, p.ID)
	}
	return ids
}
