package provider

// Store loads and persists providers. config.FileStore is the production
// implementation; rotation and the switch coordinator depend only on this.
type Store interface {
	GetProvider(id string) (*Provider, error)
	GetAllProviders() ([]*Provider, error)
	SaveProvider(p *Provider) error
	// UpdateProvider loads the provider, applies fn, and saves the result
	// under one lock. The updated provider is returned.
	UpdateProvider(id string, fn func(*Provider) error) (*Provider, error)
}
