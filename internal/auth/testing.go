package auth

import (
	"slices"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// MockKeyring is an in-memory KeyringProvider for tests.
type MockKeyring struct {
	mu    sync.Mutex
	items map[string]keyring.Item
}

// NewMockKeyringProvider creates an empty mock keyring. Install it with
// SetProviderFunc.
func NewMockKeyringProvider() *MockKeyring {
	return &MockKeyring{items: make(map[string]keyring.Item)}
}

func (m *MockKeyring) Get(key string) (keyring.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return keyring.Item{}, keyring.ErrKeyNotFound
	}
	return item, nil
}

func (m *MockKeyring) Set(item keyring.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Key] = item
	return nil
}

func (m *MockKeyring) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return keyring.ErrKeyNotFound
	}
	delete(m.items, key)
	return nil
}

// SetSecret seeds the secret a keyring:<name> reference resolves to.
func (m *MockKeyring) SetSecret(name, value string) {
	_ = m.Set(keyring.Item{Key: keyPrefix + name, Data: []byte(value)})
}

// SecretNames lists the stored token secrets by reference name, sorted.
func (m *MockKeyring) SecretNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.items))
	for key := range m.items {
		if name, ok := strings.CutPrefix(key, keyPrefix); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// SetProviderFunc replaces the keyring opener; nil restores the OS keyring.
func SetProviderFunc(fn func() (KeyringProvider, error)) {
	if fn == nil {
		defaultProvider = newOSKeyring
		return
	}
	defaultProvider = fn
}
