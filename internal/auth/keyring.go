package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/99designs/keyring"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
)

const (
	// ServiceName is the keyring service name for llmctl
	ServiceName = "llmctl"
	// CredentialsDirEnvVarName controls the file keyring root directory.
	// Files are stored under: <dir>/llmctl/keyring
	CredentialsDirEnvVarName = "LLMCTL_CREDENTIALS_DIR"
	// KeyringPasswordEnvVarName sets the file keyring passphrase for non-interactive setups.
	KeyringPasswordEnvVarName = "LLMCTL_KEYRING_PASSWORD"
	// DBUSSessionAddressEnvVarName is used to detect Linux headless mode.
	DBUSSessionAddressEnvVarName = "DBUS_SESSION_BUS_ADDRESS"

	keyPrefix = "token:"
)

// KeyringProvider defines an interface for keyring operations
type KeyringProvider interface {
	Get(key string) (keyring.Item, error)
	Set(item keyring.Item) error
	Remove(key string) error
}

// osKeyring wraps the actual OS keyring implementation
type osKeyring struct {
	ring keyring.Keyring
}

func keyringFileDir() string {
	if dir := strings.TrimSpace(os.Getenv(CredentialsDirEnvVarName)); dir != "" {
		return filepath.Join(dir, ServiceName, "keyring")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}

	configDir = strings.TrimSpace(configDir)
	if configDir == "" {
		return string(os.PathSeparator) + filepath.Join(ServiceName, "keyring")
	}
	return filepath.Join(configDir, ServiceName, "keyring")
}

func keyringFilePassword() string {
	if password := strings.TrimSpace(os.Getenv(KeyringPasswordEnvVarName)); password != "" {
		return password
	}
	return ServiceName
}

func shouldForceFileBackend(goos string, dbusAddr string) bool {
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

// newOSKeyring creates a new OS keyring provider
func newOSKeyring() (KeyringProvider, error) {
	cfg := keyring.Config{
		ServiceName:                    ServiceName,
		KeychainTrustApplication:       true,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		FileDir:                        keyringFileDir(),
		FilePasswordFunc:               func(_ string) (string, error) { return keyringFilePassword(), nil },
	}

	if shouldForceFileBackend(runtime.GOOS, os.Getenv(DBUSSessionAddressEnvVarName)) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &osKeyring{ring: ring}, nil
}

func (k *osKeyring) Get(key string) (keyring.Item, error) {
	return k.ring.Get(key)
}

func (k *osKeyring) Set(item keyring.Item) error {
	return k.ring.Set(item)
}

func (k *osKeyring) Remove(key string) error {
	return k.ring.Remove(key)
}

// defaultProvider is the keyring provider used by the package
// Can be overridden for testing using SetProviderFunc
var defaultProvider func() (KeyringProvider, error) = newOSKeyring

// SecretName builds the keyring entry name for a provider token.
func SecretName(providerID, alias string) string {
	alias = strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' || r == '/' {
			return '-'
		}
		return r
	}, strings.TrimSpace(alias))
	if alias == "" {
		return providerID
	}
	return providerID + "-" + alias
}

// StoreSecret saves value under name and returns the config reference for it.
func StoreSecret(name, value string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name cannot be empty")
	}
	if value == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	ring, err := defaultProvider()
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}

	err = ring.Set(keyring.Item{
		Key:   keyPrefix + name,
		Label: "llmctl token " + name,
		Data:  []byte(value),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store secret in keyring: %w", err)
	}
	return RefKeyring + name, nil
}

// GetSecret reads a secret stored with StoreSecret.
func GetSecret(name string) (string, error) {
	ring, err := defaultProvider()
	if err != nil {
		return "", &clierrors.AuthError{
			Reason:     "keyring unavailable",
			Suggestion: "Set " + KeyringPasswordEnvVarName + " or store the token directly",
			Err:        err,
		}
	}

	item, err := ring.Get(keyPrefix + name)
	if errors.Is(err, keyring.ErrKeyNotFound) || (err == nil && len(item.Data) == 0) {
		return "", &clierrors.AuthError{
			Reason:     fmt.Sprintf("no keyring entry %q", name),
			Suggestion: "Re-add the token with 'llmctl token add <provider> --keyring'",
		}
	}
	if err != nil {
		return "", &clierrors.AuthError{Reason: fmt.Sprintf("keyring lookup for %q failed", name), Err: err}
	}
	return string(item.Data), nil
}

// DeleteSecret removes a stored secret. Missing entries are not an error.
func DeleteSecret(name string) error {
	ring, err := defaultProvider()
	if err != nil {
		return nil
	}
	err = ring.Remove(keyPrefix + name)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}
