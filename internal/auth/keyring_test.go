package auth

import (
	"fmt"
	"testing"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/provider"
)

// setupMockKeyring configures tests to use an empty mock keyring
func setupMockKeyring(t *testing.T) *MockKeyring {
	t.Helper()
	mock := NewMockKeyringProvider()
	originalProvider := defaultProvider
	SetProviderFunc(func() (KeyringProvider, error) {
		return mock, nil
	})
	t.Cleanup(func() { defaultProvider = originalProvider })
	return mock
}

// setupNoKeyring simulates environments where the keyring is unavailable
func setupNoKeyring(t *testing.T) {
	t.Helper()
	originalProvider := defaultProvider
	SetProviderFunc(func() (KeyringProvider, error) {
		return nil, fmt.Errorf("keyring not available")
	})
	t.Cleanup(func() { defaultProvider = originalProvider })
}

func TestStoreAndGetSecret(t *testing.T) {
	setupMockKeyring(t)

	ref, err := StoreSecret("work-primary", "sk-ant-secret-0123456789")
	if err != nil {
		t.Fatalf("StoreSecret() error = %v", err)
	}
	if ref != "keyring:work-primary" {
		t.Errorf("ref = %q", ref)
	}

	got, err := GetSecret("work-primary")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got != "sk-ant-secret-0123456789" {
		t.Errorf("GetSecret() = %q", got)
	}

	if err := DeleteSecret("work-primary"); err != nil {
		t.Fatalf("DeleteSecret() error = %v", err)
	}
	if _, err := GetSecret("work-primary"); !clierrors.IsAuthError(err) {
		t.Errorf("GetSecret after delete = %v, want AuthError", err)
	}
	if err := DeleteSecret("work-primary"); err != nil {
		t.Errorf("deleting a missing secret should not fail: %v", err)
	}
}

func TestStoreSecret_Validation(t *testing.T) {
	setupMockKeyring(t)

	if _, err := StoreSecret("", "x"); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := StoreSecret("x", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestKeyringUnavailable(t *testing.T) {
	setupNoKeyring(t)

	if _, err := StoreSecret("a", "b"); err == nil {
		t.Error("StoreSecret should fail without keyring")
	}
	_, err := GetSecret("a")
	if !clierrors.IsAuthError(err) {
		t.Errorf("GetSecret() = %v, want AuthError", err)
	}
	if clierrors.UserSuggestion(err) == "" {
		t.Error("keyring failure should carry a suggestion")
	}
	if err := DeleteSecret("a"); err != nil {
		t.Errorf("DeleteSecret without keyring should be a no-op, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	mock := setupMockKeyring(t)
	mock.SetSecret("work", "sk-from-keyring-0123")
	t.Setenv("WORK_TOKEN", "sk-from-env-0123456")
	t.Setenv("EMPTY_TOKEN", "")

	tests := []struct {
		name     string
		value    string
		want     string
		wantAuth bool
	}{
		{"literal", "sk-literal-0123456", "sk-literal-0123456", false},
		{"keyring", "keyring:work", "sk-from-keyring-0123", false},
		{"env", "env:WORK_TOKEN", "sk-from-env-0123456", false},
		{"missing keyring", "keyring:nope", "", true},
		{"unset env", "env:EMPTY_TOKEN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.value)
			if tt.wantAuth {
				if !clierrors.IsAuthError(err) {
					t.Fatalf("Resolve(%q) error = %v, want AuthError", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestResolveVars(t *testing.T) {
	mock := setupMockKeyring(t)
	mock.SetSecret("work", "sk-from-keyring-0123")

	vars := map[string]string{
		provider.EnvAuthToken: "keyring:work",
		provider.EnvBaseURL:   "https://api.example.com",
	}
	if err := ResolveVars(vars); err != nil {
		t.Fatal(err)
	}
	if vars[provider.EnvAuthToken] != "sk-from-keyring-0123" {
		t.Errorf("token = %q", vars[provider.EnvAuthToken])
	}

	if err := ResolveVars(map[string]string{}); err != nil {
		t.Errorf("empty vars should resolve cleanly: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe("keyring:work"); got != "keyring:work" {
		t.Errorf("Describe(ref) = %q", got)
	}
	if got := Describe("sk-ant-api03-xyz"); got != "sk-ant-a..." {
		t.Errorf("Describe(secret) = %q", got)
	}
}

func TestSecretName(t *testing.T) {
	tests := []struct{ provider, alias, want string }{
		{"work", "primary", "work-primary"},
		{"work", "my key/2", "work-my-key-2"},
		{"work", "", "work"},
	}
	for _, tt := range tests {
		if got := SecretName(tt.provider, tt.alias); got != tt.want {
			t.Errorf("SecretName(%q, %q) = %q, want %q", tt.provider, tt.alias, got, tt.want)
		}
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		goos, dbus string
		want       bool
	}{
		{"linux", "", true},
		{"linux", "  ", true},
		{"linux", "unix:path=/run/user/1000/bus", false},
		{"darwin", "", false},
		{"windows", "", false},
	}
	for _, tt := range tests {
		if got := shouldForceFileBackend(tt.goos, tt.dbus); got != tt.want {
			t.Errorf("shouldForceFileBackend(%q, %q) = %v, want %v", tt.goos, tt.dbus, got, tt.want)
		}
	}
}

func TestKeyringFileDirAndPassword(t *testing.T) {
	t.Setenv(CredentialsDirEnvVarName, "/creds")
	if got := keyringFileDir(); got != "/creds/llmctl/keyring" {
		t.Errorf("keyringFileDir() = %q", got)
	}

	t.Setenv(KeyringPasswordEnvVarName, "")
	if got := keyringFilePassword(); got != ServiceName {
		t.Errorf("default password = %q", got)
	}
	t.Setenv(KeyringPasswordEnvVarName, "hunter2")
	if got := keyringFilePassword(); got != "hunter2" {
		t.Errorf("password = %q", got)
	}
}
