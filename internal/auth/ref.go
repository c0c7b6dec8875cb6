package auth

import (
	"fmt"
	"os"
	"strings"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/provider"
)

// Reference prefixes accepted in token values.
const (
	RefKeyring = "keyring:"
	RefEnv     = "env:"
)

// IsRef reports whether value is a keyring: or env: reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefKeyring) || strings.HasPrefix(value, RefEnv)
}

// Resolve returns the secret a token value stands for. Literal values are returned unchanged.
func Resolve(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, RefKeyring):
		return GetSecret(strings.TrimPrefix(value, RefKeyring))
	case strings.HasPrefix(value, RefEnv):
		name := strings.TrimPrefix(value, RefEnv)
		v := os.Getenv(name)
		if v == "" {
			return "", &clierrors.AuthError{
				Reason:     fmt.Sprintf("environment variable %s is not set", name),
				Suggestion: fmt.Sprintf("export %s=<token> before running llmctl", name),
			}
		}
		return v, nil
	default:
		return value, nil
	}
}

// ResolveVars resolves the credential entry of an export map in place.
func ResolveVars(vars map[string]string) error {
	v, ok := vars[provider.EnvAuthToken]
	if !ok || !IsRef(v) {
		return nil
	}
	secret, err := Resolve(v)
	if err != nil {
		return err
	}
	vars[provider.EnvAuthToken] = secret
	return nil
}

// Describe renders a token value for display: references verbatim, secrets masked.
func Describe(value string) string {
	if IsRef(value) {
		return value
	}
	return provider.Mask(value)
}
