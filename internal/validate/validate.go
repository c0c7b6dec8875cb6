package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// providerIDRegex matches lowercase slugs such as "work" or "glm-4_backup".
var providerIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// envVarRegex is the conventional shape of exported variable names.
var envVarRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// MinTokenLength is the shortest credential accepted by token add.
const MinTokenLength = 10

// ProviderID validates a provider identifier.
func ProviderID(value string) error {
	if value == "" {
		return fmt.Errorf("provider id: cannot be empty")
	}
	if !providerIDRegex.MatchString(value) {
		return fmt.Errorf("provider id: must be lowercase letters, digits, '-' or '_' (max 64), got %q", value)
	}
	return nil
}

// Weight validates a token weight (1-10).
func Weight(w int) error {
	if w < 1 {
		return fmt.Errorf("weight: must be at least 1, got %d", w)
	}
	if w > 10 {
		return fmt.Errorf("weight: must be at most 10, got %d", w)
	}
	return nil
}

// NonEmpty validates that a required string field is not empty.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	return nil
}

// TokenValue validates a raw credential or a keyring:/env: reference.
func TokenValue(value string) error {
	if value == "" {
		return fmt.Errorf("token: cannot be empty")
	}
	if strings.HasPrefix(value, "keyring:") || strings.HasPrefix(value, "env:") {
		if _, ref, _ := strings.Cut(value, ":"); ref == "" {
			return fmt.Errorf("token: reference %q has no name", value)
		}
		return nil
	}
	if len(value) < MinTokenLength {
		return fmt.Errorf("token: must be at least %d characters", MinTokenLength)
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return fmt.Errorf("token: must not contain whitespace")
	}
	return nil
}

// BaseURL validates a provider endpoint: http(s) scheme and a host.
func BaseURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("base url: cannot be empty")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("base url: must be a valid URL, got error: %v", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base url: must start with http:// or https://, got %q", urlStr)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("base url: must have a host, got %q", urlStr)
	}

	return nil
}

// EnvVarName reports whether name follows the UPPER_SNAKE convention.
func EnvVarName(name string) bool {
	return envVarRegex.MatchString(name)
}
