package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// UserError represents an error caused by user input or configuration.
// Suggestion can provide a concrete fix for the user.
type UserError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a UserError with a message and optional suggestion.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{Message: message, Suggestion: suggestion}
}

// WrapUserError wraps an underlying error with a user-facing message and suggestion.
func WrapUserError(err error, message, suggestion string) *UserError {
	return &UserError{Message: message, Suggestion: suggestion, Err: err}
}

// NotFoundError marks a missing provider, token or session.
type NotFoundError struct {
	Kind       string
	ID         string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// AuthError represents a failure to resolve a stored credential
// (keyring lookup, missing env var reference).
type AuthError struct {
	Reason     string
	Suggestion string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("credential error: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CanceledError is returned when the user backs out of an interactive flow.
type CanceledError struct {
	Step string
}

func (e *CanceledError) Error() string {
	if e.Step == "" {
		return "canceled"
	}
	return fmt.Sprintf("canceled at %s", e.Step)
}

// Type checkers
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsUserError(err error) bool {
	var e *UserError
	return errors.As(err, &e)
}

func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsCanceled(err error) bool {
	var e *CanceledError
	return errors.As(err, &e)
}

// UserSuggestion returns a suggestion string if err carries one.
func UserSuggestion(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Suggestion
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Suggestion
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Suggestion
	}
	return ""
}

// ProviderNotFound reports an unknown provider id.
func ProviderNotFound(id string) error {
	return &NotFoundError{
		Kind:       "provider",
		ID:         id,
		Suggestion: "Run 'llmctl provider list' to see configured providers",
	}
}

// TokenNotFound reports an unknown token alias or value prefix.
func TokenNotFound(providerID, ref string) error {
	return &NotFoundError{
		Kind:       "token",
		ID:         ref,
		Suggestion: fmt.Sprintf("Run 'llmctl token list %s' to see its tokens", providerID),
	}
}

// NoActiveProviderError is returned when a command needs an active provider and none is set.
func NoActiveProviderError() error {
	return NewUserError(
		"no active provider selected",
		"Run 'llmctl use <provider-id>' or pass --provider <provider-id>",
	)
}

// NoProvidersError is returned when the config holds no providers at all.
func NoProvidersError() error {
	return NewUserError(
		"no providers configured",
		"Run 'llmctl provider add' to add one",
	)
}

// NoAlternateTokenError is returned when rotation finds nothing but the current token.
func NoAlternateTokenError(providerID string) error {
	return NewUserError(
		"no other token available",
		fmt.Sprintf("Add or enable another token: llmctl token add %s", providerID),
	)
}

// NoTokensError is returned when a provider has no usable credential.
func NoTokensError(providerID string) error {
	return NewUserError(
		fmt.Sprintf("provider %q has no usable tokens", providerID),
		fmt.Sprintf("Add or enable a token: llmctl token add %s", providerID),
	)
}

// JoinMessages formats a list of problems as a bulleted block.
func JoinMessages(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("  • ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
