package cmd

import (
	"context"
	"errors"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
)

const (
	ExitOK       = 0
	ExitSystem   = 1
	ExitUser     = 2
	ExitAuth     = 3
	ExitNotFound = 4
	ExitCanceled = 130
)

// ExitCode maps a command error to a stable process exit code for automation.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) || clierrors.IsCanceled(err) {
		return ExitCanceled
	}
	if code, ok := childExitStatus(err); ok {
		return code
	}
	if clierrors.IsAuthError(err) {
		return ExitAuth
	}
	if clierrors.IsNotFoundError(err) {
		return ExitNotFound
	}
	if clierrors.IsValidationError(err) || clierrors.IsUserError(err) {
		return ExitUser
	}
	return ExitSystem
}
