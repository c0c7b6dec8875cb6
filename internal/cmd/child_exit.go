package cmd

import (
	"errors"
	"fmt"
)

// childExitError carries the exit status of a CLI launched by "use --cli"
// so llmctl exits with the same code.
type childExitError struct {
	Name string
	Code int
}

func (e *childExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

func childExitStatus(err error) (int, bool) {
	var childErr *childExitError
	if !errors.As(err, &childErr) {
		return 0, false
	}
	if childErr.Code <= 0 {
		return ExitSystem, true
	}
	return childErr.Code, true
}
