//go:build windows

package procctl

import "errors"

func signalProcess(int, bool) error {
	return errors.New("signals are not supported on windows")
}
