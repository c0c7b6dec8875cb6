//go:build windows

package notify

import "os"

// Windows has no user signals; sessions rely on the signal file.
func sendReloadSignal(int) error { return nil }

// NotifyReload is a no-op on Windows.
func NotifyReload(chan<- os.Signal) func() { return func() {} }
