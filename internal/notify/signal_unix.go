//go:build !windows

package notify

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

func sendReloadSignal(pid int) error {
	return unix.Kill(pid, unix.SIGUSR2)
}

// NotifyReload relays the reload signal to c. It returns a func that stops
// the relay.
func NotifyReload(c chan<- os.Signal) func() {
	signal.Notify(c, unix.SIGUSR2)
	return func() { signal.Stop(c) }
}
