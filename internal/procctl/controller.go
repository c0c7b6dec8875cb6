package procctl

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// KillGrace is how long Terminate waits between SIGTERM and SIGKILL.
const KillGrace = 2 * time.Second

// Controller bundles the OS hooks used to inspect and replace processes.
type Controller struct {
	runner   Runner
	goos     string
	readlink func(string) (string, error)
	signal   func(pid int, force bool) error
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(c *Controller) { c.runner = r }
}

// WithGOOS overrides the detected operating system.
func WithGOOS(goos string) Option {
	return func(c *Controller) { c.goos = goos }
}

// WithReadlink overrides symlink resolution for /proc lookups.
func WithReadlink(fn func(string) (string, error)) Option {
	return func(c *Controller) { c.readlink = fn }
}

// WithSignal overrides process signalling; force selects SIGKILL over SIGTERM.
func WithSignal(fn func(pid int, force bool) error) Option {
	return func(c *Controller) { c.signal = fn }
}

// WithSleep overrides the grace-period wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a Controller for the running platform.
func New(opts ...Option) *Controller {
	c := &Controller{
		runner:   ExecRunner{},
		goos:     runtime.GOOS,
		readlink: os.Readlink,
		signal:   signalProcess,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
