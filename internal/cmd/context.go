package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/procctl"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/rotation"
	"github.com/salmonumbrella/llmctl/internal/session"
)

type (
	errorFormatKey struct{}
	configKey      struct{}
	runtimeKey     struct{}
	explicitKey    struct{}
)

// WithErrorFormat stores the error format in the context.
func WithErrorFormat(ctx context.Context, format string) context.Context {
	return context.WithValue(ctx, errorFormatKey{}, format)
}

// ErrorFormatFromContext retrieves the error format from context.
func ErrorFormatFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(errorFormatKey{}).(string); ok {
		return v
	}
	return ""
}

// WithConfig stores loaded CLI config in context for downstream helpers.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext retrieves CLI config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	if v, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return v
	}
	return nil
}

func withExplicitOutput(ctx context.Context, explicit bool) context.Context {
	return context.WithValue(ctx, explicitKey{}, explicit)
}

// explicitOutputFromContext reports whether --output, --json, --query or
// --jsonpath was passed, as opposed to a format picked because stdout is
// not a terminal.
func explicitOutputFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(explicitKey{}).(bool)
	return v
}

// runtime builds the stores and services a command needs on first use, so
// commands that never touch sessions never open the session backend.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	mu       sync.Mutex
	store    *config.FileStore
	backend  session.Backend
	registry *session.Registry
	engine   *rotation.Engine
	notifier *notify.Service
	procs    *procctl.Controller
}

func newRuntime(cfg *config.Config, logger *slog.Logger) *runtime {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &runtime{cfg: cfg, logger: logger}
}

func withRuntime(ctx context.Context, rt *runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func runtimeFromContext(ctx context.Context) *runtime {
	if ctx == nil {
		return nil
	}
	if rt, ok := ctx.Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	return nil
}

// mustRuntime returns the context runtime, or a fresh one over the default
// config for commands run without the root pre-run hook.
func mustRuntime(ctx context.Context) (*runtime, error) {
	if rt := runtimeFromContext(ctx); rt != nil {
		return rt, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, slog.Default()), nil
}

func closeRuntime(ctx context.Context) {
	if rt := runtimeFromContext(ctx); rt != nil {
		_ = rt.Close()
	}
}

func (rt *runtime) Store() (*config.FileStore, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.store == nil {
		s, err := config.NewFileStore("")
		if err != nil {
			return nil, err
		}
		rt.store = s
	}
	return rt.store, nil
}

func (rt *runtime) Registry() (*session.Registry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.registry == nil {
		backend, err := session.OpenBackend(rt.cfg.GetSessionBackend(), rt.cfg.GetSessionDir())
		if err != nil {
			return nil, err
		}
		rt.backend = backend
		rt.registry = session.NewRegistry(backend, session.WithLogger(rt.logger))
	}
	return rt.registry, nil
}

func (rt *runtime) Engine() (*rotation.Engine, error) {
	store, err := rt.Store()
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.engine == nil {
		rt.engine = rotation.NewEngine(store, rotation.WithLogger(rt.logger))
	}
	return rt.engine, nil
}

// Notifier fans token switches out to the signal file, SIGUSR2 and any
// configured notify_urls.
func (rt *runtime) Notifier() (*notify.Service, error) {
	registry, err := rt.Registry()
	if err != nil {
		return nil, err
	}
	store, err := rt.Store()
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.notifier == nil {
		opts := []notify.ServiceOption{notify.WithServiceLogger(rt.logger)}
		if len(rt.cfg.NotifyURLs) > 0 {
			opts = append(opts, notify.WithNotifiers(newWebhookNotifier(rt.cfg.NotifyURLs, store, nil)))
		}
		file := notify.NewFileNotifier(rt.cfg.GetSessionDir(), rt.logger)
		rt.notifier = notify.NewService(registry, file, opts...)
	}
	return rt.notifier, nil
}

func (rt *runtime) Procs() *procctl.Controller {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.procs == nil {
		rt.procs = procctl.New(procctl.WithLogger(rt.logger))
	}
	return rt.procs
}

// Close waits for background token usage saves and releases the session backend.
func (rt *runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.engine != nil {
		rt.engine.Wait()
	}
	var err error
	if rt.backend != nil {
		err = rt.backend.Close()
		rt.backend = nil
		rt.registry = nil
		rt.notifier = nil
	}
	return err
}

func newWebhookNotifier(urls []string, store provider.Store, sender notify.Sender) *notify.WebhookNotifier {
	return notify.NewWebhookNotifier(urls, sender, webhookLabel(store))
}

// webhookLabel renders "<provider name> (<token alias>)". Token values never
// appear in the label.
func webhookLabel(store provider.Store) func(providerID, newToken string) string {
	return func(providerID, newToken string) string {
		p, err := store.GetProvider(providerID)
		if err != nil {
			return providerID
		}
		for i, t := range p.Tokens {
			if t.Value != newToken && !resolvesTo(t.Value, newToken) {
				continue
			}
			alias := t.Alias
			if alias == "" {
				alias = fmt.Sprintf("token #%d", i+1)
			}
			return fmt.Sprintf("%s (%s)", p.DisplayName(), alias)
		}
		return p.DisplayName()
	}
}

func resolvesTo(ref, secret string) bool {
	if !auth.IsRef(ref) {
		return false
	}
	v, err := auth.Resolve(ref)
	return err == nil && v == secret
}
