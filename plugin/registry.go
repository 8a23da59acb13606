package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/axiomhttp/core/eventbus"
	"github.com/axiomhttp/core/router"
)

// ErrDuplicatePlugin is returned by Register when name is already registered.
var ErrDuplicatePlugin = errors.New("plugin: duplicate plugin name")

// ErrDependencyUnsatisfied is returned by InstallAll when a plugin names a
// dependency that has not been installed before it, by registration order.
type ErrDependencyUnsatisfied struct {
	Plugin     string
	Dependency string
}

func (e *ErrDependencyUnsatisfied) Error() string {
	return fmt.Sprintf("plugin: %q depends on %q, which is not installed before it in registration order", e.Plugin, e.Dependency)
}

// Registry holds plugins in registration order and drives their deterministic
// install/start/stop lifecycle. The zero value is not usable; construct with
// NewRegistry. A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	names   map[string]bool

	installed    []string // names, in install order, for reverse stop order
	installedSet map[string]bool
	eventBus     *eventbus.Bus // bound during InstallAll, used by StartAll/StopAll

	capabilities sync.Map // name -> any

	logger *slog.Logger
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryLogger attaches a logger used to report stop-time failures
// (which, per the lifecycle contract, are logged but never abort StopAll).
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		names:        make(map[string]bool),
		installedSet: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends plugin to the registry. Returns ErrDuplicatePlugin if a
// plugin with the same name is already registered.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[p.Name()] {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
	}
	r.names[p.Name()] = true
	r.plugins = append(r.plugins, p)
	return nil
}

// Unregister removes a plugin that has not yet been installed.
// Unregistering an installed plugin is a no-op with respect to its
// installed state; call StopAll first if you need teardown.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filtered := r.plugins[:0]
	for _, p := range r.plugins {
		if p.Name() != name {
			filtered = append(filtered, p)
		}
	}
	r.plugins = filtered
	delete(r.names, name)
}

// InstallAll installs every registered plugin in registration order,
// wiring each Install call to app and bus. The first failure aborts
// installation of remaining plugins; plugins installed before the failure
// remain installed.
func (r *Registry) InstallAll(app *router.Router, bus *eventbus.Bus) error {
	r.mu.RLock()
	plugins := make([]Plugin, len(r.plugins))
	copy(plugins, r.plugins)
	r.mu.RUnlock()

	r.mu.Lock()
	r.eventBus = bus
	r.mu.Unlock()

	if bus != nil {
		bus.EmitNamed("application:server-created", map[string]any{})
	}

	for _, p := range plugins {
		for _, dep := range p.Dependencies() {
			if !r.installedSet[dep] {
				return &ErrDependencyUnsatisfied{Plugin: p.Name(), Dependency: dep}
			}
		}

		pluginApp := &App{Router: app, Events: bus, registry: r}
		if err := p.Install(pluginApp); err != nil {
			return fmt.Errorf("plugin: install %q: %w", p.Name(), err)
		}

		r.installed = append(r.installed, p.Name())
		r.installedSet[p.Name()] = true

		if bus != nil {
			bus.EmitNamed("plugin:installed", map[string]any{"name": p.Name(), "version": p.Version()})
		}
	}
	return nil
}

// StartAll calls Start on every installed plugin that implements Starter,
// in registration order. The first failure aborts remaining starts.
func (r *Registry) StartAll() error {
	r.mu.RLock()
	plugins := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		if r.installedSet[p.Name()] {
			plugins = append(plugins, p)
		}
	}
	bus := r.bus()
	r.mu.RUnlock()

	for _, p := range plugins {
		starter, ok := p.(Starter)
		if !ok {
			continue
		}
		if err := starter.Start(); err != nil {
			return fmt.Errorf("plugin: start %q: %w", p.Name(), err)
		}
		if bus != nil {
			bus.EmitNamed("plugin:started", map[string]any{"name": p.Name()})
		}
	}
	return nil
}

// StopAll calls Stop on every installed plugin that implements Stopper, in
// reverse registration order. Stop errors are logged (if a logger was
// configured) but never prevent remaining plugins from stopping.
func (r *Registry) StopAll() {
	r.mu.RLock()
	plugins := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		if r.installedSet[p.Name()] {
			plugins = append(plugins, p)
		}
	}
	bus := r.bus()
	logger := r.logger
	r.mu.RUnlock()

	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		stopper, ok := p.(Stopper)
		if !ok {
			continue
		}
		if err := stopper.Stop(); err != nil && logger != nil {
			logger.Error("plugin: stop failed", "name", p.Name(), "error", err)
		}
		if bus != nil {
			bus.EmitNamed("plugin:stopped", map[string]any{"name": p.Name()})
		}
	}
}

// bus returns the event bus bound during InstallAll, if any.
func (r *Registry) bus() *eventbus.Bus { return r.eventBus }

// SetCapability publishes v under name. Intended for use by App, but
// exported so a Registry owner can seed capabilities before InstallAll.
func (r *Registry) SetCapability(name string, v any) {
	r.capabilities.Store(name, v)
}

// Capability looks up a published capability by name.
func (r *Registry) Capability(name string) (any, bool) {
	v, ok := r.capabilities.Load(name)
	return v, ok
}
