package plugin

import (
	"github.com/axiomhttp/core/eventbus"
	"github.com/axiomhttp/core/router"
)

// App is the narrow surface handed to a Plugin during Install. It is not a
// second application type - router.Router remains the only application
// surface in this module; App simply scopes what a plugin is allowed to
// touch (routes, middleware, events, capabilities) without exposing the
// router's full internals.
type App struct {
	Router   *router.Router
	Events   *eventbus.Bus
	registry *Registry
}

// SetCapability publishes v under name so other plugins or request handlers
// can retrieve it later through Registry.Capability / router.Context.Capability.
func (a *App) SetCapability(name string, v any) {
	a.registry.SetCapability(name, v)
}

// Capability looks up a capability published by a previously installed
// plugin (including this one, if it has already published under name).
func (a *App) Capability(name string) (any, bool) {
	return a.registry.Capability(name)
}
