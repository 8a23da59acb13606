// Package plugin provides deterministic install/start/stop lifecycle
// management for capability-adding components that extend a router.Router.
//
// A Plugin adds routes, middleware, and event subscriptions to an App during
// Install, and may publish named capabilities other plugins or handlers can
// later look up by name through Registry.Capability - a capability registry
// in place of dynamic duck-typed surface extension.
//
// Example:
//
//	bus := eventbus.New()
//	registry := plugin.NewRegistry()
//	registry.Register(ratelimitplugin.New(ratelimitplugin.Config{...}))
//	registry.Register(authplugin.New(authplugin.Config{...}))
//
//	r := router.MustNew(router.WithPlugins(registry), router.WithEventBus(bus))
//
//	if err := registry.InstallAll(r, bus); err != nil {
//	    log.Fatal(err)
//	}
//	if err := registry.StartAll(); err != nil {
//	    log.Fatal(err)
//	}
//	defer registry.StopAll()
package plugin
