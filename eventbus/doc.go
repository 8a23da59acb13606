// Package eventbus provides an in-process publish/subscribe bus with
// per-type pipelines (filters, transformers, middleware) and a simple
// Express-style facade layered on top of the typed system.
//
// # Typed events
//
//	bus := eventbus.New()
//	bus.Subscribe("order.created", func(ctx context.Context, e eventbus.Event) error {
//	    log.Println(e.Data)
//	    return nil
//	})
//	bus.Emit(eventbus.Event{Type: "order.created", Data: order})
//
// # Simple facade
//
// For code that wants a string-keyed emitter without constructing an Event,
// the simple facade routes through EmitNamed, never overloading Emit:
//
//	bus.On("order.created", func(data any) { ... })
//	bus.EmitNamed("order.created", order)
//
// # Pipelines
//
// A pipeline attached to an event type runs before subscribers are invoked.
// Each stage may filter (abort the event), transform (replace the event
// value) or wrap with middleware. Pipelines run in registration order;
// subscribers run concurrently once all pipelines succeed.
package eventbus
