package eventbus

import (
	"context"
	"reflect"
)

// NamedHandler is the simple facade's handler shape: it receives the raw
// data passed to EmitNamed, not a full Event.
type NamedHandler func(data any)

// On registers handler for name using default subscription options. It
// returns the same Bus for chaining, mirroring an Express-style API.
//
// The simple facade is a distinct code path from Subscribe/Emit: it never
// overloads Emit itself, it always routes through EmitNamed (see the
// "Simple facade" section of doc.go) so callers that want the typed Event system and callers
// that want string+data never collide on the same method name.
func (b *Bus) On(name string, handler NamedHandler) *Bus {
	b.registerFacadeHandler(name, handler, SubscriptionOptions{})
	return b
}

// Once registers handler for name; it fires at most once.
func (b *Bus) Once(name string, handler NamedHandler) *Bus {
	b.registerFacadeHandler(name, handler, SubscriptionOptions{Once: true})
	return b
}

func (b *Bus) registerFacadeHandler(name string, handler NamedHandler, opts SubscriptionOptions) {
	sub := b.SubscribeWithOptions(name, func(ctx context.Context, event Event) error {
		handler(event.Data)
		return nil
	}, opts)

	key := reflect.ValueOf(handler).Pointer()
	b.facadeMu.Lock()
	if b.facadeSub[name] == nil {
		b.facadeSub[name] = make(map[uintptr]*Subscription)
	}
	b.facadeSub[name][key] = sub
	b.facadeMu.Unlock()
}

// Off removes a handler previously registered with On or Once for name.
// Matching is by the function's code pointer (reflect.Value.Pointer), so
// closures created from the same function literal share one key: for a
// given name only the most recently registered of them is tracked, and Off
// with any of them deactivates that one.
func (b *Bus) Off(name string, handler NamedHandler) *Bus {
	key := reflect.ValueOf(handler).Pointer()
	b.facadeMu.Lock()
	sub, ok := b.facadeSub[name][key]
	if ok {
		delete(b.facadeSub[name], key)
	}
	b.facadeMu.Unlock()
	if ok {
		sub.deactivate()
	}
	return b
}

// EmitNamed publishes data under name through the typed system, running
// name's pipeline (if any) and invoking both typed Subscribe handlers and
// facade On/Once handlers registered for name.
func (b *Bus) EmitNamed(name string, data any) {
	b.Emit(NewEvent(name, data))
}

// RemoveAllListeners deactivates every subscription registered for name,
// typed Subscribe handlers included, not only facade handlers. If name is
// empty, this is done for every name that has a facade handler.
func (b *Bus) RemoveAllListeners(name string) *Bus {
	if name == "" {
		b.facadeMu.Lock()
		names := make([]string, 0, len(b.facadeSub))
		for n := range b.facadeSub {
			names = append(names, n)
		}
		b.facadeMu.Unlock()
		for _, n := range names {
			b.RemoveAllListeners(n)
		}
		return b
	}

	b.UnsubscribeAll(name)
	b.facadeMu.Lock()
	delete(b.facadeSub, name)
	b.facadeMu.Unlock()
	return b
}

// EventNames returns every event type with at least one active subscription.
func (b *Bus) EventNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subscriptions))
	for name, subs := range b.subscriptions {
		for _, sub := range subs {
			if sub.Active() {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// ListenerCount returns the number of active subscriptions for name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, sub := range b.subscriptions[name] {
		if sub.Active() {
			count++
		}
	}
	return count
}
