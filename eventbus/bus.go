package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultCleanupInterval is how often the Bus sweeps inactive subscriptions.
const defaultCleanupInterval = time.Minute

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLogger attaches a logger used for sibling-failure diagnostics.
// A nil logger (the default) discards these diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithCleanupInterval overrides how often inactive subscriptions are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(b *Bus) { b.cleanupInterval = d }
}

// Bus is an in-process publish/subscribe hub. The zero value is not usable;
// construct with New. A Bus is safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*Subscription // eventType -> subscriptions, includes Wildcard
	pipelines     map[string]*Pipeline        // eventType -> pipeline

	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once

	// simple facade bookkeeping: maps On/Once registrations to their
	// underlying typed Subscription so Off can remove them by handler identity.
	facadeMu  sync.Mutex
	facadeSub map[string]map[uintptr]*Subscription
}

// New constructs a Bus and starts its background cleanup sweep.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscriptions:   make(map[string][]*Subscription),
		pipelines:       make(map[string]*Pipeline),
		cleanupInterval: defaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		facadeSub:       make(map[string]map[uintptr]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.cleanupLoop()
	return b
}

// Close stops the background cleanup sweep. Safe to call multiple times.
func (b *Bus) Close() {
	b.cleanupOnce.Do(func() { close(b.stopCleanup) })
}

// Subscribe registers handler for eventType (or Wildcard for every event)
// with default options (5s timeout, no retry, not once).
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	return b.SubscribeWithOptions(eventType, handler, SubscriptionOptions{})
}

// SubscribeWithOptions registers handler with an explicit SubscriptionOptions.
func (b *Bus) SubscribeWithOptions(eventType string, handler Handler, opts SubscriptionOptions) *Subscription {
	sub := newSubscription(eventType, handler, opts)
	b.mu.Lock()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	b.mu.Unlock()
	return sub
}

// UnsubscribeAll deactivates every subscription registered for eventType.
func (b *Bus) UnsubscribeAll(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscriptions[eventType] {
		sub.deactivate()
	}
	delete(b.subscriptions, eventType)
}

// AddPipeline attaches stage to eventType's pipeline, in registration order.
func (b *Bus) AddPipeline(eventType string, stage PipelineStage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pipelines[eventType]
	if !ok {
		p = &Pipeline{}
		b.pipelines[eventType] = p
	}
	p.addStage(stage)
}

// RemovePipeline removes the named stage from eventType's pipeline.
func (b *Bus) RemovePipeline(eventType, name string) {
	b.mu.RLock()
	p, ok := b.pipelines[eventType]
	b.mu.RUnlock()
	if !ok {
		return
	}
	b.mu.Lock()
	p.removeStage(name)
	b.mu.Unlock()
}

// Emit runs event.Type's pipeline (if any), then invokes every matching
// subscriber (event.Type and Wildcard) concurrently with allSettled
// semantics: a failing subscriber never aborts its siblings. Emit blocks
// until pipelines and subscribers complete; callers that want
// fire-and-forget semantics should invoke Emit in its own goroutine (this
// is exactly what the router's dispatcher does for request.start/end -
// see router.WithEventBus).
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	pipeline, hasPipeline := b.pipelines[event.Type]
	b.mu.RUnlock()

	ctx := context.Background()

	if hasPipeline {
		var ok bool
		event, ok = pipeline.run(ctx, event)
		if !ok {
			return
		}
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions[event.Type])+len(b.subscriptions[Wildcard]))
	subs = append(subs, b.subscriptions[event.Type]...)
	if event.Type != Wildcard {
		subs = append(subs, b.subscriptions[Wildcard]...)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		if !sub.Active() {
			continue
		}
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			err := sub.invoke(ctx, event)
			if err != nil && b.logger != nil {
				b.logger.Warn("eventbus: subscriber failed",
					"event_type", event.Type, "subscription_id", sub.ID, "error", err)
			}
			if sub.opts.Once {
				sub.deactivate()
			}
		}(sub)
	}
	wg.Wait()
}

// cleanupLoop periodically removes inactive subscriptions so long-lived
// buses do not accumulate dead entries from Once subscriptions.
func (b *Bus) cleanupLoop() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweepInactive()
		case <-b.stopCleanup:
			return
		}
	}
}

func (b *Bus) sweepInactive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subscriptions {
		live := subs[:0]
		for _, sub := range subs {
			if sub.Active() {
				live = append(live, sub)
			}
		}
		if len(live) == 0 {
			delete(b.subscriptions, eventType)
		} else {
			b.subscriptions[eventType] = live
		}
	}
}
