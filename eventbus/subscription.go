package eventbus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultSubscriptionTimeout bounds a single handler invocation.
const defaultSubscriptionTimeout = 5 * time.Second

// Handler processes one Event. Returning an error marks the invocation as
// failed, which may trigger the subscription's retry policy.
type Handler func(ctx context.Context, event Event) error

// RetryPolicy controls re-invocation of a failed handler.
type RetryPolicy struct {
	MaxAttempts       int           // Total attempts including the first; 0 or 1 means no retry.
	Delay             time.Duration // Delay before the first retry.
	BackoffMultiplier float64       // Multiplies Delay after each retry; 0 or 1 means constant delay.
}

// SubscriptionOptions configures a subscription beyond its handler.
type SubscriptionOptions struct {
	Timeout time.Duration // Per-invocation timeout; defaults to 5s if zero.
	Once    bool          // Deactivate after the first invocation, whatever its outcome.
	Retry   *RetryPolicy  // Nil disables retry.
}

// Subscription is a registered interest in an event type.
type Subscription struct {
	ID        string
	EventType string
	handler   Handler
	opts      SubscriptionOptions
	active    atomic.Bool
}

func newSubscription(eventType string, handler Handler, opts SubscriptionOptions) *Subscription {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSubscriptionTimeout
	}
	sub := &Subscription{
		ID:        uuid.NewString(),
		EventType: eventType,
		handler:   handler,
		opts:      opts,
	}
	sub.active.Store(true)
	return sub
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// deactivate marks the subscription inactive. Safe to call multiple times.
func (s *Subscription) deactivate() {
	s.active.Store(false)
}

// invoke runs the handler with the subscription's timeout and retry policy.
// It never panics out to the caller: a recovered panic is reported as an error.
func (s *Subscription) invoke(ctx context.Context, event Event) (err error) {
	attempts := 1
	if s.opts.Retry != nil && s.opts.Retry.MaxAttempts > attempts {
		attempts = s.opts.Retry.MaxAttempts
	}

	delay := time.Duration(0)
	if s.opts.Retry != nil {
		delay = s.opts.Retry.Delay
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.invokeOnce(ctx, event)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if s.opts.Retry != nil && s.opts.Retry.BackoffMultiplier > 1 {
			delay = time.Duration(float64(delay) * s.opts.Retry.BackoffMultiplier)
		}
	}
	return err
}

func (s *Subscription) invokeOnce(ctx context.Context, event Event) (err error) {
	invokeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &panicError{value: r}
			}
		}()
		done <- s.handler(invokeCtx, event)
	}()

	select {
	case err = <-done:
		return err
	case <-invokeCtx.Done():
		return invokeCtx.Err()
	}
}

type panicError struct{ value any }

func (p *panicError) Error() string {
	return fmt.Sprintf("eventbus: handler panicked: %v", p.value)
}
