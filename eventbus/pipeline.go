package eventbus

import "context"

// maxPipelineRetries caps a stage's retry error policy so a misbehaving
// pipeline can never re-run indefinitely on the same emission.
const maxPipelineRetries = 3

// PipelineFilter is a predicate; returning false aborts the event before
// subscribers are invoked.
type PipelineFilter func(ctx context.Context, event Event) bool

// PipelineTransformer produces a replacement event value.
type PipelineTransformer func(ctx context.Context, event Event) (Event, error)

// PipelineMiddleware wraps the remainder of the pipeline, classic (event, next) shape.
type PipelineMiddleware func(ctx context.Context, event Event, next func(context.Context, Event) (Event, error)) (Event, error)

// ErrorPolicy controls what a pipeline does when a stage fails.
type ErrorPolicy int

const (
	// ErrorPolicyStop aborts the pipeline (and the event) on first failure.
	ErrorPolicyStop ErrorPolicy = iota
	// ErrorPolicyContinue discards the failed stage's result and proceeds to
	// the next stage with the event as it was before the stage. The failure
	// is not logged.
	ErrorPolicyContinue
	// ErrorPolicyRetry runs the stage up to maxPipelineRetries times in total
	// before falling back to ErrorPolicyStop semantics.
	ErrorPolicyRetry
)

// PipelineStage is one step of a type's pipeline. Filters run first, then
// transformers in order, then middleware wraps the result.
type PipelineStage struct {
	Name         string
	Filters      []PipelineFilter
	Transformers []PipelineTransformer
	Middleware   []PipelineMiddleware
	OnError      ErrorPolicy
}

// Pipeline is an ordered list of stages attached to one event type.
type Pipeline struct {
	stages []PipelineStage
}

// addStage appends a stage, preserving registration order.
func (p *Pipeline) addStage(stage PipelineStage) {
	p.stages = append(p.stages, stage)
}

// removeStage removes the named stage, if present.
func (p *Pipeline) removeStage(name string) {
	filtered := p.stages[:0]
	for _, s := range p.stages {
		if s.Name != name {
			filtered = append(filtered, s)
		}
	}
	p.stages = filtered
}

// run executes every stage in order. It returns the (possibly transformed)
// event, and ok=false if a filter aborted the event or a stage failed under
// ErrorPolicyStop.
func (p *Pipeline) run(ctx context.Context, event Event) (Event, bool) {
	for _, stage := range p.stages {
		var ok bool
		event, ok = stage.run(ctx, event)
		if !ok {
			return event, false
		}
	}
	return event, true
}

func (s *PipelineStage) run(ctx context.Context, event Event) (Event, bool) {
	for _, filter := range s.Filters {
		if !filter(ctx, event) {
			return event, false
		}
	}

	attempts := 1
	if s.OnError == ErrorPolicyRetry {
		attempts = maxPipelineRetries
	}

	var err error
	result := event
	for attempt := 1; attempt <= attempts; attempt++ {
		result = event
		result, err = s.applyTransformers(ctx, result)
		if err == nil {
			result, err = s.applyMiddleware(ctx, result)
		}
		if err == nil {
			return result, true
		}
		if s.OnError != ErrorPolicyRetry {
			break
		}
	}

	switch s.OnError {
	case ErrorPolicyContinue:
		return event, true
	default: // ErrorPolicyStop, or ErrorPolicyRetry exhausted
		return event, false
	}
}

func (s *PipelineStage) applyTransformers(ctx context.Context, event Event) (Event, error) {
	for _, transform := range s.Transformers {
		transformed, err := transform(ctx, event)
		if err != nil {
			return event, err
		}
		event = transformed
	}
	return event, nil
}

func (s *PipelineStage) applyMiddleware(ctx context.Context, event Event) (Event, error) {
	next := func(ctx context.Context, event Event) (Event, error) { return event, nil }
	for i := len(s.Middleware) - 1; i >= 0; i-- {
		mw := s.Middleware[i]
		prevNext := next
		next = func(ctx context.Context, event Event) (Event, error) {
			return mw(ctx, event, prevNext)
		}
	}
	return next(ctx, event)
}
