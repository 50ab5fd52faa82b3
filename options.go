package rotor

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// applyID names the terminal pipeline stage that reconciles a loaded set
// into the rotor.
const applyID = "apply"

// Option configures the reload pipeline of a Coordinator or
// CompositeCoordinator. Pipeline options wrap the apply step with middleware
// for retry, timeout, and other reliability patterns.
//
// Instance configuration (debounce, sync mode, codec, rotation interval) is
// handled via chainable methods before calling Start().
type Option func(pipz.Chainable[*Reload]) pipz.Chainable[*Reload]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline(terminal pipz.Chainable[*Reload], opts []Option) pipz.Chainable[*Reload] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------
// These options wrap the entire pipeline, providing protection at the boundary.

// WithRetry wraps the pipeline with retry logic.
// Failed reloads are retried immediately up to maxAttempts times.
// For exponential backoff between retries, use WithBackoff instead.
func WithRetry(maxAttempts int) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		return pipz.NewRetry("retry", p, maxAttempts)
	}
}

// WithBackoff wraps the pipeline with exponential backoff retry logic.
// Failed reloads are retried with increasing delays: baseDelay, 2*baseDelay,
// 4*baseDelay, and so on.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		return pipz.NewBackoff("backoff", p, maxAttempts, baseDelay)
	}
}

// WithTimeout wraps the pipeline with a timeout.
// If a reload takes longer than the specified duration, it fails with a
// timeout error and the previous set is retained.
func WithTimeout(d time.Duration) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		return pipz.NewTimeout("timeout", p, d)
	}
}

// WithFallback wraps the pipeline with fallback processors.
// If the primary pipeline fails, each fallback is tried in order until one
// succeeds.
func WithFallback(fallbacks ...pipz.Chainable[*Reload]) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		all := append([]pipz.Chainable[*Reload]{p}, fallbacks...)
		return pipz.NewFallback("fallback", all...)
	}
}

// WithCircuitBreaker wraps the pipeline with a circuit breaker.
// After the given number of consecutive failures the breaker opens and
// reloads fail fast until the recovery timeout elapses. The previous set
// stays on display throughout.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		return pipz.NewCircuitBreaker("circuit-breaker", p, failures, recovery)
	}
}

// WithErrorHandler adds error observation to the pipeline.
// Errors are passed to the handler for logging, metrics, or alerting,
// but the error still propagates. Use this for observability, not recovery.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Reload]]) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		return pipz.NewHandle("error-handler", p, handler)
	}
}

// WithMiddleware wraps the pipeline with a sequence of processors.
// Processors execute in order, with the wrapped apply step last.
//
// Use the Use* functions to create processors for common patterns,
// or provide custom pipz.Chainable implementations directly.
//
// Example:
//
//	rotor.NewCoordinator(
//	    watcher,
//	    rotor.WithMiddleware(
//	        rotor.UseEffect("audit", auditFn),
//	    ),
//	    rotor.WithRetry(3),
//	)
func WithMiddleware(processors ...pipz.Chainable[*Reload]) Option {
	return func(p pipz.Chainable[*Reload]) pipz.Chainable[*Reload] {
		all := make([]pipz.Chainable[*Reload], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence("middleware", all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors - Adapters (Use*)
// -----------------------------------------------------------------------------
// These create processors for use inside WithMiddleware.

// UseTransform creates a processor that transforms the reload.
// Cannot fail. Use for pure transformations that always succeed, such as
// swapping in a filtered Set.
func UseTransform(name string, fn func(context.Context, *Reload) *Reload) pipz.Chainable[*Reload] {
	return pipz.Transform(pipz.Name(name), fn)
}

// UseApply creates a processor that can transform the reload and fail.
// Use for checks that should veto a reload, such as refusing a set that
// would leave nothing eligible during business hours.
func UseApply(name string, fn func(context.Context, *Reload) (*Reload, error)) pipz.Chainable[*Reload] {
	return pipz.Apply(pipz.Name(name), fn)
}

// UseEffect creates a processor that performs a side effect.
// The reload passes through unchanged. Use for logging, metrics, or
// notifications that should not affect the applied set.
func UseEffect(name string, fn func(context.Context, *Reload) error) pipz.Chainable[*Reload] {
	return pipz.Effect(pipz.Name(name), fn)
}
