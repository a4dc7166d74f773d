// Package breaker provides per-named-resource circuit breakers (spec §3:
// "Resource examples: gmail.poll, store.write, message_sender.email"),
// wrapping sony/gobreaker.CircuitBreaker the way the example pool's
// kubernaut circuitbreaker.Manager wraps it: one named breaker per
// resource, created lazily, shared across callers.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/leadctl/optimizer/pkg/models"
)

// Settings configures every breaker the Registry creates. ConsecutiveFailures
// and OpenTimeout come from spec §3's "after N consecutive failures open
// for a backoff; probe via half-open".
type Settings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenMaxRequests uint32
}

// DefaultSettings mirrors the teacher corpus's circuit breaker defaults:
// trip after 3 consecutive failures, stay open 30s, allow 2 half-open probes.
func DefaultSettings() Settings {
	return Settings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second, HalfOpenMaxRequests: 2}
}

// Registry owns one gobreaker.CircuitBreaker per named resource and
// publishes state-change events through onStateChange.
type Registry struct {
	mu       sync.Mutex
	settings Settings
	breakers map[string]*gobreaker.CircuitBreaker
	onChange func(resource string, from, to models.BreakerState)
}

// Option configures a Registry.
type Option func(*Registry)

// WithOnStateChange registers a callback fired whenever any named breaker
// changes state, for the Error Monitor's breaker.opened/closed events (§4.8).
func WithOnStateChange(fn func(resource string, from, to models.BreakerState)) Option {
	return func(r *Registry) { r.onChange = fn }
}

// NewRegistry creates a Registry that lazily builds breakers using settings.
func NewRegistry(settings Settings, opts ...Option) *Registry {
	r := &Registry{settings: settings, breakers: make(map[string]*gobreaker.CircuitBreaker)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func translateState(s gobreaker.State) models.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return models.BreakerOpen
	case gobreaker.StateHalfOpen:
		return models.BreakerHalfOpen
	default:
		return models.BreakerClosed
	}
}

func (r *Registry) get(resource string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[resource]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        resource,
		MaxRequests: r.settings.HalfOpenMaxRequests,
		Timeout:     r.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if r.onChange != nil {
				r.onChange(name, translateState(from), translateState(to))
			}
		},
	})
	r.breakers[resource] = cb
	return cb
}

// Execute runs fn gated by the named resource's breaker. An open breaker
// rejects the call with models.ErrBreakerOpen without invoking fn.
func (r *Registry) Execute(ctx context.Context, resource string, fn func(ctx context.Context) error) error {
	cb := r.get(resource)
	_, err := cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return models.ErrBreakerOpen
	}
	return err
}

// Snapshot returns the current state of every resource the Registry has
// ever seen, for BreakerRepository persistence (spec §3).
func (r *Registry) Snapshot() []models.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.CircuitBreaker, 0, len(r.breakers))
	for resource, cb := range r.breakers {
		counts := cb.Counts()
		snap := models.CircuitBreaker{
			Resource:     resource,
			State:        translateState(cb.State()),
			FailureCount: int(counts.ConsecutiveFailures),
		}
		out = append(out, snap)
	}
	return out
}
