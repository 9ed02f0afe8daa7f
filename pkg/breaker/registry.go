package breaker

import (
	"sync"

	"go.uber.org/zap"
)

type Option func(*Registry)

// WithStateObserver registers a callback invoked on every state change, in
// addition to the warning logged by the registry.
func WithStateObserver(fn func(name string, state State)) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, fn)
	}
}

// Registry hands out one Breaker per dependency name. Breakers never share
// counters, so failures of one dependency cannot open another's breaker.
type Registry struct {
	mu        sync.Mutex
	defaults  Settings
	breakers  map[string]*Breaker
	logger    *zap.Logger
	observers []func(name string, state State)
}

func NewRegistry(defaults Settings, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		defaults: defaults,
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	settings := r.defaults
	settings.Name = name
	settings.OnStateChange = r.onStateChange

	b := New(settings)
	r.breakers[name] = b

	for _, observe := range r.observers {
		observe(name, StateClosed)
	}

	return b
}

func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}

	return states
}

func (r *Registry) onStateChange(name string, from, to State) {
	r.logger.Warn(
		"Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)

	for _, observe := range r.observers {
		observe(name, to)
	}
}
