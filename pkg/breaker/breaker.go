// Package breaker guards calls to remote dependencies with a per-dependency
// circuit breaker.
//
// A Breaker is Closed while calls succeed. After FailureThreshold consecutive
// failures it becomes Open and rejects calls without running them. Once
// Cooldown has elapsed it turns Half-Open and admits exactly one probe: a
// successful probe closes it again, a failed one reopens it.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned by Run when the call was short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown state: %d", int(s))
	}
}

type Settings struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// Interval clears the closed-state counters periodically. Zero keeps them
	// until the next state change.
	Interval time.Duration
	Cooldown time.Duration
	// IsFailure decides whether an error returned by the guarded call counts
	// against the breaker. Nil counts every error.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

func New(s Settings) *Breaker {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}

	if s.IsFailure != nil {
		isFailure := s.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	if s.OnStateChange != nil {
		onChange := s.OnStateChange
		settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
			onChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &Breaker{
		name: s.Name,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Run invokes fn unless the breaker short-circuits it. A context that is
// already done is reported without invoking fn and without touching the
// breaker counters.
func Run[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w", b.name, ErrOpen)
		}

		return zero, err
	}

	v, _ := res.(T)
	return v, nil
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
