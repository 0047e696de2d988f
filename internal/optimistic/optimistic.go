// Package optimistic applies a state change locally before the durable write
// lands and restores the previous value when the write fails.
//
// A false negative from the backend (the write landed but the call reported
// failure, e.g. a timeout after commit) still rolls local state back, leaving
// it behind the store until the next reload. That mismatch is not resolved
// here.
package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evidence-portal/pkg/portalErrors"
	log "github.com/sirupsen/logrus"
)

// State is the local, display-side copy of some value.
type State[S any] struct {
	mu    sync.RWMutex
	value S
}

func NewState[S any](v S) *State[S] {
	return &State[S]{value: v}
}

func (s *State[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

func (s *State[S]) Set(v S) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

func (s *State[S]) apply(fn func(S) S) (before, after S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before = s.value
	s.value = fn(s.value)
	return before, s.value
}

// Effect is a side effect that nobody waits for.
type Effect func(ctx context.Context) error

// Action describes one optimistic mutation. Speculate and Commit are
// required. Speculate must not modify its argument in place; the argument is
// the value restored on failure.
type Action[S any] struct {
	Name      string
	Speculate func(S) S
	Commit    func(ctx context.Context) error
	// Rollback maps the current local value back to the pre-action value.
	// When nil the saved previous value is restored as is.
	Rollback func(S) S
	// FireAndForget effects start once Commit has succeeded. Their errors
	// are logged and never change the outcome.
	FireAndForget []Effect
}

// Outcome is the record of one finished action.
type Outcome[S any] struct {
	Previous    S
	Speculative S
	Committed   bool
	Err         error
}

// Pending is an action whose durable write may still be in flight.
type Pending[S any] struct {
	done    chan struct{}
	outcome Outcome[S]
}

// Done is closed once the commit has finished and any rollback is applied.
func (p *Pending[S]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the action settles or ctx ends. Abandoning the wait does
// not cancel the commit.
func (p *Pending[S]) Wait(ctx context.Context) (Outcome[S], error) {
	select {
	case <-p.done:
		return p.outcome, p.outcome.Err
	case <-ctx.Done():
		return Outcome[S]{}, ctx.Err()
	}
}

type Coordinator struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewCoordinator bounds every commit by timeout; zero means no bound.
func NewCoordinator(timeout time.Duration) *Coordinator {
	return &Coordinator{timeout: timeout}
}

// Run applies act.Speculate to st immediately, then commits in the
// background. On commit failure st is rolled back before Done closes and the
// outcome error wraps ErrDurableWriteFailed.
func Run[S any](ctx context.Context, c *Coordinator, st *State[S], act Action[S]) *Pending[S] {
	previous, speculative := st.apply(act.Speculate)

	p := &Pending[S]{
		done: make(chan struct{}),
		outcome: Outcome[S]{
			Previous:    previous,
			Speculative: speculative,
		},
	}
	entry := log.WithField("action", act.Name)

	// The commit outlives the caller's cancellation; only the timeout
	// bounds it.
	commitCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(p.done)

		err := c.commit(commitCtx, act.Commit)
		if err == nil {
			p.outcome.Committed = true
			entry.Debug("optimistic action committed")
			c.fire(commitCtx, entry, act.FireAndForget)
			return
		}

		if act.Rollback != nil {
			st.apply(act.Rollback)
		} else {
			st.Set(previous)
		}
		p.outcome.Err = fmt.Errorf("%s: %w: %w", act.Name, portalErrors.ErrDurableWriteFailed, err)
		entry.WithError(err).Warn("optimistic action rolled back")
	}()

	return p
}

// Do runs the action and waits for it to settle.
func Do[S any](ctx context.Context, c *Coordinator, st *State[S], act Action[S]) (Outcome[S], error) {
	return Run(ctx, c, st, act).Wait(ctx)
}

func (c *Coordinator) commit(ctx context.Context, fn func(context.Context) error) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit panicked: %v", r)
		}
	}()

	return fn(ctx)
}

func (c *Coordinator) fire(ctx context.Context, entry *log.Entry, effects []Effect) {
	for i, fx := range effects {
		if fx == nil {
			continue
		}
		c.wg.Add(1)
		go func(i int, fx Effect) {
			defer c.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					entry.Errorf("side effect %d panicked: %v", i, r)
				}
			}()
			if err := fx(ctx); err != nil {
				entry.WithError(err).Errorf("side effect %d failed", i)
			}
		}(i, fx)
	}
}

// Drain waits for side effects still running. Used on shutdown and in tests.
func (c *Coordinator) Drain() {
	c.wg.Wait()
}
