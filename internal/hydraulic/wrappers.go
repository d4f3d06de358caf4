package hydraulic

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// #region timeout
// WithTimeout bounds every call to s. A call that exceeds d is reported as
// non-convergence so that one stuck simulation cannot stall a generation.
// A solver that ignores its context keeps running in the background until it
// returns; its result is discarded.
func WithTimeout(s Solver, d time.Duration) Solver {
	if d <= 0 {
		return s
	}
	return SolverFunc(func(parent context.Context, req Request) (Result, error) {
		ctx, cancel := context.WithTimeout(parent, d)
		defer cancel()

		type outcome struct {
			res Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := s.Simulate(ctx, req)
			done <- outcome{res, err}
		}()

		select {
		case o := <-done:
			if o.err != nil && ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
				return Result{}, fmt.Errorf("%w: timed out after %s", ErrNonConvergence, d)
			}
			return o.res, o.err
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("%w: timed out after %s", ErrNonConvergence, d)
		}
	})
}

// #endregion timeout

// #region serialized
// serialized guards a non-reentrant solver with a mutex.
type serialized struct {
	mu     sync.Mutex
	solver Solver
}

// Serialized allows only one call at a time into s.
func Serialized(s Solver) Solver {
	return &serialized{solver: s}
}

func (s *serialized) Simulate(ctx context.Context, req Request) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solver.Simulate(ctx, req)
}

// #endregion serialized

// #region handle-pool
// HandlePool hands each concurrent caller its own solver handle.
type HandlePool struct {
	handles chan Solver
}

// NewHandlePool creates a pool over independent solver handles.
// Concurrency is bounded by the number of handles.
func NewHandlePool(handles ...Solver) *HandlePool {
	ch := make(chan Solver, len(handles))
	for _, h := range handles {
		ch <- h
	}
	return &HandlePool{handles: ch}
}

// Size returns the number of handles.
func (p *HandlePool) Size() int {
	return cap(p.handles)
}

// Simulate checks out a handle, runs the request and returns the handle.
func (p *HandlePool) Simulate(ctx context.Context, req Request) (Result, error) {
	var h Solver
	select {
	case h = <-p.handles:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { p.handles <- h }()
	return h.Simulate(ctx, req)
}

// #endregion handle-pool
