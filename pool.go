// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BlockingPool runs operations that would otherwise block the calling
// scheduler on dedicated goroutines, bounded by a weighted semaphore.
// It is a long-lived shared resource: construct one per process or per
// pipeline group, share it across pipelines, and shut it down only after
// every pipeline using it has completed.
type BlockingPool struct {
	sem    *semaphore.Weighted
	size   int64
	log    *zap.Logger
	closed atomic.Bool
}

// PoolOption configures a BlockingPool.
type PoolOption func(*BlockingPool)

// WithPoolLogger sets the pool's logger. Defaults to a no-op logger.
func WithPoolLogger(log *zap.Logger) PoolOption {
	return func(p *BlockingPool) { p.log = log }
}

// NewBlockingPool creates a pool that admits at most size concurrent
// blocking operations. Panics if size is not positive.
func NewBlockingPool(size int, opts ...PoolOption) *BlockingPool {
	if size <= 0 {
		panic("flume: blocking pool size must be positive")
	}
	p := &BlockingPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunBlocking executes fn on its own goroutine, holding one pool permit
// for the duration. The caller waits without occupying a scheduler slot
// in the pool; if ctx is canceled while fn is in flight the caller
// returns immediately with the context error, and the permit is returned
// only once fn actually finishes, keeping the bound honest.
func RunBlocking[A any](ctx context.Context, p *BlockingPool, fn func() (A, error)) (A, error) {
	var zero A
	if p.closed.Load() {
		return zero, ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type result struct {
		a   A
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		a, err := fn()
		done <- result{a: a, err: err}
	}()

	select {
	case r := <-done:
		return r.a, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Blocking lifts fn into a Task dispatched on pool p.
func Blocking[A any](p *BlockingPool, fn func() (A, error)) Task[A] {
	return func(ctx context.Context) (A, error) {
		return RunBlocking(ctx, p, fn)
	}
}

// Shutdown marks the pool closed, waits for in-flight operations to
// drain, and returns. Waiting is bounded by ctx.
func (p *BlockingPool) Shutdown(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	p.log.Debug("blocking pool shut down", zap.Int64("capacity", p.size))
	return nil
}

// PoolResource exposes a BlockingPool as a Resource so its lifetime can
// be scoped like any other acquisition.
func PoolResource(size int, opts ...PoolOption) Resource[*BlockingPool] {
	return Resource[*BlockingPool]{
		Acquire: func(context.Context) (*BlockingPool, error) {
			return NewBlockingPool(size, opts...), nil
		},
		Release: func(ctx context.Context, p *BlockingPool) error {
			return p.Shutdown(ctx)
		},
	}
}
