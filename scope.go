// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// acquiredResource is one successful acquisition registered on a scope.
// The released flag enforces the single-owner transition
// unreleased → released, so a release can never run twice even when an
// interruption races a closing scope.
type acquiredResource struct {
	value    Erased
	release  func(context.Context, Erased) error
	released atomic.Bool
}

func (r *acquiredResource) close(ctx context.Context) error {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	return r.release(ctx, r.value)
}

// scope is a dynamic extent holding acquired resources in acquisition
// order. Closing a scope releases its resources in reverse order before
// control returns to the parent extent.
type scope struct {
	mu        sync.Mutex
	resources []*acquiredResource
	closed    bool
	log       *zap.Logger
}

func newScope(log *zap.Logger) *scope {
	return &scope{log: log}
}

// register records a successful acquisition on the scope.
// Returns false if the scope already closed; the caller must then
// release the value itself.
func (s *scope) register(value Erased, release func(context.Context, Erased) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.resources = append(s.resources, &acquiredResource{value: value, release: release})
	return true
}

// close releases the scope's resources in reverse acquisition order.
// A failing release never stops the remaining releases; every failure is
// wrapped as a ReleaseError and aggregated into the returned error.
// Extra calls are no-ops.
func (s *scope) close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rs := s.resources
	s.resources = nil
	s.mu.Unlock()

	var err error
	for i := len(rs) - 1; i >= 0; i-- {
		if rerr := rs[i].close(ctx); rerr != nil {
			s.log.Warn("resource release failed", zap.Error(rerr))
			err = multierr.Append(err, &ReleaseError{Err: rerr})
		}
	}
	return err
}
