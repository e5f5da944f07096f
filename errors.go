// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"errors"
)

// Error taxonomy for compiled stream runs.
//
// A run fails with exactly one primary cause: an AcquireError, an
// EvalError, or — when cleanup itself is the first thing to go wrong —
// a ReleaseError. Release failures encountered while unwinding after a
// primary failure never replace it; they are appended as suppressed
// causes via multierr and remain reachable through errors.Is/errors.As.

// ErrInvalidUTF8 reports a byte sequence that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("flume: invalid UTF-8 encoding")

// ErrIncompleteUTF8 reports an incomplete trailing rune at end of stream.
var ErrIncompleteUTF8 = errors.New("flume: incomplete UTF-8 sequence at end of stream")

// ErrPoolClosed reports a blocking operation submitted after pool shutdown.
var ErrPoolClosed = errors.New("flume: blocking pool is shut down")

// AcquireError reports a failed resource acquisition. The resource was
// never acquired, so no release is attempted for it; siblings already
// acquired in the same scope are still released during unwind.
type AcquireError struct{ Err error }

func (e *AcquireError) Error() string { return "flume: acquire: " + e.Err.Error() }
func (e *AcquireError) Unwrap() error { return e.Err }

// EvalError reports a failed effectful step: blocking I/O, a transform,
// or a parse. It triggers unwind of the active scope stack.
type EvalError struct{ Err error }

func (e *EvalError) Error() string { return "flume: eval: " + e.Err.Error() }
func (e *EvalError) Unwrap() error { return e.Err }

// ReleaseError reports a release action that failed during scope close.
type ReleaseError struct{ Err error }

func (e *ReleaseError) Error() string { return "flume: release: " + e.Err.Error() }
func (e *ReleaseError) Unwrap() error { return e.Err }

// asEvalError wraps err as an EvalError unless it already carries a
// taxonomy type or is a cancellation signal, which pass through intact.
func asEvalError(err error) error {
	var ee *EvalError
	var ae *AcquireError
	var re *ReleaseError
	if errors.As(err, &ee) || errors.As(err, &ae) || errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &EvalError{Err: err}
}
