// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"io"
)

// Resource pairs an acquisition with the release that must balance it.
// A Resource describes the pair; nothing runs until an acquisition node
// is evaluated inside a compiled stream. The release is then guaranteed
// to run exactly once when the owning scope closes — on normal exit,
// failure, or interruption.
//
// Releases receive their own context (never the run's, which may already
// be canceled) so cleanup cannot be skipped by cancellation.
type Resource[A any] struct {
	Acquire Task[A]
	Release func(ctx context.Context, a A) error
}

// MakeResource builds a Resource from an acquire task and a release function.
func MakeResource[A any](acquire Task[A], release func(context.Context, A) error) Resource[A] {
	return Resource[A]{Acquire: acquire, Release: release}
}

// FromCloser builds a Resource whose release is the value's Close method.
func FromCloser[C io.Closer](acquire Task[C]) Resource[C] {
	return Resource[C]{
		Acquire: acquire,
		Release: func(_ context.Context, c C) error { return c.Close() },
	}
}
