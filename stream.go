// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import "context"

// Stream is an immutable, lazy, pull-based description of a (possibly
// effectful) sequence of values of type A. Constructing a description
// performs no side effects; the same description may be compiled and run
// any number of times, each run fully independent, and may be shared
// across goroutines.
type Stream[A any] struct {
	n node
}

// Nothing is the element type of streams that emit no values, such as
// the output of a [Sink].
type Nothing = struct{}

// Empty is the stream with no elements and no effects.
func Empty[A any]() Stream[A] {
	return Stream[A]{n: emptyNode{}}
}

// Emit yields the given values as one chunk.
func Emit[A any](values ...A) Stream[A] {
	return EmitSlice(values)
}

// EmitSlice yields xs as one chunk. The slice is not copied; callers
// must not mutate it after handing it over.
func EmitSlice[A any](xs []A) Stream[A] {
	if len(xs) == 0 {
		return Empty[A]()
	}
	return Stream[A]{n: &emitNode{c: sliceChunk[A]{xs: xs}}}
}

// Eval runs the task when pulled and emits its result as one element.
func Eval[A any](t Task[A]) Stream[A] {
	return Stream[A]{n: &evalNode{effect: func(ctx context.Context) (Erased, error) {
		a, err := t(ctx)
		if err != nil {
			return nil, err
		}
		return a, nil
	}}}
}

// Raise is the stream that fails with err when pulled.
func Raise[A any](err error) Stream[A] {
	return Stream[A]{n: &failNode{err: err}}
}

// SuspendStream defers construction of a stream until it is pulled.
// Use it to express recursive stream definitions, such as read loops.
func SuspendStream[A any](thunk func() Stream[A]) Stream[A] {
	return Stream[A]{n: &suspendNode{thunk: func() node { return thunk().n }}}
}

// FlatMap applies f to each element of s and concatenates the resulting
// streams in order.
func FlatMap[A, B any](s Stream[A], f func(A) Stream[B]) Stream[B] {
	return Stream[B]{n: &bindNode{
		src: s.n,
		f:   func(v Erased) node { return f(v.(A)).n },
	}}
}

// Append concatenates s and other. The second stream is not touched
// until the first is exhausted.
func (s Stream[A]) Append(other Stream[A]) Stream[A] {
	return Stream[A]{n: &appendNode{first: s.n, second: func() node { return other.n }}}
}

// HandleErrorWith diverts any failure raised inside s to h. Scopes
// opened inside s release, innermost first, before h runs.
func (s Stream[A]) HandleErrorWith(h func(error) Stream[A]) Stream[A] {
	return Stream[A]{n: &handleErrorNode{
		body:    s.n,
		handler: func(err error) node { return h(err).n },
	}}
}

// Scoped gives s its own resource scope: acquisitions inside s release
// when s ends, fails, or is interrupted, rather than at the end of the
// whole run.
func (s Stream[A]) Scoped() Stream[A] {
	return Stream[A]{n: &scopeNode{inner: s.n}}
}

// InterruptWhen ends s early when signal fires. Scopes opened inside s
// close before evaluation continues past it; the region terminates as if
// exhausted, not with an error.
func (s Stream[A]) InterruptWhen(signal <-chan struct{}) Stream[A] {
	return Stream[A]{n: &interruptNode{body: s.n, signal: signal}}
}

// AcquireStream acquires r when pulled, emits the acquired value, and
// registers the release on the innermost open scope.
func AcquireStream[A any](r Resource[A]) Stream[A] {
	return Stream[A]{n: &acquireNode{
		acquire: func(ctx context.Context) (Erased, error) {
			a, err := r.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		release: func(ctx context.Context, v Erased) error {
			return r.Release(ctx, v.(A))
		},
	}}
}

// Chunks repacks s so that each pulled batch becomes a single element.
// It exposes the pipeline's batching unit without forcing look-ahead.
func Chunks[A any](s Stream[A]) Stream[[]A] {
	return Stream[[]A]{n: &transformNode{src: s.n, mk: func() transform {
		return chunksTransform[A]{}
	}}}
}

type chunksTransform[A any] struct{}

func (chunksTransform[A]) apply(c chunk) (chunk, error) {
	return sliceChunk[[]A]{xs: [][]A{chunkSlice[A](c)}}, nil
}

func (chunksTransform[A]) finish() (chunk, error) { return nil, nil }

// Void discards every element of s, keeping only its effects.
func Void[A any](s Stream[A]) Stream[Nothing] {
	return Stream[Nothing]{n: &transformNode{src: s.n, mk: func() transform {
		return voidTransform{}
	}}}
}

type voidTransform struct{}

func (voidTransform) apply(chunk) (chunk, error) { return nil, nil }
func (voidTransform) finish() (chunk, error)     { return nil, nil }
