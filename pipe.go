// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

// Pipe is a pure function from one stream description to another.
// Applying a pipe performs no effects; composition is associative and
// defers everything to the eventual run.
type Pipe[A, B any] func(Stream[A]) Stream[B]

// ComposePipes chains p before q.
func ComposePipes[A, B, C any](p Pipe[A, B], q Pipe[B, C]) Pipe[A, C] {
	return func(s Stream[A]) Stream[C] { return q(p(s)) }
}

// Through applies p to s. It reads better than p(s) in long chains.
func Through[A, B any](s Stream[A], p Pipe[A, B]) Stream[B] {
	return p(s)
}

// transformPipe lifts a per-run transform factory into a Pipe.
func transformPipe[A, B any](mk func() transform) Pipe[A, B] {
	return func(s Stream[A]) Stream[B] {
		return Stream[B]{n: &transformNode{src: s.n, mk: mk}}
	}
}
