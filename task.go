// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import "context"

// Task is a deferred computation producing a value of type A.
// Running the task is the only point at which effects occur; the same
// Task value may be run any number of times, each run independent.
//
// Cancellation is cooperative through the context. A Task that wraps a
// blocking operation should dispatch it via [Blocking] so the caller's
// scheduler thread is not occupied while the operation is in flight.
type Task[A any] func(ctx context.Context) (A, error)

// Pure lifts a value into a Task with no effects.
func Pure[A any](a A) Task[A] {
	return func(context.Context) (A, error) { return a, nil }
}

// FailTask lifts an error into a Task that always fails.
func FailTask[A any](err error) Task[A] {
	return func(context.Context) (A, error) {
		var zero A
		return zero, err
	}
}

// BindTask sequences two tasks (monadic bind).
// It runs m, then passes the result to f to get the next task.
func BindTask[A, B any](m Task[A], f func(A) Task[B]) Task[B] {
	return func(ctx context.Context) (B, error) {
		a, err := m(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a)(ctx)
	}
}

// MapTask applies a pure function to the result of a task.
//
// Allocation note: MapTask is equivalent to BindTask(m, compose(Pure, f))
// but avoids the intermediate Pure closure.
func MapTask[A, B any](m Task[A], f func(A) B) Task[B] {
	return func(ctx context.Context) (B, error) {
		a, err := m(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a), nil
	}
}

// ThenTask sequences two tasks, discarding the first result.
func ThenTask[A, B any](m Task[A], n Task[B]) Task[B] {
	return func(ctx context.Context) (B, error) {
		if _, err := m(ctx); err != nil {
			var zero B
			return zero, err
		}
		return n(ctx)
	}
}
