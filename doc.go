// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flume provides a composable, effectful, pull-based
// stream-processing engine with guaranteed resource cleanup.
//
// A [Stream] is an immutable description: a tree of emit, eval, bind,
// append, acquire, error-handling, and interruption nodes. Building one
// performs no side effects. Compiling it ([DrainStream], [FoldStream],
// [ToSlice]) produces a single deferred [Task]; running that task drives
// a trampolined pull interpreter chunk by chunk until exhaustion,
// failure, or cancellation.
//
// # Design Philosophy
//
// flume provides:
//   - A tagged-union computation tree evaluated by an explicit work-list
//     interpreter, so pipeline length never grows the call stack
//   - Scoped resource management: every acquire is balanced by exactly
//     one release, in reverse acquisition order, on every exit path
//   - Pure pipe combinators that defer all effects to the run
//
// # Resource Safety
//
// [Resource] pairs an acquire task with a release function. Acquisitions
// register on the innermost open scope ([Stream.Scoped] opens one); the
// scope releases them in reverse order when the segment ends, fails, or
// is interrupted. A release failure never masks the primary error and
// never stops the remaining releases — it is attached as a suppressed
// cause via multierr.
//
// # Blocking Work
//
// File reads and writes block. [BlockingPool] bounds how many such
// operations run at once and keeps them off the caller's scheduler;
// [Source] and [Sink] dispatch every read and write through it. The pool
// is itself a resource ([PoolResource]) whose shutdown sequences after
// the pipelines that use it.
//
// # Pipes
//
// A [Pipe] is a pure stream-to-stream function. [DecodeUTF8],
// [SplitLines], [FilterPipe], [MapPipe], [TryMapPipe], [Intersperse] and
// [EncodeUTF8] compose with [ComposePipes] and apply with [Through].
// No combinator looks ahead more than one chunk.
//
// # Example
//
// The file-to-file numeric conversion pipeline:
//
//	pool := flume.NewBlockingPool(4)
//	task := flume.ConvertNumbersFile("in.txt", "out.txt", 32*1024,
//		func(f float64) float64 { return (f - 32) * 5 / 9 },
//		pool)
//	if _, err := task(ctx); err != nil {
//		// handles are closed; partial output may remain
//	}
package flume
