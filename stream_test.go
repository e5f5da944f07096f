// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/flume"
)

func TestEmitAppendOrdering(t *testing.T) {
	s := flume.Emit(1, 2).Append(flume.Emit(3)).Append(flume.Emit(4, 5))

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestEmptyStream(t *testing.T) {
	got, err := flume.ToSlice(flume.Empty[int]())(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFlatMapConcatenatesInOrder(t *testing.T) {
	s := flume.FlatMap(flume.Emit(1, 2, 3), func(x int) flume.Stream[int] {
		return flume.Emit(x*10, x*10+1)
	})

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{10, 11, 20, 21, 30, 31}, got)
}

func TestEvalRunsOnlyWhenPulled(t *testing.T) {
	runs := 0
	s := flume.Eval(func(context.Context) (int, error) {
		runs++
		return 7, nil
	})
	require.Equal(t, 0, runs, "construction must perform no effects")

	task := flume.ToSlice(s)
	require.Equal(t, 0, runs, "compilation must perform no effects")

	got, err := task(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{7}, got)
	require.Equal(t, 1, runs)
}

func TestEvalErrorAbortsStream(t *testing.T) {
	boom := errors.New("boom")
	seen := []int{}
	s := flume.Emit(1).
		Append(flume.Eval(flume.FailTask[int](boom))).
		Append(flume.Emit(2))

	_, err := flume.FoldStream(s, 0, func(acc, x int) int {
		seen = append(seen, x)
		return acc + x
	})(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1}, seen, "nothing after the failing node may run")
}

func TestHandleErrorWithResumes(t *testing.T) {
	boom := errors.New("boom")
	s := flume.Emit(1).
		Append(flume.Raise[int](boom)).
		HandleErrorWith(func(err error) flume.Stream[int] {
			return flume.Emit(99)
		}).
		Append(flume.Emit(2))

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 99, 2}, got)
}

func TestHandleErrorWithUnusedOnSuccess(t *testing.T) {
	called := false
	s := flume.Emit(1, 2).HandleErrorWith(func(error) flume.Stream[int] {
		called = true
		return flume.Empty[int]()
	})

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
	require.False(t, called)
}

func TestSuspendStreamDefersConstruction(t *testing.T) {
	built := false
	s := flume.SuspendStream(func() flume.Stream[int] {
		built = true
		return flume.Emit(5)
	})
	require.False(t, built)

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{5}, got)
	require.True(t, built)
}

// countUp emits 0..n-1 as a right-nested lazy concatenation, one element
// per chunk.
func countUp(i, n int) flume.Stream[int] {
	if i >= n {
		return flume.Empty[int]()
	}
	return flume.Emit(i).Append(flume.SuspendStream(func() flume.Stream[int] {
		return countUp(i+1, n)
	}))
}

func TestMillionElementConcatenationIsStackSafe(t *testing.T) {
	const n = 1_000_000
	got, err := flume.FoldStream(countUp(0, n), 0, func(acc, _ int) int {
		return acc + 1
	})(context.Background())
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestDeeplyNestedFlatMapIsStackSafe(t *testing.T) {
	const depth = 100_000
	s := flume.Emit(0)
	for i := 0; i < depth; i++ {
		s = flume.FlatMap(s, func(x int) flume.Stream[int] {
			return flume.Emit(x + 1)
		})
	}

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{depth}, got)
}

func TestSharedDescriptionCompilesAndRunsIndependently(t *testing.T) {
	// Intersperse is stateful per run; a shared description must still
	// produce identical results from concurrent runs.
	s := flume.Through(flume.Emit("a", "b", "c"), flume.Intersperse(","))

	var g errgroup.Group
	results := make([][]string, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			got, err := flume.ToSlice(s)(context.Background())
			if err != nil {
				return err
			}
			results[i] = got
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, got := range results {
		require.Equal(t, []string{"a", ",", "b", ",", "c"}, got)
	}
}

func TestInterruptWhenEndsRegionAndReleases(t *testing.T) {
	var tr tracker
	sig := make(chan struct{})

	body := flume.FlatMap(flume.AcquireStream(trackedResource(&tr, "a", nil)), func(string) flume.Stream[int] {
		return countUp(0, 1_000_000)
	}).Scoped()
	s := body.InterruptWhen(sig).Append(flume.Emit(-1))

	pulled := 0
	got, err := flume.FoldStream(s, []int(nil), func(acc []int, x int) []int {
		pulled++
		if pulled == 3 {
			close(sig)
		}
		return append(acc, x)
	})(context.Background())
	require.NoError(t, err, "interruption ends the region, it is not an error")
	require.Less(t, len(got), 1_000_000)
	require.Equal(t, -1, got[len(got)-1], "stream continues after the interrupted region")
	require.Equal(t, []string{"acquire:a", "release:a"}, tr.list())
}

func TestContextCancellationReleasesEverything(t *testing.T) {
	var tr tracker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := flume.FlatMap(flume.AcquireStream(trackedResource(&tr, "a", nil)), func(string) flume.Stream[int] {
		return countUp(0, 1_000_000)
	})

	pulled := 0
	_, err := flume.FoldStream(s, 0, func(acc, _ int) int {
		pulled++
		if pulled == 5 {
			cancel()
		}
		return acc
	})(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"acquire:a", "release:a"}, tr.list())
}

func TestCancellationDuringBlockingEval(t *testing.T) {
	var tr tracker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocked := make(chan struct{})
	s := flume.FlatMap(flume.AcquireStream(trackedResource(&tr, "a", nil)), func(string) flume.Stream[int] {
		return flume.Eval(func(ctx context.Context) (int, error) {
			close(blocked)
			<-ctx.Done()
			return 0, ctx.Err()
		})
	})

	go func() {
		<-blocked
		cancel()
	}()

	_, err := flume.ToSlice(s)(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"acquire:a", "release:a"}, tr.list())
}

func TestTransformFailureSkipsUpstreamHandler(t *testing.T) {
	boom := errors.New("boom")
	handled := false
	src := flume.Emit(1).HandleErrorWith(func(error) flume.Stream[int] {
		handled = true
		return flume.Empty[int]()
	})
	s := flume.Through(src, flume.TryMapPipe(func(int) (int, error) {
		return 0, boom
	}))

	_, err := flume.ToSlice(s)(context.Background())
	require.ErrorIs(t, err, boom, "a handler inside the source must not catch its consumer's failure")
	require.False(t, handled)
}

func TestTransformFailureReachesEnclosingHandlerAfterSourceReleases(t *testing.T) {
	var tr tracker
	boom := errors.New("boom")
	src := flume.FlatMap(flume.AcquireStream(trackedResource(&tr, "a", nil)), func(v string) flume.Stream[string] {
		return flume.Emit(v)
	}).Scoped().HandleErrorWith(func(error) flume.Stream[string] {
		tr.add("inner handled")
		return flume.Empty[string]()
	})
	s := flume.Through(src, flume.TryMapPipe(func(string) (string, error) {
		return "", boom
	})).HandleErrorWith(func(err error) flume.Stream[string] {
		tr.add("outer handled")
		return flume.Emit("recovered")
	})

	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"recovered"}, got)
	require.Equal(t, []string{"acquire:a", "release:a", "outer handled"}, tr.list())
}

func TestRaiseWrappedAsEvalError(t *testing.T) {
	boom := errors.New("boom")
	_, err := flume.ToSlice(flume.Raise[int](boom))(context.Background())
	var ee *flume.EvalError
	require.ErrorAs(t, err, &ee)
	require.ErrorIs(t, err, boom)
}
