// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/flume"
)

func runPipe[A, B any](t *testing.T, xs []A, p flume.Pipe[A, B]) ([]B, error) {
	t.Helper()
	return flume.ToSlice(flume.Through(flume.EmitSlice(xs), p))(context.Background())
}

func TestIntersperse(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"single", []string{"a"}, []string{"a"}},
		{"three", []string{"a", "b", "c"}, []string{"a", ",", "b", ",", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runPipe(t, tt.in, flume.Intersperse(","))
			require.NoError(t, err)
			if tt.want == nil {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIntersperseAcrossChunkBoundaries(t *testing.T) {
	// One element per chunk: the separator decision spans pulls.
	s := flume.Through(countUpStrings(3), flume.Intersperse("|"))
	got, err := flume.ToSlice(s)(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0", "|", "1", "|", "2"}, got)
}

func countUpStrings(n int) flume.Stream[string] {
	s := flume.Empty[string]()
	for i := n - 1; i >= 0; i-- {
		s = flume.Emit(string(rune('0' + i))).Append(s)
	}
	return s
}

func TestFilterBlankOrComment(t *testing.T) {
	in := []string{" ", "", "// x", "72.0", "100"}
	got, err := runPipe(t, in, flume.FilterPipe(flume.KeepDataLine))
	require.NoError(t, err)
	require.Equal(t, []string{"72.0", "100"}, got)
}

func TestMapPipe(t *testing.T) {
	got, err := runPipe(t, []int{1, 2, 3}, flume.MapPipe(func(x int) int { return x * x }))
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9}, got)
}

func TestTryMapPipeFailureAbortsStream(t *testing.T) {
	boom := errors.New("bad value")
	p := flume.TryMapPipe(func(x int) (int, error) {
		if x == 2 {
			return 0, boom
		}
		return x, nil
	})
	_, err := runPipe(t, []int{1, 2, 3}, p)
	require.ErrorIs(t, err, boom)
	var ee *flume.EvalError
	require.ErrorAs(t, err, &ee)
}

func TestEncodeUTF8RoundTripsBytes(t *testing.T) {
	in := []string{"héllo", " ", "wörld✓"}
	got, err := runPipe(t, in, flume.EncodeUTF8())
	require.NoError(t, err)
	require.Equal(t, []byte(strings.Join(in, "")), got)
}

// rechunked re-emits data as a concatenation of arbitrary pieces,
// including splits that fall mid-codepoint.
func rechunked(data []byte, cuts []int) flume.Stream[byte] {
	s := flume.Empty[byte]()
	prev := 0
	bounds := append(append([]int(nil), cuts...), len(data))
	for _, b := range bounds {
		if b <= prev {
			continue
		}
		s = s.Append(flume.EmitSlice(data[prev:b]))
		prev = b
	}
	return s
}

func expectedLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func TestDecodeThenSplitLinesUnderRandomRechunking(t *testing.T) {
	const text = "naïve // note\n72.0\n\n温度: 100°\nlast läne"
	data := []byte(text)
	decodeSplit := flume.ComposePipes(flume.DecodeUTF8(), flume.SplitLines())

	rnd := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		var cuts []int
		for i := 1; i < len(data); i++ {
			if rnd.Intn(3) == 0 {
				cuts = append(cuts, i)
			}
		}
		got, err := flume.ToSlice(flume.Through(rechunked(data, cuts), decodeSplit))(context.Background())
		require.NoError(t, err, "cuts=%v", cuts)
		want := expectedLines(text)
		require.Equal(t, want, got, "cuts=%v", cuts)
	}
}

func TestDecodeSplitMidCodepoint(t *testing.T) {
	// "é" is 0xC3 0xA9; force the split between the two bytes.
	data := []byte("é\nx")
	s := flume.EmitSlice(data[:1]).Append(flume.EmitSlice(data[1:]))
	got, err := flume.ToSlice(flume.Through(s, flume.ComposePipes(flume.DecodeUTF8(), flume.SplitLines())))(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"é", "x"}, got)
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	_, err := runPipe(t, []byte{'a', 0xFF, 'b'}, flume.DecodeUTF8())
	require.ErrorIs(t, err, flume.ErrInvalidUTF8)
}

func TestDecodeRejectsTruncatedFinalRune(t *testing.T) {
	_, err := runPipe(t, []byte{'a', 0xC3}, flume.DecodeUTF8())
	require.ErrorIs(t, err, flume.ErrIncompleteUTF8)
}

func TestSplitLinesEmitsUnterminatedTail(t *testing.T) {
	got, err := runPipe(t, []string{"a\nb"}, flume.SplitLines())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestSplitLinesNoPhantomLineAfterTrailingNewline(t *testing.T) {
	got, err := runPipe(t, []string{"a\nb\n"}, flume.SplitLines())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestComposePipesIsAssociative(t *testing.T) {
	in := []byte("1\n// skip\n2\n")
	p1 := flume.DecodeUTF8()
	p2 := flume.SplitLines()
	p3 := flume.FilterPipe(flume.KeepDataLine)

	left := flume.ComposePipes(flume.ComposePipes(p1, p2), p3)
	right := flume.ComposePipes(p1, flume.ComposePipes(p2, p3))

	a, err := runPipe(t, in, left)
	require.NoError(t, err)
	b, err := runPipe(t, in, right)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, []string{"1", "2"}, a)
}
