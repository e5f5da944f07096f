// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"strings"
	"unicode/utf8"
)

// Pipe combinators. All of them are effect-free at construction time and
// look at most one chunk ahead, preserving pull semantics.

// FilterPipe keeps the elements satisfying pred, preserving order.
func FilterPipe[A any](pred func(A) bool) Pipe[A, A] {
	return transformPipe[A, A](func() transform {
		return filterTransform[A]{pred: pred}
	})
}

type filterTransform[A any] struct{ pred func(A) bool }

func (t filterTransform[A]) apply(c chunk) (chunk, error) {
	xs := chunkSlice[A](c)
	out := make([]A, 0, len(xs))
	for _, x := range xs {
		if t.pred(x) {
			out = append(out, x)
		}
	}
	return sliceChunk[A]{xs: out}, nil
}

func (filterTransform[A]) finish() (chunk, error) { return nil, nil }

// MapPipe transforms each element with fn.
func MapPipe[A, B any](fn func(A) B) Pipe[A, B] {
	return TryMapPipe(func(a A) (B, error) { return fn(a), nil })
}

// TryMapPipe transforms each element with fn; a returned error aborts
// the stream like any failed effectful step.
func TryMapPipe[A, B any](fn func(A) (B, error)) Pipe[A, B] {
	return transformPipe[A, B](func() transform {
		return mapTransform[A, B]{fn: fn}
	})
}

type mapTransform[A, B any] struct{ fn func(A) (B, error) }

func (t mapTransform[A, B]) apply(c chunk) (chunk, error) {
	xs := chunkSlice[A](c)
	out := make([]B, 0, len(xs))
	for _, x := range xs {
		b, err := t.fn(x)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return sliceChunk[B]{xs: out}, nil
}

func (mapTransform[A, B]) finish() (chunk, error) { return nil, nil }

// Intersperse emits sep between consecutive elements only: before every
// element except the first. Empty input stays empty; a single element
// passes through unchanged.
func Intersperse[A any](sep A) Pipe[A, A] {
	return transformPipe[A, A](func() transform {
		return &intersperseTransform[A]{sep: sep}
	})
}

type intersperseTransform[A any] struct {
	sep     A
	started bool
}

func (t *intersperseTransform[A]) apply(c chunk) (chunk, error) {
	xs := chunkSlice[A](c)
	out := make([]A, 0, 2*len(xs))
	for _, x := range xs {
		if t.started {
			out = append(out, t.sep)
		}
		out = append(out, x)
		t.started = true
	}
	return sliceChunk[A]{xs: out}, nil
}

func (*intersperseTransform[A]) finish() (chunk, error) { return nil, nil }

// DecodeUTF8 converts a byte stream into decoded text pieces, one piece
// per input chunk. Runes whose bytes straddle a chunk boundary are
// buffered and completed with the next chunk; invalid sequences, and an
// incomplete sequence at end of stream, are decode failures.
func DecodeUTF8() Pipe[byte, string] {
	return transformPipe[byte, string](func() transform {
		return &utf8DecodeTransform{}
	})
}

type utf8DecodeTransform struct {
	pending []byte
}

func (t *utf8DecodeTransform) apply(c chunk) (chunk, error) {
	data := chunkSlice[byte](c)
	buf := data
	if len(t.pending) > 0 {
		buf = append(t.pending, data...)
	}

	// A rune split across chunks shows up as an incomplete trailing
	// sequence; hold it back for the next chunk.
	complete := len(buf)
	for back := 1; back <= utf8.UTFMax && back <= len(buf); back++ {
		b := buf[len(buf)-back]
		if b < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(buf[len(buf)-back:]) {
				complete = len(buf) - back
			}
			break
		}
	}

	head := buf[:complete]
	if !utf8.Valid(head) {
		return nil, ErrInvalidUTF8
	}
	t.pending = append([]byte(nil), buf[complete:]...)
	if len(head) == 0 {
		return nil, nil
	}
	return sliceChunk[string]{xs: []string{string(head)}}, nil
}

func (t *utf8DecodeTransform) finish() (chunk, error) {
	if len(t.pending) > 0 {
		return nil, ErrIncompleteUTF8
	}
	return nil, nil
}

// SplitLines splits decoded text into lines. Partial lines buffer across
// chunks; the newline itself is not part of any emitted line; a trailing
// fragment without a terminating newline still comes out as a final line.
func SplitLines() Pipe[string, string] {
	return transformPipe[string, string](func() transform {
		return &splitLinesTransform{}
	})
}

type splitLinesTransform struct {
	partial string
}

func (t *splitLinesTransform) apply(c chunk) (chunk, error) {
	pieces := chunkSlice[string](c)
	var out []string
	for _, piece := range pieces {
		buf := t.partial + piece
		parts := strings.Split(buf, "\n")
		out = append(out, parts[:len(parts)-1]...)
		t.partial = parts[len(parts)-1]
	}
	return sliceChunk[string]{xs: out}, nil
}

func (t *splitLinesTransform) finish() (chunk, error) {
	if t.partial == "" {
		return nil, nil
	}
	line := t.partial
	t.partial = ""
	return sliceChunk[string]{xs: []string{line}}, nil
}

// EncodeUTF8 encodes text chunks to bytes. Go strings are already UTF-8,
// so encoding is a deterministic copy and never splits mid-codepoint.
func EncodeUTF8() Pipe[string, byte] {
	return transformPipe[string, byte](func() transform {
		return utf8EncodeTransform{}
	})
}

type utf8EncodeTransform struct{}

func (utf8EncodeTransform) apply(c chunk) (chunk, error) {
	pieces := chunkSlice[string](c)
	size := 0
	for _, p := range pieces {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range pieces {
		out = append(out, p...)
	}
	return sliceChunk[byte]{xs: out}, nil
}

func (utf8EncodeTransform) finish() (chunk, error) { return nil, nil }
