// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"errors"
	"io"
	"os"
)

// File adapters bridge the stream algebra to file handles. The handle
// always lives inside its own scope, so it closes when the surrounding
// stream segment exits — on exhaustion, downstream early stop, failure,
// or interruption — never merely when the data runs out.

// Source reads path as a byte stream in chunks of at most chunkSize
// bytes. Every read runs on the blocking pool. A zero-byte read ends the
// stream. Panics if chunkSize is not positive.
func Source(path string, chunkSize int, pool *BlockingPool) Stream[byte] {
	return sourceFromResource(openFile(path, os.O_RDONLY, 0, pool), chunkSize, pool)
}

// Sink writes every input chunk to path in arrival order, creating or
// truncating the file. It emits no values; compile the result with
// [DrainStream].
func Sink(path string, pool *BlockingPool) Pipe[byte, Nothing] {
	return sinkToResource(openFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644, pool), pool)
}

func sourceFromResource(res Resource[*os.File], chunkSize int, pool *BlockingPool) Stream[byte] {
	if chunkSize <= 0 {
		panic("flume: Source chunk size must be positive")
	}
	return FlatMap(AcquireStream(res), func(f *os.File) Stream[byte] {
		return readLoop(f, chunkSize, pool)
	}).Scoped()
}

func sinkToResource(res Resource[*os.File], pool *BlockingPool) Pipe[byte, Nothing] {
	return func(in Stream[byte]) Stream[Nothing] {
		return FlatMap(AcquireStream(res), func(f *os.File) Stream[Nothing] {
			return Void(FlatMap(Chunks(in), func(data []byte) Stream[Nothing] {
				return Eval(Blocking(pool, func() (Nothing, error) {
					_, err := f.Write(data)
					return Nothing{}, err
				}))
			}))
		}).Scoped()
	}
}

// openFile builds the file-handle resource. Opening counts as blocking
// work and goes through the pool; Close runs during scope teardown and
// its error propagates as a release failure.
func openFile(path string, flag int, perm os.FileMode, pool *BlockingPool) Resource[*os.File] {
	return Resource[*os.File]{
		Acquire: Blocking(pool, func() (*os.File, error) {
			return os.OpenFile(path, flag, perm)
		}),
		Release: func(_ context.Context, f *os.File) error {
			return f.Close()
		},
	}
}

func readLoop(f *os.File, chunkSize int, pool *BlockingPool) Stream[byte] {
	read := Blocking(pool, func() ([]byte, error) {
		buf := make([]byte, chunkSize)
		n, err := f.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	})
	return FlatMap(Eval(read), func(data []byte) Stream[byte] {
		if len(data) == 0 {
			return Empty[byte]()
		}
		return EmitSlice(data).Append(SuspendStream(func() Stream[byte] {
			return readLoop(f, chunkSize, pool)
		}))
	})
}
