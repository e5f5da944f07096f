// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"

	"go.uber.org/zap"
)

// Compiling a stream turns its description into exactly one runnable
// Task. Nothing happens before that task itself runs; compiling and
// running the same description twice performs two independent,
// non-interfering executions.

// CompileOption configures a compiled run.
type CompileOption func(*compileConfig)

type compileConfig struct {
	log *zap.Logger
}

// WithLogger sets the logger used by the run's interpreter and scopes.
// Defaults to a no-op logger.
func WithLogger(log *zap.Logger) CompileOption {
	return func(c *compileConfig) { c.log = log }
}

func newCompileConfig(opts []CompileOption) compileConfig {
	cfg := compileConfig{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DrainStream compiles s into a task that pulls the stream to exhaustion,
// discarding every element.
func DrainStream[A any](s Stream[A], opts ...CompileOption) Task[Nothing] {
	cfg := newCompileConfig(opts)
	return func(ctx context.Context) (Nothing, error) {
		m := newMachine(ctx, s.n, cfg.log)
		defer m.close()
		for {
			_, ok, err := m.step()
			if err != nil {
				return Nothing{}, err
			}
			if !ok {
				return Nothing{}, nil
			}
		}
	}
}

// FoldStream compiles s into a task that combines every element into a
// single result, left to right, starting from init.
func FoldStream[A, B any](s Stream[A], init B, fn func(B, A) B, opts ...CompileOption) Task[B] {
	cfg := newCompileConfig(opts)
	return func(ctx context.Context) (B, error) {
		m := newMachine(ctx, s.n, cfg.log)
		defer m.close()
		acc := init
		for {
			c, ok, err := m.step()
			if err != nil {
				var zero B
				return zero, err
			}
			if !ok {
				return acc, nil
			}
			for i := 0; i < c.length(); i++ {
				acc = fn(acc, c.at(i).(A))
			}
		}
	}
}

// ToSlice compiles s into a task that collects every element in order.
func ToSlice[A any](s Stream[A], opts ...CompileOption) Task[[]A] {
	cfg := newCompileConfig(opts)
	return func(ctx context.Context) ([]A, error) {
		m := newMachine(ctx, s.n, cfg.log)
		defer m.close()
		var out []A
		for {
			c, ok, err := m.step()
			if err != nil {
				return nil, err
			}
			if !ok {
				return out, nil
			}
			out = append(out, chunkSlice[A](c)...)
		}
	}
}
