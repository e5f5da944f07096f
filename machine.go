// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// The interpreter. A machine evaluates one run of a compiled stream
// description: an explicit frame stack replaces native recursion so that
// million-element or million-stage compositions cannot overflow the call
// stack, and an explicit scope stack (scope frames plus state parked in
// resume nodes) makes release ordering and error aggregation inspectable
// on every exit path.

var errScopeClosed = errors.New("flume: acquire on closed scope")

// frame is the marker interface for interpreter continuation frames.
type frame interface {
	frame() // unexported marker method
}

// bindFrame waits for upstream chunks to feed the bind continuation.
type bindFrame struct{ f func(Erased) node }

// bindRunFrame is a bind mid-chunk: f is being applied to elems one at a
// time; rest is the parked remainder of the upstream.
type bindRunFrame struct {
	f     func(Erased) node
	rest  node
	elems chunk
	next  int
}

// appendFrame holds the second arm of a concatenation.
type appendFrame struct{ second func() node }

// handleFrame marks an error handler boundary.
type handleFrame struct{ handler func(error) node }

// scopeFrame marks the close point of an open scope.
type scopeFrame struct{ s *scope }

// interruptFrame marks the boundary of an interruptible region.
type interruptFrame struct{ signal <-chan struct{} }

// transformFrame holds a live transform intercepting upstream chunks.
type transformFrame struct{ t transform }

func (*bindFrame) frame()      {}
func (*bindRunFrame) frame()   {}
func (*appendFrame) frame()    {}
func (*handleFrame) frame()    {}
func (*scopeFrame) frame()     {}
func (*interruptFrame) frame() {}
func (*transformFrame) frame() {}

// machine is the in-flight state of one compiled run. It is owned by
// exactly one driver; a single machine must not be pulled from two
// places concurrently.
type machine struct {
	ctx    context.Context
	cur    node
	frames []frame
	log    *zap.Logger
	done   bool
}

func newMachine(ctx context.Context, root node, log *zap.Logger) *machine {
	m := &machine{ctx: ctx, cur: root, log: log}
	// Root scope: acquisitions outside any explicit scope land here and
	// release when the run ends.
	m.frames = append(m.frames, &scopeFrame{s: newScope(log)})
	return m
}

// step advances the run until it produces the next chunk, completes, or
// fails. Nodes evaluate in strict left-to-right order; no node runs
// before its logical predecessor completes.
func (m *machine) step() (chunk, bool, error) {
	if m.done {
		return nil, false, nil
	}
	for {
		if cerr := m.ctx.Err(); cerr != nil {
			return nil, false, m.unwindAll(cerr)
		}
		switch n := m.cur.(type) {
		case emptyNode:
			if len(m.frames) == 0 {
				m.done = true
				return nil, false, nil
			}
			top := m.frames[len(m.frames)-1]
			m.frames = m.frames[:len(m.frames)-1]
			switch f := top.(type) {
			case *appendFrame:
				m.cur = f.second()
			case *bindFrame:
				// upstream exhausted
			case *bindRunFrame:
				if f.next < f.elems.length() {
					e := f.elems.at(f.next)
					f.next++
					m.frames = append(m.frames, f)
					m.cur = f.f(e)
				} else {
					m.frames = append(m.frames, &bindFrame{f: f.f})
					m.cur = f.rest
				}
			case *handleFrame:
				// body completed, handler unused
			case *interruptFrame:
				// region completed before its signal fired
			case *scopeFrame:
				if rerr := f.s.close(context.Background()); rerr != nil {
					if agg, handled := m.raise(rerr); !handled {
						return nil, false, agg
					}
				}
			case *transformFrame:
				out, err := f.t.finish()
				if err != nil {
					if agg, handled := m.raise(asEvalError(err)); !handled {
						return nil, false, agg
					}
					continue
				}
				if out != nil && out.length() > 0 {
					c, rerr := m.route(out)
					if rerr != nil {
						if agg, handled := m.raise(asEvalError(rerr)); !handled {
							return nil, false, agg
						}
						continue
					}
					if c != nil {
						return c, true, nil
					}
				}
			}

		case *emitNode:
			if stopped, rerr := m.pollInterrupts(); stopped {
				if rerr != nil {
					if agg, handled := m.raise(rerr); !handled {
						return nil, false, agg
					}
				}
				continue
			}
			m.cur = emptyNode{}
			c, err := m.route(n.c)
			if err != nil {
				if agg, handled := m.raise(asEvalError(err)); !handled {
					return nil, false, agg
				}
				continue
			}
			if c != nil {
				return c, true, nil
			}

		case *evalNode:
			if stopped, rerr := m.pollInterrupts(); stopped {
				if rerr != nil {
					if agg, handled := m.raise(rerr); !handled {
						return nil, false, agg
					}
				}
				continue
			}
			v, err := n.effect(m.ctx)
			if err != nil {
				if cerr := m.ctx.Err(); cerr != nil {
					return nil, false, m.unwindAll(cerr)
				}
				if agg, handled := m.raise(asEvalError(err)); !handled {
					return nil, false, agg
				}
				continue
			}
			m.cur = singleton(v)

		case *acquireNode:
			if stopped, rerr := m.pollInterrupts(); stopped {
				if rerr != nil {
					if agg, handled := m.raise(rerr); !handled {
						return nil, false, agg
					}
				}
				continue
			}
			v, err := n.acquire(m.ctx)
			if err != nil {
				if cerr := m.ctx.Err(); cerr != nil {
					return nil, false, m.unwindAll(cerr)
				}
				if agg, handled := m.raise(&AcquireError{Err: err}); !handled {
					return nil, false, agg
				}
				continue
			}
			if !m.innermostScope().register(v, n.release) {
				aerr := error(&AcquireError{Err: errScopeClosed})
				if rerr := n.release(context.Background(), v); rerr != nil {
					aerr = multierr.Append(aerr, &ReleaseError{Err: rerr})
				}
				if agg, handled := m.raise(aerr); !handled {
					return nil, false, agg
				}
				continue
			}
			m.cur = singleton(v)

		case *bindNode:
			m.frames = append(m.frames, &bindFrame{f: n.f})
			m.cur = n.src
		case *appendNode:
			m.frames = append(m.frames, &appendFrame{second: n.second})
			m.cur = n.first
		case *scopeNode:
			m.frames = append(m.frames, &scopeFrame{s: newScope(m.log)})
			m.cur = n.inner
		case *resumeScopeNode:
			m.frames = append(m.frames, &scopeFrame{s: n.s})
			m.cur = n.inner
		case *handleErrorNode:
			m.frames = append(m.frames, &handleFrame{handler: n.handler})
			m.cur = n.body
		case *interruptNode:
			m.frames = append(m.frames, &interruptFrame{signal: n.signal})
			m.cur = n.body
		case *resumeInterruptNode:
			m.frames = append(m.frames, &interruptFrame{signal: n.signal})
			m.cur = n.inner
		case *transformNode:
			m.frames = append(m.frames, &transformFrame{t: n.mk()})
			m.cur = n.src
		case *resumeTransformNode:
			m.frames = append(m.frames, &transformFrame{t: n.t})
			m.cur = n.src
		case *bindRunNode:
			m.frames = append(m.frames, &bindRunFrame{f: n.f, rest: n.rest, elems: n.elems, next: n.next})
			m.cur = n.inner
		case *suspendNode:
			m.cur = n.thunk()
		case *failNode:
			if agg, handled := m.raise(asEvalError(n.err)); !handled {
				return nil, false, agg
			}

		default:
			panic("flume: unknown node type")
		}
	}
}

// route delivers an emitted chunk toward the driver. Pass-through frames
// between the emission and the nearest intercepting frame are reified
// back into node form as the source's remainder; an emit that reaches
// the driver leaves the frame stack untouched. Returns the chunk when it
// reaches the driver, nil when a rewrite consumed it, or an error when a
// transform rejected it. On a rejection the transform's upstream is
// parked as the current node before returning, so raise still closes the
// upstream scopes but never consults an upstream handler: the failure
// belongs to the transform, and only handlers enclosing it may catch it.
func (m *machine) route(c chunk) (chunk, error) {
	for {
		if c == nil || c.length() == 0 {
			return nil, nil
		}
		idx := -1
	scan:
		for i := len(m.frames) - 1; i >= 0; i-- {
			switch m.frames[i].(type) {
			case *bindFrame, *transformFrame:
				idx = i
				break scan
			}
		}
		if idx < 0 {
			return c, nil
		}
		if tf, ok := m.frames[idx].(*transformFrame); ok {
			out, err := tf.t.apply(c)
			if err != nil {
				parked := m.reifyAbove(idx)
				m.frames = m.frames[:idx]
				m.cur = parked
				return nil, err
			}
			rest := m.reifyAbove(idx)
			m.frames = m.frames[:idx]
			m.cur = &resumeTransformNode{t: tf.t, src: rest}
			c = out
			continue
		}
		bf := m.frames[idx].(*bindFrame)
		rest := m.reifyAbove(idx)
		m.frames = m.frames[:idx]
		m.frames = append(m.frames, &bindRunFrame{f: bf.f, rest: rest, elems: c, next: 1})
		m.cur = bf.f(c.at(0))
		return nil, nil
	}
}

// reifyAbove folds the frames above idx back into node form, starting
// from the current node. Open scopes and live transforms survive as
// resume nodes; nothing closes here.
func (m *machine) reifyAbove(idx int) node {
	rest := m.cur
	for i := len(m.frames) - 1; i > idx; i-- {
		switch f := m.frames[i].(type) {
		case *appendFrame:
			rest = &appendNode{first: rest, second: f.second}
		case *handleFrame:
			rest = &handleErrorNode{body: rest, handler: f.handler}
		case *scopeFrame:
			rest = &resumeScopeNode{s: f.s, inner: rest}
		case *interruptFrame:
			rest = &resumeInterruptNode{signal: f.signal, inner: rest}
		case *bindRunFrame:
			rest = &bindRunNode{f: f.f, rest: f.rest, elems: f.elems, next: f.next, inner: rest}
		default:
			panic("flume: unexpected frame on emit path")
		}
	}
	m.cur = emptyNode{}
	return rest
}

// liveScopes collects open scopes parked in reified machine state, in
// acquisition order (outermost first).
func liveScopes(n node, out []*scope) []*scope {
	for {
		switch v := n.(type) {
		case *resumeScopeNode:
			out = append(out, v.s)
			n = v.inner
		case *appendNode:
			n = v.first
		case *handleErrorNode:
			n = v.body
		case *resumeInterruptNode:
			n = v.inner
		case *resumeTransformNode:
			n = v.src
		case *bindRunNode:
			out = liveScopes(v.rest, out)
			n = v.inner
		default:
			return out
		}
	}
}

// closeParked closes every open scope parked in n, innermost first.
func closeParked(n node) error {
	scopes := liveScopes(n, nil)
	var err error
	for i := len(scopes) - 1; i >= 0; i-- {
		if rerr := scopes[i].close(context.Background()); rerr != nil {
			err = multierr.Append(err, rerr)
		}
	}
	return err
}

// raise unwinds toward the nearest error handler. Scopes close innermost
// first on the way; release failures attach to err as suppressed causes
// and never replace it. Returns (nil, true) when a handler took over, or
// (aggregate, false) when the error escaped the whole description.
func (m *machine) raise(err error) (error, bool) {
	if parked := closeParked(m.cur); parked != nil {
		err = multierr.Append(err, parked)
	}
	m.cur = emptyNode{}
	for len(m.frames) > 0 {
		top := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		switch f := top.(type) {
		case *scopeFrame:
			if rerr := f.s.close(context.Background()); rerr != nil {
				err = multierr.Append(err, rerr)
			}
		case *bindRunFrame:
			if parked := closeParked(f.rest); parked != nil {
				err = multierr.Append(err, parked)
			}
		case *handleFrame:
			m.cur = f.handler(err)
			return nil, true
		default:
			// bind, append, transform, and interrupt frames unwind silently
		}
	}
	m.done = true
	return err, false
}

// unwindAll closes every open scope without consulting error handlers
// and reports err with any release failures attached. Interruption and
// driver abandonment both land here.
func (m *machine) unwindAll(err error) error {
	if parked := closeParked(m.cur); parked != nil {
		err = multierr.Append(err, parked)
	}
	m.cur = emptyNode{}
	for len(m.frames) > 0 {
		top := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		switch f := top.(type) {
		case *scopeFrame:
			if rerr := f.s.close(context.Background()); rerr != nil {
				err = multierr.Append(err, rerr)
			}
		case *bindRunFrame:
			if parked := closeParked(f.rest); parked != nil {
				err = multierr.Append(err, parked)
			}
		}
	}
	m.done = true
	return err
}

// close releases everything the run still holds. It is the safety net
// for drivers that stop pulling early; after normal completion or
// failure it is a no-op.
func (m *machine) close() error {
	return m.unwindAll(nil)
}

// pollInterrupts checks every active interrupt signal. The outermost
// fired signal wins; its whole region unwinds with scopes closing
// innermost first, and evaluation continues after the region as if the
// stream there had been exhausted. Returned release failures propagate
// to handlers outside the region.
func (m *machine) pollInterrupts() (bool, error) {
	fired := -1
	for i := 0; i < len(m.frames); i++ {
		f, ok := m.frames[i].(*interruptFrame)
		if !ok {
			continue
		}
		select {
		case <-f.signal:
			fired = i
		default:
		}
		if fired >= 0 {
			break
		}
	}
	if fired < 0 {
		return false, nil
	}
	err := closeParked(m.cur)
	m.cur = emptyNode{}
	for len(m.frames) > fired {
		top := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		switch f := top.(type) {
		case *scopeFrame:
			if rerr := f.s.close(context.Background()); rerr != nil {
				err = multierr.Append(err, rerr)
			}
		case *bindRunFrame:
			if parked := closeParked(f.rest); parked != nil {
				err = multierr.Append(err, parked)
			}
		}
	}
	return true, err
}

// innermostScope returns the deepest open scope on the frame stack.
// The root scope frame pushed at construction guarantees a hit while the
// run is live.
func (m *machine) innermostScope() *scope {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if f, ok := m.frames[i].(*scopeFrame); ok {
			return f.s
		}
	}
	panic("flume: no open scope")
}
