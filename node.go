// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flume

import "context"

// Erased represents a type-erased value in the stream description tree.
// Node types carry Erased values so heterogeneous element types flow
// through a homogeneous evaluation pipeline; concrete types are recovered
// via type assertions at the typed constructors and consumers.
type Erased = any

// chunk is a finite ordered batch of elements moved through the pipeline
// in one pull step. It is a throughput unit only: it carries no identity
// or lifecycle of its own.
type chunk interface {
	length() int
	at(i int) Erased
}

// sliceChunk adapts a typed slice as a chunk.
type sliceChunk[A any] struct{ xs []A }

func (c sliceChunk[A]) length() int     { return len(c.xs) }
func (c sliceChunk[A]) at(i int) Erased { return c.xs[i] }

// chunkSlice recovers a typed slice from an erased chunk.
// The fast path unwraps a matching sliceChunk without copying.
func chunkSlice[A any](c chunk) []A {
	if sc, ok := c.(sliceChunk[A]); ok {
		return sc.xs
	}
	xs := make([]A, c.length())
	for i := range xs {
		xs[i] = c.at(i).(A)
	}
	return xs
}

// singleton wraps one value as a single-element chunk emission.
func singleton(v Erased) node {
	return &emitNode{c: sliceChunk[Erased]{xs: []Erased{v}}}
}

// node is the marker interface for stream description nodes.
// Dispatch uses type switches, not tags — node is a pure marker interface.
//
// Constructing nodes performs no side effects. The resume* variants are
// never part of a user description: the machine creates them when it
// parks in-flight state (an open scope, a live transform, a half-consumed
// bind) back into node form while routing an emitted chunk.
type node interface {
	node() // unexported marker method
}

// emptyNode is the exhausted stream.
type emptyNode struct{}

// emitNode yields one chunk of values.
type emitNode struct{ c chunk }

// evalNode runs an effect and emits its result as a single element.
type evalNode struct {
	effect func(context.Context) (Erased, error)
}

// bindNode applies f to each element of src, concatenating the resulting
// streams in order (flatMap).
type bindNode struct {
	src node
	f   func(Erased) node
}

// appendNode sequences two streams. The second arm is a thunk so that
// unbounded concatenations stay lazy.
type appendNode struct {
	first  node
	second func() node
}

// acquireNode runs an acquisition, registers the matching release on the
// innermost open scope, and emits the acquired value.
type acquireNode struct {
	acquire func(context.Context) (Erased, error)
	release func(context.Context, Erased) error
}

// scopeNode opens a fresh scope around inner.
type scopeNode struct{ inner node }

// handleErrorNode runs body, diverting any failure raised inside it to
// handler after intervening scopes have released.
type handleErrorNode struct {
	body    node
	handler func(error) node
}

// interruptNode bounds the region of body that ends early when signal
// fires. The region terminates as if the stream were exhausted; scopes
// opened inside it close first.
type interruptNode struct {
	body   node
	signal <-chan struct{}
}

// transformNode routes src's chunks through a stateful transform.
// mk instantiates a fresh transform per run so a description stays
// reusable.
type transformNode struct {
	src node
	mk  func() transform
}

// suspendNode defers construction of a stream until it is pulled.
type suspendNode struct{ thunk func() node }

// failNode raises err when evaluated.
type failNode struct{ err error }

// resumeScopeNode re-enters a scope that is already open.
type resumeScopeNode struct {
	s     *scope
	inner node
}

// resumeInterruptNode re-enters an interruptible region.
type resumeInterruptNode struct {
	signal <-chan struct{}
	inner  node
}

// resumeTransformNode re-enters a live transform with src as the
// remainder of its upstream.
type resumeTransformNode struct {
	t   transform
	src node
}

// bindRunNode re-enters a half-consumed bind: inner runs first, then f
// over the remaining elements, then f bound over rest.
type bindRunNode struct {
	f     func(Erased) node
	rest  node
	elems chunk
	next  int
	inner node
}

func (emptyNode) node()            {}
func (*emitNode) node()            {}
func (*evalNode) node()            {}
func (*bindNode) node()            {}
func (*appendNode) node()          {}
func (*acquireNode) node()         {}
func (*scopeNode) node()           {}
func (*handleErrorNode) node()     {}
func (*interruptNode) node()       {}
func (*transformNode) node()       {}
func (*suspendNode) node()         {}
func (*failNode) node()            {}
func (*resumeScopeNode) node()     {}
func (*resumeInterruptNode) node() {}
func (*resumeTransformNode) node() {}
func (*bindRunNode) node()         {}

// transform is a stateful chunk-to-chunk stage, instantiated once per
// run. apply sees each upstream chunk in order; finish runs once at end
// of upstream and may emit buffered remainder. Neither may look ahead
// more than the chunk in hand.
type transform interface {
	apply(c chunk) (chunk, error)
	finish() (chunk, error)
}
