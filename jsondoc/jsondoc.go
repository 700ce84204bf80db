// SPDX-License-Identifier: GPL-3.0-or-later

// Package jsondoc describes JSON documents whose values are read at render time.
//
// A document is a tree of [Value]. Leaves either hold a constant ([Const]),
// dereference a pointer ([Ptr]), or call a function ([Func]) each time the
// document is rendered, so the output always reflects the current state.
// [Scoped] builds a sub-tree from scratch on every render, which allows
// computing a consistent snapshot per request without process-wide state.
//
// [Document] renders a tree into an [io.Writer], stopping at the first
// write error, and reports the number of bytes written.
package jsondoc

import (
	"encoding/json"
	"io"
)

// Value is a node of a JSON document.
type Value interface {
	// Encode writes the JSON representation of the value.
	//
	// The data argument is the opaque context passed to [Document.Format].
	Encode(e *Encoder, data any)
}

// Encoder streams JSON text into an [io.Writer].
//
// After the first error, every write is a no-op; the error is available
// through [Encoder.Err].
type Encoder struct {
	w     io.Writer
	count int
	err   error
}

// NewEncoder creates a new [*Encoder] writing into w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Count returns the number of bytes written so far.
func (e *Encoder) Count() int {
	return e.count
}

// Err returns the first error that occurred, if any.
func (e *Encoder) Err() error {
	return e.err
}

// Fail records err unless an error was already recorded.
func (e *Encoder) Fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// WriteRaw writes pre-encoded JSON text.
func (e *Encoder) WriteRaw(text []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(text)
	e.count += n
	e.Fail(err)
}

// WriteAny writes the JSON encoding of v.
func (e *Encoder) WriteAny(v any) {
	if e.err != nil {
		return
	}
	text, err := json.Marshal(v)
	if err != nil {
		e.Fail(err)
		return
	}
	e.WriteRaw(text)
}

// Document renders a tree of [Value].
type Document struct {
	// Root is the root of the tree.
	Root Value
}

// New returns a [*Document] with the given root.
func New(root Value) *Document {
	return &Document{Root: root}
}

// Format renders the document into w passing data to every node.
//
// It returns the number of bytes written and the first error. A failing
// writer truncates the output.
func (d *Document) Format(w io.Writer, data any) (int, error) {
	e := NewEncoder(w)
	d.Root.Encode(e, data)
	return e.Count(), e.Err()
}

// Member is a name-value pair of an [Object].
type Member struct {
	Name  string
	Value Value
}

// Pair returns a [Member].
func Pair(name string, value Value) Member {
	return Member{Name: name, Value: value}
}

// ObjectValue is a JSON object with ordered members.
type ObjectValue struct {
	Members []Member
}

// Object returns an [*ObjectValue] with the given members.
func Object(members ...Member) *ObjectValue {
	return &ObjectValue{Members: members}
}

var (
	openBrace  = []byte("{")
	closeBrace = []byte("}")
	colon      = []byte(":")
	comma      = []byte(",")
)

// Encode implements [Value].
func (o *ObjectValue) Encode(e *Encoder, data any) {
	e.WriteRaw(openBrace)
	for idx, m := range o.Members {
		if idx > 0 {
			e.WriteRaw(comma)
		}
		e.WriteAny(m.Name)
		e.WriteRaw(colon)
		m.Value.Encode(e, data)
	}
	e.WriteRaw(closeBrace)
}

type constValue struct {
	v any
}

// Const returns a [Value] that always encodes v using [encoding/json].
func Const(v any) Value {
	return constValue{v}
}

func (c constValue) Encode(e *Encoder, _ any) {
	e.WriteAny(c.v)
}

type ptrValue[T any] struct {
	p *T
}

// Ptr returns a [Value] that encodes the value pointed by p at render time.
func Ptr[T any](p *T) Value {
	return ptrValue[T]{p}
}

func (v ptrValue[T]) Encode(e *Encoder, _ any) {
	e.WriteAny(*v.p)
}

type funcValue[T any] struct {
	fn func() T
}

// Func returns a [Value] that encodes the return value of fn at render time.
func Func[T any](fn func() T) Value {
	return funcValue[T]{fn}
}

func (v funcValue[T]) Encode(e *Encoder, _ any) {
	e.WriteAny(v.fn())
}

type scopedValue struct {
	build func(data any) (Value, error)
}

// Scoped returns a [Value] that calls build on every render and encodes
// the returned sub-tree. A build error aborts rendering.
func Scoped(build func(data any) (Value, error)) Value {
	return scopedValue{build}
}

func (v scopedValue) Encode(e *Encoder, data any) {
	sub, err := v.build(data)
	if err != nil {
		e.Fail(err)
		return
	}
	sub.Encode(e, data)
}
