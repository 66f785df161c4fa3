package convert

import (
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/scalar"
)

// Node is one decoded heap value. Which payload fields are set depends on
// Kind: Bool for bool, Int for signed integers and Char, Uint for unsigned
// integers, Float for floats, Str for strings, symbols and data type names,
// Elems for containers, Names alongside Elems for named tuples and structs,
// Dims for arrays.
type Node struct {
	Kind predicate.Kind `cbor:"kind" msgpack:"kind"`

	// Type is the runtime's name for the value's type. Scalars leave it
	// empty since Kind already names the type.
	Type string `cbor:"type,omitempty" msgpack:"type,omitempty"`

	// Addr is the heap address of a container, used as the target of Refs.
	Addr uint32 `cbor:"addr,omitempty" msgpack:"addr,omitempty"`

	// Ref is set instead of the payload when the object at this address
	// was already decoded.
	Ref uint32 `cbor:"ref,omitempty" msgpack:"ref,omitempty"`

	Bool  bool     `cbor:"bool,omitempty" msgpack:"bool,omitempty"`
	Int   int64    `cbor:"int,omitempty" msgpack:"int,omitempty"`
	Uint  uint64   `cbor:"uint,omitempty" msgpack:"uint,omitempty"`
	Float float64  `cbor:"float,omitempty" msgpack:"float,omitempty"`
	Str   string   `cbor:"str,omitempty" msgpack:"str,omitempty"`
	Names []string `cbor:"names,omitempty" msgpack:"names,omitempty"`
	Elems []*Node  `cbor:"elems,omitempty" msgpack:"elems,omitempty"`
	Dims  []uint64 `cbor:"dims,omitempty" msgpack:"dims,omitempty"`

	// Truncated marks a node whose children were cut by a decoder limit.
	Truncated bool `cbor:"truncated,omitempty" msgpack:"truncated,omitempty"`
}

// Symbol is an interned runtime symbol, distinct from a string.
type Symbol string

// Tuple encodes as a runtime tuple rather than an array.
type Tuple []any

// Field is one named entry of a named tuple or struct.
type Field struct {
	Name  string
	Value any
}

// Struct is the Go form of a named tuple or struct instance.
type Struct struct {
	Type   string
	Fields []Field
}

// Get returns the value of the field called name.
func (s *Struct) Get(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Array is the Go form of an array. Elems are in memory order, first
// dimension fastest.
type Array struct {
	Type  string
	Dims  []uint64
	Elems []any
}

// TypeRef is the Go form of a data type.
type TypeRef string

// Ref is the Go form of a back reference to an already decoded object.
type Ref uint32

// Opaque stands for values with no Go form, such as modules and tasks.
type Opaque struct {
	Kind predicate.Kind
	Type string
	Addr uint32
}

// Interface flattens n into plain Go values. Nothing and null become nil.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	if n.Ref != 0 {
		return Ref(n.Ref)
	}
	switch n.Kind {
	case predicate.KindNull, predicate.KindNothing:
		return nil
	case predicate.KindBool:
		return n.Bool
	case predicate.KindChar:
		return scalar.Char(n.Int)
	case predicate.KindInt8:
		return int8(n.Int)
	case predicate.KindInt16:
		return int16(n.Int)
	case predicate.KindInt32:
		return int32(n.Int)
	case predicate.KindInt64:
		return n.Int
	case predicate.KindUint8:
		return uint8(n.Uint)
	case predicate.KindUint16:
		return uint16(n.Uint)
	case predicate.KindUint32:
		return uint32(n.Uint)
	case predicate.KindUint64:
		return n.Uint
	case predicate.KindFloat32:
		return float32(n.Float)
	case predicate.KindFloat64:
		return n.Float
	case predicate.KindString:
		return n.Str
	case predicate.KindSymbol:
		return Symbol(n.Str)
	case predicate.KindDataType:
		return TypeRef(n.Str)
	case predicate.KindSimpleVector:
		return n.elems()
	case predicate.KindTuple:
		return Tuple(n.elems())
	case predicate.KindNamedTuple, predicate.KindStruct:
		s := &Struct{Type: n.Type, Fields: make([]Field, len(n.Elems))}
		for i, e := range n.Elems {
			s.Fields[i].Value = e.Interface()
			if i < len(n.Names) {
				s.Fields[i].Name = n.Names[i]
			}
		}
		return s
	case predicate.KindArray:
		return &Array{Type: n.Type, Dims: n.Dims, Elems: n.elems()}
	}
	return Opaque{Kind: n.Kind, Type: n.Type, Addr: n.Addr}
}

func (n *Node) elems() []any {
	out := make([]any, len(n.Elems))
	for i, e := range n.Elems {
		out[i] = e.Interface()
	}
	return out
}

// Walk calls fn for n and every descendant in depth-first order, passing
// the depth of each node. It stops descending below a node when fn returns
// false.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, e := range n.Elems {
		e.walk(fn, depth+1)
	}
}
