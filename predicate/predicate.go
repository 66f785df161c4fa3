// Package predicate answers "is this value of kind K".
//
// Concrete types compare the value's type descriptor against a singleton
// handle. Parametric families (tuples, named tuples, arrays) have one type
// descriptor per instantiation, so they compare the descriptor's type name
// instead, which is shared by the whole family. Every predicate is false
// for Nil.
package predicate

import (
	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/header"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/reader"
)

// Predicates tests values against the runtime's type handles.
type Predicates struct {
	dec     *header.Decoder
	rd      *reader.Reader
	handles *primitive.Handles
}

// New builds predicates over dec and rd. Handles resolve on first use.
func New(dec *header.Decoder, rd *reader.Reader, handles *primitive.Handles) *Predicates {
	return &Predicates{dec: dec, rd: rd, handles: handles}
}

// TypeIs reports whether v's type descriptor is exactly t.
func (p *Predicates) TypeIs(v, t jlvalue.Value) bool {
	return p.dec.TypeIs(v, t)
}

func (p *Predicates) typeIsHandle(v jlvalue.Value, h primitive.Handle) bool {
	return p.dec.TypeIs(v, p.handles.Value(h))
}

// nameIs reports whether data type t belongs to the family named by h.
func (p *Predicates) nameIs(t jlvalue.Value, h primitive.Handle) bool {
	if t.IsNil() {
		return false
	}
	want := p.handles.Value(h)
	if want.IsNil() {
		return false
	}
	tn, err := p.rd.TypeName(t)
	return err == nil && tn == want
}

// IsNothing reports whether v is the canonical absence value.
func (p *Predicates) IsNothing(v jlvalue.Value) bool {
	if v.IsNil() {
		return false
	}
	return v == p.handles.Value(primitive.Nothing)
}

// IsTuple reports whether v is a tuple of any element types.
func (p *Predicates) IsTuple(v jlvalue.Value) bool {
	return p.nameIs(p.dec.TypeOf(v), primitive.TupleTypeName)
}

// IsNamedTuple reports whether v is a named tuple.
func (p *Predicates) IsNamedTuple(v jlvalue.Value) bool {
	return p.nameIs(p.dec.TypeOf(v), primitive.NamedTupleTypeName)
}

// IsSVec reports whether v is a simple vector.
func (p *Predicates) IsSVec(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.SimpleVectorType)
}

// IsDataType reports whether v is itself a type descriptor.
func (p *Predicates) IsDataType(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.DataTypeType)
}

// IsArrayType reports whether t is a data type of the array family.
func (p *Predicates) IsArrayType(t jlvalue.Value) bool {
	return p.IsDataType(t) && p.nameIs(t, primitive.ArrayTypeName)
}

// IsArray reports whether v is an array of any element type and rank.
func (p *Predicates) IsArray(v jlvalue.Value) bool {
	return p.IsArrayType(p.dec.TypeOf(v))
}

// IsString reports whether v is a string.
func (p *Predicates) IsString(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.StringType)
}

// IsSymbol reports whether v is an interned symbol.
func (p *Predicates) IsSymbol(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.SymbolType)
}

// IsTask reports whether v is a task (coroutine).
func (p *Predicates) IsTask(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.TaskType)
}

// IsModule reports whether v is a module.
func (p *Predicates) IsModule(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.ModuleType)
}

// IsTypeName reports whether v is the type name record shared by a family.
func (p *Predicates) IsTypeName(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.TypeNameType)
}

// IsUnion, IsUnionAll and IsTypeVar recognize the type-level values that
// are not data types.
func (p *Predicates) IsUnion(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.UnionTypeType)
}

// IsUnionAll reports whether v is a UnionAll.
func (p *Predicates) IsUnionAll(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.UnionAllType)
}

// IsTypeVar reports whether v is a type variable.
func (p *Predicates) IsTypeVar(v jlvalue.Value) bool {
	return p.typeIsHandle(v, primitive.TypeVarType)
}

// IsBits reports whether t is a data type whose instances are plain bits.
func (p *Predicates) IsBits(t jlvalue.Value) bool {
	if !p.IsDataType(t) {
		return false
	}
	ok, err := p.rd.IsBitsType(t)
	return err == nil && ok
}

// Scalar singletons.
func (p *Predicates) IsBool(v jlvalue.Value) bool    { return p.typeIsHandle(v, primitive.BoolType) }
func (p *Predicates) IsChar(v jlvalue.Value) bool    { return p.typeIsHandle(v, primitive.CharType) }
func (p *Predicates) IsInt8(v jlvalue.Value) bool    { return p.typeIsHandle(v, primitive.Int8Type) }
func (p *Predicates) IsInt16(v jlvalue.Value) bool   { return p.typeIsHandle(v, primitive.Int16Type) }
func (p *Predicates) IsInt32(v jlvalue.Value) bool   { return p.typeIsHandle(v, primitive.Int32Type) }
func (p *Predicates) IsInt64(v jlvalue.Value) bool   { return p.typeIsHandle(v, primitive.Int64Type) }
func (p *Predicates) IsUint8(v jlvalue.Value) bool   { return p.typeIsHandle(v, primitive.Uint8Type) }
func (p *Predicates) IsUint16(v jlvalue.Value) bool  { return p.typeIsHandle(v, primitive.Uint16Type) }
func (p *Predicates) IsUint32(v jlvalue.Value) bool  { return p.typeIsHandle(v, primitive.Uint32Type) }
func (p *Predicates) IsUint64(v jlvalue.Value) bool  { return p.typeIsHandle(v, primitive.Uint64Type) }
func (p *Predicates) IsFloat32(v jlvalue.Value) bool { return p.typeIsHandle(v, primitive.Float32Type) }
func (p *Predicates) IsFloat64(v jlvalue.Value) bool { return p.typeIsHandle(v, primitive.Float64Type) }
