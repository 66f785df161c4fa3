package predicate

import (
	"sync"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/primitive"
)

// Kind is the closed classification of a heap value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNothing
	KindBool
	KindChar
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindSymbol
	KindSimpleVector
	KindTuple
	KindNamedTuple
	KindArray
	KindDataType
	KindTypeName
	KindUnion
	KindUnionAll
	KindTypeVar
	KindModule
	KindTask
	KindStruct
	KindUnknown
)

var kindNames = [...]string{
	KindNull:         "null",
	KindNothing:      "nothing",
	KindBool:         "bool",
	KindChar:         "char",
	KindInt8:         "int8",
	KindInt16:        "int16",
	KindInt32:        "int32",
	KindInt64:        "int64",
	KindUint8:        "uint8",
	KindUint16:       "uint16",
	KindUint32:       "uint32",
	KindUint64:       "uint64",
	KindFloat32:      "float32",
	KindFloat64:      "float64",
	KindString:       "string",
	KindSymbol:       "symbol",
	KindSimpleVector: "svec",
	KindTuple:        "tuple",
	KindNamedTuple:   "namedtuple",
	KindArray:        "array",
	KindDataType:     "datatype",
	KindTypeName:     "typename",
	KindUnion:        "union",
	KindUnionAll:     "unionall",
	KindTypeVar:      "typevar",
	KindModule:       "module",
	KindTask:         "task",
	KindStruct:       "struct",
	KindUnknown:      "unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether values of this kind box a host scalar.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindFloat64
}

// singletons maps the concrete type handles to their kind. Families and
// the absence value are checked separately.
var singletons = []struct {
	h primitive.Handle
	k Kind
}{
	{primitive.BoolType, KindBool},
	{primitive.CharType, KindChar},
	{primitive.Int8Type, KindInt8},
	{primitive.Int16Type, KindInt16},
	{primitive.Int32Type, KindInt32},
	{primitive.Int64Type, KindInt64},
	{primitive.Uint8Type, KindUint8},
	{primitive.Uint16Type, KindUint16},
	{primitive.Uint32Type, KindUint32},
	{primitive.Uint64Type, KindUint64},
	{primitive.Float32Type, KindFloat32},
	{primitive.Float64Type, KindFloat64},
	{primitive.StringType, KindString},
	{primitive.SymbolType, KindSymbol},
	{primitive.SimpleVectorType, KindSimpleVector},
	{primitive.DataTypeType, KindDataType},
	{primitive.TypeNameType, KindTypeName},
	{primitive.UnionTypeType, KindUnion},
	{primitive.UnionAllType, KindUnionAll},
	{primitive.TypeVarType, KindTypeVar},
	{primitive.ModuleType, KindModule},
	{primitive.TaskType, KindTask},
}

// Classifier assigns a Kind to a value. The singleton table is built once
// from the resolved handles on first use.
type Classifier struct {
	p      *Predicates
	byType map[jlvalue.Value]Kind
	once   sync.Once
}

// NewClassifier creates a classifier over p.
func NewClassifier(p *Predicates) *Classifier {
	return &Classifier{p: p}
}

func (c *Classifier) build() {
	c.byType = make(map[jlvalue.Value]Kind, len(singletons))
	for _, s := range singletons {
		if t := c.p.handles.Value(s.h); !t.IsNil() {
			c.byType[t] = s.k
		}
	}
}

// Classify returns the kind of v.
func (c *Classifier) Classify(v jlvalue.Value) Kind {
	if v.IsNil() {
		return KindNull
	}
	c.once.Do(c.build)

	if c.p.IsNothing(v) {
		return KindNothing
	}
	t := c.p.dec.TypeOf(v)
	if t.IsNil() {
		return KindUnknown
	}
	if k, ok := c.byType[t]; ok {
		return k
	}
	switch {
	case c.p.nameIs(t, primitive.TupleTypeName):
		return KindTuple
	case c.p.nameIs(t, primitive.NamedTupleTypeName):
		return KindNamedTuple
	case c.p.IsArrayType(t):
		return KindArray
	case c.p.IsDataType(t):
		return KindStruct
	}
	return KindUnknown
}

// TypeKind returns the kind of instances of t when t is one of the
// singleton types, and KindUnknown otherwise.
func (c *Classifier) TypeKind(t jlvalue.Value) Kind {
	if t.IsNil() {
		return KindUnknown
	}
	c.once.Do(c.build)
	if k, ok := c.byType[t]; ok {
		return k
	}
	return KindUnknown
}

// Handle returns the type handle whose instances have kind k.
func (k Kind) Handle() (primitive.Handle, bool) {
	for _, s := range singletons {
		if s.k == k {
			return s.h, true
		}
	}
	return 0, false
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return KindUnknown, false
}
