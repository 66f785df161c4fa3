package heaptest

import (
	"context"
	"fmt"
	"strings"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/primitive"
)

// DefaultSize is the heap size used by New.
const DefaultSize = 1 << 20

// Func implements a callable runtime function.
type Func func(args []jlvalue.Value) (jlvalue.Value, error)

// Heap is a simulated runtime image. It implements jlvalue.Memory,
// jlvalue.Allocator, primitive.Invoker and primitive.Symbols.
type Heap struct {
	*Memory
	Layout abi.Layout

	// Queued records every parent reported through jl_gc_queue_root.
	Queued []jlvalue.Value
	// Calls records every primitive invoked, in order.
	Calls []string
	// Fail makes the named primitive return the given error.
	Fail map[string]error
	// Collecting records every primitive other than jl_gc_enable invoked
	// while collection was enabled, in order.
	Collecting []string

	next    uint32
	scratch map[uint32]uint32

	handles  map[primitive.Handle]jlvalue.Value
	globals  map[string]uint32
	symbols  map[string]jlvalue.Value
	names    map[jlvalue.Value]string
	cstrings map[string]uint32

	tuples  map[string]jlvalue.Value
	arrays  map[string]jlvalue.Value
	pending map[jlvalue.Value]jlvalue.Value

	modGlobals map[[2]jlvalue.Value]jlvalue.Value
	evals      map[string]jlvalue.Value
	funcs      map[jlvalue.Value]Func

	trueV, falseV jlvalue.Value
	functionType  jlvalue.Value
	errorType     jlvalue.Value
	exception     jlvalue.Value
	gcOff         bool
}

// New builds a heap with the wasm32 layout.
func New() *Heap {
	l, err := abi.Profile(abi.ProfileWasm32)
	if err != nil {
		panic(err)
	}
	return NewWithLayout(l)
}

// NewWithLayout builds a heap laid out with l.
func NewWithLayout(l abi.Layout) *Heap {
	h := &Heap{
		Memory:     NewMemory(DefaultSize),
		Layout:     l,
		next:       64,
		scratch:    make(map[uint32]uint32),
		handles:    make(map[primitive.Handle]jlvalue.Value),
		globals:    make(map[string]uint32),
		symbols:    make(map[string]jlvalue.Value),
		names:      make(map[jlvalue.Value]string),
		cstrings:   make(map[string]uint32),
		tuples:     make(map[string]jlvalue.Value),
		arrays:     make(map[string]jlvalue.Value),
		pending:    make(map[jlvalue.Value]jlvalue.Value),
		modGlobals: make(map[[2]jlvalue.Value]jlvalue.Value),
		evals:      make(map[string]jlvalue.Value),
		funcs:      make(map[jlvalue.Value]Func),
		Fail:       make(map[string]error),
	}
	h.bootstrap()
	return h
}

type coreType struct {
	h       primitive.Handle
	name    string
	size    uint32
	isbits  bool
	mutable bool
}

var coreTypes = []coreType{
	{primitive.DataTypeType, "DataType", 0, false, true},
	{primitive.TypeNameType, "TypeName", 0, false, true},
	{primitive.SymbolType, "Symbol", 0, false, false},
	{primitive.SimpleVectorType, "SimpleVector", 0, false, false},
	{primitive.ModuleType, "Module", 0, false, true},
	{primitive.StringType, "String", 0, false, false},
	{primitive.TaskType, "Task", 0, false, true},
	{primitive.UnionTypeType, "Union", 0, false, false},
	{primitive.TypeVarType, "TypeVar", 0, false, true},
	{primitive.UnionAllType, "UnionAll", 0, false, false},
	{primitive.BoolType, "Bool", 1, true, false},
	{primitive.CharType, "Char", 4, true, false},
	{primitive.Int8Type, "Int8", 1, true, false},
	{primitive.Int16Type, "Int16", 2, true, false},
	{primitive.Int32Type, "Int32", 4, true, false},
	{primitive.Int64Type, "Int64", 8, true, false},
	{primitive.Uint8Type, "UInt8", 1, true, false},
	{primitive.Uint16Type, "UInt16", 2, true, false},
	{primitive.Uint32Type, "UInt32", 4, true, false},
	{primitive.Uint64Type, "UInt64", 8, true, false},
	{primitive.Float32Type, "Float32", 4, true, false},
	{primitive.Float64Type, "Float64", 8, true, false},
}

func (h *Heap) bootstrap() {
	// DataType is its own type; allocate it first, then every core type so
	// symbols, vectors and type names have types to point at.
	dt := h.object(jlvalue.Nil, h.dataTypeBody())
	h.setHeader(dt, dt, 0)
	h.handles[primitive.DataTypeType] = dt
	for _, c := range coreTypes[1:] {
		h.handles[c.h] = h.object(dt, h.dataTypeBody())
	}

	core := h.newModule("Core")
	h.handles[primitive.CoreModule] = core
	h.handles[primitive.BaseModule] = h.newModule("Base")
	h.handles[primitive.MainModule] = h.newModule("Main")

	for _, c := range coreTypes {
		h.fillDataType(h.handles[c.h], TypeSpec{
			Name:    c.name,
			Size:    c.size,
			IsBits:  c.isbits,
			Mutable: c.mutable,
		})
	}

	h.handles[primitive.TupleTypeName] = h.newTypeName("Tuple", nil)
	h.handles[primitive.NamedTupleTypeName] = h.newTypeName("NamedTuple", nil)
	h.handles[primitive.ArrayTypeName] = h.newTypeName("Array", nil)

	nothingT := h.NewDataType(TypeSpec{Name: "Nothing", IsBits: true})
	h.handles[primitive.Nothing] = h.object(nothingT, 0)

	boolT := h.handles[primitive.BoolType]
	h.falseV = h.boxBits(boolT, 1, 0)
	h.trueV = h.boxBits(boolT, 1, 1)

	h.functionType = h.NewDataType(TypeSpec{Name: "Function"})
	h.errorType = h.NewDataType(TypeSpec{
		Name:   "ErrorException",
		Fields: []string{"msg"},
		Types:  []jlvalue.Value{h.handles[primitive.StringType]},
	})

	for _, k := range primitive.AllHandles() {
		addr := h.alloc(h.Layout.WordSize, h.Layout.WordSize)
		h.putWord(addr, uint64(h.handles[k]))
		h.globals[k.Symbol()] = addr
	}
}

func (h *Heap) dataTypeBody() uint32 {
	return abi.AlignTo(h.Layout.DataType.IsBitsType+1, h.Layout.WordSize)
}

// alloc reserves raw bytes that are never moved or freed.
func (h *Heap) alloc(size, align uint32) uint32 {
	if align == 0 {
		align = 1
	}
	p := abi.AlignTo(h.next, align)
	if uint64(p)+uint64(size) > uint64(h.Size()) {
		panic("heaptest: heap exhausted")
	}
	h.next = p + size
	return p
}

// object allocates a heap value of type t with a body of size bytes.
func (h *Heap) object(t jlvalue.Value, size uint32) jlvalue.Value {
	w := h.Layout.WordSize
	v := abi.AlignTo(h.next+w, 16)
	if uint64(v)+uint64(size) > uint64(h.Size()) {
		panic("heaptest: heap exhausted")
	}
	h.next = v + size
	val := jlvalue.Value(v)
	h.setHeader(val, t, 0)
	return val
}

func (h *Heap) setHeader(v, t jlvalue.Value, tag uint8) {
	h.putWord(uint32(v)-h.Layout.WordSize, uint64(t)|uint64(tag))
}

func (h *Heap) putWord(addr uint32, w uint64) {
	if err := h.Layout.WriteWord(h.Memory, addr, w); err != nil {
		panic(err)
	}
}

func (h *Heap) word(addr uint32) uint64 {
	w, err := h.Layout.ReadWord(h.Memory, addr)
	if err != nil {
		panic(err)
	}
	return w
}

func (h *Heap) value(addr uint32) jlvalue.Value {
	return jlvalue.Value(h.word(addr))
}

func (h *Heap) must(err error) {
	if err != nil {
		panic(err)
	}
}

// Alloc implements jlvalue.Allocator.
func (h *Heap) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	if uint64(abi.AlignTo(h.next, align))+uint64(size) > uint64(h.Size()) {
		return 0, fmt.Errorf("heaptest: cannot allocate %d bytes", size)
	}
	p := h.alloc(size, align)
	h.scratch[p] = size
	return p, nil
}

// Free implements jlvalue.Allocator.
func (h *Heap) Free(ctx context.Context, ptr, size, align uint32) {
	delete(h.scratch, ptr)
}

// Outstanding counts scratch allocations not yet freed.
func (h *Heap) Outstanding() int {
	return len(h.scratch)
}

// Lookup implements primitive.Symbols.
func (h *Heap) Lookup(name string) (uint32, bool) {
	addr, ok := h.globals[name]
	return addr, ok
}

// Alias exports the global behind name a second time under alias.
func (h *Heap) Alias(name, alias string) {
	h.globals[alias] = h.globals[name]
}

// Hide removes a global from the symbol table.
func (h *Heap) Hide(name string) {
	delete(h.globals, name)
}

// Handle returns the value a handle resolves to.
func (h *Heap) Handle(k primitive.Handle) jlvalue.Value {
	return h.handles[k]
}

func (h *Heap) Nothing() jlvalue.Value {
	return h.handles[primitive.Nothing]
}

// TypeOf reads v's type descriptor straight from its header.
func (h *Heap) TypeOf(v jlvalue.Value) jlvalue.Value {
	return jlvalue.Value(h.word(uint32(v)-h.Layout.WordSize) &^ h.Layout.TagMask())
}

// SetColor overwrites the collector color bits in v's header.
func (h *Heap) SetColor(v jlvalue.Value, color uint8) {
	h.setHeader(v, h.TypeOf(v), color&h.Layout.GCMask())
}

// Color returns the collector color bits in v's header.
func (h *Heap) Color(v jlvalue.Value) uint8 {
	return uint8(h.word(uint32(v)-h.Layout.WordSize)) & h.Layout.GCMask()
}

// Name returns the display name of a type descriptor.
func (h *Heap) Name(t jlvalue.Value) string {
	if n, ok := h.names[t]; ok {
		return n
	}
	return "?"
}

// Symbol interns name.
func (h *Heap) Symbol(name string) jlvalue.Value {
	if s, ok := h.symbols[name]; ok {
		return s
	}
	off := h.Layout.SymbolNameOffset()
	s := h.object(h.handles[primitive.SymbolType], off+uint32(len(name))+1)
	h.must(h.Write(s.Offset(off), append([]byte(name), 0)))
	h.symbols[name] = s
	return s
}

// String allocates a string holding s.
func (h *Heap) String(s string) jlvalue.Value {
	w := h.Layout.WordSize
	v := h.object(h.handles[primitive.StringType], w+uint32(len(s)))
	h.putWord(uint32(v), uint64(len(s)))
	h.must(h.Write(v.Offset(w), []byte(s)))
	return v
}

// SVec allocates a simple vector holding vals.
func (h *Heap) SVec(vals ...jlvalue.Value) jlvalue.Value {
	w := h.Layout.WordSize
	v := h.object(h.handles[primitive.SimpleVectorType], w+uint32(len(vals))*w)
	h.putWord(uint32(v), uint64(len(vals)))
	for i, x := range vals {
		h.putWord(h.Layout.SlotAddr(v, uint32(i)), uint64(x))
	}
	return v
}

func (h *Heap) symbolVec(names []string) jlvalue.Value {
	syms := make([]jlvalue.Value, len(names))
	for i, n := range names {
		syms[i] = h.Symbol(n)
	}
	return h.SVec(syms...)
}

func (h *Heap) newModule(name string) jlvalue.Value {
	m := h.object(h.handles[primitive.ModuleType], h.Layout.WordSize)
	h.putWord(uint32(m), uint64(h.Symbol(name)))
	return m
}

func (h *Heap) newTypeName(name string, fields []string) jlvalue.Value {
	l := h.Layout
	tn := h.object(h.handles[primitive.TypeNameType], 3*l.WordSize)
	h.putWord(l.Field(tn, l.TypeName.Name), uint64(h.Symbol(name)))
	h.putWord(l.Field(tn, l.TypeName.Module), uint64(h.handles[primitive.CoreModule]))
	if fields != nil {
		h.putWord(l.Field(tn, l.TypeName.Names), uint64(h.symbolVec(fields)))
	}
	return tn
}

// TypeSpec describes a data type to create.
type TypeSpec struct {
	Name string
	// TypeName places the type in an existing family. When zero the type
	// gets its own type name and Fields are recorded there.
	TypeName jlvalue.Value
	Params   []jlvalue.Value
	Fields   []string
	Types    []jlvalue.Value
	// LazyTypes leaves the field type vector unset until
	// jl_compute_fieldtypes is called.
	LazyTypes bool
	// NoLayout leaves the layout pointer null.
	NoLayout bool
	Size     uint32
	IsBits   bool
	Mutable  bool
}

// NewDataType allocates a type descriptor.
func (h *Heap) NewDataType(spec TypeSpec) jlvalue.Value {
	t := h.object(h.handles[primitive.DataTypeType], h.dataTypeBody())
	h.fillDataType(t, spec)
	return t
}

func (h *Heap) fillDataType(t jlvalue.Value, spec TypeSpec) {
	l := h.Layout
	dt := l.DataType

	tn := spec.TypeName
	if tn.IsNil() {
		tn = h.newTypeName(spec.Name, spec.Fields)
	} else if spec.Fields != nil {
		h.putWord(l.Field(t, dt.Names), uint64(h.symbolVec(spec.Fields)))
	}
	h.putWord(l.Field(t, dt.Name), uint64(tn))
	h.putWord(l.Field(t, dt.Parameters), uint64(h.SVec(spec.Params...)))

	if spec.Types != nil {
		types := h.SVec(spec.Types...)
		if spec.LazyTypes {
			h.pending[t] = types
		} else {
			h.putWord(l.Field(t, dt.Types), uint64(types))
		}
	}

	if !spec.NoLayout {
		n := len(spec.Fields)
		if len(spec.Types) > n {
			n = len(spec.Types)
		}
		lay := h.alloc(8, 8)
		h.must(h.WriteU32(lay+l.LayoutNFields, uint32(n)))
		h.putWord(l.Field(t, dt.Layout), uint64(lay))
	}

	h.must(h.WriteU32(l.Field(t, dt.Size), spec.Size))
	if spec.Mutable {
		h.must(h.WriteU8(l.Field(t, dt.Mutable), 1))
	}
	if spec.IsBits {
		h.must(h.WriteU8(l.Field(t, dt.IsBitsType), 1))
	}
	h.names[t] = spec.Name
}

// StructType creates a plain struct type whose fields are all references.
func (h *Heap) StructType(name string, fields []string, types []jlvalue.Value) jlvalue.Value {
	return h.NewDataType(TypeSpec{Name: name, Fields: fields, Types: types})
}

func (h *Heap) isBits(t jlvalue.Value) bool {
	b, err := h.ReadU8(h.Layout.Field(t, h.Layout.DataType.IsBitsType))
	h.must(err)
	return b != 0
}

func (h *Heap) sizeOf(t jlvalue.Value) uint32 {
	n, err := h.ReadU32(h.Layout.Field(t, h.Layout.DataType.Size))
	h.must(err)
	return n
}

func (h *Heap) params(t jlvalue.Value) []jlvalue.Value {
	return h.svecValues(h.value(h.Layout.Field(t, h.Layout.DataType.Parameters)))
}

func (h *Heap) svecValues(sv jlvalue.Value) []jlvalue.Value {
	if sv.IsNil() {
		return nil
	}
	n := h.word(uint32(sv))
	out := make([]jlvalue.Value, n)
	for i := range out {
		out[i] = h.value(h.Layout.SlotAddr(sv, uint32(i)))
	}
	return out
}

func (h *Heap) nfields(t jlvalue.Value) uint32 {
	lay := h.value(h.Layout.Field(t, h.Layout.DataType.Layout))
	if lay.IsNil() {
		return 0
	}
	n, err := h.ReadU32(lay.Offset(h.Layout.LayoutNFields))
	h.must(err)
	return n
}

func (h *Heap) fieldNames(t jlvalue.Value) []jlvalue.Value {
	l := h.Layout
	if names := h.value(l.Field(t, l.DataType.Names)); !names.IsNil() {
		return h.svecValues(names)
	}
	tn := h.value(l.Field(t, l.DataType.Name))
	return h.svecValues(h.value(l.Field(tn, l.TypeName.Names)))
}

func key(vals []jlvalue.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// TupleType returns the tuple type with the given element types.
func (h *Heap) TupleType(types ...jlvalue.Value) jlvalue.Value {
	k := key(types)
	if t, ok := h.tuples[k]; ok {
		return t
	}
	isbits := true
	var size uint32
	names := make([]string, len(types))
	for i, et := range types {
		names[i] = h.Name(et)
		if !h.isBits(et) {
			isbits = false
		}
		size += h.sizeOf(et)
	}
	t := h.NewDataType(TypeSpec{
		Name:     "Tuple{" + strings.Join(names, ", ") + "}",
		TypeName: h.handles[primitive.TupleTypeName],
		Params:   types,
		Types:    types,
		IsBits:   isbits,
		Size:     size,
	})
	h.tuples[k] = t
	return t
}

// NamedTupleType returns a named tuple type.
func (h *Heap) NamedTupleType(fields []string, types []jlvalue.Value) jlvalue.Value {
	inner := make([]string, len(fields))
	for i := range fields {
		inner[i] = fields[i] + "::" + h.Name(types[i])
	}
	return h.NewDataType(TypeSpec{
		Name:     "NamedTuple{" + strings.Join(inner, ", ") + "}",
		TypeName: h.handles[primitive.NamedTupleTypeName],
		Params:   []jlvalue.Value{h.symbolVec(fields), h.TupleType(types...)},
		Fields:   fields,
		Types:    types,
	})
}

// ArrayType returns the array type with element type elt and ndims
// dimensions.
func (h *Heap) ArrayType(elt jlvalue.Value, ndims int) jlvalue.Value {
	k := fmt.Sprintf("%s/%d", elt, ndims)
	if t, ok := h.arrays[k]; ok {
		return t
	}
	t := h.NewDataType(TypeSpec{
		Name:     fmt.Sprintf("Array{%s, %d}", h.Name(elt), ndims),
		TypeName: h.handles[primitive.ArrayTypeName],
		Params:   []jlvalue.Value{elt, h.BoxInt64(int64(ndims))},
		Mutable:  true,
	})
	h.arrays[k] = t
	return t
}

// NewArray allocates a zeroed array of type atype.
func (h *Heap) NewArray(atype jlvalue.Value, dims ...uint64) jlvalue.Value {
	elt := h.params(atype)[0]
	elsize := h.Layout.WordSize
	ptr := !h.isBits(elt)
	if !ptr {
		elsize = h.sizeOf(elt)
	}
	length := uint64(1)
	for _, d := range dims {
		length *= d
	}
	data := h.alloc(uint32(length)*elsize, 16)
	return h.arrayObject(atype, data, elsize, ptr, dims)
}

func (h *Heap) arrayObject(atype jlvalue.Value, data uint32, elsize uint32, ptr bool, dims []uint64) jlvalue.Value {
	l := h.Layout
	a := h.object(atype, l.Array.NRows+uint32(len(dims))*l.WordSize)
	length := uint64(1)
	for _, d := range dims {
		length *= d
	}
	flags := uint32(len(dims)) << l.Array.NDimsShift
	if ptr {
		flags |= 1 << l.Array.PtrArrayBit
	}
	h.putWord(l.Field(a, l.Array.Data), uint64(data))
	h.putWord(l.Field(a, l.Array.Length), length)
	h.must(h.WriteU16(l.Field(a, l.Array.Flags), uint16(flags)))
	h.must(h.WriteU16(l.Field(a, l.Array.ElSize), uint16(elsize)))
	for i, d := range dims {
		h.putWord(l.Field(a, l.Array.NRows+uint32(i)*l.WordSize), d)
	}
	return a
}

// NewStruct allocates an instance of t with the given field values.
// Every field is stored as a reference.
func (h *Heap) NewStruct(t jlvalue.Value, fields ...jlvalue.Value) jlvalue.Value {
	n := h.nfields(t)
	if uint32(len(fields)) > n {
		n = uint32(len(fields))
	}
	body := n * h.Layout.WordSize
	if body == 0 {
		body = h.Layout.WordSize
	}
	v := h.object(t, body)
	for i, f := range fields {
		h.putWord(v.Offset(uint32(i)*h.Layout.WordSize), uint64(f))
	}
	return v
}

// Tuple allocates a tuple of the given elements.
func (h *Heap) Tuple(elems ...jlvalue.Value) jlvalue.Value {
	types := make([]jlvalue.Value, len(elems))
	for i, e := range elems {
		types[i] = h.TypeOf(e)
	}
	return h.NewStruct(h.TupleType(types...), elems...)
}

// SetGlobal binds name in module to v.
func (h *Heap) SetGlobal(module jlvalue.Value, name string, v jlvalue.Value) {
	h.modGlobals[[2]jlvalue.Value{module, h.Symbol(name)}] = v
}

// SetEval makes jl_eval_string return v for src.
func (h *Heap) SetEval(src string, v jlvalue.Value) {
	h.evals[src] = v
}

// Function registers fn as a callable value.
func (h *Heap) Function(fn Func) jlvalue.Value {
	f := h.NewStruct(h.functionType)
	h.funcs[f] = fn
	return f
}

// Throw sets the pending exception to an ErrorException carrying msg.
func (h *Heap) Throw(msg string) jlvalue.Value {
	h.exception = h.NewStruct(h.errorType, h.String(msg))
	return h.exception
}

// Raise sets the pending exception to v.
func (h *Heap) Raise(v jlvalue.Value) {
	h.exception = v
}

func (h *Heap) Exception() jlvalue.Value {
	return h.exception
}

// GCEnabled reports the collector switch set through jl_gc_enable.
func (h *Heap) GCEnabled() bool {
	return !h.gcOff
}

func (h *Heap) ClearException() {
	h.exception = jlvalue.Nil
}

func (h *Heap) cstring(s string) uint32 {
	if p, ok := h.cstrings[s]; ok {
		return p
	}
	p := h.alloc(uint32(len(s))+1, 1)
	h.must(h.Write(p, append([]byte(s), 0)))
	h.cstrings[s] = p
	return p
}

func (h *Heap) readCString(p uint32) string {
	var b []byte
	for {
		c, err := h.ReadU8(p)
		h.must(err)
		if c == 0 {
			return string(b)
		}
		b = append(b, c)
		p++
	}
}
