package reader

import (
	"context"

	"fortio.org/safecast"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/header"
	"github.com/wippyai/jlvalue/primitive"
)

// Reader interprets strings, symbols, vectors, arrays and struct fields at
// the offsets of one layout profile.
type Reader struct {
	dec    *header.Decoder
	rt     *primitive.Runtime
	mem    jlvalue.Memory
	layout abi.Layout
}

// New creates a reader sharing dec's memory and layout. rt serves the
// field accessors that need the runtime.
func New(dec *header.Decoder, rt *primitive.Runtime) *Reader {
	return &Reader{
		dec:    dec,
		rt:     rt,
		mem:    dec.Memory(),
		layout: dec.Layout(),
	}
}

// StringView is the byte range of a runtime string.
type StringView struct {
	Data uint32
	Len  uint64
}

// Bytes copies the string's bytes out of the heap.
func (s StringView) Bytes(mem jlvalue.Memory) ([]byte, error) {
	if s.Len == 0 {
		return nil, nil
	}
	n, err := safecast.Conv[uint32](s.Len)
	if err != nil {
		return nil, errors.Overflow(errors.PhaseDecode, []string{"string"}, s.Len, "uint32")
	}
	b, err := mem.Read(s.Data, n)
	if err != nil {
		return nil, errors.MemoryFault(errors.PhaseDecode, s.Data, err)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// String returns the data pointer and length of a string. The length is the
// word at v and the bytes follow it; there is no terminator.
func (r *Reader) String(v jlvalue.Value) (StringView, error) {
	if v.IsNil() {
		return StringView{}, nil
	}
	n, err := r.layout.ReadWord(r.mem, uint32(v))
	if err != nil {
		return StringView{}, err
	}
	return StringView{Data: v.Offset(r.layout.WordSize), Len: n}, nil
}

// SymbolName returns the address of a symbol's name bytes. No length is
// stored; symbols compare by identity, and callers that need the text scan
// for the terminating NUL themselves.
func (r *Reader) SymbolName(v jlvalue.Value) uint32 {
	if v.IsNil() {
		return 0
	}
	return v.Offset(r.layout.SymbolNameOffset())
}

// SVecView is a simple vector: Len slots starting at Data.
type SVecView struct {
	layout abi.Layout
	Len    uint64
	Data   uint32
}

// At reads slot i.
func (s SVecView) At(mem jlvalue.Memory, i int) (jlvalue.Value, error) {
	if i < 0 || uint64(i) >= s.Len {
		return jlvalue.Nil, errors.OutOfBounds(errors.PhaseDecode, []string{"svec"}, i, int(s.Len))
	}
	return s.layout.ReadValue(mem, s.Data+uint32(i)*s.layout.WordSize)
}

// Values reads every slot.
func (s SVecView) Values(mem jlvalue.Memory) ([]jlvalue.Value, error) {
	out := make([]jlvalue.Value, 0, s.Len)
	for i := 0; uint64(i) < s.Len; i++ {
		v, err := s.At(mem, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SVec returns the length and first slot of a simple vector.
func (r *Reader) SVec(v jlvalue.Value) (SVecView, error) {
	if v.IsNil() {
		return SVecView{layout: r.layout}, nil
	}
	n, err := r.layout.ReadWord(r.mem, uint32(v))
	if err != nil {
		return SVecView{}, err
	}
	return SVecView{layout: r.layout, Len: n, Data: v.Offset(r.layout.WordSize)}, nil
}

// ArrayView is the shape of an N-dimensional array.
type ArrayView struct {
	Dims     []uint64
	Length   uint64
	Dim0     uint64
	Data     uint32
	NDims    uint32
	Flags    uint16
	ElSize   uint16
	PtrArray bool
}

// Array decodes an array header. Dims holds NDims entries starting with
// Dim0; the dimensions beyond the first are read from the words following
// it.
func (r *Reader) Array(v jlvalue.Value) (ArrayView, error) {
	if v.IsNil() {
		return ArrayView{}, nil
	}
	l := r.layout
	data, err := l.ReadValue(r.mem, l.Field(v, l.Array.Data))
	if err != nil {
		return ArrayView{}, err
	}
	length, err := l.ReadWord(r.mem, l.Field(v, l.Array.Length))
	if err != nil {
		return ArrayView{}, err
	}
	flags, err := r.mem.ReadU16(l.Field(v, l.Array.Flags))
	if err != nil {
		return ArrayView{}, errors.MemoryFault(errors.PhaseDecode, l.Field(v, l.Array.Flags), err)
	}
	elsize, err := r.mem.ReadU16(l.Field(v, l.Array.ElSize))
	if err != nil {
		return ArrayView{}, errors.MemoryFault(errors.PhaseDecode, l.Field(v, l.Array.ElSize), err)
	}

	ndims := uint32(flags) >> l.Array.NDimsShift & l.Array.NDimsMask
	view := ArrayView{
		Data:     uint32(data),
		Length:   length,
		NDims:    ndims,
		Flags:    flags,
		ElSize:   elsize,
		PtrArray: uint32(flags)>>l.Array.PtrArrayBit&1 == 1,
		Dims:     make([]uint64, ndims),
	}
	for i := uint32(0); i < ndims; i++ {
		d, err := l.ReadWord(r.mem, l.Field(v, l.Array.NRows+i*l.WordSize))
		if err != nil {
			return ArrayView{}, err
		}
		view.Dims[i] = d
	}
	view.Dim0, err = l.ReadWord(r.mem, l.Field(v, l.Array.NRows))
	if err != nil {
		return ArrayView{}, err
	}
	return view, nil
}

// ArrayData returns only the data pointer of an array.
func (r *Reader) ArrayData(v jlvalue.Value) (uint32, error) {
	if v.IsNil() {
		return 0, nil
	}
	d, err := r.layout.ReadValue(r.mem, r.layout.Field(v, r.layout.Array.Data))
	return uint32(d), err
}

// TypeName returns the type name object of data type t.
func (r *Reader) TypeName(t jlvalue.Value) (jlvalue.Value, error) {
	if t.IsNil() {
		return jlvalue.Nil, nil
	}
	return r.layout.ReadValue(r.mem, r.layout.Field(t, r.layout.DataType.Name))
}

// TypeNameSymbol returns the name symbol of type name tn.
func (r *Reader) TypeNameSymbol(tn jlvalue.Value) (jlvalue.Value, error) {
	if tn.IsNil() {
		return jlvalue.Nil, nil
	}
	return r.layout.ReadValue(r.mem, r.layout.Field(tn, r.layout.TypeName.Name))
}

// Parameters returns the parameter vector of data type t.
func (r *Reader) Parameters(t jlvalue.Value) (jlvalue.Value, error) {
	if t.IsNil() {
		return jlvalue.Nil, nil
	}
	return r.layout.ReadValue(r.mem, r.layout.Field(t, r.layout.DataType.Parameters))
}

// IsBitsType reads the bits-type flag of data type t.
func (r *Reader) IsBitsType(t jlvalue.Value) (bool, error) {
	if t.IsNil() {
		return false, nil
	}
	addr := r.layout.Field(t, r.layout.DataType.IsBitsType)
	b, err := r.mem.ReadU8(addr)
	if err != nil {
		return false, errors.MemoryFault(errors.PhaseDecode, addr, err)
	}
	return b != 0, nil
}

// IsMutableType reads the mutability flag of data type t.
func (r *Reader) IsMutableType(t jlvalue.Value) (bool, error) {
	if t.IsNil() {
		return false, nil
	}
	addr := r.layout.Field(t, r.layout.DataType.Mutable)
	b, err := r.mem.ReadU8(addr)
	if err != nil {
		return false, errors.MemoryFault(errors.PhaseDecode, addr, err)
	}
	return b != 0, nil
}

// DataTypeNFields returns the field count from t's layout; 0 when the type
// has no layout yet.
func (r *Reader) DataTypeNFields(t jlvalue.Value) (uint32, error) {
	if t.IsNil() {
		return 0, nil
	}
	lay, err := r.layout.ReadValue(r.mem, r.layout.Field(t, r.layout.DataType.Layout))
	if err != nil || lay.IsNil() {
		return 0, err
	}
	addr := lay.Offset(r.layout.LayoutNFields)
	n, err := r.mem.ReadU32(addr)
	if err != nil {
		return 0, errors.MemoryFault(errors.PhaseDecode, addr, err)
	}
	return n, nil
}

// NFields returns the field count of v's type.
func (r *Reader) NFields(v jlvalue.Value) (uint32, error) {
	if v.IsNil() {
		return 0, nil
	}
	return r.DataTypeNFields(r.dec.TypeOf(v))
}

// FieldTypes returns the field type vector of t. When the runtime has not
// computed it yet the field is null, and the runtime is asked to compute
// it; caching the result is the runtime's business.
func (r *Reader) FieldTypes(ctx context.Context, t jlvalue.Value) (jlvalue.Value, error) {
	if t.IsNil() {
		return jlvalue.Nil, nil
	}
	types, err := r.layout.ReadValue(r.mem, r.layout.Field(t, r.layout.DataType.Types))
	if err != nil {
		return jlvalue.Nil, err
	}
	if !types.IsNil() {
		return types, nil
	}
	return r.rt.ComputeFieldTypes(ctx, t)
}

// FieldNames returns the field name vector of t, falling back to the names
// recorded on its type name.
func (r *Reader) FieldNames(t jlvalue.Value) (jlvalue.Value, error) {
	if t.IsNil() {
		return jlvalue.Nil, nil
	}
	names, err := r.layout.ReadValue(r.mem, r.layout.Field(t, r.layout.DataType.Names))
	if err != nil || !names.IsNil() {
		return names, err
	}
	tn, err := r.TypeName(t)
	if err != nil || tn.IsNil() {
		return jlvalue.Nil, err
	}
	return r.layout.ReadValue(r.mem, r.layout.Field(tn, r.layout.TypeName.Names))
}

// FieldRef returns field i of a struct or tuple instance, boxing inline
// fields. v must be a valid instance.
func (r *Reader) FieldRef(ctx context.Context, v jlvalue.Value, i int) (jlvalue.Value, error) {
	return r.rt.GetNthField(ctx, v, i)
}

// FieldRefNoalloc returns reference field i without allocating.
func (r *Reader) FieldRefNoalloc(ctx context.Context, v jlvalue.Value, i int) (jlvalue.Value, error) {
	return r.rt.GetNthFieldNoalloc(ctx, v, i)
}

// FieldIsDefined reports whether field i of v has been assigned.
func (r *Reader) FieldIsDefined(ctx context.Context, v jlvalue.Value, i int) (bool, error) {
	return r.rt.FieldIsDefined(ctx, v, i)
}

// FieldIndex returns the index of the field called name in type t, or -1.
func (r *Reader) FieldIndex(ctx context.Context, t jlvalue.Value, name string) (int, error) {
	sym, err := r.rt.Symbol(ctx, name)
	if err != nil {
		return -1, err
	}
	return r.rt.FieldIndex(ctx, t, sym, false)
}
