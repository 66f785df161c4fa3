package convert

import (
	"context"
	stderrors "errors"
	"math"
	"reflect"
	"testing"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/internal/heaptest"
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/runtime"
	"github.com/wippyai/jlvalue/scalar"
)

type env struct {
	h   *heaptest.Heap
	rt  *runtime.Runtime
	dec *Decoder
	enc *Encoder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	h := heaptest.New()
	rt, err := runtime.New(runtime.Parts{Invoker: h, Memory: h, Allocator: h, Symbols: h, Layout: h.Layout})
	if err != nil {
		t.Fatal(err)
	}
	return &env{h: h, rt: rt, dec: NewDecoder(rt), enc: NewEncoder(rt)}
}

func (e *env) decode(t *testing.T, v jlvalue.Value) *Node {
	t.Helper()
	n, err := e.dec.Decode(context.Background(), v)
	if err != nil {
		t.Fatalf("Decode(%#x) = %v", v, err)
	}
	return n
}

func TestDecodeScalars(t *testing.T) {
	e := newEnv(t)
	h := e.h
	tests := []struct {
		name string
		v    jlvalue.Value
		want any
	}{
		{"true", h.BoxBool(true), true},
		{"char", h.BoxChar('λ'), scalar.Char('λ')},
		{"int8", h.BoxInt8(-8), int8(-8)},
		{"int16", h.BoxInt16(-1600), int16(-1600)},
		{"int32", h.BoxInt32(math.MinInt32), int32(math.MinInt32)},
		{"int64", h.BoxInt64(-1 << 40), int64(-1 << 40)},
		{"uint8", h.BoxUint8(200), uint8(200)},
		{"uint16", h.BoxUint16(65535), uint16(65535)},
		{"uint32", h.BoxUint32(math.MaxUint32), uint32(math.MaxUint32)},
		{"uint64", h.BoxUint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float32", h.BoxFloat32(1.5), float32(1.5)},
		{"float64", h.BoxFloat64(-0.25), -0.25},
		{"nothing", h.Nothing(), nil},
		{"null", jlvalue.Nil, nil},
		{"string", h.String("héllo"), "héllo"},
		{"symbol", h.Symbol("sym"), Symbol("sym")},
		{"datatype", h.Handle(primitive.Int64Type), TypeRef("Int64")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.decode(t, tt.v).Interface()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Interface() = %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecodeStruct(t *testing.T) {
	e := newEnv(t)
	h := e.h
	i64 := h.Handle(primitive.Int64Type)
	point := h.StructType("Point", []string{"x", "y"}, []jlvalue.Value{i64, i64})
	p := h.NewStruct(point, h.BoxInt64(3), h.BoxInt64(4))

	n := e.decode(t, p)
	if n.Kind != predicate.KindStruct || n.Type != "Point" || n.Addr != uint32(p) {
		t.Fatalf("node = %+v", n)
	}
	if !reflect.DeepEqual(n.Names, []string{"x", "y"}) {
		t.Errorf("names = %v", n.Names)
	}
	s := n.Interface().(*Struct)
	if y, ok := s.Get("y"); !ok || y != int64(4) {
		t.Errorf("Get(y) = %v, %v", y, ok)
	}
	if _, ok := s.Get("z"); ok {
		t.Error("Get(z) succeeded")
	}
}

func TestDecodeUndefinedField(t *testing.T) {
	e := newEnv(t)
	h := e.h
	box := h.StructType("Box", []string{"content"}, []jlvalue.Value{h.Handle(primitive.StringType)})
	n := e.decode(t, h.NewStruct(box))
	if len(n.Elems) != 1 || n.Elems[0].Kind != predicate.KindNull {
		t.Errorf("elems = %+v", n.Elems)
	}
}

func TestDecodeTuples(t *testing.T) {
	e := newEnv(t)
	h := e.h

	tup := e.decode(t, h.Tuple(h.BoxInt64(1), h.String("two")))
	if got, want := tup.Interface(), (Tuple{int64(1), "two"}); !reflect.DeepEqual(got, want) {
		t.Errorf("tuple = %#v", got)
	}
	if tup.Names != nil {
		t.Errorf("tuple has names %v", tup.Names)
	}

	ntT := h.NamedTupleType([]string{"a", "b"}, []jlvalue.Value{h.Handle(primitive.StringType), h.Handle(primitive.BoolType)})
	nt := e.decode(t, h.NewStruct(ntT, h.String("x"), h.BoxBool(false)))
	if nt.Kind != predicate.KindNamedTuple {
		t.Fatalf("kind = %s", nt.Kind)
	}
	s := nt.Interface().(*Struct)
	if a, _ := s.Get("a"); a != "x" {
		t.Errorf("a = %v", a)
	}
	if b, ok := s.Get("b"); !ok || b != false {
		t.Errorf("b = %v, %v", b, ok)
	}
}

func TestDecodeSVec(t *testing.T) {
	e := newEnv(t)
	h := e.h
	n := e.decode(t, h.SVec(h.BoxInt64(5), jlvalue.Nil, h.Symbol("k")))
	got := n.Interface()
	want := []any{int64(5), nil, Symbol("k")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("svec = %#v", got)
	}
}

func TestDecodeBitsArray(t *testing.T) {
	e := newEnv(t)
	h := e.h
	a := h.NewArray(h.ArrayType(h.Handle(primitive.Float64Type), 2), 2, 3)
	data, err := e.rt.Reader().ArrayData(a)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 6; i++ {
		if err := h.WriteU64(data+8*i, math.Float64bits(float64(i)/2)); err != nil {
			t.Fatal(err)
		}
	}

	n := e.decode(t, a)
	arr := n.Interface().(*Array)
	if !reflect.DeepEqual(arr.Dims, []uint64{2, 3}) {
		t.Errorf("dims = %v", arr.Dims)
	}
	want := []any{0.0, 0.5, 1.0, 1.5, 2.0, 2.5}
	if !reflect.DeepEqual(arr.Elems, want) {
		t.Errorf("elems = %v", arr.Elems)
	}
}

func TestDecodeRefArray(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	h := e.h
	a := h.NewArray(h.ArrayType(h.Handle(primitive.StringType), 1), 2)
	for i, s := range []string{"p", "q"} {
		if err := e.rt.Barrier().StoreArrayRef(ctx, a, i, h.String(s)); err != nil {
			t.Fatal(err)
		}
	}
	arr := e.decode(t, a).Interface().(*Array)
	if !reflect.DeepEqual(arr.Elems, []any{"p", "q"}) {
		t.Errorf("elems = %v", arr.Elems)
	}
}

func TestDecodeCycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	h := e.h
	sv := h.SVec(jlvalue.Nil, h.BoxInt64(1))
	if err := e.rt.Barrier().StoreSVecSlot(ctx, sv, 0, sv); err != nil {
		t.Fatal(err)
	}
	n := e.decode(t, sv)
	if n.Elems[0].Ref != uint32(sv) {
		t.Errorf("self slot = %+v, want ref %#x", n.Elems[0], sv)
	}
	if got := n.Interface().([]any)[0]; got != Ref(sv) {
		t.Errorf("Interface()[0] = %#v", got)
	}
}

func TestDecodeLimits(t *testing.T) {
	e := newEnv(t)
	h := e.h
	inner := h.Tuple(h.BoxInt64(1))
	outer := h.Tuple(inner)

	e.dec.MaxDepth = 1
	n := e.decode(t, outer)
	if n.Truncated || len(n.Elems) != 1 || !n.Elems[0].Truncated || n.Elems[0].Elems != nil {
		t.Errorf("depth limit: %+v / %+v", n, n.Elems[0])
	}

	e.dec.MaxDepth = DefaultMaxDepth
	e.dec.MaxElems = 2
	n = e.decode(t, h.SVec(h.BoxInt64(1), h.BoxInt64(2), h.BoxInt64(3)))
	if !n.Truncated || len(n.Elems) != 2 {
		t.Errorf("elem limit: truncated=%v elems=%d", n.Truncated, len(n.Elems))
	}
}

func TestDecodeOpaque(t *testing.T) {
	e := newEnv(t)
	m := e.h.Handle(primitive.MainModule)
	got := e.decode(t, m).Interface()
	op, ok := got.(Opaque)
	if !ok || op.Kind != predicate.KindModule || op.Addr != uint32(m) || op.Type != "Module" {
		t.Errorf("Interface() = %#v", got)
	}
}

func TestNodeWalk(t *testing.T) {
	e := newEnv(t)
	h := e.h
	n := e.decode(t, h.Tuple(h.Tuple(h.BoxInt64(1)), h.BoxInt64(2)))
	var depths []int
	n.Walk(func(_ *Node, d int) bool {
		depths = append(depths, d)
		return true
	})
	if !reflect.DeepEqual(depths, []int{0, 1, 2, 1}) {
		t.Errorf("depths = %v", depths)
	}
	count := 0
	n.Walk(func(_ *Node, d int) bool {
		count++
		return d < 1
	})
	if count != 3 {
		t.Errorf("pruned walk visited %d nodes, want 3", count)
	}
}

func (e *env) roundTrip(t *testing.T, x any) any {
	t.Helper()
	v, err := e.enc.Encode(context.Background(), x)
	if err != nil {
		t.Fatalf("Encode(%#v) = %v", x, err)
	}
	return e.decode(t, v).Interface()
}

func TestEncodeScalars(t *testing.T) {
	e := newEnv(t)
	for _, x := range []any{
		true, false, scalar.Char('€'),
		int8(-128), int16(300), int32(-7), int64(math.MaxInt64),
		uint8(255), uint16(1), uint32(1 << 31), uint64(math.MaxUint64),
		float32(3.25), math.Pi,
		"text", Symbol("name"),
		Tuple{int64(1), "two", Symbol("three"), Tuple{false}},
	} {
		if got := e.roundTrip(t, x); !reflect.DeepEqual(got, x) {
			t.Errorf("round trip %#v = %#v", x, got)
		}
	}
	if got := e.roundTrip(t, 7); got != int64(7) {
		t.Errorf("int boxes as %#v", got)
	}
	if got := e.roundTrip(t, nil); got != nil {
		t.Errorf("nil = %#v", got)
	}
	if e.h.Outstanding() != 0 {
		t.Errorf("%d scratch allocations leaked", e.h.Outstanding())
	}
}

func TestEncodeValueAndSymbolIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	v := e.h.BoxInt64(9)
	if got, err := e.enc.Encode(ctx, v); err != nil || got != v {
		t.Errorf("Encode(Value) = %#x, %v", got, err)
	}
	sym, err := e.enc.Encode(ctx, Symbol("interned"))
	if err != nil || sym != e.h.Symbol("interned") {
		t.Errorf("Encode(Symbol) = %#x, %v", sym, err)
	}
}

func TestEncodeSlices(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		in   any
		want []any
	}{
		{[]float64{1.5, -2}, []any{1.5, -2.0}},
		{[]int8{-1, 2}, []any{int8(-1), int8(2)}},
		{[]byte("hi"), []any{uint8('h'), uint8('i')}},
		{[]bool{true, false}, []any{true, false}},
		{[]scalar.Char{'a', 'ß'}, []any{scalar.Char('a'), scalar.Char('ß')}},
		{[3]uint16{1, 2, 3}, []any{uint16(1), uint16(2), uint16(3)}},
		{[]int{4}, []any{int64(4)}},
		{[]string{"a", "bc"}, []any{"a", "bc"}},
	}
	for _, tt := range tests {
		arr, ok := e.roundTrip(t, tt.in).(*Array)
		if !ok {
			t.Fatalf("%T did not decode to an array", tt.in)
		}
		if !reflect.DeepEqual(arr.Elems, tt.want) {
			t.Errorf("%T elems = %#v, want %#v", tt.in, arr.Elems, tt.want)
		}
		if len(arr.Dims) != 1 || arr.Dims[0] != uint64(len(tt.want)) {
			t.Errorf("%T dims = %v", tt.in, arr.Dims)
		}
	}
}

func TestEncodeNodeArrays(t *testing.T) {
	e := newEnv(t)
	ints := func(n int) []*Node {
		out := make([]*Node, n)
		for i := range out {
			out[i] = &Node{Kind: predicate.KindInt32, Int: int64(i - 1)}
		}
		return out
	}

	for _, dims := range [][]uint64{{4}, {2, 2}, {1, 2, 2}, {1, 1, 2, 2}} {
		n := &Node{Kind: predicate.KindArray, Dims: dims, Elems: ints(4)}
		arr, ok := e.roundTrip(t, n).(*Array)
		if !ok {
			t.Fatalf("dims %v: not an array", dims)
		}
		if !reflect.DeepEqual(arr.Dims, dims) {
			t.Errorf("dims = %v, want %v", arr.Dims, dims)
		}
		if !reflect.DeepEqual(arr.Elems, []any{int32(-1), int32(0), int32(1), int32(2)}) {
			t.Errorf("dims %v elems = %v", dims, arr.Elems)
		}
	}

	strs := &Node{Kind: predicate.KindArray, Elems: []*Node{
		{Kind: predicate.KindString, Str: "x"},
		{Kind: predicate.KindString, Str: "y"},
	}}
	if arr := e.roundTrip(t, strs).(*Array); !reflect.DeepEqual(arr.Elems, []any{"x", "y"}) {
		t.Errorf("string elems = %v", arr.Elems)
	}
}

func TestEncodeDecodedTree(t *testing.T) {
	e := newEnv(t)
	h := e.h
	src := h.Tuple(h.BoxFloat32(2.5), h.String("s"), h.Nothing())
	n := e.decode(t, src)
	got := e.roundTrip(t, n)
	if !reflect.DeepEqual(got, n.Interface()) {
		t.Errorf("re-encoded = %#v, want %#v", got, n.Interface())
	}
}

func TestEncodeErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	tests := []struct {
		name string
		in   any
		kind errors.Kind
	}{
		{"map", map[string]int{"a": 1}, errors.KindUnsupported},
		{"slice of any", []any{1}, errors.KindUnsupported},
		{"struct node", &Node{Kind: predicate.KindStruct}, errors.KindUnsupported},
		{"ref node", &Node{Kind: predicate.KindTuple, Ref: 64}, errors.KindInvalidData},
		{"empty array", &Node{Kind: predicate.KindArray}, errors.KindInvalidData},
		{"bad dims", &Node{Kind: predicate.KindArray, Dims: []uint64{3}, Elems: []*Node{{Kind: predicate.KindBool}}}, errors.KindInvalidData},
		{"mixed array", &Node{Kind: predicate.KindArray, Elems: []*Node{
			{Kind: predicate.KindBool}, {Kind: predicate.KindInt64},
		}}, errors.KindTypeMismatch},
		{"nested", Tuple{int64(1), map[int]int{}}, errors.KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.enc.Encode(ctx, tt.in)
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConvert, Kind: tt.kind}) {
				t.Errorf("Encode() = %v, want %s", err, tt.kind)
			}
		})
	}

	_, err := e.enc.Encode(ctx, Tuple{int64(1), map[int]int{}})
	var se *errors.Error
	if !stderrors.As(err, &se) || !reflect.DeepEqual(se.Path, []string{"root", "[1]"}) {
		t.Errorf("nested error path = %v", err)
	}
}

func TestConversionPausesCollection(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	h := e.h

	inputs := []any{
		[]string{"a", "b", "c"},
		Tuple{int64(1), "two", Symbol("three")},
		[]float64{1, 2},
	}
	for _, x := range inputs {
		h.Collecting = nil
		if _, err := e.enc.Encode(ctx, x); err != nil {
			t.Fatalf("Encode(%v): %v", x, err)
		}
		if len(h.Collecting) != 0 {
			t.Errorf("Encode(%v) allocated with collection on: %v", x, h.Collecting)
		}
		if !h.GCEnabled() {
			t.Fatalf("Encode(%v) left collection off", x)
		}
	}

	str := h.Handle(primitive.StringType)
	pt := h.StructType("Pair", []string{"a", "b"}, []jlvalue.Value{str, str})
	v := h.NewStruct(pt, h.String("x"), h.String("y"))
	h.Collecting = nil
	e.decode(t, v)
	if len(h.Collecting) != 0 {
		t.Errorf("Decode called %v with collection on", h.Collecting)
	}
	if !h.GCEnabled() {
		t.Error("Decode left collection off")
	}
}
