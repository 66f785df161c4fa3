package convert

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"fortio.org/safecast"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/runtime"
	"github.com/wippyai/jlvalue/scalar"
)

type Encoder struct {
	rt *runtime.Runtime
}

func NewEncoder(rt *runtime.Runtime) *Encoder {
	return &Encoder{rt: rt}
}

// Encode builds a heap value from x. Supported inputs are nil, scalars,
// scalar.Char, string, Symbol, Tuple, *Node, jlvalue.Value and slices of
// scalars or strings, which become one-dimensional arrays.
//
// Collection is paused while intermediate objects are referenced only from
// Go. The result is unrooted once Encode returns.
func (e *Encoder) Encode(ctx context.Context, x any) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := e.rt.WithGCPaused(ctx, func() error {
		var err error
		out, err = e.encode(ctx, x, []string{"root"})
		return err
	})
	if err != nil {
		return jlvalue.Nil, err
	}
	return out, nil
}

var charType = reflect.TypeOf(scalar.Char(0))

func (e *Encoder) encode(ctx context.Context, x any, path []string) (jlvalue.Value, error) {
	switch v := x.(type) {
	case nil:
		return e.rt.Handles().Get(primitive.Nothing)
	case jlvalue.Value:
		return v, nil
	case *Node:
		return e.encodeNode(ctx, v, path)
	case Symbol:
		return e.rt.Primitives().Symbol(ctx, string(v))
	case string:
		return e.rt.Primitives().String(ctx, []byte(v))
	case Tuple:
		return e.tuple(ctx, v, path)
	case bool, scalar.Char, int8, int16, int32, int64, int, uint8, uint16, uint32, uint64, uint, float32, float64:
		out, err := e.rt.Scalars().Box(ctx, v)
		return out, withPath(err, path)
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		et := rv.Type().Elem()
		if k, ok := kindOfGo(et); ok {
			return e.bitsArray(ctx, k, []uint64{uint64(rv.Len())}, rv.Len(), func(i int) uint64 {
				return goBits(k, rv.Index(i))
			}, path)
		}
		if et.Kind() == reflect.String {
			return e.refArray(ctx, primitive.StringType, []uint64{uint64(rv.Len())}, rv.Len(), func(i int) (jlvalue.Value, error) {
				return e.rt.Primitives().String(ctx, []byte(rv.Index(i).String()))
			}, path)
		}
	}
	return jlvalue.Nil, errors.New(errors.PhaseConvert, errors.KindUnsupported).
		Path(path...).
		GoType(fmt.Sprintf("%T", x)).
		Detail("no heap representation").
		Build()
}

func (e *Encoder) tuple(ctx context.Context, elems []any, path []string) (jlvalue.Value, error) {
	vals := make([]jlvalue.Value, len(elems))
	types := make([]jlvalue.Value, len(elems))
	for i, el := range elems {
		v, err := e.encode(ctx, el, index(path, i))
		if err != nil {
			return jlvalue.Nil, err
		}
		vals[i] = v
		types[i] = e.rt.Header().TypeOf(v)
	}
	tt, err := e.rt.Primitives().TupleType(ctx, types...)
	if err != nil {
		return jlvalue.Nil, withPath(err, path)
	}
	out, err := e.rt.Primitives().NewStruct(ctx, tt, vals...)
	if err != nil {
		return jlvalue.Nil, withPath(err, path)
	}
	if out.IsNil() {
		if err := e.rt.CheckException(ctx); err != nil {
			return jlvalue.Nil, err
		}
		return jlvalue.Nil, errors.InvalidData(errors.PhaseConvert, path, "tuple construction returned null")
	}
	return out, nil
}

// alloc allocates an array of element type elt with the given shape.
// Shapes of more than three dimensions go through a tuple of Int64 dims.
func (e *Encoder) alloc(ctx context.Context, elt jlvalue.Value, dims []uint64, path []string) (jlvalue.Value, error) {
	prims := e.rt.Primitives()
	atype, err := prims.ArrayType(ctx, elt, len(dims))
	if err != nil {
		return jlvalue.Nil, withPath(err, path)
	}
	if len(dims) <= 3 {
		small := make([]uint32, len(dims))
		for i, d := range dims {
			if small[i], err = safecast.Conv[uint32](d); err != nil {
				return jlvalue.Nil, errors.Overflow(errors.PhaseConvert, path, d, "uint32")
			}
		}
		out, err := prims.AllocArray(ctx, atype, small...)
		return out, withPath(err, path)
	}
	shape := make(Tuple, len(dims))
	for i, d := range dims {
		n, err := safecast.Conv[int64](d)
		if err != nil {
			return jlvalue.Nil, errors.Overflow(errors.PhaseConvert, path, d, "int64")
		}
		shape[i] = n
	}
	tv, err := e.tuple(ctx, shape, path)
	if err != nil {
		return jlvalue.Nil, err
	}
	out, err := prims.NewArray(ctx, atype, tv)
	return out, withPath(err, path)
}

func (e *Encoder) bitsArray(ctx context.Context, k predicate.Kind, dims []uint64, n int, bits func(int) uint64, path []string) (jlvalue.Value, error) {
	h, ok := k.Handle()
	if !ok {
		return jlvalue.Nil, errors.Unsupported(errors.PhaseConvert, "array of "+k.String())
	}
	elt, err := e.rt.Handles().Get(h)
	if err != nil {
		return jlvalue.Nil, err
	}
	arr, err := e.alloc(ctx, elt, dims, path)
	if err != nil {
		return jlvalue.Nil, err
	}
	view, err := e.rt.Reader().Array(arr)
	if err != nil {
		return jlvalue.Nil, withPath(err, path)
	}
	var buf [8]byte
	size := uint32(view.ElSize)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[:], bits(i))
		addr := view.Data + uint32(i)*size
		if err := e.rt.Memory().Write(addr, buf[:size]); err != nil {
			return jlvalue.Nil, errors.MemoryFault(errors.PhaseConvert, addr, err)
		}
	}
	return arr, nil
}

func (e *Encoder) refArray(ctx context.Context, h primitive.Handle, dims []uint64, n int, elem func(int) (jlvalue.Value, error), path []string) (jlvalue.Value, error) {
	elt, err := e.rt.Handles().Get(h)
	if err != nil {
		return jlvalue.Nil, err
	}
	arr, err := e.alloc(ctx, elt, dims, path)
	if err != nil {
		return jlvalue.Nil, err
	}
	for i := 0; i < n; i++ {
		child, err := elem(i)
		if err != nil {
			return jlvalue.Nil, withPath(err, index(path, i))
		}
		if err := e.rt.Barrier().StoreArrayRef(ctx, arr, i, child); err != nil {
			return jlvalue.Nil, withPath(err, index(path, i))
		}
	}
	return arr, nil
}

func (e *Encoder) encodeNode(ctx context.Context, n *Node, path []string) (jlvalue.Value, error) {
	if n == nil {
		return e.encode(ctx, nil, path)
	}
	if n.Ref != 0 {
		return jlvalue.Nil, errors.InvalidData(errors.PhaseConvert, path, "back reference cannot be rebuilt")
	}
	switch n.Kind {
	case predicate.KindNull:
		return jlvalue.Nil, nil
	case predicate.KindTuple:
		elems := make(Tuple, len(n.Elems))
		for i, el := range n.Elems {
			elems[i] = el
		}
		return e.tuple(ctx, elems, path)
	case predicate.KindArray:
		return e.nodeArray(ctx, n, path)
	case predicate.KindNothing, predicate.KindString, predicate.KindSymbol:
		return e.encode(ctx, n.Interface(), path)
	}
	if n.Kind.IsScalar() {
		return e.encode(ctx, n.Interface(), path)
	}
	return jlvalue.Nil, errors.New(errors.PhaseConvert, errors.KindUnsupported).
		Path(path...).
		RuntimeType(n.Kind.String()).
		Detail("cannot construct").
		Build()
}

func (e *Encoder) nodeArray(ctx context.Context, n *Node, path []string) (jlvalue.Value, error) {
	if len(n.Elems) == 0 {
		return jlvalue.Nil, errors.InvalidData(errors.PhaseConvert, path, "element type of an empty array is unknown")
	}
	dims := n.Dims
	if len(dims) == 0 {
		dims = []uint64{uint64(len(n.Elems))}
	}
	total := uint64(1)
	for _, d := range dims {
		total *= d
	}
	if total != uint64(len(n.Elems)) {
		return jlvalue.Nil, errors.InvalidData(errors.PhaseConvert, path,
			fmt.Sprintf("dims %v hold %d elements, have %d", dims, total, len(n.Elems)))
	}

	k := n.Elems[0].Kind
	for i, el := range n.Elems {
		if el.Kind != k {
			return jlvalue.Nil, errors.TypeMismatch(errors.PhaseConvert, index(path, i), el.Kind.String(), k.String())
		}
	}
	switch {
	case k.IsScalar():
		return e.bitsArray(ctx, k, dims, len(n.Elems), func(i int) uint64 {
			return nodeBits(n.Elems[i])
		}, path)
	case k == predicate.KindString:
		return e.refArray(ctx, primitive.StringType, dims, len(n.Elems), func(i int) (jlvalue.Value, error) {
			return e.rt.Primitives().String(ctx, []byte(n.Elems[i].Str))
		}, path)
	}
	return jlvalue.Nil, errors.Unsupported(errors.PhaseConvert, "array of "+k.String())
}

func kindOfGo(t reflect.Type) (predicate.Kind, bool) {
	if t == charType {
		return predicate.KindChar, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return predicate.KindBool, true
	case reflect.Int8:
		return predicate.KindInt8, true
	case reflect.Int16:
		return predicate.KindInt16, true
	case reflect.Int32:
		return predicate.KindInt32, true
	case reflect.Int64, reflect.Int:
		return predicate.KindInt64, true
	case reflect.Uint8:
		return predicate.KindUint8, true
	case reflect.Uint16:
		return predicate.KindUint16, true
	case reflect.Uint32:
		return predicate.KindUint32, true
	case reflect.Uint64, reflect.Uint:
		return predicate.KindUint64, true
	case reflect.Float32:
		return predicate.KindFloat32, true
	case reflect.Float64:
		return predicate.KindFloat64, true
	}
	return 0, false
}

func goBits(k predicate.Kind, v reflect.Value) uint64 {
	switch k {
	case predicate.KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case predicate.KindChar:
		return uint64(scalar.CharBits(rune(v.Int())))
	case predicate.KindInt8, predicate.KindInt16, predicate.KindInt32, predicate.KindInt64:
		return uint64(v.Int())
	case predicate.KindFloat32:
		return uint64(math.Float32bits(float32(v.Float())))
	case predicate.KindFloat64:
		return math.Float64bits(v.Float())
	}
	return v.Uint()
}

func nodeBits(n *Node) uint64 {
	switch n.Kind {
	case predicate.KindBool:
		if n.Bool {
			return 1
		}
		return 0
	case predicate.KindChar:
		return uint64(scalar.CharBits(rune(n.Int)))
	case predicate.KindInt8, predicate.KindInt16, predicate.KindInt32, predicate.KindInt64:
		return uint64(n.Int)
	case predicate.KindFloat32:
		return uint64(math.Float32bits(float32(n.Float)))
	case predicate.KindFloat64:
		return math.Float64bits(n.Float)
	}
	return n.Uint
}
