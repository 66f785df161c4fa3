package convert

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/runtime"
	"github.com/wippyai/jlvalue/scalar"
)

const (
	DefaultMaxDepth = 64
	DefaultMaxElems = 1 << 16
)

type Decoder struct {
	rt *runtime.Runtime

	// MaxDepth bounds nesting; deeper containers are returned truncated.
	MaxDepth int
	// MaxElems bounds the children decoded per container.
	MaxElems int
}

func NewDecoder(rt *runtime.Runtime) *Decoder {
	return &Decoder{rt: rt, MaxDepth: DefaultMaxDepth, MaxElems: DefaultMaxElems}
}

type decodeState struct {
	seen map[jlvalue.Value]bool
}

// Decode converts the graph reachable from v. v must be rooted by the
// caller. Collection is paused during the walk because reading inline
// fields boxes them.
func (d *Decoder) Decode(ctx context.Context, v jlvalue.Value) (*Node, error) {
	st := &decodeState{seen: make(map[jlvalue.Value]bool)}
	var n *Node
	err := d.rt.WithGCPaused(ctx, func() error {
		var err error
		n, err = d.decode(ctx, st, v, 0, []string{"root"})
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Decoder) decode(ctx context.Context, st *decodeState, v jlvalue.Value, depth int, path []string) (*Node, error) {
	k := d.rt.Classifier().Classify(v)
	switch {
	case k == predicate.KindNull, k == predicate.KindNothing:
		return &Node{Kind: k}, nil
	case k.IsScalar():
		return d.unbox(ctx, k, v, path)
	}

	n := &Node{Kind: k, Addr: uint32(v)}
	switch k {
	case predicate.KindString:
		s, err := d.stringOf(v)
		if err != nil {
			return nil, withPath(err, path)
		}
		n.Str = s
		return n, nil
	case predicate.KindSymbol:
		s, err := d.symbolText(v)
		if err != nil {
			return nil, withPath(err, path)
		}
		n.Str = s
		return n, nil
	case predicate.KindDataType:
		s, err := d.rt.Primitives().TypenameStr(ctx, v)
		if err != nil {
			return nil, withPath(err, path)
		}
		n.Str = s
		return n, nil
	}

	n.Type = d.typeName(ctx, v)
	if st.seen[v] {
		return &Node{Kind: k, Type: n.Type, Ref: uint32(v)}, nil
	}
	st.seen[v] = true
	if depth >= d.MaxDepth {
		n.Truncated = true
		return n, nil
	}

	var err error
	switch k {
	case predicate.KindSimpleVector:
		err = d.svec(ctx, st, n, v, depth, path)
	case predicate.KindTuple:
		err = d.fields(ctx, st, n, v, depth, path, false)
	case predicate.KindNamedTuple, predicate.KindStruct:
		err = d.fields(ctx, st, n, v, depth, path, true)
	case predicate.KindArray:
		err = d.array(ctx, st, n, v, depth, path)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Decoder) typeName(ctx context.Context, v jlvalue.Value) string {
	s, err := d.rt.Primitives().TypeofStr(ctx, v)
	if err != nil {
		return ""
	}
	return s
}

func (d *Decoder) stringOf(v jlvalue.Value) (string, error) {
	sv, err := d.rt.Reader().String(v)
	if err != nil {
		return "", err
	}
	b, err := sv.Bytes(d.rt.Memory())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) symbolText(sym jlvalue.Value) (string, error) {
	return d.rt.Primitives().CString(d.rt.Reader().SymbolName(sym))
}

func (d *Decoder) unbox(ctx context.Context, k predicate.Kind, v jlvalue.Value, path []string) (*Node, error) {
	s := d.rt.Scalars()
	n := &Node{Kind: k}
	var err error
	switch k {
	case predicate.KindBool:
		n.Bool, err = s.UnboxBool(ctx, v)
	case predicate.KindChar:
		var r rune
		r, err = s.UnboxChar(ctx, v)
		n.Int = int64(r)
	case predicate.KindInt8:
		var x int8
		x, err = s.UnboxInt8(ctx, v)
		n.Int = int64(x)
	case predicate.KindInt16:
		var x int16
		x, err = s.UnboxInt16(ctx, v)
		n.Int = int64(x)
	case predicate.KindInt32:
		var x int32
		x, err = s.UnboxInt32(ctx, v)
		n.Int = int64(x)
	case predicate.KindInt64:
		n.Int, err = s.UnboxInt64(ctx, v)
	case predicate.KindUint8:
		var x uint8
		x, err = s.UnboxUint8(ctx, v)
		n.Uint = uint64(x)
	case predicate.KindUint16:
		var x uint16
		x, err = s.UnboxUint16(ctx, v)
		n.Uint = uint64(x)
	case predicate.KindUint32:
		var x uint32
		x, err = s.UnboxUint32(ctx, v)
		n.Uint = uint64(x)
	case predicate.KindUint64:
		n.Uint, err = s.UnboxUint64(ctx, v)
	case predicate.KindFloat32:
		var x float32
		x, err = s.UnboxFloat32(ctx, v)
		n.Float = float64(x)
	case predicate.KindFloat64:
		n.Float, err = s.UnboxFloat64(ctx, v)
	}
	if err != nil {
		return nil, withPath(err, path)
	}
	return n, nil
}

func (d *Decoder) limit(n *Node, count uint64) int {
	if count > uint64(d.MaxElems) {
		n.Truncated = true
		return d.MaxElems
	}
	return int(count)
}

func (d *Decoder) svec(ctx context.Context, st *decodeState, n *Node, v jlvalue.Value, depth int, path []string) error {
	sv, err := d.rt.Reader().SVec(v)
	if err != nil {
		return withPath(err, path)
	}
	count := d.limit(n, sv.Len)
	n.Elems = make([]*Node, count)
	for i := 0; i < count; i++ {
		slot, err := sv.At(d.rt.Memory(), i)
		if err != nil {
			return withPath(err, path)
		}
		if n.Elems[i], err = d.decode(ctx, st, slot, depth+1, index(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) fields(ctx context.Context, st *decodeState, n *Node, v jlvalue.Value, depth int, path []string, named bool) error {
	rd := d.rt.Reader()
	nf, err := rd.NFields(v)
	if err != nil {
		return withPath(err, path)
	}
	if named {
		if n.Names, err = d.fieldNames(v, int(nf)); err != nil {
			return withPath(err, path)
		}
	}
	count := d.limit(n, uint64(nf))
	n.Elems = make([]*Node, count)
	for i := 0; i < count; i++ {
		p := index(path, i)
		if named && i < len(n.Names) {
			p = append(path[:len(path):len(path)], "."+n.Names[i])
		}
		defined, err := rd.FieldIsDefined(ctx, v, i)
		if err != nil {
			return withPath(err, p)
		}
		if !defined {
			n.Elems[i] = &Node{Kind: predicate.KindNull}
			continue
		}
		f, err := rd.FieldRef(ctx, v, i)
		if err != nil {
			return withPath(err, p)
		}
		if n.Elems[i], err = d.decode(ctx, st, f, depth+1, p); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) fieldNames(v jlvalue.Value, nf int) ([]string, error) {
	rd := d.rt.Reader()
	sv, err := rd.FieldNames(d.rt.Header().TypeOf(v))
	if err != nil || sv.IsNil() {
		return nil, err
	}
	view, err := rd.SVec(sv)
	if err != nil {
		return nil, err
	}
	syms, err := view.Values(d.rt.Memory())
	if err != nil {
		return nil, err
	}
	if len(syms) > nf {
		syms = syms[:nf]
	}
	names := make([]string, len(syms))
	for i, s := range syms {
		if names[i], err = d.symbolText(s); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func (d *Decoder) array(ctx context.Context, st *decodeState, n *Node, v jlvalue.Value, depth int, path []string) error {
	view, err := d.rt.Reader().Array(v)
	if err != nil {
		return withPath(err, path)
	}
	n.Dims = view.Dims
	count := d.limit(n, view.Length)
	layout := d.rt.Layout()
	mem := d.rt.Memory()

	if view.PtrArray {
		n.Elems = make([]*Node, count)
		for i := 0; i < count; i++ {
			el, err := layout.ReadValue(mem, view.Data+uint32(i)*layout.WordSize)
			if err != nil {
				return withPath(err, index(path, i))
			}
			if n.Elems[i], err = d.decode(ctx, st, el, depth+1, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	}

	elt, err := d.rt.Primitives().ArrayEltype(ctx, v)
	if err != nil {
		return withPath(err, path)
	}
	k := d.rt.Classifier().TypeKind(elt)
	if !k.IsScalar() {
		// Inline structs have no per-element boxes to hand out.
		n.Truncated = count > 0
		return nil
	}
	n.Elems = make([]*Node, count)
	for i := 0; i < count; i++ {
		addr := view.Data + uint32(i)*uint32(view.ElSize)
		raw, err := mem.Read(addr, uint32(view.ElSize))
		if err != nil {
			return withPath(errors.MemoryFault(errors.PhaseConvert, addr, err), index(path, i))
		}
		n.Elems[i] = scalarNode(k, raw)
	}
	return nil
}

// scalarNode decodes an inline little-endian element.
func scalarNode(k predicate.Kind, raw []byte) *Node {
	var buf [8]byte
	copy(buf[:], raw)
	bits := binary.LittleEndian.Uint64(buf[:])
	n := &Node{Kind: k}
	switch k {
	case predicate.KindBool:
		n.Bool = bits&1 != 0
	case predicate.KindChar:
		n.Int = int64(scalar.CharRune(uint32(bits)))
	case predicate.KindInt8:
		n.Int = int64(int8(bits))
	case predicate.KindInt16:
		n.Int = int64(int16(bits))
	case predicate.KindInt32:
		n.Int = int64(int32(bits))
	case predicate.KindInt64:
		n.Int = int64(bits)
	case predicate.KindUint8, predicate.KindUint16, predicate.KindUint32, predicate.KindUint64:
		n.Uint = bits
	case predicate.KindFloat32:
		n.Float = float64(math.Float32frombits(uint32(bits)))
	case predicate.KindFloat64:
		n.Float = math.Float64frombits(bits)
	}
	return n
}

func index(path []string, i int) []string {
	return append(path[:len(path):len(path)], "["+strconv.Itoa(i)+"]")
}

// withPath attaches path to structured errors that do not carry one yet.
func withPath(err error, path []string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		cp := *e
		cp.Path = path
		return &cp
	}
	return err
}
