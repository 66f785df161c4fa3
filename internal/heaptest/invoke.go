package heaptest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/primitive"
)

type prim func(h *Heap, a []uint64) uint64

func val(a []uint64, i int) jlvalue.Value {
	if i >= len(a) {
		return jlvalue.Nil
	}
	return jlvalue.Value(api.DecodeU32(a[i]))
}

func u32(a []uint64, i int) uint32 {
	if i >= len(a) {
		return 0
	}
	return api.DecodeU32(a[i])
}

func ref(v jlvalue.Value) uint64 {
	return api.EncodeU32(uint32(v))
}

func boxer(k primitive.Handle, size uint32, conv func(uint64) uint64) prim {
	return func(h *Heap, a []uint64) uint64 {
		var x uint64
		if len(a) > 0 {
			x = a[0]
		}
		return ref(h.boxBits(h.handles[k], size, conv(x)))
	}
}

func unboxer(size uint32, conv func(uint64) uint64) prim {
	return func(h *Heap, a []uint64) uint64 {
		return conv(h.readBits(uint32(val(a, 0)), size))
	}
}

func raw(x uint64) uint64   { return x }
func low32(x uint64) uint64 { return uint64(api.DecodeU32(x)) }

func signExtend(bits uint) func(uint64) uint64 {
	return func(x uint64) uint64 {
		shift := 64 - bits
		return api.EncodeI32(int32(int64(x<<shift) >> shift))
	}
}

var prims = map[string]prim{
	primitive.BoxBool: func(h *Heap, a []uint64) uint64 {
		return ref(h.BoxBool(len(a) > 0 && api.DecodeI32(a[0])&0xff != 0))
	},
	primitive.UnboxBool:    unboxer(1, func(x uint64) uint64 { return api.EncodeI32(int32(x)) }),
	primitive.BoxChar:      boxer(primitive.CharType, 4, low32),
	primitive.BoxInt8:      boxer(primitive.Int8Type, 1, raw),
	primitive.UnboxInt8:    unboxer(1, signExtend(8)),
	primitive.BoxInt16:     boxer(primitive.Int16Type, 2, raw),
	primitive.UnboxInt16:   unboxer(2, signExtend(16)),
	primitive.BoxInt32:     boxer(primitive.Int32Type, 4, raw),
	primitive.UnboxInt32:   unboxer(4, signExtend(32)),
	primitive.BoxInt64:     boxer(primitive.Int64Type, 8, raw),
	primitive.UnboxInt64:   unboxer(8, raw),
	primitive.BoxUint8:     boxer(primitive.Uint8Type, 1, raw),
	primitive.UnboxUint8:   unboxer(1, raw),
	primitive.BoxUint16:    boxer(primitive.Uint16Type, 2, raw),
	primitive.UnboxUint16:  unboxer(2, raw),
	primitive.BoxUint32:    boxer(primitive.Uint32Type, 4, raw),
	primitive.UnboxUint32:  unboxer(4, raw),
	primitive.BoxUint64:    boxer(primitive.Uint64Type, 8, raw),
	primitive.UnboxUint64:  unboxer(8, raw),
	primitive.BoxFloat32:   boxer(primitive.Float32Type, 4, low32),
	primitive.UnboxFloat32: unboxer(4, raw),
	primitive.BoxFloat64:   boxer(primitive.Float64Type, 8, raw),
	primitive.UnboxFloat64: unboxer(8, raw),

	primitive.Call0: func(h *Heap, a []uint64) uint64 {
		return ref(h.apply(val(a, 0), nil))
	},
	primitive.Call1: func(h *Heap, a []uint64) uint64 {
		return ref(h.apply(val(a, 0), []jlvalue.Value{val(a, 1)}))
	},
	primitive.Call2: func(h *Heap, a []uint64) uint64 {
		return ref(h.apply(val(a, 0), []jlvalue.Value{val(a, 1), val(a, 2)}))
	},
	primitive.Call3: func(h *Heap, a []uint64) uint64 {
		return ref(h.apply(val(a, 0), []jlvalue.Value{val(a, 1), val(a, 2), val(a, 3)}))
	},
	primitive.CallN: func(h *Heap, a []uint64) uint64 {
		return ref(h.apply(val(a, 0), h.argv(u32(a, 1), u32(a, 2))))
	},
	primitive.ExceptionOccurred: func(h *Heap, a []uint64) uint64 {
		return ref(h.exception)
	},
	primitive.EvalString: func(h *Heap, a []uint64) uint64 {
		src := h.readCString(u32(a, 0))
		v, ok := h.evals[src]
		if !ok {
			h.Throw("UndefVarError: " + src)
			return 0
		}
		h.exception = jlvalue.Nil
		return ref(v)
	},

	primitive.SymbolN: func(h *Heap, a []uint64) uint64 {
		b, err := h.Read(u32(a, 0), u32(a, 1))
		h.must(err)
		return ref(h.Symbol(string(b)))
	},
	primitive.GetGlobal: func(h *Heap, a []uint64) uint64 {
		return ref(h.modGlobals[[2]jlvalue.Value{val(a, 0), val(a, 1)}])
	},
	primitive.SetGlobal: func(h *Heap, a []uint64) uint64 {
		h.modGlobals[[2]jlvalue.Value{val(a, 0), val(a, 1)}] = val(a, 2)
		return 0
	},

	primitive.FieldIndex: func(h *Heap, a []uint64) uint64 {
		i := h.fieldIndex(val(a, 0), val(a, 1))
		if i < 0 && u32(a, 2) != 0 {
			h.Throw("field not found")
		}
		return api.EncodeI32(int32(i))
	},
	primitive.GetNthField: func(h *Heap, a []uint64) uint64 {
		return ref(h.nthField(val(a, 0), u32(a, 1)))
	},
	primitive.GetNthFieldNoalloc: func(h *Heap, a []uint64) uint64 {
		return ref(h.nthField(val(a, 0), u32(a, 1)))
	},
	primitive.GetField: func(h *Heap, a []uint64) uint64 {
		v := val(a, 0)
		i := h.fieldIndex(h.TypeOf(v), h.Symbol(h.readCString(u32(a, 1))))
		if i < 0 {
			h.Throw("field not found")
			return 0
		}
		return ref(h.nthField(v, uint32(i)))
	},
	primitive.FieldIsDefined: func(h *Heap, a []uint64) uint64 {
		v := val(a, 0)
		i := u32(a, 1)
		if i >= h.nfields(h.TypeOf(v)) {
			return api.EncodeI32(0)
		}
		if h.value(v.Offset(i * h.Layout.WordSize)).IsNil() {
			return api.EncodeI32(0)
		}
		return api.EncodeI32(1)
	},
	primitive.ComputeFieldTypes: func(h *Heap, a []uint64) uint64 {
		t := val(a, 0)
		addr := h.Layout.Field(t, h.Layout.DataType.Types)
		if types, ok := h.pending[t]; ok {
			h.putWord(addr, uint64(types))
			delete(h.pending, t)
		}
		return ref(h.value(addr))
	},

	primitive.ApplyType: func(h *Heap, a []uint64) uint64 {
		tc := val(a, 0)
		params := h.argv(u32(a, 1), u32(a, 2))
		switch tc {
		case h.handles[primitive.TupleTypeName]:
			return ref(h.TupleType(params...))
		case h.handles[primitive.ArrayTypeName]:
			if len(params) == 2 {
				return ref(h.ArrayType(params[0], int(h.Int64(params[1]))))
			}
		}
		h.Throw("cannot apply type")
		return 0
	},
	primitive.NewStructv: func(h *Heap, a []uint64) uint64 {
		t := val(a, 0)
		fields := h.argv(u32(a, 1), u32(a, 2))
		if uint32(len(fields)) != h.nfields(t) {
			h.Throw("wrong number of fields")
			return 0
		}
		return ref(h.NewStruct(t, fields...))
	},
	primitive.TupleTypeFill: func(h *Heap, a []uint64) uint64 {
		n := u32(a, 0)
		types := make([]jlvalue.Value, n)
		for i := range types {
			types[i] = val(a, 1)
		}
		return ref(h.TupleType(types...))
	},
	primitive.ApplyTupleTypeV: func(h *Heap, a []uint64) uint64 {
		return ref(h.TupleType(h.argv(u32(a, 0), u32(a, 1))...))
	},
	primitive.NewStructUninit: func(h *Heap, a []uint64) uint64 {
		return ref(h.NewStruct(val(a, 0)))
	},

	primitive.ApplyArrayType: func(h *Heap, a []uint64) uint64 {
		return ref(h.ArrayType(val(a, 0), int(u32(a, 1))))
	},
	primitive.ArrayEltype: func(h *Heap, a []uint64) uint64 {
		return ref(h.params(h.TypeOf(val(a, 0)))[0])
	},
	primitive.AllocArray1d: func(h *Heap, a []uint64) uint64 {
		return ref(h.NewArray(val(a, 0), uint64(u32(a, 1))))
	},
	primitive.AllocArray2d: func(h *Heap, a []uint64) uint64 {
		return ref(h.NewArray(val(a, 0), uint64(u32(a, 1)), uint64(u32(a, 2))))
	},
	primitive.AllocArray3d: func(h *Heap, a []uint64) uint64 {
		return ref(h.NewArray(val(a, 0), uint64(u32(a, 1)), uint64(u32(a, 2)), uint64(u32(a, 3))))
	},
	primitive.NewArray: func(h *Heap, a []uint64) uint64 {
		tuple := val(a, 1)
		n := h.nfields(h.TypeOf(tuple))
		dims := make([]uint64, n)
		for i := range dims {
			dims[i] = uint64(h.Int64(h.nthField(tuple, uint32(i))))
		}
		return ref(h.NewArray(val(a, 0), dims...))
	},
	primitive.PtrToArray1d: func(h *Heap, a []uint64) uint64 {
		atype := val(a, 0)
		elt := h.params(atype)[0]
		elsize, ptr := h.Layout.WordSize, !h.isBits(elt)
		if !ptr {
			elsize = h.sizeOf(elt)
		}
		return ref(h.arrayObject(atype, u32(a, 1), elsize, ptr, []uint64{uint64(u32(a, 2))}))
	},

	primitive.PcharToString: func(h *Heap, a []uint64) uint64 {
		b, err := h.Read(u32(a, 0), u32(a, 1))
		h.must(err)
		return ref(h.String(string(b)))
	},
	primitive.TypeofStr: func(h *Heap, a []uint64) uint64 {
		return api.EncodeU32(h.cstring(h.Name(h.TypeOf(val(a, 0)))))
	},
	primitive.TypenameStr: func(h *Heap, a []uint64) uint64 {
		return api.EncodeU32(h.cstring(h.Name(val(a, 0))))
	},

	primitive.GCEnable: func(h *Heap, a []uint64) uint64 {
		prev := int32(1)
		if h.gcOff {
			prev = 0
		}
		h.gcOff = api.DecodeI32(a[0]) == 0
		return api.EncodeI32(prev)
	},
	primitive.GCQueueRoot: func(h *Heap, a []uint64) uint64 {
		h.Queued = append(h.Queued, val(a, 0))
		return 0
	},
}

// Invoke implements primitive.Invoker.
func (h *Heap) Invoke(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if err := h.Fail[name]; err != nil {
		return nil, err
	}
	p, ok := prims[name]
	if !ok {
		return nil, fmt.Errorf("heaptest: export %q not found", name)
	}
	h.Calls = append(h.Calls, name)
	if !h.gcOff && name != primitive.GCEnable {
		h.Collecting = append(h.Collecting, name)
	}
	return []uint64{p(h, args)}, nil
}

// Has reports whether the heap implements the named primitive.
func Has(name string) bool {
	_, ok := prims[name]
	return ok
}

func (h *Heap) argv(p, n uint32) []jlvalue.Value {
	out := make([]jlvalue.Value, n)
	for i := range out {
		out[i] = h.value(p + uint32(i)*h.Layout.WordSize)
	}
	return out
}

func (h *Heap) apply(f jlvalue.Value, args []jlvalue.Value) jlvalue.Value {
	fn, ok := h.funcs[f]
	if !ok {
		h.Throw("MethodError: objects of this type are not callable")
		return jlvalue.Nil
	}
	r, err := fn(args)
	if err != nil {
		h.Throw(err.Error())
		return jlvalue.Nil
	}
	h.exception = jlvalue.Nil
	return r
}

func (h *Heap) fieldIndex(t, sym jlvalue.Value) int {
	for i, n := range h.fieldNames(t) {
		if n == sym {
			return i
		}
	}
	return -1
}

func (h *Heap) nthField(v jlvalue.Value, i uint32) jlvalue.Value {
	if i >= h.nfields(h.TypeOf(v)) {
		h.Throw("BoundsError")
		return jlvalue.Nil
	}
	return h.value(v.Offset(i * h.Layout.WordSize))
}
