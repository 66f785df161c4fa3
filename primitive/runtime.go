package primitive

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
)

// Invoker calls an exported entry point of the runtime image using the
// wasm calling convention (every parameter and result is a uint64 slot).
type Invoker interface {
	Invoke(ctx context.Context, name string, args ...uint64) ([]uint64, error)
}

// maxCStringLen bounds scans of NUL-terminated strings returned by the
// runtime.
const maxCStringLen = 1 << 16

// Runtime exposes the runtime image's call primitives with host types.
// A Runtime is not safe for concurrent use.
type Runtime struct {
	inv    Invoker
	mem    jlvalue.Memory
	alloc  jlvalue.Allocator
	layout abi.Layout
}

func NewRuntime(inv Invoker, mem jlvalue.Memory, alloc jlvalue.Allocator, layout abi.Layout) *Runtime {
	return &Runtime{inv: inv, mem: mem, alloc: alloc, layout: layout}
}

// Invoker returns the underlying call mechanism.
func (r *Runtime) Invoker() Invoker {
	return r.inv
}

func (r *Runtime) call(ctx context.Context, name string, args ...uint64) (uint64, error) {
	results, err := r.inv.Invoke(ctx, name, args...)
	if err != nil {
		return 0, errors.CallFailed(name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

func (r *Runtime) callValue(ctx context.Context, name string, args ...uint64) (jlvalue.Value, error) {
	res, err := r.call(ctx, name, args...)
	if err != nil {
		return jlvalue.Nil, err
	}
	return jlvalue.Value(api.DecodeU32(res)), nil
}

func ptr(v jlvalue.Value) uint64 {
	return api.EncodeU32(uint32(v))
}

// QueueRoot reports parent to the collector's remembered set.
func (r *Runtime) QueueRoot(ctx context.Context, parent jlvalue.Value) error {
	_, err := r.call(ctx, GCQueueRoot, ptr(parent))
	return err
}

// GCEnable switches collection on or off and reports whether it was on
// before the call.
func (r *Runtime) GCEnable(ctx context.Context, on bool) (bool, error) {
	var flag int32
	if on {
		flag = 1
	}
	res, err := r.call(ctx, GCEnable, api.EncodeI32(flag))
	if err != nil {
		return false, err
	}
	return api.DecodeI32(res) != 0, nil
}

// ExceptionOccurred returns the pending exception, or Nil when there is none.
// The value is not interpreted.
func (r *Runtime) ExceptionOccurred(ctx context.Context) (jlvalue.Value, error) {
	return r.callValue(ctx, ExceptionOccurred)
}

// EvalString evaluates src in the Main module.
func (r *Runtime) EvalString(ctx context.Context, src string) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withBytes(ctx, []byte(src), true, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, EvalString, api.EncodeU32(p))
		return err
	})
	return out, err
}

// Call applies f to args, using the fixed-arity entry points when they fit.
func (r *Runtime) Call(ctx context.Context, f jlvalue.Value, args ...jlvalue.Value) (jlvalue.Value, error) {
	switch len(args) {
	case 0:
		return r.callValue(ctx, Call0, ptr(f))
	case 1:
		return r.callValue(ctx, Call1, ptr(f), ptr(args[0]))
	case 2:
		return r.callValue(ctx, Call2, ptr(f), ptr(args[0]), ptr(args[1]))
	case 3:
		return r.callValue(ctx, Call3, ptr(f), ptr(args[0]), ptr(args[1]), ptr(args[2]))
	}
	var out jlvalue.Value
	err := r.withValues(ctx, args, func(argv uint32) error {
		var err error
		out, err = r.callValue(ctx, CallN, ptr(f), api.EncodeU32(argv), api.EncodeI32(int32(len(args))))
		return err
	})
	return out, err
}

// Symbol interns name.
func (r *Runtime) Symbol(ctx context.Context, name string) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withBytes(ctx, []byte(name), false, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, SymbolN, api.EncodeU32(p), api.EncodeU32(uint32(len(name))))
		return err
	})
	return out, err
}

// String allocates a runtime string holding a copy of data.
func (r *Runtime) String(ctx context.Context, data []byte) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withBytes(ctx, data, false, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, PcharToString, api.EncodeU32(p), api.EncodeU32(uint32(len(data))))
		return err
	})
	return out, err
}

func (r *Runtime) GetGlobal(ctx context.Context, module, sym jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, GetGlobal, ptr(module), ptr(sym))
}

func (r *Runtime) SetGlobal(ctx context.Context, module, sym, v jlvalue.Value) error {
	_, err := r.call(ctx, SetGlobal, ptr(module), ptr(sym), ptr(v))
	return err
}

// GetNthField returns field i of v, boxing it when stored inline.
func (r *Runtime) GetNthField(ctx context.Context, v jlvalue.Value, i int) (jlvalue.Value, error) {
	return r.callValue(ctx, GetNthField, ptr(v), api.EncodeU32(uint32(i)))
}

// GetNthFieldNoalloc returns field i of v without allocating; only valid for
// reference fields.
func (r *Runtime) GetNthFieldNoalloc(ctx context.Context, v jlvalue.Value, i int) (jlvalue.Value, error) {
	return r.callValue(ctx, GetNthFieldNoalloc, ptr(v), api.EncodeU32(uint32(i)))
}

func (r *Runtime) GetField(ctx context.Context, v jlvalue.Value, name string) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withBytes(ctx, []byte(name), true, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, GetField, ptr(v), api.EncodeU32(p))
		return err
	})
	return out, err
}

func (r *Runtime) FieldIsDefined(ctx context.Context, v jlvalue.Value, i int) (bool, error) {
	res, err := r.call(ctx, FieldIsDefined, ptr(v), api.EncodeU32(uint32(i)))
	if err != nil {
		return false, err
	}
	return api.DecodeI32(res) != 0, nil
}

// FieldIndex returns the index of field sym in type t, or -1.
func (r *Runtime) FieldIndex(ctx context.Context, t, sym jlvalue.Value, raise bool) (int, error) {
	var flag int32
	if raise {
		flag = 1
	}
	res, err := r.call(ctx, FieldIndex, ptr(t), ptr(sym), api.EncodeI32(flag))
	if err != nil {
		return -1, err
	}
	return int(api.DecodeI32(res)), nil
}

// ComputeFieldTypes materializes the field type vector of t.
func (r *Runtime) ComputeFieldTypes(ctx context.Context, t jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, ComputeFieldTypes, ptr(t))
}

func (r *Runtime) ApplyType(ctx context.Context, tc jlvalue.Value, params ...jlvalue.Value) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withValues(ctx, params, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, ApplyType, ptr(tc), api.EncodeU32(p), api.EncodeU32(uint32(len(params))))
		return err
	})
	return out, err
}

// NewStruct constructs an instance of t from already boxed field values.
func (r *Runtime) NewStruct(ctx context.Context, t jlvalue.Value, fields ...jlvalue.Value) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withValues(ctx, fields, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, NewStructv, ptr(t), api.EncodeU32(p), api.EncodeU32(uint32(len(fields))))
		return err
	})
	return out, err
}

func (r *Runtime) NewStructUninit(ctx context.Context, t jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, NewStructUninit, ptr(t))
}

// TupleTypeFill returns the type of an n-tuple whose elements all have type t.
func (r *Runtime) TupleTypeFill(ctx context.Context, n int, t jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, TupleTypeFill, api.EncodeU32(uint32(n)), ptr(t))
}

func (r *Runtime) TupleType(ctx context.Context, types ...jlvalue.Value) (jlvalue.Value, error) {
	var out jlvalue.Value
	err := r.withValues(ctx, types, func(p uint32) error {
		var err error
		out, err = r.callValue(ctx, ApplyTupleTypeV, api.EncodeU32(p), api.EncodeU32(uint32(len(types))))
		return err
	})
	return out, err
}

func (r *Runtime) ArrayType(ctx context.Context, eltype jlvalue.Value, ndims int) (jlvalue.Value, error) {
	return r.callValue(ctx, ApplyArrayType, ptr(eltype), api.EncodeU32(uint32(ndims)))
}

func (r *Runtime) ArrayEltype(ctx context.Context, array jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, ArrayEltype, ptr(array))
}

// AllocArray allocates an array of type atype with up to three dimensions.
// Use NewArray for more.
func (r *Runtime) AllocArray(ctx context.Context, atype jlvalue.Value, dims ...uint32) (jlvalue.Value, error) {
	switch len(dims) {
	case 1:
		return r.callValue(ctx, AllocArray1d, ptr(atype), api.EncodeU32(dims[0]))
	case 2:
		return r.callValue(ctx, AllocArray2d, ptr(atype), api.EncodeU32(dims[0]), api.EncodeU32(dims[1]))
	case 3:
		return r.callValue(ctx, AllocArray3d, ptr(atype), api.EncodeU32(dims[0]), api.EncodeU32(dims[1]), api.EncodeU32(dims[2]))
	}
	return jlvalue.Nil, errors.Unsupported(errors.PhaseCall, fmt.Sprintf("AllocArray with %d dims", len(dims)))
}

// NewArray allocates an array of type atype; dims is a tuple of Int values.
func (r *Runtime) NewArray(ctx context.Context, atype, dims jlvalue.Value) (jlvalue.Value, error) {
	return r.callValue(ctx, NewArray, ptr(atype), ptr(dims))
}

// PtrToArray1d wraps n elements at data as a vector without copying.
func (r *Runtime) PtrToArray1d(ctx context.Context, atype jlvalue.Value, data, n uint32, own bool) (jlvalue.Value, error) {
	var flag int32
	if own {
		flag = 1
	}
	return r.callValue(ctx, PtrToArray1d, ptr(atype), api.EncodeU32(data), api.EncodeU32(n), api.EncodeI32(flag))
}

// TypeofStr returns the name of v's type.
func (r *Runtime) TypeofStr(ctx context.Context, v jlvalue.Value) (string, error) {
	p, err := r.call(ctx, TypeofStr, ptr(v))
	if err != nil {
		return "", err
	}
	return r.CString(api.DecodeU32(p))
}

// TypenameStr returns the name of type t.
func (r *Runtime) TypenameStr(ctx context.Context, t jlvalue.Value) (string, error) {
	p, err := r.call(ctx, TypenameStr, ptr(t))
	if err != nil {
		return "", err
	}
	return r.CString(api.DecodeU32(p))
}

// CString reads a NUL-terminated string at addr.
func (r *Runtime) CString(addr uint32) (string, error) {
	if addr == 0 {
		return "", nil
	}
	buf := make([]byte, 0, 32)
	for i := uint32(0); i < maxCStringLen; i++ {
		b, err := r.mem.ReadU8(addr + i)
		if err != nil {
			return "", errors.MemoryFault(errors.PhaseCall, addr+i, err)
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", errors.InvalidData(errors.PhaseCall, nil, "unterminated C string")
}

// withBytes copies data into scratch memory for the duration of fn.
func (r *Runtime) withBytes(ctx context.Context, data []byte, nul bool, fn func(ptr uint32) error) error {
	if r.alloc == nil {
		return errors.NotInitialized(errors.PhaseCall, "allocator")
	}
	size := uint32(len(data))
	if nul {
		size++
	}
	if size == 0 {
		size = 1
	}
	p, err := r.alloc.Alloc(ctx, size, 1)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseCall, size, 1, err)
	}
	defer r.alloc.Free(ctx, p, size, 1)

	buf := data
	if nul {
		buf = append(append(make([]byte, 0, size), data...), 0)
	}
	if len(buf) > 0 {
		if err := r.mem.Write(p, buf); err != nil {
			return errors.MemoryFault(errors.PhaseCall, p, err)
		}
	}
	return fn(p)
}

// withValues writes vals as a pointer array into scratch memory for the
// duration of fn.
func (r *Runtime) withValues(ctx context.Context, vals []jlvalue.Value, fn func(ptr uint32) error) error {
	if len(vals) == 0 {
		return fn(0)
	}
	if r.alloc == nil {
		return errors.NotInitialized(errors.PhaseCall, "allocator")
	}
	w := r.layout.WordSize
	size := uint32(len(vals)) * w
	p, err := r.alloc.Alloc(ctx, size, w)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseCall, size, w, err)
	}
	defer r.alloc.Free(ctx, p, size, w)

	for i, v := range vals {
		if err := r.layout.WriteWord(r.mem, p+uint32(i)*w, uint64(v)); err != nil {
			return err
		}
	}
	return fn(p)
}
