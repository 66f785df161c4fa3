// Package scalar boxes host scalars into runtime values and unboxes them.
//
// Unboxing never checks the value's type. Callers establish the type first
// (see the predicate package); unboxing a value of another type returns
// whatever bits happen to be stored there.
package scalar

import (
	"context"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/primitive"
)

type Adapter struct {
	inv primitive.Invoker
}

func New(inv primitive.Invoker) *Adapter {
	return &Adapter{inv: inv}
}

func (a *Adapter) box(ctx context.Context, name string, arg uint64) (jlvalue.Value, error) {
	res, err := a.inv.Invoke(ctx, name, arg)
	if err != nil {
		return jlvalue.Nil, errors.New(errors.PhaseBox, errors.KindCallFailed).
			Detail("call %s", name).
			Cause(err).
			Build()
	}
	if len(res) == 0 {
		return jlvalue.Nil, errors.InvalidData(errors.PhaseBox, nil, name+" returned no result")
	}
	return abi.ToValue(uint64(api.DecodeU32(res[0])))
}

func (a *Adapter) unbox(ctx context.Context, name string, v jlvalue.Value) (uint64, error) {
	res, err := a.inv.Invoke(ctx, name, api.EncodeU32(uint32(v)))
	if err != nil {
		return 0, errors.New(errors.PhaseBox, errors.KindCallFailed).
			Detail("call %s", name).
			Value(v).
			Cause(err).
			Build()
	}
	if len(res) == 0 {
		return 0, errors.InvalidData(errors.PhaseBox, nil, name+" returned no result")
	}
	return res[0], nil
}

func (a *Adapter) BoxBool(ctx context.Context, b bool) (jlvalue.Value, error) {
	var x int32
	if b {
		x = 1
	}
	return a.box(ctx, primitive.BoxBool, api.EncodeI32(x))
}

func (a *Adapter) UnboxBool(ctx context.Context, v jlvalue.Value) (bool, error) {
	r, err := a.unbox(ctx, primitive.UnboxBool, v)
	return int8(api.DecodeI32(r)) != 0, err
}

// BoxChar boxes r in the runtime's Char representation: the UTF-8 bytes of
// r left-aligned in a 32-bit word.
func (a *Adapter) BoxChar(ctx context.Context, r rune) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxChar, api.EncodeU32(CharBits(r)))
}

func (a *Adapter) UnboxChar(ctx context.Context, v jlvalue.Value) (rune, error) {
	r, err := a.unbox(ctx, primitive.UnboxChar, v)
	return CharRune(api.DecodeU32(r)), err
}

func (a *Adapter) BoxInt8(ctx context.Context, x int8) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxInt8, api.EncodeI32(int32(x)))
}

func (a *Adapter) UnboxInt8(ctx context.Context, v jlvalue.Value) (int8, error) {
	r, err := a.unbox(ctx, primitive.UnboxInt8, v)
	return int8(api.DecodeI32(r)), err
}

func (a *Adapter) BoxInt16(ctx context.Context, x int16) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxInt16, api.EncodeI32(int32(x)))
}

func (a *Adapter) UnboxInt16(ctx context.Context, v jlvalue.Value) (int16, error) {
	r, err := a.unbox(ctx, primitive.UnboxInt16, v)
	return int16(api.DecodeI32(r)), err
}

func (a *Adapter) BoxInt32(ctx context.Context, x int32) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxInt32, api.EncodeI32(x))
}

func (a *Adapter) UnboxInt32(ctx context.Context, v jlvalue.Value) (int32, error) {
	r, err := a.unbox(ctx, primitive.UnboxInt32, v)
	return api.DecodeI32(r), err
}

func (a *Adapter) BoxInt64(ctx context.Context, x int64) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxInt64, api.EncodeI64(x))
}

func (a *Adapter) UnboxInt64(ctx context.Context, v jlvalue.Value) (int64, error) {
	r, err := a.unbox(ctx, primitive.UnboxInt64, v)
	return int64(r), err
}

func (a *Adapter) BoxUint8(ctx context.Context, x uint8) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxUint8, api.EncodeU32(uint32(x)))
}

func (a *Adapter) UnboxUint8(ctx context.Context, v jlvalue.Value) (uint8, error) {
	r, err := a.unbox(ctx, primitive.UnboxUint8, v)
	return uint8(api.DecodeU32(r)), err
}

func (a *Adapter) BoxUint16(ctx context.Context, x uint16) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxUint16, api.EncodeU32(uint32(x)))
}

func (a *Adapter) UnboxUint16(ctx context.Context, v jlvalue.Value) (uint16, error) {
	r, err := a.unbox(ctx, primitive.UnboxUint16, v)
	return uint16(api.DecodeU32(r)), err
}

func (a *Adapter) BoxUint32(ctx context.Context, x uint32) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxUint32, api.EncodeU32(x))
}

func (a *Adapter) UnboxUint32(ctx context.Context, v jlvalue.Value) (uint32, error) {
	r, err := a.unbox(ctx, primitive.UnboxUint32, v)
	return api.DecodeU32(r), err
}

func (a *Adapter) BoxUint64(ctx context.Context, x uint64) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxUint64, x)
}

func (a *Adapter) UnboxUint64(ctx context.Context, v jlvalue.Value) (uint64, error) {
	return a.unbox(ctx, primitive.UnboxUint64, v)
}

func (a *Adapter) BoxFloat32(ctx context.Context, x float32) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxFloat32, api.EncodeF32(x))
}

func (a *Adapter) UnboxFloat32(ctx context.Context, v jlvalue.Value) (float32, error) {
	r, err := a.unbox(ctx, primitive.UnboxFloat32, v)
	return api.DecodeF32(r), err
}

func (a *Adapter) BoxFloat64(ctx context.Context, x float64) (jlvalue.Value, error) {
	return a.box(ctx, primitive.BoxFloat64, api.EncodeF64(x))
}

func (a *Adapter) UnboxFloat64(ctx context.Context, v jlvalue.Value) (float64, error) {
	r, err := a.unbox(ctx, primitive.UnboxFloat64, v)
	return api.DecodeF64(r), err
}

// Char marks a rune that should box as a runtime Char rather than Int32.
type Char rune

// Box boxes any supported Go scalar. int and uint box as 64-bit values.
func (a *Adapter) Box(ctx context.Context, x any) (jlvalue.Value, error) {
	switch v := x.(type) {
	case bool:
		return a.BoxBool(ctx, v)
	case Char:
		return a.BoxChar(ctx, rune(v))
	case int8:
		return a.BoxInt8(ctx, v)
	case int16:
		return a.BoxInt16(ctx, v)
	case int32:
		return a.BoxInt32(ctx, v)
	case int64:
		return a.BoxInt64(ctx, v)
	case int:
		return a.BoxInt64(ctx, int64(v))
	case uint8:
		return a.BoxUint8(ctx, v)
	case uint16:
		return a.BoxUint16(ctx, v)
	case uint32:
		return a.BoxUint32(ctx, v)
	case uint64:
		return a.BoxUint64(ctx, v)
	case uint:
		return a.BoxUint64(ctx, uint64(v))
	case float32:
		return a.BoxFloat32(ctx, v)
	case float64:
		return a.BoxFloat64(ctx, v)
	}
	return jlvalue.Nil, errors.New(errors.PhaseBox, errors.KindUnsupported).
		GoType(typeName(x)).
		Detail("no box primitive").
		Build()
}

// CharBits encodes r the way the runtime stores a Char. Invalid runes
// encode as U+FFFD.
func CharBits(r rune) uint32 {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	var u uint32
	for i := 0; i < n; i++ {
		u |= uint32(buf[i]) << (24 - 8*i)
	}
	return u
}

// CharRune decodes a runtime Char.
func CharRune(u uint32) rune {
	b := [4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	n := 4
	for n > 1 && b[n-1] == 0 {
		n--
	}
	r, _ := utf8.DecodeRune(b[:n])
	return r
}
