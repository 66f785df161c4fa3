package heaptest

import (
	"math"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/scalar"
)

func (h *Heap) boxBits(t jlvalue.Value, size uint32, bits uint64) jlvalue.Value {
	v := h.object(t, size)
	h.writeBits(uint32(v), size, bits)
	return v
}

func (h *Heap) writeBits(addr, size uint32, bits uint64) {
	switch size {
	case 1:
		h.must(h.WriteU8(addr, uint8(bits)))
	case 2:
		h.must(h.WriteU16(addr, uint16(bits)))
	case 4:
		h.must(h.WriteU32(addr, uint32(bits)))
	case 8:
		h.must(h.WriteU64(addr, bits))
	}
}

func (h *Heap) readBits(addr, size uint32) uint64 {
	switch size {
	case 1:
		b, err := h.ReadU8(addr)
		h.must(err)
		return uint64(b)
	case 2:
		b, err := h.ReadU16(addr)
		h.must(err)
		return uint64(b)
	case 4:
		b, err := h.ReadU32(addr)
		h.must(err)
		return uint64(b)
	case 8:
		b, err := h.ReadU64(addr)
		h.must(err)
		return b
	}
	return 0
}

func (h *Heap) BoxBool(b bool) jlvalue.Value {
	if b {
		return h.trueV
	}
	return h.falseV
}

func (h *Heap) BoxChar(r rune) jlvalue.Value {
	return h.boxBits(h.handles[primitive.CharType], 4, uint64(scalar.CharBits(r)))
}

func (h *Heap) BoxInt8(x int8) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Int8Type], 1, uint64(uint8(x)))
}

func (h *Heap) BoxInt16(x int16) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Int16Type], 2, uint64(uint16(x)))
}

func (h *Heap) BoxInt32(x int32) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Int32Type], 4, uint64(uint32(x)))
}

func (h *Heap) BoxInt64(x int64) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Int64Type], 8, uint64(x))
}

func (h *Heap) BoxUint8(x uint8) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Uint8Type], 1, uint64(x))
}

func (h *Heap) BoxUint16(x uint16) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Uint16Type], 2, uint64(x))
}

func (h *Heap) BoxUint32(x uint32) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Uint32Type], 4, uint64(x))
}

func (h *Heap) BoxUint64(x uint64) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Uint64Type], 8, x)
}

func (h *Heap) BoxFloat32(x float32) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Float32Type], 4, uint64(math.Float32bits(x)))
}

func (h *Heap) BoxFloat64(x float64) jlvalue.Value {
	return h.boxBits(h.handles[primitive.Float64Type], 8, math.Float64bits(x))
}

// Int64 reads the payload of a boxed Int64.
func (h *Heap) Int64(v jlvalue.Value) int64 {
	return int64(h.readBits(uint32(v), 8))
}
