package jlvalue

import (
	"context"
	"strconv"
)

// Value is the address of a heap object owned by the runtime's collector.
// The host never owns a Value; it stays valid only while something the
// collector scans keeps it reachable.
type Value uint32

// Nil is the null address. Depending on context it means "no data" or the
// absence of a value.
const Nil Value = 0

func (v Value) IsNil() bool {
	return v == Nil
}

// Offset returns the address off bytes past v.
func (v Value) Offset(off uint32) uint32 {
	return uint32(v) + off
}

func (v Value) String() string {
	return "0x" + strconv.FormatUint(uint64(v), 16)
}

// Memory is a byte-addressable view of the runtime's heap.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the heap view in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates raw (non-collected) scratch memory inside the runtime,
// used to pass C strings and argument arrays to primitives. ctx is the
// context of the primitive call the scratch memory is for.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
	Free(ctx context.Context, ptr, size, align uint32)
}
