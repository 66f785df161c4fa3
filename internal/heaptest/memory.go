// Package heaptest simulates a runtime image in process: a flat heap, a
// scratch allocator, the well-known type descriptors and the call
// primitives. Objects are laid out with the same abi.Layout the decoders
// use, so tests exercise the real offsets.
package heaptest

import (
	"encoding/binary"
	"fmt"
)

// Memory is a fixed-size little-endian heap.
type Memory struct {
	buf []byte
}

func NewMemory(size uint32) *Memory {
	return &Memory{buf: make([]byte, size)}
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *Memory) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.buf[offset : offset+length], nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], value)
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}
