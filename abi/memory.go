package abi

import (
	"fortio.org/safecast"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
)

// ReadWord reads one machine word at addr.
func (l Layout) ReadWord(mem jlvalue.Memory, addr uint32) (uint64, error) {
	if l.WordSize == 8 {
		w, err := mem.ReadU64(addr)
		if err != nil {
			return 0, errors.MemoryFault(errors.PhaseDecode, addr, err)
		}
		return w, nil
	}
	w, err := mem.ReadU32(addr)
	if err != nil {
		return 0, errors.MemoryFault(errors.PhaseDecode, addr, err)
	}
	return uint64(w), nil
}

// WriteWord writes one machine word at addr.
func (l Layout) WriteWord(mem jlvalue.Memory, addr uint32, w uint64) error {
	if l.WordSize == 8 {
		if err := mem.WriteU64(addr, w); err != nil {
			return errors.MemoryFault(errors.PhaseBarrier, addr, err)
		}
		return nil
	}
	narrow, err := safecast.Conv[uint32](w)
	if err != nil {
		return errors.Overflow(errors.PhaseBarrier, nil, w, "uint32")
	}
	if err := mem.WriteU32(addr, narrow); err != nil {
		return errors.MemoryFault(errors.PhaseBarrier, addr, err)
	}
	return nil
}

// ReadValue reads a word at addr and interprets it as a heap address.
func (l Layout) ReadValue(mem jlvalue.Memory, addr uint32) (jlvalue.Value, error) {
	w, err := l.ReadWord(mem, addr)
	if err != nil {
		return jlvalue.Nil, err
	}
	return ToValue(w)
}

// ToValue narrows a heap word to an address of the 32-bit heap view.
func ToValue(w uint64) (jlvalue.Value, error) {
	a, err := safecast.Conv[uint32](w)
	if err != nil {
		return jlvalue.Nil, errors.Overflow(errors.PhaseDecode, nil, w, "address")
	}
	return jlvalue.Value(a), nil
}

// Field returns the address of the field at off inside v.
func (l Layout) Field(v jlvalue.Value, off uint32) uint32 {
	return v.Offset(off)
}

// SlotAddr is the address of slot i of a simple vector.
func (l Layout) SlotAddr(svec jlvalue.Value, i uint32) uint32 {
	return svec.Offset(l.WordSize + i*l.WordSize)
}
