package abi

import (
	"fmt"

	"github.com/wippyai/jlvalue/errors"
)

// DataTypeOffsets locates the fields of a type descriptor.
type DataTypeOffsets struct {
	Name       uint32 `toml:"name" yaml:"name"`
	Super      uint32 `toml:"super" yaml:"super"`
	Parameters uint32 `toml:"parameters" yaml:"parameters"`
	Types      uint32 `toml:"types" yaml:"types"`
	Names      uint32 `toml:"names" yaml:"names"`
	Instance   uint32 `toml:"instance" yaml:"instance"`
	Layout     uint32 `toml:"layout" yaml:"layout"`
	Size       uint32 `toml:"size" yaml:"size"`
	Mutable    uint32 `toml:"mutable" yaml:"mutable"`
	IsBitsType uint32 `toml:"isbitstype" yaml:"isbitstype"`
}

// TypeNameOffsets locates the fields of a type name object.
type TypeNameOffsets struct {
	Name   uint32 `toml:"name" yaml:"name"`
	Module uint32 `toml:"module" yaml:"module"`
	Names  uint32 `toml:"names" yaml:"names"`
}

// ArrayOffsets locates the fields of an N-dimensional array header.
type ArrayOffsets struct {
	Data        uint32 `toml:"data" yaml:"data"`
	Length      uint32 `toml:"length" yaml:"length"`
	Flags       uint32 `toml:"flags" yaml:"flags"`
	ElSize      uint32 `toml:"elsize" yaml:"elsize"`
	Offset      uint32 `toml:"offset" yaml:"offset"`
	NRows       uint32 `toml:"nrows" yaml:"nrows"`
	NDimsShift  uint32 `toml:"ndims_shift" yaml:"ndims_shift"`
	NDimsMask   uint32 `toml:"ndims_mask" yaml:"ndims_mask"`
	PtrArrayBit uint32 `toml:"ptrarray_bit" yaml:"ptrarray_bit"`
}

// Layout is one layout profile of the runtime's heap.
type Layout struct {
	Name             string          `toml:"name" yaml:"name"`
	WordSize         uint32          `toml:"word_size" yaml:"word_size"`
	TagBits          uint32          `toml:"tag_bits" yaml:"tag_bits"`
	GCBits           uint32          `toml:"gc_bits" yaml:"gc_bits"`
	SymbolHeaderSize uint32          `toml:"symbol_header_size" yaml:"symbol_header_size"`
	LayoutNFields    uint32          `toml:"layout_nfields" yaml:"layout_nfields"`
	DataType         DataTypeOffsets `toml:"datatype" yaml:"datatype"`
	TypeName         TypeNameOffsets `toml:"typename" yaml:"typename"`
	Array            ArrayOffsets    `toml:"array" yaml:"array"`
}

const (
	ProfileWasm32   = "wasm32"
	ProfileNative64 = "native64"
)

// Compute returns the default layout for the given machine word size.
func Compute(word uint32) Layout {
	flags := 7 * word
	return Layout{
		Name:             fmt.Sprintf("word%d", word*8),
		WordSize:         word,
		TagBits:          4,
		GCBits:           2,
		SymbolHeaderSize: 3 * word, // left, right, hash
		LayoutNFields:    0,
		DataType: DataTypeOffsets{
			Name:       0,
			Super:      word,
			Parameters: 2 * word,
			Types:      3 * word,
			Names:      4 * word,
			Instance:   5 * word,
			Layout:     6 * word,
			Size:       flags,
			Mutable:    flags + 13,
			IsBitsType: flags + 17,
		},
		TypeName: TypeNameOffsets{
			Name:   0,
			Module: word,
			Names:  2 * word,
		},
		Array: ArrayOffsets{
			Data:        0,
			Length:      word,
			Flags:       2 * word,
			ElSize:      2*word + 2,
			Offset:      2*word + 4,
			NRows:       2*word + 8,
			NDimsShift:  2,
			NDimsMask:   0x1ff,
			PtrArrayBit: 12,
		},
	}
}

// Profile returns a built-in layout profile by name.
func Profile(name string) (Layout, error) {
	var l Layout
	switch name {
	case ProfileWasm32, "":
		l = Compute(4)
		l.Name = ProfileWasm32
	case ProfileNative64:
		l = Compute(8)
		l.Name = ProfileNative64
	default:
		return Layout{}, errors.Config(fmt.Sprintf("unknown layout profile %q", name), nil)
	}
	return l, nil
}

// Validate rejects profiles the decoders cannot work with.
func (l Layout) Validate() error {
	if l.WordSize != 4 && l.WordSize != 8 {
		return errors.Config(fmt.Sprintf("word size %d not supported (want 4 or 8)", l.WordSize), nil)
	}
	if l.TagBits == 0 || l.TagBits > 8 {
		return errors.Config(fmt.Sprintf("tag bits %d out of range", l.TagBits), nil)
	}
	if l.GCBits == 0 || l.GCBits > l.TagBits {
		return errors.Config(fmt.Sprintf("gc bits %d must be in 1..%d", l.GCBits, l.TagBits), nil)
	}
	if l.Array.NDimsMask == 0 {
		return errors.Config("array ndims mask is zero", nil)
	}
	return nil
}

// TagMask selects the tag bits of a header word.
func (l Layout) TagMask() uint64 {
	return uint64(1)<<l.TagBits - 1
}

// GCMask selects the collector color bits of a tag.
func (l Layout) GCMask() uint8 {
	return uint8(uint64(1)<<l.GCBits - 1)
}

// SymbolNameOffset is the distance from a symbol to its name bytes.
func (l Layout) SymbolNameOffset() uint32 {
	return AlignTo(l.SymbolHeaderSize, l.WordSize)
}

// MaxDims is the largest dimension count the flags field can encode.
func (l Layout) MaxDims() uint32 {
	return l.Array.NDimsMask
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
