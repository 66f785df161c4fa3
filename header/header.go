// Package header decodes the word that precedes every heap value.
//
// The header holds the type descriptor address with its low tag bits
// borrowed by the collector. Decoding never interprets those bits; the
// barrier package gives them meaning.
package header

import (
	"fmt"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
)

// Header is a decoded header word.
type Header struct {
	Type jlvalue.Value
	Tag  uint8
}

// Color returns the collector color bits of the tag.
func (h Header) Color(gcMask uint8) uint8 {
	return h.Tag & gcMask
}

// Decoder reads headers through a heap view.
type Decoder struct {
	mem    jlvalue.Memory
	layout abi.Layout
}

// NewDecoder creates a decoder for headers laid out by layout.
func NewDecoder(mem jlvalue.Memory, layout abi.Layout) *Decoder {
	return &Decoder{mem: mem, layout: layout}
}

// Memory returns the heap view headers are read from.
func (d *Decoder) Memory() jlvalue.Memory {
	return d.mem
}

// Layout returns the layout profile in use.
func (d *Decoder) Layout() abi.Layout {
	return d.layout
}

// Tagged returns the address of v's header slot. It panics when that address
// would fall at or below zero: the caller passed something that is not a
// heap value.
func (d *Decoder) Tagged(v jlvalue.Value) uint32 {
	if uint32(v) <= d.layout.WordSize {
		panic(fmt.Sprintf("header: value %s is not a heap address", v))
	}
	return uint32(v) - d.layout.WordSize
}

// ValueOf is the inverse of Tagged.
func (d *Decoder) ValueOf(tagged uint32) jlvalue.Value {
	if tagged == 0 {
		return jlvalue.Nil
	}
	return jlvalue.Value(tagged + d.layout.WordSize)
}

// Decode reads v's header. A Nil value decodes to the zero Header.
func (d *Decoder) Decode(v jlvalue.Value) (Header, error) {
	if v.IsNil() {
		return Header{}, nil
	}
	w, err := d.layout.ReadWord(d.mem, d.Tagged(v))
	if err != nil {
		return Header{}, err
	}
	mask := d.layout.TagMask()
	t, err := abi.ToValue(w &^ mask)
	if err != nil {
		return Header{}, err
	}
	return Header{Type: t, Tag: uint8(w & mask)}, nil
}

// TypeOf returns v's type descriptor, or Nil when v is Nil or its header
// cannot be read.
func (d *Decoder) TypeOf(v jlvalue.Value) jlvalue.Value {
	h, err := d.Decode(v)
	if err != nil {
		return jlvalue.Nil
	}
	return h.Type
}

// TypeIs reports whether v's type descriptor is t. Nil never matches.
func (d *Decoder) TypeIs(v, t jlvalue.Value) bool {
	if v.IsNil() || t.IsNil() {
		return false
	}
	return d.TypeOf(v) == t
}
