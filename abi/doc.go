// Package abi describes the runtime's private object layout.
//
// The layout is not stable across runtime versions or targets, so every
// offset the decoders use lives in a Layout value instead of a constant.
// Compute derives the default offsets for a machine word size; a config file
// can override any of them.
//
// # Object Shapes
//
// Offsets are relative to the value address (the header word sits one word
// before it):
//
//	Object      Word 0         Word 1         Following
//	────────────────────────────────────────────────────────────
//	String      length         bytes...
//	SimpleVec   length         slot 0         slot 1 ...
//	Symbol      left           right          hash, then name bytes
//	DataType    typename       super          parameters, types, names,
//	                                          instance, layout, size, flags
//	TypeName    name symbol    module         names
//	Array       data           length         flags|elsize, offset, nrows, dims...
//
// # Header Word
//
//	┌──────────────── type descriptor address ───────────────┬─ tag ─┐
//	│                                                         │ gc|.. │
//	└─────────────────────────────────────────────────────────┴───────┘
//
// The low TagBits bits are masked off to recover the type descriptor; the
// low GCBits bits of that tag are the collector's color.
package abi
