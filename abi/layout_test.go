package abi

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/jlvalue/errors"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		word       uint32
		nrows      uint32
		isbits     uint32
		typesOff   uint32
		symbolName uint32
	}{
		{word: 4, nrows: 16, isbits: 45, typesOff: 12, symbolName: 12},
		{word: 8, nrows: 24, isbits: 73, typesOff: 24, symbolName: 24},
	}

	for _, tt := range tests {
		l := Compute(tt.word)
		if l.Array.NRows != tt.nrows {
			t.Errorf("word %d: NRows = %d, want %d", tt.word, l.Array.NRows, tt.nrows)
		}
		if l.DataType.IsBitsType != tt.isbits {
			t.Errorf("word %d: IsBitsType = %d, want %d", tt.word, l.DataType.IsBitsType, tt.isbits)
		}
		if l.DataType.Types != tt.typesOff {
			t.Errorf("word %d: Types = %d, want %d", tt.word, l.DataType.Types, tt.typesOff)
		}
		if got := l.SymbolNameOffset(); got != tt.symbolName {
			t.Errorf("word %d: SymbolNameOffset = %d, want %d", tt.word, got, tt.symbolName)
		}
		if err := l.Validate(); err != nil {
			t.Errorf("word %d: Validate: %v", tt.word, err)
		}
	}
}

func TestProfile(t *testing.T) {
	l, err := Profile(ProfileWasm32)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if l.WordSize != 4 || l.Name != ProfileWasm32 {
		t.Errorf("got %+v", l)
	}

	l, err = Profile(ProfileNative64)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if l.WordSize != 8 {
		t.Errorf("WordSize = %d, want 8", l.WordSize)
	}

	_, err = Profile("sparc")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
		t.Errorf("unknown profile error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"word size", func(l *Layout) { l.WordSize = 2 }},
		{"no tag bits", func(l *Layout) { l.TagBits = 0 }},
		{"gc wider than tag", func(l *Layout) { l.GCBits = 5 }},
		{"ndims mask", func(l *Layout) { l.Array.NDimsMask = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Compute(4)
			tt.mutate(&l)
			if err := l.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMasks(t *testing.T) {
	l := Compute(8)
	if l.TagMask() != 0xf {
		t.Errorf("TagMask = %#x, want 0xf", l.TagMask())
	}
	if l.GCMask() != 0x3 {
		t.Errorf("GCMask = %#x, want 0x3", l.GCMask())
	}
}

func TestAlignTo(t *testing.T) {
	tests := []struct{ off, align, want uint32 }{
		{0, 4, 0},
		{1, 4, 4},
		{12, 8, 16},
		{24, 8, 24},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := AlignTo(tt.off, tt.align); got != tt.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tt.off, tt.align, got, tt.want)
		}
	}
}

func TestToValue(t *testing.T) {
	v, err := ToValue(0x1000)
	if err != nil || v != 0x1000 {
		t.Errorf("ToValue(0x1000) = %v, %v", v, err)
	}
	if _, err := ToValue(1 << 33); err == nil {
		t.Error("expected overflow for address above 4GiB")
	}
}
