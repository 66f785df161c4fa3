package abi_test

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/internal/heaptest"
)

func TestWordRoundTrip(t *testing.T) {
	tests := []struct {
		profile string
		word    uint64
	}{
		{abi.ProfileWasm32, 0},
		{abi.ProfileWasm32, 0xdeadbeef},
		{abi.ProfileNative64, 0xdeadbeef},
		{abi.ProfileNative64, 1<<40 | 7},
	}
	for _, tt := range tests {
		l, err := abi.Profile(tt.profile)
		if err != nil {
			t.Fatal(err)
		}
		mem := heaptest.NewMemory(256)
		if err := l.WriteWord(mem, 16, tt.word); err != nil {
			t.Fatalf("%s: WriteWord(%#x): %v", tt.profile, tt.word, err)
		}
		got, err := l.ReadWord(mem, 16)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.word {
			t.Errorf("%s: ReadWord = %#x, want %#x", tt.profile, got, tt.word)
		}
		if next, _ := mem.ReadU32(16 + l.WordSize); next != 0 {
			t.Errorf("%s: write spilled past the word", tt.profile)
		}
	}
}

func TestWordErrors(t *testing.T) {
	l32, _ := abi.Profile(abi.ProfileWasm32)
	l64, _ := abi.Profile(abi.ProfileNative64)
	mem := heaptest.NewMemory(64)

	if err := l32.WriteWord(mem, 0, 1<<32); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseBarrier, Kind: errors.KindOverflow}) {
		t.Errorf("narrow overflow: err = %v", err)
	}
	if err := l64.WriteWord(mem, 60, 1); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseBarrier, Kind: errors.KindMemoryFault}) {
		t.Errorf("write past end: err = %v", err)
	}
	if _, err := l32.ReadWord(mem, 62); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindMemoryFault}) {
		t.Errorf("read past end: err = %v", err)
	}

	if err := l64.WriteWord(mem, 8, 1<<33); err != nil {
		t.Fatal(err)
	}
	if _, err := l64.ReadValue(mem, 8); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindOverflow}) {
		t.Errorf("wide address: err = %v", err)
	}
}

func TestAddresses(t *testing.T) {
	for _, profile := range []string{abi.ProfileWasm32, abi.ProfileNative64} {
		l, _ := abi.Profile(profile)
		v := jlvalue.Value(0x100)
		if got := l.SlotAddr(v, 0); got != 0x100+l.WordSize {
			t.Errorf("%s: SlotAddr(0) = %#x", profile, got)
		}
		if got := l.SlotAddr(v, 3); got != 0x100+4*l.WordSize {
			t.Errorf("%s: SlotAddr(3) = %#x", profile, got)
		}
		if got := l.Field(v, l.DataType.Size); got != 0x100+l.DataType.Size {
			t.Errorf("%s: Field(size) = %#x", profile, got)
		}
	}
}
