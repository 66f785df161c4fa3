package scalar_test

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/internal/heaptest"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/scalar"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := heaptest.New()
	a := scalar.New(h)

	t.Run("bool", func(t *testing.T) {
		for _, x := range []bool{true, false} {
			v, err := a.BoxBool(ctx, x)
			if err != nil {
				t.Fatal(err)
			}
			got, err := a.UnboxBool(ctx, v)
			if err != nil || got != x {
				t.Errorf("bool %v: got %v, %v", x, got, err)
			}
		}
	})
	t.Run("char", func(t *testing.T) {
		for _, x := range []rune{'a', 'é', '😀', 0} {
			v, _ := a.BoxChar(ctx, x)
			if got, err := a.UnboxChar(ctx, v); err != nil || got != x {
				t.Errorf("char %U: got %U, %v", x, got, err)
			}
		}
	})
	t.Run("int8", func(t *testing.T) {
		for _, x := range []int8{math.MinInt8, -1, 0, 1, math.MaxInt8} {
			v, _ := a.BoxInt8(ctx, x)
			if got, err := a.UnboxInt8(ctx, v); err != nil || got != x {
				t.Errorf("int8 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("int16", func(t *testing.T) {
		for _, x := range []int16{math.MinInt16, -1, 0, math.MaxInt16} {
			v, _ := a.BoxInt16(ctx, x)
			if got, err := a.UnboxInt16(ctx, v); err != nil || got != x {
				t.Errorf("int16 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("int32", func(t *testing.T) {
		for _, x := range []int32{math.MinInt32, -1, 0, math.MaxInt32} {
			v, _ := a.BoxInt32(ctx, x)
			if got, err := a.UnboxInt32(ctx, v); err != nil || got != x {
				t.Errorf("int32 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("int64", func(t *testing.T) {
		for _, x := range []int64{math.MinInt64, -1, 0, math.MaxInt64} {
			v, _ := a.BoxInt64(ctx, x)
			if got, err := a.UnboxInt64(ctx, v); err != nil || got != x {
				t.Errorf("int64 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("uint8", func(t *testing.T) {
		for _, x := range []uint8{0, 1, math.MaxUint8} {
			v, _ := a.BoxUint8(ctx, x)
			if got, err := a.UnboxUint8(ctx, v); err != nil || got != x {
				t.Errorf("uint8 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("uint16", func(t *testing.T) {
		for _, x := range []uint16{0, 1, math.MaxUint16} {
			v, _ := a.BoxUint16(ctx, x)
			if got, err := a.UnboxUint16(ctx, v); err != nil || got != x {
				t.Errorf("uint16 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("uint32", func(t *testing.T) {
		for _, x := range []uint32{0, 1, math.MaxUint32} {
			v, _ := a.BoxUint32(ctx, x)
			if got, err := a.UnboxUint32(ctx, v); err != nil || got != x {
				t.Errorf("uint32 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("uint64", func(t *testing.T) {
		for _, x := range []uint64{0, 1, math.MaxUint64} {
			v, _ := a.BoxUint64(ctx, x)
			if got, err := a.UnboxUint64(ctx, v); err != nil || got != x {
				t.Errorf("uint64 %d: got %d, %v", x, got, err)
			}
		}
	})
	t.Run("float32", func(t *testing.T) {
		for _, x := range []float32{0, -1.5, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(-1))} {
			v, _ := a.BoxFloat32(ctx, x)
			if got, err := a.UnboxFloat32(ctx, v); err != nil || got != x {
				t.Errorf("float32 %g: got %g, %v", x, got, err)
			}
		}
	})
	t.Run("float64", func(t *testing.T) {
		for _, x := range []float64{0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1)} {
			v, _ := a.BoxFloat64(ctx, x)
			if got, err := a.UnboxFloat64(ctx, v); err != nil || got != x {
				t.Errorf("float64 %g: got %g, %v", x, got, err)
			}
		}
	})
	t.Run("nan", func(t *testing.T) {
		v, _ := a.BoxFloat64(ctx, math.NaN())
		if got, _ := a.UnboxFloat64(ctx, v); !math.IsNaN(got) {
			t.Errorf("NaN came back as %g", got)
		}
	})
}

func TestBoxDispatch(t *testing.T) {
	ctx := context.Background()
	h := heaptest.New()
	a := scalar.New(h)

	tests := []struct {
		name string
		in   any
		want primitive.Handle
	}{
		{"bool", true, primitive.BoolType},
		{"char", scalar.Char('x'), primitive.CharType},
		{"rune is int32", 'x', primitive.Int32Type},
		{"int8", int8(1), primitive.Int8Type},
		{"int16", int16(1), primitive.Int16Type},
		{"int32", int32(1), primitive.Int32Type},
		{"int64", int64(1), primitive.Int64Type},
		{"int", 1, primitive.Int64Type},
		{"uint8", uint8(1), primitive.Uint8Type},
		{"uint16", uint16(1), primitive.Uint16Type},
		{"uint32", uint32(1), primitive.Uint32Type},
		{"uint64", uint64(1), primitive.Uint64Type},
		{"uint", uint(1), primitive.Uint64Type},
		{"float32", float32(1), primitive.Float32Type},
		{"float64", 1.0, primitive.Float64Type},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := a.Box(ctx, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got := h.TypeOf(v); got != h.Handle(tt.want) {
				t.Errorf("Box(%v) has type %s, want %s", tt.in, h.Name(got), h.Name(h.Handle(tt.want)))
			}
		})
	}
}

func TestBoxUnsupported(t *testing.T) {
	a := scalar.New(heaptest.New())
	for _, in := range []any{"str", nil, []int{1}, struct{}{}} {
		v, err := a.Box(context.Background(), in)
		if !v.IsNil() {
			t.Errorf("Box(%v) = %s, want Nil", in, v)
		}
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseBox, Kind: errors.KindUnsupported}) {
			t.Errorf("Box(%v) error = %v, want unsupported", in, err)
		}
	}
}

func TestCallFailure(t *testing.T) {
	ctx := context.Background()
	h := heaptest.New()
	a := scalar.New(h)
	cause := stderrors.New("trap")
	h.Fail[primitive.BoxInt64] = cause
	h.Fail[primitive.UnboxInt64] = cause

	if _, err := a.BoxInt64(ctx, 1); !stderrors.Is(err, cause) {
		t.Errorf("BoxInt64 error = %v, want wrapped trap", err)
	}
	_, err := a.UnboxInt64(ctx, jlvalue.Value(64))
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindCallFailed || e.Phase != errors.PhaseBox {
		t.Errorf("UnboxInt64 error = %v", err)
	}
}
