package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"testing"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/config"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/internal/heaptest"
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/primitive"
)

func newRuntime(t *testing.T) (*heaptest.Heap, *Runtime) {
	t.Helper()
	h := heaptest.New()
	r, err := New(Parts{Invoker: h, Memory: h, Allocator: h, Symbols: h, Layout: h.Layout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, r
}

func TestNewRejectsIncompleteParts(t *testing.T) {
	h := heaptest.New()
	bad := h.Layout
	bad.WordSize = 3

	tests := []struct {
		name  string
		parts Parts
	}{
		{"no invoker", Parts{Memory: h, Layout: h.Layout}},
		{"no memory", Parts{Invoker: h, Layout: h.Layout}},
		{"bad layout", Parts{Invoker: h, Memory: h, Layout: bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.parts); err == nil {
				t.Error("New() succeeded")
			}
		})
	}
}

func TestScalarsThroughFacade(t *testing.T) {
	ctx := context.Background()
	_, r := newRuntime(t)

	v, err := r.Scalars().BoxInt64(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if k := r.Classifier().Classify(v); k != predicate.KindInt64 {
		t.Errorf("Classify = %v, want int64", k)
	}
	got, err := r.Scalars().UnboxInt64(ctx, v)
	if err != nil || got != 42 {
		t.Errorf("UnboxInt64 = %d, %v", got, err)
	}
	if !r.Predicates().IsInt64(v) {
		t.Error("IsInt64 = false")
	}
	if r.Header().TypeOf(v) != r.Handles().Value(primitive.Int64Type) {
		t.Error("TypeOf does not match the Int64 handle")
	}
}

func TestEval(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)
	want := h.BoxInt64(7)
	h.SetEval("x + 1", want)

	got, err := r.Eval(ctx, "x + 1")
	if err != nil {
		t.Fatalf("Eval() = %v", err)
	}
	if got != want {
		t.Errorf("Eval() = %#x, want %#x", got, want)
	}

	_, err = r.Eval(ctx, "undefined_name")
	var exc *Exception
	if !stderrors.As(err, &exc) {
		t.Fatalf("Eval(undefined) error = %v, want *Exception", err)
	}
	if exc.TypeName != "ErrorException" {
		t.Errorf("TypeName = %q", exc.TypeName)
	}
	if exc.Message != "UndefVarError: undefined_name" {
		t.Errorf("Message = %q", exc.Message)
	}
	if exc.Value != h.Exception() {
		t.Errorf("Value = %#x, want pending slot %#x", exc.Value, h.Exception())
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindException}) {
		t.Error("exception does not match PhaseRuntime/KindException")
	}
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)

	sum := h.Function(func(args []jlvalue.Value) (jlvalue.Value, error) {
		var n int64
		for _, a := range args {
			n += h.Int64(a)
		}
		return h.BoxInt64(n), nil
	})
	fail := h.Function(func([]jlvalue.Value) (jlvalue.Value, error) {
		return jlvalue.Nil, fmt.Errorf("boom")
	})

	for n := 0; n <= 5; n++ {
		args := make([]jlvalue.Value, n)
		for i := range args {
			args[i] = h.BoxInt64(int64(i + 1))
		}
		v, err := r.Call(ctx, sum, args...)
		if err != nil {
			t.Fatalf("Call(%d args) = %v", n, err)
		}
		if got, want := h.Int64(v), int64(n*(n+1)/2); got != want {
			t.Errorf("Call(%d args) = %d, want %d", n, got, want)
		}
	}
	if h.Outstanding() != 0 {
		t.Errorf("%d scratch allocations leaked", h.Outstanding())
	}

	_, err := r.Call(ctx, fail)
	var exc *Exception
	if !stderrors.As(err, &exc) || exc.Message != "boom" {
		t.Errorf("Call(fail) = %v", err)
	}

	// A later successful call clears the slot.
	if _, err := r.Call(ctx, sum); err != nil {
		t.Errorf("Call after failure = %v", err)
	}

	_, err = r.Call(ctx, jlvalue.Nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCall, Kind: errors.KindNilValue}) {
		t.Errorf("Call(Nil) = %v", err)
	}
}

func TestCheckException(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)

	if err := r.CheckException(ctx); err != nil {
		t.Fatalf("CheckException() = %v with empty slot", err)
	}
	exc := h.Throw("bad thing")
	err := r.CheckException(ctx)
	var e *Exception
	if !stderrors.As(err, &e) || e.Value != exc {
		t.Fatalf("CheckException() = %v", err)
	}
	if e.Error() != "runtime exception ErrorException: bad thing" {
		t.Errorf("Error() = %q", e.Error())
	}
	if h.Exception() != exc {
		t.Error("CheckException cleared the slot")
	}
}

func TestCheckExceptionWithoutMessage(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)
	bare := h.NewStruct(h.StructType("InterruptException", nil, nil))
	h.Raise(bare)

	err := r.CheckException(ctx)
	var e *Exception
	if !stderrors.As(err, &e) {
		t.Fatalf("CheckException() = %v", err)
	}
	if e.TypeName != "InterruptException" || e.Message != "" {
		t.Errorf("exception = %+v", e)
	}
	if e.Error() != "runtime exception InterruptException" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestCallFailurePropagates(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)
	h.Fail = map[string]error{primitive.EvalString: fmt.Errorf("trap")}

	_, err := r.Eval(ctx, "anything")
	if err == nil {
		t.Fatal("Eval() succeeded")
	}
	var exc *Exception
	if stderrors.As(err, &exc) {
		t.Error("call failure reported as runtime exception")
	}
}

func TestGlobal(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)
	v := h.String("hello")
	h.SetGlobal(h.Handle(primitive.MainModule), "greeting", v)
	h.SetGlobal(h.Handle(primitive.BaseModule), "pi", h.BoxFloat64(3.14))

	got, err := r.Global(ctx, jlvalue.Nil, "greeting")
	if err != nil || got != v {
		t.Errorf("Global(Main, greeting) = %#x, %v", got, err)
	}
	pi, err := r.Global(ctx, h.Handle(primitive.BaseModule), "pi")
	if err != nil || !r.Predicates().IsFloat64(pi) {
		t.Errorf("Global(Base, pi) = %#x, %v", pi, err)
	}
	_, err = r.Global(ctx, jlvalue.Nil, "absent")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindNotFound}) {
		t.Errorf("Global(absent) = %v", err)
	}
}

func TestBarrierThroughFacade(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)
	parent := h.SVec(h.Nothing())
	h.SetColor(parent, 3)
	child := h.BoxInt64(1)

	if err := r.Barrier().StoreSVecSlot(ctx, parent, 0, child); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(h.Queued, []jlvalue.Value{parent}) {
		t.Errorf("queued = %v, want [%#x]", h.Queued, parent)
	}
}

type probing struct {
	*heaptest.Heap
	drop string
}

func (p probing) Has(name string) bool {
	return name != p.drop && heaptest.Has(name)
}

func TestMissing(t *testing.T) {
	h, r := newRuntime(t)
	if m := r.Missing(); m != nil {
		t.Errorf("Missing() = %v for invoker without Has", m)
	}

	p := probing{Heap: h, drop: primitive.TypenameStr}
	r2, err := New(Parts{Invoker: p, Memory: h, Symbols: h, Layout: h.Layout})
	if err != nil {
		t.Fatal(err)
	}
	if m := r2.Missing(); !slices.Equal(m, []string{primitive.TypenameStr}) {
		t.Errorf("Missing() = %v", m)
	}
	if err := r2.Close(context.Background()); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestSymbolChain(t *testing.T) {
	c := chain{primitive.SymbolMap{"a": 1}, primitive.SymbolMap{"a": 2, "b": 3}}
	if addr, ok := c.Lookup("a"); !ok || addr != 1 {
		t.Errorf("Lookup(a) = %d, %v", addr, ok)
	}
	if addr, ok := c.Lookup("b"); !ok || addr != 3 {
		t.Errorf("Lookup(b) = %d, %v", addr, ok)
	}
	if _, ok := c.Lookup("c"); ok {
		t.Error("Lookup(c) succeeded")
	}
}

// imageWASM has one page of memory exported as "memory" and an i32 global
// "jl_nothing" holding 1024.
var imageWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x06, 0x07, 0x01, 0x7f, 0x00, 0x41, 0x80, 0x08, 0x0b,
	0x07, 0x17, 0x02,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x0a, 0x6a, 0x6c, 0x5f, 0x6e, 0x6f, 0x74, 0x68, 0x69, 0x6e, 0x67, 0x03, 0x00,
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Engine.WASI = false
	cfg.Engine.MallocExport = ""
	cfg.Engine.FreeExport = ""
	cfg.Symbols = map[string]uint32{"jl_main_module": 2048}

	r, err := Open(ctx, imageWASM, cfg)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer r.Close(ctx)

	if r.Instance() == nil {
		t.Fatal("Instance() = nil")
	}
	if r.Layout().Name != abi.ProfileWasm32 {
		t.Errorf("layout = %q", r.Layout().Name)
	}
	mem := r.Memory()
	if err := mem.WriteU32(1024, 0x2000); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteU32(2048, 0x3000); err != nil {
		t.Fatal(err)
	}
	if got := r.Handles().Value(primitive.Nothing); got != 0x2000 {
		t.Errorf("nothing handle = %#x, want 0x2000 from image global", got)
	}
	if got := r.Handles().Value(primitive.MainModule); got != 0x3000 {
		t.Errorf("main handle = %#x, want 0x3000 from config symbols", got)
	}
	if len(r.Missing()) == 0 {
		t.Error("Missing() empty for an image without primitives")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.MemoryExport = ""
	if _, err := Open(context.Background(), imageWASM, cfg); err == nil {
		t.Error("Open() accepted empty memory export")
	}
}

func TestWithGCPaused(t *testing.T) {
	ctx := context.Background()
	h, r := newRuntime(t)

	var inside bool
	if err := r.WithGCPaused(ctx, func() error {
		inside = h.GCEnabled()
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if inside {
		t.Error("collection enabled inside WithGCPaused")
	}
	if !h.GCEnabled() {
		t.Error("collection not restored")
	}

	boom := stderrors.New("boom")
	if err := r.WithGCPaused(ctx, func() error { return boom }); !stderrors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if !h.GCEnabled() {
		t.Error("collection not restored after failure")
	}

	// A pause nested in an outer pause leaves collection off.
	if err := r.WithGCPaused(ctx, func() error {
		if err := r.WithGCPaused(ctx, func() error { return nil }); err != nil {
			return err
		}
		if h.GCEnabled() {
			t.Error("inner pause re-enabled collection")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestWithGCPausedUnavailable(t *testing.T) {
	h, r := newRuntime(t)
	h.Fail[primitive.GCEnable] = stderrors.New("trap")

	ran := false
	err := r.WithGCPaused(context.Background(), func() error {
		ran = true
		return nil
	})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCall, Kind: errors.KindCallFailed}) {
		t.Errorf("err = %v", err)
	}
	if ran {
		t.Error("fn ran without pausing collection")
	}
}
