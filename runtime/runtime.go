package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/barrier"
	"github.com/wippyai/jlvalue/config"
	"github.com/wippyai/jlvalue/engine"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/header"
	"github.com/wippyai/jlvalue/predicate"
	"github.com/wippyai/jlvalue/primitive"
	"github.com/wippyai/jlvalue/reader"
	"github.com/wippyai/jlvalue/scalar"
)

// Parts are the collaborators a Runtime is built from.
type Parts struct {
	Invoker   primitive.Invoker
	Memory    jlvalue.Memory
	Allocator jlvalue.Allocator // optional; strings and argument vectors need it
	Symbols   primitive.Symbols
	Layout    abi.Layout

	// HandleOverrides renames the C globals handles are read from.
	HandleOverrides map[string]string
}

type Runtime struct {
	layout     abi.Layout
	mem        jlvalue.Memory
	inv        primitive.Invoker
	prims      *primitive.Runtime
	handles    *primitive.Handles
	dec        *header.Decoder
	barrier    *barrier.Coordinator
	scalars    *scalar.Adapter
	reader     *reader.Reader
	preds      *predicate.Predicates
	classifier *predicate.Classifier

	engine *engine.Engine
	inst   *engine.Instance
}

// New assembles a Runtime over existing parts.
func New(p Parts) (*Runtime, error) {
	if p.Invoker == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "invoker")
	}
	if p.Memory == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "memory")
	}
	if err := p.Layout.Validate(); err != nil {
		return nil, err
	}
	syms := p.Symbols
	if syms == nil {
		syms = primitive.SymbolMap{}
	}

	r := &Runtime{layout: p.Layout, mem: p.Memory, inv: p.Invoker}
	r.prims = primitive.NewRuntime(p.Invoker, p.Memory, p.Allocator, p.Layout)
	r.handles = primitive.NewHandles(syms, p.Memory, p.Layout, p.HandleOverrides)
	r.dec = header.NewDecoder(p.Memory, p.Layout)
	r.barrier = barrier.New(r.dec, r.prims)
	r.scalars = scalar.New(p.Invoker)
	r.reader = reader.New(r.dec, r.prims)
	r.preds = predicate.New(r.dec, r.reader, r.handles)
	r.classifier = predicate.NewClassifier(r.preds)
	return r, nil
}

// Open hosts image with wazero and assembles a Runtime over it. Addresses
// from cfg.Symbols take precedence over globals exported by the image.
func Open(ctx context.Context, image []byte, cfg config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng, err := engine.New(ctx, cfg.Engine)
	if err != nil {
		return nil, err
	}
	inst, err := eng.Load(ctx, image)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	var syms chain
	if len(cfg.Symbols) > 0 {
		syms = append(syms, primitive.SymbolMap(cfg.Symbols))
	}
	syms = append(syms, inst)

	r, err := New(Parts{
		Invoker:         inst,
		Memory:          inst.Memory(),
		Allocator:       inst.Allocator(),
		Symbols:         syms,
		Layout:          cfg.Layout,
		HandleOverrides: cfg.Handles,
	})
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}
	r.engine = eng
	r.inst = inst

	if missing := r.Missing(); len(missing) > 0 {
		engine.Logger().Warn("runtime image lacks primitives",
			zap.Int("count", len(missing)),
			zap.Strings("names", missing))
	}
	return r, nil
}

// chain consults symbol tables in order.
type chain []primitive.Symbols

func (c chain) Lookup(name string) (uint32, bool) {
	for _, s := range c {
		if addr, ok := s.Lookup(name); ok {
			return addr, true
		}
	}
	return 0, false
}

// SetLogger installs l in every package that logs. Nil is ignored.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	primitive.SetLogger(l)
	barrier.SetLogger(l)
	engine.SetLogger(l)
}

func (r *Runtime) Layout() abi.Layout                { return r.layout }
func (r *Runtime) Memory() jlvalue.Memory            { return r.mem }
func (r *Runtime) Header() *header.Decoder           { return r.dec }
func (r *Runtime) Barrier() *barrier.Coordinator     { return r.barrier }
func (r *Runtime) Scalars() *scalar.Adapter          { return r.scalars }
func (r *Runtime) Reader() *reader.Reader            { return r.reader }
func (r *Runtime) Predicates() *predicate.Predicates { return r.preds }
func (r *Runtime) Classifier() *predicate.Classifier { return r.classifier }
func (r *Runtime) Primitives() *primitive.Runtime    { return r.prims }
func (r *Runtime) Handles() *primitive.Handles       { return r.handles }

// Instance returns the wazero instance, or nil for runtimes built with New.
func (r *Runtime) Instance() *engine.Instance {
	return r.inst
}

// Missing lists entry points the image does not export. It is empty when
// the invoker cannot report what it provides.
func (r *Runtime) Missing() []string {
	type hasFunc interface{ Has(name string) bool }
	p, ok := r.inv.(hasFunc)
	if !ok {
		return nil
	}
	var out []string
	seen := make(map[string]bool, len(primitive.Exports))
	for _, name := range primitive.Exports {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !p.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Eval evaluates src in Main and returns its value.
func (r *Runtime) Eval(ctx context.Context, src string) (jlvalue.Value, error) {
	v, err := r.prims.EvalString(ctx, src)
	if err != nil {
		return jlvalue.Nil, err
	}
	if err := r.CheckException(ctx); err != nil {
		return jlvalue.Nil, err
	}
	return v, nil
}

// Call applies f to args.
func (r *Runtime) Call(ctx context.Context, f jlvalue.Value, args ...jlvalue.Value) (jlvalue.Value, error) {
	if f.IsNil() {
		return jlvalue.Nil, errors.NilValue(errors.PhaseCall, []string{"function"})
	}
	v, err := r.prims.Call(ctx, f, args...)
	if err != nil {
		return jlvalue.Nil, err
	}
	if err := r.CheckException(ctx); err != nil {
		return jlvalue.Nil, err
	}
	return v, nil
}

// Global returns the binding of name in module, or Main when module is Nil.
func (r *Runtime) Global(ctx context.Context, module jlvalue.Value, name string) (jlvalue.Value, error) {
	if module.IsNil() {
		m, err := r.handles.Get(primitive.MainModule)
		if err != nil {
			return jlvalue.Nil, err
		}
		module = m
	}
	sym, err := r.prims.Symbol(ctx, name)
	if err != nil {
		return jlvalue.Nil, err
	}
	v, err := r.prims.GetGlobal(ctx, module, sym)
	if err != nil {
		return jlvalue.Nil, err
	}
	if v.IsNil() {
		return jlvalue.Nil, errors.NotFound(errors.PhaseRuntime, "global", name)
	}
	return v, nil
}

// WithGCPaused runs fn with collection disabled and then restores the
// previous setting. Objects fn allocates and holds only in Go stay valid
// until it returns; anything kept longer must be rooted by the caller.
func (r *Runtime) WithGCPaused(ctx context.Context, fn func() error) (err error) {
	prev, err := r.prims.GCEnable(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if _, rerr := r.prims.GCEnable(ctx, prev); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// Close releases the wazero runtime. It is a no-op for runtimes built
// with New.
func (r *Runtime) Close(ctx context.Context) error {
	if r.engine == nil {
		return nil
	}
	if r.inst != nil {
		if err := r.inst.Close(ctx); err != nil {
			engine.Logger().Warn("close instance", zap.Error(err))
		}
	}
	return r.engine.Close(ctx)
}
