package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
)

// Instance is a bound runtime image.
type Instance struct {
	module   api.Module
	compiled wazero.CompiledModule
	sources  []api.Module
	memory   *Memory
	alloc    *allocator
	funcs    map[string]api.Function
}

// Bind wraps an instantiated image. Exports are looked up in mod first,
// then in each of extra in order.
func Bind(ctx context.Context, mod api.Module, cfg Config, extra ...api.Module) (*Instance, error) {
	if mod == nil {
		return nil, errors.NilValue(errors.PhaseLoad, []string{"module"})
	}
	mem := mod.ExportedMemory(cfg.MemoryExport)
	if mem == nil {
		mem = mod.Memory()
	}
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "memory export", cfg.MemoryExport)
	}

	inst := &Instance{
		module:  mod,
		sources: append([]api.Module{mod}, extra...),
		memory:  WrapMemory(mem),
		funcs:   make(map[string]api.Function),
	}

	inst.alloc = &allocator{stack: make([]uint64, 1)}
	if cfg.MallocExport != "" {
		inst.alloc.mallocFn = inst.lookupFunction(cfg.MallocExport)
		inst.alloc.freeFn = inst.lookupFunction(cfg.FreeExport)
		if inst.alloc.mallocFn == nil {
			Logger().Warn("image has no allocator, scratch memory unavailable",
				zap.String("malloc", cfg.MallocExport))
		}
	}
	return inst, nil
}

func (i *Instance) lookupFunction(name string) api.Function {
	if fn, ok := i.funcs[name]; ok {
		return fn
	}
	for _, src := range i.sources {
		if fn := src.ExportedFunction(name); fn != nil {
			i.funcs[name] = fn
			return fn
		}
	}
	return nil
}

// Has reports whether name is callable.
func (i *Instance) Has(name string) bool {
	return i.lookupFunction(name) != nil
}

// Missing returns the names in want that are not callable.
func (i *Instance) Missing(want []string) []string {
	var out []string
	for _, n := range want {
		if !i.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Invoke calls an exported function.
func (i *Instance) Invoke(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.lookupFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return res, nil
}

// Lookup returns the value of an exported i32 global, which for a C global
// is the address of its storage in linear memory.
func (i *Instance) Lookup(name string) (uint32, bool) {
	for _, src := range i.sources {
		if g := src.ExportedGlobal(name); g != nil {
			return api.DecodeU32(g.Get()), true
		}
	}
	return 0, false
}

func (i *Instance) Memory() *Memory {
	return i.memory
}

// Allocator returns the scratch allocator over the image's malloc and free.
func (i *Instance) Allocator() jlvalue.Allocator {
	return i.alloc
}

// Module returns the wazero module of the image.
func (i *Instance) Module() api.Module {
	return i.module
}

func (i *Instance) Close(ctx context.Context) error {
	var firstErr error
	if i.module != nil {
		if err := i.module.Close(ctx); err != nil {
			firstErr = err
		}
		i.module = nil
	}
	if i.compiled != nil {
		if err := i.compiled.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		i.compiled = nil
	}
	i.funcs = nil
	i.sources = nil
	return firstErr
}
