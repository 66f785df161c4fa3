package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/jlvalue/errors"
)

const wasiModule = "wasi_snapshot_preview1"

// Engine owns a wazero runtime and the host modules shared by every image
// it loads.
type Engine struct {
	runtime  wazero.Runtime
	hosts    map[string]map[string]any
	hostMods []api.Module // guest shims re-exporting host functions
	cfg      Config
	mu       sync.Mutex
	hostsUp  bool
	wasiMu   sync.Mutex
	wasiDone atomic.Bool
}

func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		hosts:   make(map[string]map[string]any),
		cfg:     cfg,
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Runtime exposes the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// RegisterFunc registers fn as export name of host module module. fn must be
// a Go function wazero can call (see wazero.HostFunctionBuilder.WithFunc).
// Registration must happen before the first Load.
func (e *Engine) RegisterFunc(module, name string, fn any) error {
	if module == "" || name == "" {
		return errors.InvalidInput(errors.PhaseLoad, "host module and function name must not be empty")
	}
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
			Path(module, name).
			GoType(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hostsUp {
		return errors.InvalidInput(errors.PhaseLoad, "host functions must be registered before loading an image")
	}
	if e.hosts[module] == nil {
		e.hosts[module] = make(map[string]any)
	}
	e.hosts[module][name] = fn
	return nil
}

func (e *Engine) instantiateHosts(ctx context.Context) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hostsUp {
		return nil
	}

	// WithFunc panics on signatures it cannot map.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Load(fmt.Sprintf("host function: %v", r), nil)
		}
	}()

	modules := make([]string, 0, len(e.hosts))
	for m := range e.hosts {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, m := range modules {
		builder := e.runtime.NewHostModuleBuilder(m)
		names := make([]string, 0, len(e.hosts[m]))
		for n := range e.hosts[m] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			builder = builder.NewFunctionBuilder().WithFunc(e.hosts[m][n]).Export(n)
		}
		compiled, err := builder.Compile(ctx)
		if err != nil {
			return errors.Load("compile host module "+m, err)
		}
		if _, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(m)); err != nil {
			return errors.Load("instantiate host module "+m, err)
		}
		shim, err := e.runtime.InstantiateWithConfig(ctx, shimModule(m, compiled.ExportedFunctions()),
			wazero.NewModuleConfig().WithName(""))
		if err != nil {
			return errors.Load("instantiate shim for "+m, err)
		}
		e.hostMods = append(e.hostMods, shim)
		Logger().Debug("host module instantiated", zap.String("module", m), zap.Int("functions", len(names)))
	}
	e.hostsUp = true
	return nil
}

// InitWASI instantiates wasi_snapshot_preview1 once per engine.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiDone.Load() {
		return nil
	}

	e.wasiMu.Lock()
	defer e.wasiMu.Unlock()

	if e.wasiDone.Load() {
		return nil
	}
	if e.runtime.Module(wasiModule) == nil {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			if e.runtime.Module(wasiModule) == nil {
				return errors.Load("instantiate WASI", err)
			}
		}
	}
	e.wasiDone.Store(true)
	return nil
}

// Load compiles and instantiates a runtime image and binds its exports.
func (e *Engine) Load(ctx context.Context, image []byte) (*Instance, error) {
	if e.cfg.WASI {
		if err := e.InitWASI(ctx); err != nil {
			return nil, err
		}
	}
	if err := e.instantiateHosts(ctx); err != nil {
		return nil, err
	}

	compiled, err := e.runtime.CompileModule(ctx, image)
	if err != nil {
		return nil, errors.Load("compile runtime image", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(e.cfg.ModuleName).
		WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Load("instantiate runtime image", err)
	}

	inst, err := Bind(ctx, mod, e.cfg, e.hostMods...)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	inst.compiled = compiled

	if e.cfg.InitExport != "" {
		if _, err := inst.Invoke(ctx, e.cfg.InitExport); err != nil {
			_ = inst.Close(ctx)
			return nil, errors.Load("run "+e.cfg.InitExport, err)
		}
	}

	Logger().Info("runtime image loaded",
		zap.String("module", e.cfg.ModuleName),
		zap.Uint32("memory_bytes", inst.memory.Size()),
		zap.Int("exports", len(mod.ExportedFunctionDefinitions())))
	return inst, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
