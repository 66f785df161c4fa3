package primitive

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/errors"
)

// Handle names a constant exported by the runtime image: a type descriptor
// singleton, a type name shared by a parametric family, a module, or the
// canonical absence value.
type Handle int

const (
	Nothing Handle = iota
	BoolType
	CharType
	Int8Type
	Int16Type
	Int32Type
	Int64Type
	Uint8Type
	Uint16Type
	Uint32Type
	Uint64Type
	Float32Type
	Float64Type
	StringType
	DataTypeType
	SimpleVectorType
	SymbolType
	TaskType
	ModuleType
	UnionTypeType
	TypeVarType
	UnionAllType
	TypeNameType
	TupleTypeName
	NamedTupleTypeName
	ArrayTypeName
	BaseModule
	CoreModule
	MainModule

	numHandles
)

var handleNames = [...]string{
	Nothing:            "jl_nothing",
	BoolType:           "jl_bool_type",
	CharType:           "jl_char_type",
	Int8Type:           "jl_int8_type",
	Int16Type:          "jl_int16_type",
	Int32Type:          "jl_int32_type",
	Int64Type:          "jl_int64_type",
	Uint8Type:          "jl_uint8_type",
	Uint16Type:         "jl_uint16_type",
	Uint32Type:         "jl_uint32_type",
	Uint64Type:         "jl_uint64_type",
	Float32Type:        "jl_float32_type",
	Float64Type:        "jl_float64_type",
	StringType:         "jl_string_type",
	DataTypeType:       "jl_datatype_type",
	SimpleVectorType:   "jl_simplevector_type",
	SymbolType:         "jl_symbol_type",
	TaskType:           "jl_task_type",
	ModuleType:         "jl_module_type",
	UnionTypeType:      "jl_uniontype_type",
	TypeVarType:        "jl_tvar_type",
	UnionAllType:       "jl_unionall_type",
	TypeNameType:       "jl_typename_type",
	TupleTypeName:      "jl_tuple_typename",
	NamedTupleTypeName: "jl_namedtuple_typename",
	ArrayTypeName:      "jl_array_typename",
	BaseModule:         "jl_base_module",
	CoreModule:         "jl_core_module",
	MainModule:         "jl_main_module",
}

// Symbol returns the C global the handle is read from.
func (h Handle) Symbol() string {
	if h >= 0 && int(h) < len(handleNames) {
		return handleNames[h]
	}
	return "unknown"
}

func (h Handle) String() string {
	return h.Symbol()
}

// AllHandles lists every known handle in declaration order.
func AllHandles() []Handle {
	hs := make([]Handle, numHandles)
	for i := range hs {
		hs[i] = Handle(i)
	}
	return hs
}

// Symbols resolves a C global of the runtime image to the address of its
// storage inside the heap view.
type Symbols interface {
	Lookup(name string) (uint32, bool)
}

// SymbolMap is a static symbol table.
type SymbolMap map[string]uint32

func (m SymbolMap) Lookup(name string) (uint32, bool) {
	addr, ok := m[name]
	return addr, ok
}

// Handles resolves constants on first use and caches them for the lifetime
// of the runtime instance. The runtime never moves these objects.
type Handles struct {
	syms      Symbols
	mem       jlvalue.Memory
	overrides map[string]string
	vals      [numHandles]jlvalue.Value
	errs      [numHandles]error
	once      [numHandles]sync.Once
	layout    abi.Layout
}

// NewHandles creates a resolver. overrides maps a default C global name to
// the name the image actually exports.
func NewHandles(syms Symbols, mem jlvalue.Memory, layout abi.Layout, overrides map[string]string) *Handles {
	return &Handles{
		syms:      syms,
		mem:       mem,
		layout:    layout,
		overrides: overrides,
	}
}

// Get resolves h, reading it from the runtime at most once.
func (h *Handles) Get(k Handle) (jlvalue.Value, error) {
	if k < 0 || k >= numHandles {
		return jlvalue.Nil, errors.InvalidInput(errors.PhaseLoad, "unknown handle")
	}
	h.once[k].Do(func() {
		h.vals[k], h.errs[k] = h.resolve(k)
		if h.errs[k] != nil {
			Logger().Warn("handle unresolved", zap.Stringer("handle", k), zap.Error(h.errs[k]))
			return
		}
		Logger().Debug("handle resolved", zap.Stringer("handle", k), zap.Stringer("value", h.vals[k]))
	})
	return h.vals[k], h.errs[k]
}

// Value resolves h and returns Nil when it cannot be resolved.
func (h *Handles) Value(k Handle) jlvalue.Value {
	v, err := h.Get(k)
	if err != nil {
		return jlvalue.Nil
	}
	return v
}

func (h *Handles) resolve(k Handle) (jlvalue.Value, error) {
	name := k.Symbol()
	if alias, ok := h.overrides[name]; ok && alias != "" {
		name = alias
	}
	addr, ok := h.syms.Lookup(name)
	if !ok {
		return jlvalue.Nil, errors.NotFound(errors.PhaseLoad, "symbol", name)
	}
	v, err := h.layout.ReadValue(h.mem, addr)
	if err != nil {
		return jlvalue.Nil, err
	}
	if v.IsNil() {
		return jlvalue.Nil, errors.NotInitialized(errors.PhaseLoad, name)
	}
	return v, nil
}
