package engine

import "github.com/wippyai/jlvalue/errors"

// Config names the exports the engine binds and how the image is
// instantiated.
type Config struct {
	// ModuleName is the name the image is instantiated under. Empty makes
	// the instance anonymous, which allows loading the same image twice.
	ModuleName string `toml:"module_name" yaml:"module_name"`

	// MemoryExport is the exported memory holding the heap.
	MemoryExport string `toml:"memory" yaml:"memory"`

	// MallocExport and FreeExport provide scratch memory for C strings and
	// argument vectors. malloc takes (size i32) -> i32, free takes (ptr i32).
	MallocExport string `toml:"malloc" yaml:"malloc"`
	FreeExport   string `toml:"free" yaml:"free"`

	// InitExport, when set, is called with no arguments once the image is
	// instantiated (for example "jl_init" or "_initialize").
	InitExport string `toml:"init" yaml:"init"`

	// MemoryLimitPages caps linear memory in 64KiB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32 `toml:"memory_limit_pages" yaml:"memory_limit_pages"`

	// WASI instantiates wasi_snapshot_preview1 before the image.
	WASI bool `toml:"wasi" yaml:"wasi"`
}

func DefaultConfig() Config {
	return Config{
		MemoryExport: "memory",
		MallocExport: "malloc",
		FreeExport:   "free",
		WASI:         true,
	}
}

// Validate reports configurations that cannot bind an image.
func (c Config) Validate() error {
	if c.MemoryExport == "" {
		return errors.Config("engine: memory export name is empty", nil)
	}
	if (c.MallocExport == "") != (c.FreeExport == "") {
		return errors.Config("engine: malloc and free must be configured together", nil)
	}
	if c.MemoryLimitPages > 65536 {
		return errors.Config("engine: memory limit exceeds 65536 pages", nil)
	}
	return nil
}
