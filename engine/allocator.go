package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// allocator calls the image's malloc and free. The image's malloc aligns to
// at least 8 bytes; larger alignments are checked, not arranged.
type allocator struct {
	mallocFn api.Function
	freeFn   api.Function
	stack    []uint64
}

func (a *allocator) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	if a.mallocFn == nil {
		return 0, fmt.Errorf("no allocator available")
	}
	a.stack[0] = api.EncodeU32(size)
	if err := a.mallocFn.CallWithStack(ctx, a.stack[:1]); err != nil {
		return 0, err
	}
	p := api.DecodeU32(a.stack[0])
	if p == 0 {
		return 0, fmt.Errorf("malloc(%d) returned null", size)
	}
	if align > 1 && p%align != 0 {
		a.Free(ctx, p, size, align)
		return 0, fmt.Errorf("malloc(%d) returned %#x, not aligned to %d", size, p, align)
	}
	return p, nil
}

func (a *allocator) Free(ctx context.Context, ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	a.stack[0] = api.EncodeU32(ptr)
	if err := a.freeFn.CallWithStack(ctx, a.stack[:1]); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
