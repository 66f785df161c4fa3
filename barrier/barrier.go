// Package barrier implements the collector's generational write barrier.
//
// Every store of a reference into a field of an existing heap object must go
// through a Coordinator. When an old, marked parent starts pointing at a
// child the collector has not marked yet, the parent is reported to the
// remembered set; otherwise the next young collection could free a child
// that is still referenced.
package barrier

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/header"
)

// Collector colors.
const (
	Marked    uint8 = 1 // reached in the current cycle
	OldMarked uint8 = 3 // promoted to the old generation and marked
)

// Queue reports a parent object to the collector's remembered set.
type Queue interface {
	QueueRoot(ctx context.Context, parent jlvalue.Value) error
}

// Required reports whether storing a child with color child into a parent
// with color parent must be reported.
func Required(parent, child uint8) bool {
	return parent == OldMarked && child&Marked == 0
}

type Coordinator struct {
	dec   *header.Decoder
	queue Queue
}

func New(dec *header.Decoder, queue Queue) *Coordinator {
	return &Coordinator{dec: dec, queue: queue}
}

// Barrier runs the write barrier for a store of child into parent and
// reports whether parent was queued. Nil children are never reported.
func (c *Coordinator) Barrier(ctx context.Context, parent, child jlvalue.Value) (bool, error) {
	if parent.IsNil() {
		return false, errors.NilValue(errors.PhaseBarrier, []string{"parent"})
	}
	if child.IsNil() {
		return false, nil
	}
	ph, err := c.dec.Decode(parent)
	if err != nil {
		return false, err
	}
	ch, err := c.dec.Decode(child)
	if err != nil {
		return false, err
	}
	mask := c.dec.Layout().GCMask()
	if !Required(ph.Color(mask), ch.Color(mask)) {
		return false, nil
	}
	if err := c.queue.QueueRoot(ctx, parent); err != nil {
		return false, err
	}
	Logger().Debug("queued root", zap.Stringer("parent", parent), zap.Stringer("child", child))
	return true, nil
}

// StoreField writes child into the reference field at off inside parent and
// runs the barrier immediately after the store.
func (c *Coordinator) StoreField(ctx context.Context, parent jlvalue.Value, off uint32, child jlvalue.Value) error {
	if parent.IsNil() {
		return errors.NilValue(errors.PhaseBarrier, []string{"parent"})
	}
	l := c.dec.Layout()
	if err := l.WriteWord(c.dec.Memory(), l.Field(parent, off), uint64(child)); err != nil {
		return err
	}
	_, err := c.Barrier(ctx, parent, child)
	return err
}

// StoreSVecSlot writes child into slot i of a simple vector.
func (c *Coordinator) StoreSVecSlot(ctx context.Context, svec jlvalue.Value, i int, child jlvalue.Value) error {
	if svec.IsNil() {
		return errors.NilValue(errors.PhaseBarrier, []string{"svec"})
	}
	l := c.dec.Layout()
	n, err := l.ReadWord(c.dec.Memory(), uint32(svec))
	if err != nil {
		return err
	}
	if i < 0 || uint64(i) >= n {
		return errors.OutOfBounds(errors.PhaseBarrier, []string{"svec"}, i, int(n))
	}
	return c.StoreField(ctx, svec, l.WordSize+uint32(i)*l.WordSize, child)
}

// StoreArrayRef writes child into element i of an array of references.
// The array object itself is the parent the barrier sees.
func (c *Coordinator) StoreArrayRef(ctx context.Context, array jlvalue.Value, i int, child jlvalue.Value) error {
	if array.IsNil() {
		return errors.NilValue(errors.PhaseBarrier, []string{"array"})
	}
	l := c.dec.Layout()
	mem := c.dec.Memory()
	flags, err := mem.ReadU16(l.Field(array, l.Array.Flags))
	if err != nil {
		return errors.MemoryFault(errors.PhaseBarrier, l.Field(array, l.Array.Flags), err)
	}
	if flags>>l.Array.PtrArrayBit&1 == 0 {
		return errors.New(errors.PhaseBarrier, errors.KindTypeMismatch).
			Path("array").
			Value(array).
			Detail("elements are stored inline, not as references").
			Build()
	}
	n, err := l.ReadWord(mem, l.Field(array, l.Array.Length))
	if err != nil {
		return err
	}
	if i < 0 || uint64(i) >= n {
		return errors.OutOfBounds(errors.PhaseBarrier, []string{"array"}, i, int(n))
	}
	data, err := l.ReadValue(mem, l.Field(array, l.Array.Data))
	if err != nil {
		return err
	}
	if err := l.WriteWord(mem, data.Offset(uint32(i)*l.WordSize), uint64(child)); err != nil {
		return err
	}
	_, err = c.Barrier(ctx, array, child)
	return err
}
