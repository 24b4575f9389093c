package containers

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// FlatVector2D stores N slots of variable-length runs of T back-to-back in a
// single buffer. Appending or erasing inside a slot shifts the tail of the
// buffer; runs are expected to stay small (face counts per cell).
type FlatVector2D[T any] struct {
	offsets []uint32
	data    []T
}

// NewFlatVector2D returns a flat vector with nSlots empty slots.
func NewFlatVector2D[T any](nSlots int) FlatVector2D[T] {
	return FlatVector2D[T]{
		offsets: make([]uint32, nSlots+1),
	}
}

// NewFlatVector2DFrom builds a flat vector whose slots hold copies of the
// given runs.
func NewFlatVector2DFrom[T any](slots [][]T) FlatVector2D[T] {
	f := FlatVector2D[T]{
		offsets: make([]uint32, len(slots)+1),
	}
	total := 0
	for _, s := range slots {
		total += len(s)
	}
	f.data = make([]T, 0, total)
	for i, s := range slots {
		f.data = append(f.data, s...)
		f.offsets[i+1] = f.offsets[i] + uint32(len(s))
	}
	return f
}

// SlotCount returns the number of slots.
func (f *FlatVector2D[T]) SlotCount() int {
	if len(f.offsets) == 0 {
		return 0
	}
	return len(f.offsets) - 1
}

// Count returns the number of items in the given slot.
func (f *FlatVector2D[T]) Count(slot int) int {
	return int(f.offsets[slot+1] - f.offsets[slot])
}

// TotalCount returns the number of items across all slots.
func (f *FlatVector2D[T]) TotalCount() int {
	return len(f.data)
}

// Get returns the i-th item of the given slot.
func (f *FlatVector2D[T]) Get(slot, i int) T {
	return f.data[int(f.offsets[slot])+i]
}

// Set overwrites the i-th item of the given slot.
func (f *FlatVector2D[T]) Set(slot, i int, item T) {
	f.data[int(f.offsets[slot])+i] = item
}

// Slot returns a view of the run stored in the given slot. The view is
// invalidated by PushBack and Erase.
func (f *FlatVector2D[T]) Slot(slot int) []T {
	return f.data[f.offsets[slot]:f.offsets[slot+1]]
}

// PushBack appends an item at the end of the given slot, shifting the tail
// of the buffer.
func (f *FlatVector2D[T]) PushBack(slot int, item T) {
	at := int(f.offsets[slot+1])
	var zero T
	f.data = append(f.data, zero)
	copy(f.data[at+1:], f.data[at:])
	f.data[at] = item
	for s := slot + 1; s < len(f.offsets); s++ {
		f.offsets[s]++
	}
}

// Erase removes the i-th item of the given slot, shifting the tail of the
// buffer.
func (f *FlatVector2D[T]) Erase(slot, i int) {
	at := int(f.offsets[slot]) + i
	copy(f.data[at:], f.data[at+1:])
	f.data = f.data[:len(f.data)-1]
	for s := slot + 1; s < len(f.offsets); s++ {
		f.offsets[s]--
	}
}

// Clear empties every slot while keeping the slot count.
func (f *FlatVector2D[T]) Clear() {
	for s := range f.offsets {
		f.offsets[s] = 0
	}
	f.data = f.data[:0]
}

// BinarySizeRagged returns the encoded size of an id-valued flat vector.
func BinarySizeRagged(f *FlatVector2D[int64]) int {
	return 4 + 4*len(f.offsets) + 8*len(f.data)
}

// WriteRagged encodes an id-valued flat vector as a ragged block: slot count
// (u32), offsets (u32, slot count + 1 entries) and payload (i64 ids). No
// framing is added.
func WriteRagged(w io.Writer, f *FlatVector2D[int64]) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(f.SlotCount())); err != nil {
		return errors.Wrap(err, "cannot write slot count")
	}
	if err := binary.Write(w, binary.LittleEndian, f.offsets); err != nil {
		return errors.Wrap(err, "cannot write offsets")
	}
	if err := binary.Write(w, binary.LittleEndian, f.data); err != nil {
		return errors.Wrap(err, "cannot write payload")
	}
	return nil
}

// ReadRagged decodes a ragged block written by WriteRagged.
func ReadRagged(r io.Reader) (FlatVector2D[int64], error) {
	var f FlatVector2D[int64]
	var nSlots uint32
	if err := binary.Read(r, binary.LittleEndian, &nSlots); err != nil {
		return f, errors.Wrap(err, "cannot read slot count")
	}
	f.offsets = make([]uint32, nSlots+1)
	if err := binary.Read(r, binary.LittleEndian, f.offsets); err != nil {
		return f, errors.Wrap(err, "cannot read offsets")
	}
	f.data = make([]int64, f.offsets[nSlots])
	if err := binary.Read(r, binary.LittleEndian, f.data); err != nil {
		return f, errors.Wrap(err, "cannot read payload")
	}
	return f, nil
}
