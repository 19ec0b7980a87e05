// Package relocator builds a block while recording every location that holds an
// offset into the same block.
package relocator

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

type Writer struct {
	Order  binary.ByteOrder
	buf    []byte
	relocs []uint32
}

func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{Order: order}
}

func (w *Writer) Pos() int { return len(w.buf) }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Put appends a record (or slice of records) in the writer's order and returns where it starts.
func (w *Writer) Put(v interface{}) int {
	pos := len(w.buf)
	w.buf = append(w.buf, lotrcTypes.Pack(w.Order, v)...)
	return pos
}

// PutOffset appends a u32 offset and records it for relocation.
func (w *Writer) PutOffset(v uint32) int {
	pos := w.Put(v)
	w.Relocate(pos)
	return pos
}

func (w *Writer) Reserve(n int) int {
	pos := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return pos
}

// Pad zero fills up to the next multiple of align.
func (w *Writer) Pad(align int) {
	w.Reserve(lotrcTypes.Align(len(w.buf), align) - len(w.buf))
}

// PadPast zero fills to the next multiple of 16 strictly after the current position.
func (w *Writer) PadPast() {
	w.Reserve(lotrcTypes.AlignPast(len(w.buf)) - len(w.buf))
}

// PadTo zero fills up to n. Having already written past n is a SizeMismatch.
func (w *Writer) PadTo(n int, what string) error {
	if len(w.buf) > n {
		return lotrcTypes.Mismatch(what, len(w.buf), n)
	}
	w.Reserve(n - len(w.buf))
	return nil
}

// PutAt overwrites a previously reserved region.
func (w *Writer) PutAt(off int, v interface{}) error {
	return lotrcTypes.PackAt(w.buf, off, w.Order, v)
}

func (w *Writer) Relocate(off int) {
	w.relocs = append(w.relocs, uint32(off))
}

func (w *Writer) Relocations() []uint32 { return w.relocs }
