package relocator

import (
	"encoding/binary"
	"testing"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

func TestWriterLayout(t *testing.T) {
	w := NewWriter(binary.BigEndian)
	w.Put(uint32(1))
	w.Pad(16)
	if w.Pos() != 16 {
		t.Fatalf("pad to 16: %d", w.Pos())
	}
	w.PadPast()
	if w.Pos() != 32 {
		t.Fatalf("pad past 16: %d", w.Pos())
	}
	res := w.Reserve(8)
	w.PutOffset(uint32(res))
	if err := w.PutAt(res, [2]uint32{7, 8}); err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint32(w.Bytes()[res+4:]) != 8 {
		t.Errorf("PutAt did not write in place")
	}
	if r := w.Relocations(); len(r) != 1 || r[0] != 40 {
		t.Errorf("relocations %v", r)
	}
	if err := Validate(w.Bytes(), w.Relocations(), w.Order); err != nil {
		t.Errorf("valid block rejected: %v", err)
	}
	if err := w.PadTo(44, "slot"); !lotrcTypes.IsSizeMismatch(err) {
		t.Errorf("expected SizeMismatch, got %v", err)
	}
	if err := w.PadTo(64, "slot"); err != nil || w.Pos() != 64 {
		t.Errorf("PadTo: %v %d", err, w.Pos())
	}
}

func TestValidate(t *testing.T) {
	block := make([]byte, 16)
	binary.LittleEndian.PutUint32(block[4:], 12)
	binary.LittleEndian.PutUint32(block[8:], 16)
	if err := Validate(block, []uint32{4}, binary.LittleEndian); err != nil {
		t.Errorf("unexpected %v", err)
	}
	if err := Validate(block, []uint32{8}, binary.LittleEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("target past the end must fail, got %v", err)
	}
	if err := Validate(block, []uint32{14}, binary.LittleEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("entry past the end must fail, got %v", err)
	}
	if d := Duplicates([]uint32{4, 8, 4, 4, 12, 8}); len(d) != 2 || d[0] != 4 || d[1] != 8 {
		t.Errorf("Duplicates = %v", d)
	}
}

func TestTable(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	base := w.Put([]uint32{100, 0, 5, 100, 9, 0})
	if err := Table(w, base, 2, 12, []int{0}, []int{4, 8}); err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 8, 12, 16}
	got := w.Relocations()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestFields(t *testing.T) {
	type rec struct {
		A uint32
		B [3]uint16
		C uint8
		D float32
	}
	got := Fields(rec{}, "D", "A", "C")
	if got[0] != 11 || got[1] != 0 || got[2] != 10 {
		t.Errorf("Fields = %v", got)
	}
}
