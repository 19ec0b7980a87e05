package relocator

import (
	"encoding/binary"
	"reflect"
	"sort"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

// Validate checks that each relocation entry lies inside block and that the offset
// stored there points inside block as well.
func Validate(block []byte, relocs []uint32, order binary.ByteOrder) error {
	for i, r := range relocs {
		v, err := lotrcTypes.Uint32At(block, int(r), order)
		if err != nil {
			return lotrcTypes.FormatErrorf("relocation %d at %d is outside the block (%d bytes)", i, r, len(block))
		}
		if int(v) >= len(block) {
			return lotrcTypes.FormatErrorf("relocation %d at %d holds offset %d outside the block (%d bytes)", i, r, v, len(block))
		}
	}
	return nil
}

// Duplicates lists relocation entries recorded more than once.
func Duplicates(relocs []uint32) []uint32 {
	s := append([]uint32(nil), relocs...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	var dup []uint32
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] && (len(dup) == 0 || dup[len(dup)-1] != s[i]) {
			dup = append(dup, s[i])
		}
	}
	return dup
}

// Table records the relocations of one fixed layout table: for each record at
// base + i*size, the field offsets in always, and the field offsets in ifSet when
// the value stored there is nonzero.
func Table(w *Writer, base, num, size int, always, ifSet []int) error {
	for i := 0; i < num; i++ {
		rec := base + i*size
		for _, f := range always {
			w.Relocate(rec + f)
		}
		for _, f := range ifSet {
			v, err := lotrcTypes.Uint32At(w.buf, rec+f, w.Order)
			if err != nil {
				return err
			}
			if v != 0 {
				w.Relocate(rec + f)
			}
		}
	}
	return nil
}

// Fields returns the byte offsets of the named fields of a fixed layout record.
func Fields(rec interface{}, names ...string) []int {
	t := reflect.TypeOf(rec)
	offs := make(map[string]int, t.NumField())
	pos := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		offs[f.Name] = pos
		pos += binary.Size(reflect.Zero(f.Type).Interface())
	}
	out := make([]int, len(names))
	for i, n := range names {
		o, ok := offs[n]
		if !ok {
			panic("relocator: " + t.Name() + " has no field " + n)
		}
		out[i] = o
	}
	return out
}
