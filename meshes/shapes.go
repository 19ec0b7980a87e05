package meshes

import (
	"encoding/binary"
	"log"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

// Material holds exactly one of the four material layouts, chosen by the kind word
// of the shared base.
type Material struct {
	Mat1  *pakFormats.Mat1     `json:",omitempty"`
	Mat2  *pakFormats.Mat2     `json:",omitempty"`
	Mat3  *pakFormats.Mat3     `json:",omitempty"`
	Mat4  *pakFormats.Mat4     `json:",omitempty"`
	Extra *pakFormats.MatExtra `json:",omitempty"`
}

func decodeMaterial(block []byte, off int, order binary.ByteOrder) (*Material, error) {
	kind, err := lotrcTypes.Uint32At(block, off+pakFormats.MatKindOffset, order)
	if err != nil {
		return nil, err
	}
	m := &Material{}
	switch kind {
	case 0:
		m.Mat1, err = unpackPtr[pakFormats.Mat1](block, off, order)
	case 1:
		m.Mat4, err = unpackPtr[pakFormats.Mat4](block, off, order)
	case 2:
		m.Mat2, err = unpackPtr[pakFormats.Mat2](block, off, order)
	case 3:
		m.Mat3, err = unpackPtr[pakFormats.Mat3](block, off, order)
	default:
		return nil, errors.Wrapf(lotrcTypes.Unsupported("material kind", kind), "material at %d", off)
	}
	if err != nil {
		return nil, err
	}
	if x := m.Base().MatExtraOffset; x != 0 {
		if m.Extra, err = unpackPtr[pakFormats.MatExtra](block, int(x), order); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func unpackPtr[T any](b []byte, off int, order binary.ByteOrder) (*T, error) {
	v, err := lotrcTypes.Unpack[T](b, off, order)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Base returns the fields every layout shares, or nil for an empty Material.
func (m *Material) Base() *pakFormats.MatBase {
	switch {
	case m.Mat1 != nil:
		return &m.Mat1.Base
	case m.Mat2 != nil:
		return &m.Mat2.Base
	case m.Mat3 != nil:
		return &m.Mat3.Base
	case m.Mat4 != nil:
		return &m.Mat4.Base
	}
	return nil
}

// record returns the table the material belongs in and a copy of its record.
func (m *Material) record() (pakFormats.TableKind, interface{}) {
	switch {
	case m.Mat1 != nil:
		return pakFormats.Mat1Table, *m.Mat1
	case m.Mat2 != nil:
		return pakFormats.Mat2Table, *m.Mat2
	case m.Mat3 != nil:
		return pakFormats.Mat3Table, *m.Mat3
	case m.Mat4 != nil:
		return pakFormats.Mat4Table, *m.Mat4
	}
	return pakFormats.Mat1Table, nil
}

type ShapeExtraHeader struct {
	Num  uint32
	Unk1 float32
	Unk2 uint32
	Unk3 float32
}

// ShapeExtra is the variable length payload a kind 0 ShapeInfo points at. Data runs
// from the end of the offset list up to the first pair of zero bytes at or after the
// last offset; encoding writes that terminator back.
type ShapeExtra struct {
	Header ShapeExtraHeader
	Offs   []uint32
	Data   []byte
}

var shapeExtraHeaderSize = binary.Size(ShapeExtraHeader{})

func decodeShapeExtra(block []byte, off int, order binary.ByteOrder) (*ShapeExtra, error) {
	h, err := lotrcTypes.Unpack[ShapeExtraHeader](block, off, order)
	if err != nil {
		return nil, err
	}
	off += shapeExtraHeaderSize
	offs, err := lotrcTypes.UnpackSlice[uint32](block, off, int(h.Num), order)
	if err != nil {
		return nil, err
	}
	start := off + 4*len(offs)
	end := start
	if len(offs) != 0 {
		end += int(offs[len(offs)-1])
		for ; end+1 < len(block) && (block[end] != 0 || block[end+1] != 0); end++ {
		}
		if end+1 >= len(block) {
			return nil, lotrcTypes.FormatErrorf("shape extra at %d has no terminator", off-shapeExtraHeaderSize)
		}
	}
	return &ShapeExtra{Header: h, Offs: offs, Data: append([]byte(nil), block[start:end]...)}, nil
}

func (e *ShapeExtra) encode(order binary.ByteOrder) []byte {
	h := e.Header
	h.Num = uint32(len(e.Offs))
	b := lotrcTypes.Pack(order, h)
	b = append(b, lotrcTypes.Pack(order, e.Offs)...)
	b = append(b, e.Data...)
	return append(b, 0, 0)
}

type Shape struct {
	Info     pakFormats.ShapeInfo
	Extra    *ShapeExtra `json:",omitempty"`
	HkShapes []HkShape
}

func decodeShape(block []byte, off int, order binary.ByteOrder) (*Shape, error) {
	info, err := lotrcTypes.Unpack[pakFormats.ShapeInfo](block, off, order)
	if err != nil {
		return nil, err
	}
	s := &Shape{Info: info}
	if info.Kind == 0 {
		if s.Extra, err = decodeShapeExtra(block, int(info.Offset), order); err != nil {
			return nil, err
		}
	}
	for i := 0; i < int(info.HkShapeNum); i++ {
		hs, err := decodeHkShape(block, int(info.HkShapeOffset)+i*pakFormats.HkShapeInfoSize, order)
		if err != nil {
			return nil, errors.Wrapf(err, "hk shape %d", i)
		}
		s.HkShapes = append(s.HkShapes, *hs)
	}
	return s, nil
}

// HkShape is a physics shape record. Kinds 5 and 6 carry payloads; the others are
// the record alone.
type HkShape struct {
	Info pakFormats.HkShapeInfo

	// kind 5
	A      []uint32 `json:",omitempty"`
	B      []uint32 `json:",omitempty"`
	BExtra int      `json:",omitempty"`

	// kind 6
	C []byte   `json:",omitempty"`
	D []uint32 `json:",omitempty"`
	E []uint16 `json:",omitempty"`
}

func decodeHkShape(block []byte, off int, order binary.ByteOrder) (*HkShape, error) {
	info, err := lotrcTypes.Unpack[pakFormats.HkShapeInfo](block, off, order)
	if err != nil {
		return nil, err
	}
	s := &HkShape{Info: info}
	d := &decoder{b: block, order: order}
	switch info.Kind {
	case 0, 1, 2, 3, 4:
	case 5:
		s.A = unpackSlice[uint32](d, info.AOffset, int(info.ANum)*4)
		// B is read on to a 16 byte boundary; the tail belongs to the shape.
		n := int(info.BNum)
		for (int(info.BOffset)+n*12)%16 != 0 {
			n++
		}
		s.B = unpackSlice[uint32](d, info.BOffset, n*3)
		s.BExtra = n - int(info.BNum)
	case 6:
		var c []byte
		if d.err == nil {
			c, d.err = lotrcTypes.Bytes(block, int(info.COffset), int(info.CNum))
		}
		s.C = append([]byte{}, c...)
		s.D = unpackSlice[uint32](d, info.DOffset, int(info.DNum)*3)
		s.E = unpackSlice[uint16](d, info.EOffset, int(info.ENum)*3)
	default:
		log.Printf("hk shape at %d: %v, keeping the record only", off, lotrcTypes.Unsupported("hk shape kind", info.Kind))
	}
	return s, d.err
}

type ConstraintString struct {
	Name string
	Val  uint32
}

type HkConstraint struct {
	Info    pakFormats.HkConstraintInfo
	Shorts  []uint16
	Strings []ConstraintString
	Vals    []uint32
	Vals2   []uint32
	Keys    []Key2
}

func decodeHkConstraint(block []byte, off int, order binary.ByteOrder) (*HkConstraint, error) {
	info, err := lotrcTypes.Unpack[pakFormats.HkConstraintInfo](block, off, order)
	if err != nil {
		return nil, err
	}
	if info.Kind != 0 {
		return nil, errors.Wrapf(lotrcTypes.Unsupported("hk constraint kind", info.Kind), "constraint at %d", off)
	}
	d := &decoder{b: block, order: order}
	c := &HkConstraint{Info: info}
	c.Shorts = unpackSlice[uint16](d, info.ShortsOffset, int(info.ShortsNum))
	ptrs := unpackSlice[uint32](d, info.StringsOffset, int(info.StringsNum))
	for _, p := range ptrs {
		pair := unpackSlice[uint32](d, p, 2)
		if d.err != nil {
			return nil, d.err
		}
		name, err := lotrcTypes.CString(block, int(pair[0]))
		if err != nil {
			return nil, err
		}
		c.Strings = append(c.Strings, ConstraintString{Name: name, Val: pair[1]})
	}
	c.Vals = unpackSlice[uint32](d, info.ValsOffset, int(info.ValsNum)*12)
	c.Vals2 = unpackSlice[uint32](d, info.Vals2Offset, int(info.Vals2Num)*42)
	c.Keys = unpackSlice[Key2](d, info.Keys2Offset, int(info.Keys2Num))
	if d.err != nil {
		return nil, d.err
	}
	if len(c.Shorts) == 0 || c.Shorts[0] != 0xFFFF {
		return nil, lotrcTypes.Invariantf("constraint at %d: shorts do not start with 0xFFFF", off)
	}
	return c, nil
}
