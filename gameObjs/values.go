package gameObjs

import (
	"encoding/binary"
	"encoding/json"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

type Crc = lotrcTypes.Crc

// Field type codes, the hash of the type name.
var (
	CRCKind        = lotrcTypes.Hash("CRC")
	GUIDKind       = lotrcTypes.Hash("GUID")
	ColorKind      = lotrcTypes.Hash("Color")
	Vector2Kind    = lotrcTypes.Hash("Vector2")
	Vector3Kind    = lotrcTypes.Hash("Vector3")
	Vector4Kind    = lotrcTypes.Hash("Vector4")
	Matrix4x4Kind  = lotrcTypes.Hash("Matrix4x4")
	FloatKind      = lotrcTypes.Hash("Float")
	IntKind        = lotrcTypes.Hash("Int")
	BoolKind       = lotrcTypes.Hash("Bool")
	ByteKind       = lotrcTypes.Hash("Byte")
	StringKind     = lotrcTypes.Hash("String")
	StringListKind = lotrcTypes.Hash("StringList")
	ObjectListKind = lotrcTypes.Hash("ObjectList")
	NodeListKind   = lotrcTypes.Hash("NodeList")
	IntListKind    = lotrcTypes.Hash("IntList")
	CRCListKind    = lotrcTypes.Hash("CRCList")
	WeightListKind = lotrcTypes.Hash("WeightList")
	MatrixListKind = lotrcTypes.Hash("MatrixList")
)

// KindNames seeds a string table with every field type name.
var KindNames = []string{
	"CRC", "GUID", "Color", "Vector2", "Vector3", "Vector4", "Matrix4x4", "Float", "Int", "Bool",
	"Byte", "String", "StringList", "ObjectList", "NodeList", "IntList", "CRCList", "WeightList",
	"MatrixList",
}

// Value is one decoded field. Data holds, by Kind:
//
//	CRC                  Crc
//	GUID, Color, Int     uint32
//	Byte                 uint8
//	Float                float32
//	Bool                 lotrcTypes.Bool
//	Vector2/3/4          lotrcTypes.Vector2/3/4
//	Matrix4x4            lotrcTypes.Matrix4x4
//	String               string
//	StringList           []string
//	ObjectList, IntList  []uint32
//	NodeList             []lotrcTypes.Node
//	CRCList              []Crc
//	WeightList           []lotrcTypes.Weight
//	MatrixList           []lotrcTypes.Matrix4x4
type Value struct {
	Kind Crc
	Data interface{}
}

func isList(kind Crc) bool {
	switch kind {
	case StringKind, StringListKind, ObjectListKind, NodeListKind, IntListKind, CRCListKind,
		WeightListKind, MatrixListKind:
		return true
	}
	return false
}

func fixedSize(kind Crc) (int, bool) {
	switch kind {
	case CRCKind, GUIDKind, ColorKind, FloatKind, IntKind, BoolKind:
		return 4, true
	case ByteKind:
		return 1, true
	case Vector2Kind:
		return 8, true
	case Vector3Kind:
		return 12, true
	case Vector4Kind:
		return 16, true
	case Matrix4x4Kind:
		return 64, true
	}
	if isList(kind) {
		return 4, true
	}
	return 0, false
}

// Size is the number of bytes the value occupies inside the fixed record.
func (v Value) Size() int {
	n, _ := fixedSize(v.Kind)
	return n
}

// VarSize is the number of bytes of variable data the value places after the fixed record.
func (v Value) VarSize() int {
	switch d := v.Data.(type) {
	case string:
		return stringSize(d)
	case []string:
		n := 4 * len(d)
		for _, s := range d {
			n += stringSize(s)
		}
		return n
	case []uint32, []lotrcTypes.Node, []Crc, []lotrcTypes.Weight, []lotrcTypes.Matrix4x4:
		return binary.Size(d)
	}
	return 0
}

// empty strings take no space, others carry a terminator
func stringSize(s string) int {
	if len(s) == 0 {
		return 0
	}
	return len(s) + 1
}

func unpackList[T any](b []byte, pos int, order binary.ByteOrder) ([]T, error) {
	l, err := lotrcTypes.Unpack[lotrcTypes.List](b, pos, order)
	if err != nil {
		return nil, err
	}
	return lotrcTypes.UnpackSlice[T](b, pos+4+int(l.Offset), int(l.Num), order)
}

func unpackString(b []byte, pos int, order binary.ByteOrder) (string, error) {
	l, err := lotrcTypes.Unpack[lotrcTypes.List](b, pos, order)
	if err != nil {
		return "", err
	}
	s, err := lotrcTypes.Bytes(b, pos+4+int(l.Offset), int(l.Num))
	return string(s), err
}

// decodeValue reads a field of the given kind stored at pos.
func decodeValue(b []byte, pos int, kind Crc, order binary.ByteOrder) (Value, error) {
	v := Value{Kind: kind}
	var err error
	switch kind {
	case CRCKind:
		v.Data, err = lotrcTypes.Unpack[Crc](b, pos, order)
	case GUIDKind, ColorKind, IntKind:
		v.Data, err = lotrcTypes.Unpack[uint32](b, pos, order)
	case ByteKind:
		v.Data, err = lotrcTypes.Unpack[uint8](b, pos, order)
	case FloatKind:
		v.Data, err = lotrcTypes.Unpack[float32](b, pos, order)
	case BoolKind:
		v.Data, err = lotrcTypes.Unpack[lotrcTypes.Bool](b, pos, order)
	case Vector2Kind:
		v.Data, err = lotrcTypes.Unpack[lotrcTypes.Vector2](b, pos, order)
	case Vector3Kind:
		v.Data, err = lotrcTypes.Unpack[lotrcTypes.Vector3](b, pos, order)
	case Vector4Kind:
		v.Data, err = lotrcTypes.Unpack[lotrcTypes.Vector4](b, pos, order)
	case Matrix4x4Kind:
		v.Data, err = lotrcTypes.Unpack[lotrcTypes.Matrix4x4](b, pos, order)
	case StringKind:
		v.Data, err = unpackString(b, pos, order)
	case StringListKind:
		v.Data, err = unpackStringList(b, pos, order)
	case ObjectListKind, IntListKind:
		v.Data, err = unpackList[uint32](b, pos, order)
	case NodeListKind:
		v.Data, err = unpackList[lotrcTypes.Node](b, pos, order)
	case CRCListKind:
		v.Data, err = unpackList[Crc](b, pos, order)
	case WeightListKind:
		v.Data, err = unpackList[lotrcTypes.Weight](b, pos, order)
	case MatrixListKind:
		v.Data, err = unpackList[lotrcTypes.Matrix4x4](b, pos, order)
	default:
		return v, lotrcTypes.Unsupported("game object field type", kind.Key())
	}
	return v, err
}

// A string list is a List of Lists: each entry locates its own characters relative
// to the end of the entry.
func unpackStringList(b []byte, pos int, order binary.ByteOrder) ([]string, error) {
	l, err := lotrcTypes.Unpack[lotrcTypes.List](b, pos, order)
	if err != nil {
		return nil, err
	}
	base := pos + 4 + int(l.Offset)
	entries, err := lotrcTypes.UnpackSlice[lotrcTypes.List](b, base, int(l.Num), order)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		s, err := lotrcTypes.Bytes(b, base+4*i+4+int(e.Offset), int(e.Num))
		if err != nil {
			return nil, errors.Wrapf(err, "string list entry %d", i)
		}
		out[i] = string(s)
	}
	return out, nil
}

// encode writes the value's fixed part at pos and its variable data at off, returning
// the position after the variable data. Both positions are absolute within b.
func (v Value) encode(b []byte, pos, off int, order binary.ByteOrder) (int, error) {
	if v.Size() == 0 {
		return off, lotrcTypes.Unsupported("game object field type", v.Kind.Key())
	}
	if pos+v.Size() > len(b) || off+v.VarSize() > len(b) {
		return off, lotrcTypes.Mismatch("game object record", max(pos+v.Size(), off+v.VarSize()), len(b))
	}
	if !isList(v.Kind) {
		if binary.Size(v.Data) != v.Size() {
			return off, errors.Errorf("value of kind %s holds %T", v.Kind, v.Data)
		}
		return off, lotrcTypes.PackAt(b, pos, order, v.Data)
	}
	putList := func(at, n, target int) error {
		return lotrcTypes.PackAt(b, at, order, lotrcTypes.List{Num: uint16(n), Offset: uint16(target - at - 4)})
	}
	switch d := v.Data.(type) {
	case string:
		if err := putList(pos, len(d), off); err != nil {
			return off, err
		}
		copy(b[off:], d)
		return off + stringSize(d), nil
	case []string:
		if err := putList(pos, len(d), off); err != nil {
			return off, err
		}
		entry := off
		off += 4 * len(d)
		for _, s := range d {
			if err := putList(entry, len(s), off); err != nil {
				return off, err
			}
			copy(b[off:], s)
			off += stringSize(s)
			entry += 4
		}
		return off, nil
	default:
		n := binary.Size(d)
		if n < 0 {
			return off, errors.Errorf("value of kind %s holds %T", v.Kind, v.Data)
		}
		if err := putList(pos, n/elemSize(v.Kind), off); err != nil {
			return off, err
		}
		if n > 0 {
			if err := lotrcTypes.PackAt(b, off, order, d); err != nil {
				return off, err
			}
		}
		return off + n, nil
	}
}

func elemSize(kind Crc) int {
	switch kind {
	case NodeListKind:
		return 16
	case MatrixListKind:
		return 64
	case WeightListKind:
		return 8
	}
	return 4
}

// toJSON writes CRCs by name when the table knows them.
func (v Value) toJSON(names *lotrcTypes.StringTable) interface{} {
	switch d := v.Data.(type) {
	case Crc:
		return names.Name(d)
	case []Crc:
		s := make([]string, len(d))
		for i, c := range d {
			s[i] = names.Name(c)
		}
		return s
	case lotrcTypes.Bool:
		return d.Val
	}
	return v.Data
}

func parseCrc(s string, names *lotrcTypes.StringTable) (Crc, error) {
	c, err := lotrcTypes.ParseCrc(s)
	if err == nil && names != nil && !isHex(s) {
		names.Add(s)
	}
	return c, err
}

func isHex(s string) bool {
	return len(s) > 2 && s[:2] == "0x"
}

func valueFromJSON(raw json.RawMessage, kind Crc, names *lotrcTypes.StringTable) (Value, error) {
	v := Value{Kind: kind}
	var err error
	unmarshal := func(p interface{}) interface{} {
		err = json.Unmarshal(raw, p)
		return p
	}
	switch kind {
	case CRCKind:
		var s string
		if err = json.Unmarshal(raw, &s); err == nil {
			v.Data, err = parseCrc(s, names)
		}
	case CRCListKind:
		var ss []string
		if err = json.Unmarshal(raw, &ss); err == nil {
			cs := make([]Crc, len(ss))
			for i, s := range ss {
				if cs[i], err = parseCrc(s, names); err != nil {
					break
				}
			}
			v.Data = cs
		}
	case GUIDKind, ColorKind, IntKind:
		v.Data = *unmarshal(new(uint32)).(*uint32)
	case ByteKind:
		v.Data = *unmarshal(new(uint8)).(*uint8)
	case FloatKind:
		v.Data = *unmarshal(new(float32)).(*float32)
	case BoolKind:
		v.Data = lotrcTypes.Bool{Val: *unmarshal(new(bool)).(*bool)}
	case Vector2Kind:
		v.Data = *unmarshal(new(lotrcTypes.Vector2)).(*lotrcTypes.Vector2)
	case Vector3Kind:
		v.Data = *unmarshal(new(lotrcTypes.Vector3)).(*lotrcTypes.Vector3)
	case Vector4Kind:
		v.Data = *unmarshal(new(lotrcTypes.Vector4)).(*lotrcTypes.Vector4)
	case Matrix4x4Kind:
		v.Data = *unmarshal(new(lotrcTypes.Matrix4x4)).(*lotrcTypes.Matrix4x4)
	case StringKind:
		v.Data = *unmarshal(new(string)).(*string)
	case StringListKind:
		v.Data = nonNil(*unmarshal(new([]string)).(*[]string))
	case ObjectListKind, IntListKind:
		v.Data = nonNil(*unmarshal(new([]uint32)).(*[]uint32))
	case NodeListKind:
		v.Data = nonNil(*unmarshal(new([]lotrcTypes.Node)).(*[]lotrcTypes.Node))
	case WeightListKind:
		v.Data = nonNil(*unmarshal(new([]lotrcTypes.Weight)).(*[]lotrcTypes.Weight))
	case MatrixListKind:
		v.Data = nonNil(*unmarshal(new([]lotrcTypes.Matrix4x4)).(*[]lotrcTypes.Matrix4x4))
	default:
		return v, lotrcTypes.Unsupported("game object field type", kind.Key())
	}
	if err != nil {
		return v, errors.Wrapf(err, "bad %s value %s", names.Name(kind), string(raw))
	}
	return v, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
