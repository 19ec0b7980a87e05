package gameObjs

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"unicode/utf16"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

// Data is a sub-block kept as raw bytes.
type Data struct {
	Data []byte
}

func (d *Data) Encode(binary.ByteOrder) ([]byte, error) { return d.Data, nil }

// LangStrings holds one language's strings, nul terminated UTF-16 in file order. The
// string key table of the same level names each entry.
type LangStrings struct {
	Strings []string
}

func DecodeLangStrings(b []byte, order binary.ByteOrder) (*LangStrings, error) {
	l := &LangStrings{}
	for off := 0; off < len(b); {
		var units []uint16
		for {
			if off+2 > len(b) {
				return nil, lotrcTypes.FormatErrorf("unterminated string %d in language block", len(l.Strings))
			}
			u := order.Uint16(b[off:])
			off += 2
			if u == 0 {
				break
			}
			units = append(units, u)
		}
		l.Strings = append(l.Strings, string(utf16.Decode(units)))
	}
	return l, nil
}

func (l *LangStrings) Encode(order binary.ByteOrder) ([]byte, error) {
	var units []uint16
	for _, s := range l.Strings {
		units = append(units, utf16.Encode([]rune(s))...)
		units = append(units, 0)
	}
	if len(units) == 0 {
		return nil, nil
	}
	return lotrcTypes.Pack(order, units), nil
}

// MarshalKeyed writes the strings as an object keyed by the level's string keys.
func (l *LangStrings) MarshalKeyed(keys *StringKeys, names *lotrcTypes.StringTable) ([]byte, error) {
	var of orderedFields
	for i, s := range l.Strings {
		k := "?"
		if keys != nil && i < len(keys.Vals) {
			k = names.Name(keys.Vals[i].Key)
		}
		of.keys = append(of.keys, k)
		of.vals = append(of.vals, s)
	}
	return json.MarshalIndent(of, "", "  ")
}

// UnmarshalKeyed reads an object written by MarshalKeyed, keeping document order.
func (l *LangStrings) UnmarshalKeyed(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if t, err := dec.Token(); err != nil || t != json.Delim('{') {
		return errors.New("language strings must be a JSON object")
	}
	l.Strings = l.Strings[:0]
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return errors.Wrap(err, "bad language string key")
		}
		var s string
		if err := dec.Decode(&s); err != nil {
			return errors.Wrap(err, "bad language string")
		}
		l.Strings = append(l.Strings, s)
	}
	return nil
}

type SprayObj1 struct {
	Key Crc
	Unk [16]uint32
}

type SprayObj2 [5]float32

// Spray keeps its declared size, trailing bytes are zero.
type Spray struct {
	Size  int
	Obj1s []SprayObj1
	Obj2s []SprayObj2
}

func DecodeSpray(b []byte, order binary.ByteOrder) (*Spray, error) {
	s := &Spray{Size: len(b)}
	n1, err := lotrcTypes.Uint32At(b, 0, order)
	if err != nil {
		return nil, err
	}
	if s.Obj1s, err = lotrcTypes.UnpackSlice[SprayObj1](b, 4, int(n1), order); err != nil {
		return nil, err
	}
	off := 4 + int(n1)*68
	n2, err := lotrcTypes.Uint32At(b, off, order)
	if err != nil {
		return nil, err
	}
	if s.Obj2s, err = lotrcTypes.UnpackSlice[SprayObj2](b, off+4, int(n2), order); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Spray) Encode(order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, order, uint32(len(s.Obj1s)))
	binary.Write(&buf, order, s.Obj1s)
	binary.Write(&buf, order, uint32(len(s.Obj2s)))
	binary.Write(&buf, order, s.Obj2s)
	return fitTo(buf.Bytes(), s.Size, "spray block")
}

// fitTo zero pads b to size.
func fitTo(b []byte, size int, what string) ([]byte, error) {
	if len(b) > size {
		return nil, lotrcTypes.Mismatch(what, len(b), size)
	}
	return append(b, make([]byte, size-len(b))...), nil
}

const crowdConst = 0x65

type CrowdHeader struct {
	Keys    [4]uint32
	Unk4    uint32
	KeysNum uint32
	Num     uint32
}

type CrowdVal [5]uint32

type CrowdGroup struct {
	Header CrowdHeader
	Keys   []Crc
	Vals   []CrowdVal
}

// Crowd groups sit at stored offsets; they are rewritten in place within the declared size.
type Crowd struct {
	Size    int
	Offsets []uint32
	Groups  []CrowdGroup
}

func DecodeCrowd(b []byte, order binary.ByteOrder) (*Crowd, error) {
	c, err := lotrcTypes.Uint32At(b, 0, order)
	if err != nil {
		return nil, err
	}
	if c != crowdConst {
		return nil, lotrcTypes.Invariantf("crowd block starts with 0x%X, want 0x%X", c, crowdConst)
	}
	num, err := lotrcTypes.Uint32At(b, 4, order)
	if err != nil {
		return nil, err
	}
	cr := &Crowd{Size: len(b)}
	if cr.Offsets, err = lotrcTypes.UnpackSlice[uint32](b, 8, int(num), order); err != nil {
		return nil, err
	}
	for _, o := range cr.Offsets {
		var g CrowdGroup
		off := int(o)
		if g.Header, err = lotrcTypes.Unpack[CrowdHeader](b, off, order); err != nil {
			return nil, err
		}
		off += 28
		n := int(g.Header.KeysNum)
		if g.Keys, err = lotrcTypes.UnpackSlice[Crc](b, off, n, order); err != nil {
			return nil, err
		}
		if g.Vals, err = lotrcTypes.UnpackSlice[CrowdVal](b, off+4*n, n, order); err != nil {
			return nil, err
		}
		cr.Groups = append(cr.Groups, g)
	}
	return cr, nil
}

func (c *Crowd) Encode(order binary.ByteOrder) ([]byte, error) {
	if len(c.Offsets) != len(c.Groups) {
		return nil, lotrcTypes.Mismatch("crowd group count", len(c.Groups), len(c.Offsets))
	}
	b := make([]byte, c.Size)
	put := func(off int, v interface{}) error {
		if lotrcTypes.SizeOf(v) == 0 {
			return nil
		}
		if err := lotrcTypes.PackAt(b, off, order, v); err != nil {
			return lotrcTypes.Mismatch("crowd block", off+lotrcTypes.SizeOf(v), c.Size)
		}
		return nil
	}
	if err := put(0, [2]uint32{crowdConst, uint32(len(c.Offsets))}); err != nil {
		return nil, err
	}
	if err := put(8, c.Offsets); err != nil {
		return nil, err
	}
	for i, g := range c.Groups {
		off := int(c.Offsets[i])
		if err := put(off, g.Header); err != nil {
			return nil, err
		}
		off += 28
		if err := put(off, g.Keys); err != nil {
			return nil, err
		}
		if err := put(off+4*len(g.Keys), g.Vals); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type AtlasUVVal struct {
	Key Crc
	UV  lotrcTypes.Vector4
}

type AtlasUV struct {
	Vals []AtlasUVVal
}

func DecodeAtlasUV(b []byte, order binary.ByteOrder) (*AtlasUV, error) {
	if len(b)%20 != 0 {
		return nil, lotrcTypes.FormatErrorf("atlas uv block of %d bytes is not a whole number of entries", len(b))
	}
	vals, err := lotrcTypes.UnpackSlice[AtlasUVVal](b, 0, len(b)/20, order)
	if err != nil {
		return nil, err
	}
	return &AtlasUV{Vals: vals}, nil
}

func (a *AtlasUV) Encode(order binary.ByteOrder) ([]byte, error) {
	if len(a.Vals) == 0 {
		return nil, nil
	}
	return lotrcTypes.Pack(order, a.Vals), nil
}

// LuaTool transcodes compiled Lua chunks. Format is "L4404" for little endian output
// and "B4404" for big endian.
type LuaTool interface {
	Convert(code []byte, format string) ([]byte, error)
}

// PassthroughLua leaves chunks untouched.
type PassthroughLua struct{}

func (PassthroughLua) Convert(code []byte, format string) ([]byte, error) { return code, nil }

func LuaFormat(order binary.ByteOrder) string {
	if lotrcTypes.IsBig(order) {
		return "B4404"
	}
	return "L4404"
}

// Lua is a compiled script. Its bytes are only passed to the LuaTool.
type Lua struct {
	Name string
	Data []byte
}

func (l *Lua) Encode(order binary.ByteOrder) ([]byte, error) {
	return l.encodeWith(PassthroughLua{}, order)
}

func (l *Lua) encodeWith(tool LuaTool, order binary.ByteOrder) ([]byte, error) {
	if tool == nil {
		tool = PassthroughLua{}
	}
	b, err := tool.Convert(l.Data, LuaFormat(order))
	return b, errors.Wrapf(err, "failed to convert %s", l.Name)
}

type StringKeysHeader struct {
	NumA uint16
	NumB uint16
	Z2   uint32
	Z3   uint32
	Z4   uint32
	Z5   uint32
}

type StringKeysVal struct {
	Key    Crc
	Offset uint32
}

// StringKeys names the entries of the language blocks.
type StringKeys struct {
	Header StringKeysHeader
	Vals   []StringKeysVal
	Pad    []uint32
}

func DecodeStringKeys(b []byte, off int, order binary.ByteOrder) (*StringKeys, error) {
	h, err := lotrcTypes.Unpack[StringKeysHeader](b, off, order)
	if err != nil {
		return nil, err
	}
	if h.NumA != h.NumB {
		return nil, lotrcTypes.Invariantf("string key counts differ: %d and %d", h.NumA, h.NumB)
	}
	k := &StringKeys{Header: h}
	off += 20
	if k.Vals, err = lotrcTypes.UnpackSlice[StringKeysVal](b, off, int(h.NumA), order); err != nil {
		return nil, err
	}
	off += 8 * int(h.NumA)
	if k.Pad, err = lotrcTypes.UnpackSlice[uint32](b, off, int(h.NumA), order); err != nil {
		return nil, err
	}
	return k, nil
}

// NewStringKeys builds a table for keys, each entry pointing at its own pad word.
func NewStringKeys(keys []Crc) *StringKeys {
	n := len(keys)
	k := &StringKeys{
		Header: StringKeysHeader{NumA: uint16(n), NumB: uint16(n)},
		Vals:   make([]StringKeysVal, n),
		Pad:    make([]uint32, n),
	}
	off := 20 + 8*n
	for i, key := range keys {
		k.Vals[i] = StringKeysVal{Key: key, Offset: uint32(off)}
		off += 4
	}
	return k
}

func (k *StringKeys) Size() int { return 20 + 8*len(k.Vals) + 4*len(k.Pad) }

func (k *StringKeys) Encode(order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, order, k.Header)
	binary.Write(&buf, order, k.Vals)
	binary.Write(&buf, order, k.Pad)
	return buf.Bytes(), nil
}

// Keys lists the keys in table order.
func (k *StringKeys) Keys() []Crc {
	out := make([]Crc, len(k.Vals))
	for i, v := range k.Vals {
		out[i] = v.Key
	}
	return out
}
