package meshes

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
)

type Usage uint8

const (
	Position Usage = iota
	Normal
	Tangent
	BiNormal
	BlendWeight
	BlendIndices
	TextureCoord
	PSize
	Pad
)

var usageNames = [...]string{"Position", "Normal", "Tangent", "BiNormal", "BlendWeight", "BlendIndices", "TextureCoord", "PSize", "Pad"}

func (u Usage) String() string { return usageNames[u] }

func (u Usage) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Usage) UnmarshalText(b []byte) error {
	for i, n := range usageNames {
		if n == string(b) {
			*u = Usage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown vertex usage %q", b)
}

// AttrKind is the storage of one vertex attribute: a packed 32 bit word or 2 to 4 floats.
type AttrKind uint8

const (
	Word AttrKind = iota
	Vec2
	Vec3
	Vec4
)

// Components is the number of 32 bit values the attribute takes.
func (k AttrKind) Components() int {
	if k == Word {
		return 1
	}
	return int(k) + 1
}

type Attribute struct {
	Usage Usage
	Index int `json:",omitempty"`
	Kind  AttrKind
}

// Layout is the attribute order of one vertex and its stride in bytes.
type Layout struct {
	Attrs  []Attribute
	Stride int
}

func (l *Layout) add(u Usage, index int, k AttrKind) {
	l.Attrs = append(l.Attrs, Attribute{Usage: u, Index: index, Kind: k})
	l.Stride += 4 * k.Components()
}

func (l *Layout) pad16() {
	for l.Stride%16 != 0 {
		n := 0
		for _, a := range l.Attrs {
			if a.Usage == Pad {
				n++
			}
		}
		l.add(Pad, n, Word)
	}
}

// Vertex format flags of VBuffInfo.Fmt1.
const (
	fmtPosition    = 0x1
	fmtWeight      = 0x2
	fmtNormal      = 0x40
	fmtPSize       = 0x80
	fmtTex0        = 0x100
	fmtTex1        = 0x200
	fmtTangent     = 0x400
	fmtBiNormal    = 0x800
	fmtWide        = 0x40000
	fmtPackedBasis = 0x80000
)

// NewLayout derives the vertex layout of a (fmt1, fmt2) pair. Wide layouts (fmt1 0x40000,
// fmt2 zero) use four float positions, weights and normals on 16 byte boundaries.
func NewLayout(fmt1, fmt2 uint32) *Layout {
	l := &Layout{}
	wide := fmt2 == 0 && fmt1&fmtWide != 0
	if fmt1&fmtPosition != 0 {
		if wide {
			l.add(Position, 0, Vec4)
		} else {
			l.add(Position, 0, Vec3)
		}
	}
	if fmt1&fmtTangent != 0 {
		l.add(Tangent, 0, Word)
	}
	if fmt1&fmtBiNormal != 0 {
		l.add(BiNormal, 0, Word)
	}
	if fmt1&fmtWeight != 0 {
		if wide {
			l.pad16()
			l.add(BlendWeight, 0, Vec4)
		} else {
			l.add(BlendWeight, 0, Word)
		}
	}
	if fmt1&fmtTex0 != 0 {
		l.add(TextureCoord, 0, Word)
	}
	if fmt1&fmtTex1 != 0 {
		l.add(TextureCoord, 1, Word)
	}
	n := int(fmt1>>2) & 0xf
	if fmt2 == 0 || n <= 2 {
		for i := 0; i < n; i++ {
			l.add(BlendIndices, i, Vec2)
		}
	}
	if fmt1&fmtNormal != 0 {
		if wide {
			l.pad16()
			l.add(Normal, 0, Vec4)
		} else {
			l.add(Normal, 0, Word)
		}
	}
	if fmt1&fmtPSize != 0 {
		l.add(PSize, 0, Vec3)
	}
	if wide {
		l.pad16()
	}
	return l
}

// Formats caches vertex layouts for one session.
type Formats struct {
	mu      sync.Mutex
	layouts map[[2]uint32]*Layout
}

func NewFormats() *Formats {
	return &Formats{layouts: make(map[[2]uint32]*Layout)}
}

func (f *Formats) Layout(fmt1, fmt2 uint32) *Layout {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]uint32{fmt1, fmt2}
	l, ok := f.layouts[k]
	if !ok {
		l = NewLayout(fmt1, fmt2)
		f.layouts[k] = l
	}
	return l
}

func (f *Formats) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.layouts)
}

// Column holds one attribute of every vertex. Word attributes fill Words, float
// attributes fill Floats with Components values per vertex.
type Column struct {
	Attribute
	Words  []uint32  `json:",omitempty"`
	Floats []float32 `json:",omitempty"`
}

func (c *Column) Len() int {
	if c.Kind == Word {
		return len(c.Words)
	}
	return len(c.Floats) / c.Kind.Components()
}

type VertexBuffer struct {
	Columns []Column
}

func (v *VertexBuffer) Len() int {
	if len(v.Columns) == 0 {
		return 0
	}
	return v.Columns[0].Len()
}

func (v *VertexBuffer) Stride() int {
	s := 0
	for _, c := range v.Columns {
		s += 4 * c.Kind.Components()
	}
	return s
}

func (v *VertexBuffer) Column(u Usage, index int) *Column {
	for i := range v.Columns {
		if v.Columns[i].Usage == u && v.Columns[i].Index == index {
			return &v.Columns[i]
		}
	}
	return nil
}

// Positions returns the vertex positions, dropping the w of wide layouts.
func (v *VertexBuffer) Positions() []lotrcTypes.Vector3 {
	c := v.Column(Position, 0)
	if c == nil || c.Kind == Word {
		return nil
	}
	n, k := c.Len(), c.Kind.Components()
	out := make([]lotrcTypes.Vector3, n)
	for i := range out {
		copy(out[i][:], c.Floats[i*k:i*k+3])
	}
	return out
}

func DecodeVertexBuffer(blob []byte, info *pakFormats.VBuffInfo, formats *Formats, order binary.ByteOrder) (*VertexBuffer, error) {
	l := formats.Layout(info.Fmt1, info.Fmt2)
	if l.Stride == 0 || int(info.Size)%l.Stride != 0 {
		return nil, lotrcTypes.FormatErrorf("vertex buffer of %d bytes does not hold whole vertices of %d bytes (format %#x %#x)", info.Size, l.Stride, info.Fmt1, info.Fmt2)
	}
	n := int(info.Size) / l.Stride
	words, err := lotrcTypes.UnpackSlice[uint32](blob, int(info.Offset), int(info.Size)/4, order)
	if err != nil {
		return nil, err
	}
	v := &VertexBuffer{Columns: make([]Column, len(l.Attrs))}
	for i, a := range l.Attrs {
		v.Columns[i].Attribute = a
		if a.Kind == Word {
			v.Columns[i].Words = make([]uint32, 0, n)
		} else {
			v.Columns[i].Floats = make([]float32, 0, n*a.Kind.Components())
		}
	}
	pos := 0
	for j := 0; j < n; j++ {
		for i := range v.Columns {
			c := &v.Columns[i]
			if c.Kind == Word {
				c.Words = append(c.Words, words[pos])
				pos++
				continue
			}
			for k := 0; k < c.Kind.Components(); k++ {
				c.Floats = append(c.Floats, math.Float32frombits(words[pos]))
				pos++
			}
		}
	}
	return v, nil
}

// Encode interleaves the columns back into vertices.
func (v *VertexBuffer) Encode(order binary.ByteOrder) ([]byte, error) {
	n := v.Len()
	for _, c := range v.Columns {
		if c.Len() != n {
			return nil, lotrcTypes.Invariantf("vertex column %s%d holds %d vertices, %d expected", c.Usage, c.Index, c.Len(), n)
		}
	}
	out := make([]byte, 0, n*v.Stride())
	var w [4]byte
	put := func(x uint32) {
		order.PutUint32(w[:], x)
		out = append(out, w[:]...)
	}
	for j := 0; j < n; j++ {
		for _, c := range v.Columns {
			if c.Kind == Word {
				put(c.Words[j])
				continue
			}
			k := c.Kind.Components()
			for _, f := range c.Floats[j*k : (j+1)*k] {
				put(math.Float32bits(f))
			}
		}
	}
	return out, nil
}

// ConvertToLittle rewrites console vertex data for the PC layout: a packed basis word
// is split into separate binormal and tangent words, and blend weights are rescaled.
// The weight rescaling is approximate.
func (v *VertexBuffer) ConvertToLittle(info *pakFormats.VBuffInfo, formats *Formats) {
	if info.Fmt1&fmtPackedBasis != 0 && info.Fmt1&fmtTangent == 0 {
		if bin := v.Column(BiNormal, 0); bin != nil {
			binorm := make([]uint32, len(bin.Words))
			tan := make([]uint32, len(bin.Words))
			for i, w := range bin.Words {
				a, b, c, d := w&0xff, (w>>8)&0xff, (w>>16)&0xff, w>>24
				binorm[i] = d<<24 | d<<16 | d<<8 | c
				tan[i] = a<<16 | b<<8
			}
			info.Fmt1 |= fmtTangent
			l := formats.Layout(info.Fmt1, info.Fmt2)
			cols := make([]Column, len(l.Attrs))
			for i, a := range l.Attrs {
				switch a.Usage {
				case Tangent:
					cols[i] = Column{Attribute: a, Words: tan}
				case BiNormal:
					cols[i] = Column{Attribute: a, Words: binorm}
				default:
					if old := v.Column(a.Usage, a.Index); old != nil {
						cols[i] = *old
					} else {
						cols[i] = Column{Attribute: a, Words: make([]uint32, len(tan))}
					}
				}
			}
			v.Columns = cols
		}
	}

	c := v.Column(BlendWeight, 0)
	if c == nil {
		return
	}
	if c.Kind == Vec4 {
		for i := range c.Floats {
			if i%4 != 3 {
				c.Floats[i] = c.Floats[i]/2 + 0.5
			}
		}
		return
	}
	for i, w := range c.Words {
		z := requantize((w & 0x3ff) ^ 0x200)
		y := requantize(((w >> 10) & 0x3ff) ^ 0x200)
		x := requantize(((w >> 20) & 0x3ff) ^ 0x200)
		c.Words[i] = 127<<24 | z<<16 | y<<8 | x
	}
}

// requantize maps a 10 bit console weight to 8 bits.
func requantize(v uint32) uint32 {
	f := (float32(v) - 4) / 4
	r := math.RoundToEven(float64(f))
	return uint32(min(max(r, 0), 255))
}

// IndexBuffer holds 16 bit indices when Format is 0x10 and 32 bit ones otherwise.
type IndexBuffer struct {
	Format  uint32
	Indices []uint32
}

const Index16 = 0x10

func indexWidth(format uint32) int {
	if format == Index16 {
		return 2
	}
	return 4
}

func DecodeIndexBuffer(blob []byte, info *pakFormats.IBuffInfo, order binary.ByteOrder) (*IndexBuffer, error) {
	w := indexWidth(info.Format)
	if int(info.Size)%w != 0 {
		return nil, lotrcTypes.FormatErrorf("index buffer of %d bytes does not hold whole %d byte indices", info.Size, w)
	}
	n := int(info.Size) / w
	ib := &IndexBuffer{Format: info.Format}
	if w == 4 {
		vals, err := lotrcTypes.UnpackSlice[uint32](blob, int(info.Offset), n, order)
		if err != nil {
			return nil, err
		}
		ib.Indices = vals
		return ib, nil
	}
	vals, err := lotrcTypes.UnpackSlice[uint16](blob, int(info.Offset), n, order)
	if err != nil {
		return nil, err
	}
	ib.Indices = make([]uint32, n)
	for i, x := range vals {
		ib.Indices[i] = uint32(x)
	}
	return ib, nil
}

func (ib *IndexBuffer) Encode(order binary.ByteOrder) ([]byte, error) {
	if indexWidth(ib.Format) == 4 {
		return lotrcTypes.Pack(order, ib.Indices), nil
	}
	vals := make([]uint16, len(ib.Indices))
	for i, x := range ib.Indices {
		if x > math.MaxUint16 {
			return nil, lotrcTypes.FormatErrorf("index %d does not fit a 16 bit index buffer", x)
		}
		vals[i] = uint16(x)
	}
	return lotrcTypes.Pack(order, vals), nil
}
