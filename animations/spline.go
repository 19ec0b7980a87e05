package animations

import (
	"encoding/binary"
	"math"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
)

// Number of channels stored for a 3 bit channel mask.
var channelCounts = [8]int{0, 1, 1, 2, 1, 2, 2, 3}

// Component widths of one quantized rotation, by rotation kind.
var rotationLayouts = [6][]int{{4}, {1, 1, 1, 1, 1}, {2, 2, 2}, {1, 1, 1}, {1, 1}, {4, 4, 4, 4}}
var rotationAligns = [6]int{4, 1, 2, 1, 2, 4}

// SplineFlags describe the tracks of one bone. F packs the quantization kinds of the
// three tracks, A/B/C select which channels are static and which are animated.
type SplineFlags struct {
	F, A, B, C uint8
}

func (f SplineFlags) translationKind() uint8 { return f.F & 3 }
func (f SplineFlags) rotationKind() uint8    { return (f.F >> 2) & 0xf }
func (f SplineFlags) scaleKind() uint8       { return (f.F >> 6) & 3 }

// Track is a quantized spline over up to three float channels. Ranges holds the
// static values and the min/max pairs of the animated channels.
type Track struct {
	NBytes int
	Num    uint16 // control points - 1
	Degree uint8
	Knots  []uint8
	Ranges []float32
	Vals   []uint32 // 8 or 16 bit, by kind
}

// Rotation is a quantized quaternion spline.
type Rotation struct {
	NBytes int
	Num    uint16
	Degree uint8
	Knots  []uint8
	Vals   []uint32 // components of each control point, flattened
}

type SplineBlock struct {
	Flags        []SplineFlags
	FloatFlags   []uint8
	Translations []Track
	Rotations    []Rotation
	Scales       []Track
	Floats       []Track
}

// Spline is the payload of a spline compressed skeletal animation (kind 3).
type Spline struct {
	BlockStarts []uint32
	FloatStarts []uint32
	C3, C4      []uint32
	Blocks      []SplineBlock
}

type cursor struct {
	b     []byte
	pos   int
	order binary.ByteOrder
}

func (c *cursor) align(a int) { c.pos = lotrcTypes.Align(c.pos, a) }

func (c *cursor) need(n int) error {
	if c.pos < 0 || c.pos+n > len(c.b) {
		return lotrcTypes.FormatErrorf("spline data at offset %d runs past the end of the animation (%d bytes)", c.pos, len(c.b))
	}
	return nil
}

func (c *cursor) room(n int) error {
	if c.pos < 0 || c.pos+n > len(c.b) {
		return lotrcTypes.Mismatch("spline data", c.pos+n, len(c.b))
	}
	return nil
}

func (c *cursor) word(size int) (uint32, error) {
	if err := c.need(size); err != nil {
		return 0, err
	}
	var v uint32
	switch size {
	case 1:
		v = uint32(c.b[c.pos])
	case 2:
		v = uint32(c.order.Uint16(c.b[c.pos:]))
	default:
		v = c.order.Uint32(c.b[c.pos:])
	}
	c.pos += size
	return v, nil
}

func (c *cursor) putWord(size int, v uint32) error {
	if err := c.room(size); err != nil {
		return err
	}
	switch size {
	case 1:
		c.b[c.pos] = uint8(v)
	case 2:
		c.order.PutUint16(c.b[c.pos:], uint16(v))
	default:
		c.order.PutUint32(c.b[c.pos:], v)
	}
	c.pos += size
	return nil
}

func (c *cursor) words(n int, sizes []int) ([]uint32, error) {
	out := make([]uint32, 0, n*len(sizes))
	for i := 0; i < n; i++ {
		for _, s := range sizes {
			v, err := c.word(s)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *cursor) putWords(vals []uint32, sizes []int) error {
	for i, v := range vals {
		if err := c.putWord(sizes[i%len(sizes)], v); err != nil {
			return err
		}
	}
	return nil
}

func (c *cursor) floats(n int) ([]float32, error) {
	out := make([]float32, n)
	for i := range out {
		v, err := c.word(4)
		if err != nil {
			return nil, err
		}
		out[i] = math.Float32frombits(v)
	}
	return out, nil
}

// header reads the control point count, degree and knot vector shared by both track kinds.
func (c *cursor) header() (num uint16, degree uint8, knots []uint8, err error) {
	n, err := c.word(2)
	if err != nil {
		return
	}
	d, err := c.word(1)
	if err != nil {
		return
	}
	k := int(n) + int(d) + 2
	if err = c.need(k); err != nil {
		return
	}
	knots = append([]uint8{}, c.b[c.pos:c.pos+k]...)
	c.pos += k
	return uint16(n), uint8(d), knots, nil
}

func (c *cursor) putHeader(num uint16, degree uint8, knots []uint8) error {
	if err := c.putWord(2, uint32(num)); err != nil {
		return err
	}
	if err := c.putWord(1, uint32(degree)); err != nil {
		return err
	}
	if err := c.room(len(knots)); err != nil {
		return err
	}
	c.pos += copy(c.b[c.pos:], knots)
	return nil
}

func trackWidth(kind uint8) []int {
	if kind&1 == 0 {
		return []int{1}
	}
	return []int{2}
}

func rangeCount(flags uint8) int {
	return channelCounts[flags&7] + 2*channelCounts[((flags>>4)&^flags)&7]
}

func decodeTrack(c *cursor, flags, kind uint8) (Track, error) {
	var t Track
	start := c.pos
	if flags != 0 {
		var err error
		if flags&0xf0 != 0 {
			if t.Num, t.Degree, t.Knots, err = c.header(); err != nil {
				return t, err
			}
		}
		c.align(4)
		if t.Ranges, err = c.floats(rangeCount(flags)); err != nil {
			return t, err
		}
		if flags&0xf0 != 0 {
			c.align(2)
			n := channelCounts[(flags>>4)&7] * (int(t.Num) + 1)
			if t.Vals, err = c.words(n, trackWidth(kind)); err != nil {
				return t, err
			}
		}
	}
	c.align(4)
	t.NBytes = c.pos - start
	return t, nil
}

func (t *Track) encode(c *cursor, flags, kind uint8) error {
	start := c.pos
	if flags != 0 {
		if flags&0xf0 != 0 {
			if err := c.putHeader(t.Num, t.Degree, t.Knots); err != nil {
				return err
			}
		}
		c.align(4)
		for _, f := range t.Ranges {
			if err := c.putWord(4, math.Float32bits(f)); err != nil {
				return err
			}
		}
		if flags&0xf0 != 0 {
			c.align(2)
			if err := c.putWords(t.Vals, trackWidth(kind)); err != nil {
				return err
			}
		}
	}
	c.align(4)
	if c.pos-start != t.NBytes {
		return lotrcTypes.Mismatch("spline track", c.pos-start, t.NBytes)
	}
	return nil
}

func decodeRotation(c *cursor, flags, kind uint8) (Rotation, error) {
	var r Rotation
	start := c.pos
	if flags != 0 {
		if int(kind) >= len(rotationLayouts) {
			return r, lotrcTypes.Unsupported("spline rotation", uint32(kind))
		}
		var err error
		if flags&0xf0 != 0 {
			if r.Num, r.Degree, r.Knots, err = c.header(); err != nil {
				return r, err
			}
		}
		c.align(rotationAligns[kind])
		if r.Vals, err = c.words(int(r.Num)+1, rotationLayouts[kind]); err != nil {
			return r, err
		}
	}
	c.align(4)
	r.NBytes = c.pos - start
	return r, nil
}

func (r *Rotation) encode(c *cursor, flags, kind uint8) error {
	start := c.pos
	if flags != 0 {
		if int(kind) >= len(rotationLayouts) {
			return lotrcTypes.Unsupported("spline rotation", uint32(kind))
		}
		if flags&0xf0 != 0 {
			if err := c.putHeader(r.Num, r.Degree, r.Knots); err != nil {
				return err
			}
		}
		c.align(rotationAligns[kind])
		if err := c.putWords(r.Vals, rotationLayouts[kind]); err != nil {
			return err
		}
	}
	c.align(4)
	if c.pos-start != r.NBytes {
		return lotrcTypes.Mismatch("spline rotation", c.pos-start, r.NBytes)
	}
	return nil
}

func floatTrackFlags(f uint8) (flags, kind uint8) { return f & 0xf9, (f >> 1) & 3 }

// DecodeSpline reads the spline payload of an animation from its data.
func DecodeSpline(b []byte, info *pakFormats.AnimationInfo, order binary.ByteOrder) (*Spline, error) {
	s := &Spline{}
	var err error
	if s.BlockStarts, err = lotrcTypes.UnpackSlice[uint32](b, int(info.BlockStartsOffset), int(info.BlockStartsNum), order); err != nil {
		return nil, err
	}
	if s.FloatStarts, err = lotrcTypes.UnpackSlice[uint32](b, int(info.BlockStarts2Offset), int(info.BlockStarts2Num), order); err != nil {
		return nil, err
	}
	if s.C3, err = lotrcTypes.UnpackSlice[uint32](b, int(info.ObjC3Offset), int(info.ObjC3Num), order); err != nil {
		return nil, err
	}
	if s.C4, err = lotrcTypes.UnpackSlice[uint32](b, int(info.ObjC4Offset), int(info.ObjC4Num), order); err != nil {
		return nil, err
	}

	c := &cursor{b: b, order: order}
	for i := 0; i < min(len(s.BlockStarts), len(s.FloatStarts)); i++ {
		base := int(info.BlockOffset + s.BlockStarts[i])
		var blk SplineBlock
		if blk.Flags, err = lotrcTypes.UnpackSlice[SplineFlags](b, base, int(info.KeysNum), order); err != nil {
			return nil, err
		}
		if blk.FloatFlags, err = lotrcTypes.Bytes(b, base+4*int(info.KeysNum), int(info.Keys2Num)); err != nil {
			return nil, err
		}

		c.pos = base + int(info.DataOffset)
		for _, f := range blk.Flags {
			t, err := decodeTrack(c, f.A, f.translationKind())
			if err != nil {
				return nil, err
			}
			r, err := decodeRotation(c, f.B, f.rotationKind())
			if err != nil {
				return nil, err
			}
			sc, err := decodeTrack(c, f.C, f.scaleKind())
			if err != nil {
				return nil, err
			}
			blk.Translations = append(blk.Translations, t)
			blk.Rotations = append(blk.Rotations, r)
			blk.Scales = append(blk.Scales, sc)
		}

		c.pos = base + int(s.FloatStarts[i])
		for _, f := range blk.FloatFlags {
			flags, kind := floatTrackFlags(f)
			t, err := decodeTrack(c, flags, kind)
			if err != nil {
				return nil, err
			}
			blk.Floats = append(blk.Floats, t)
		}
		s.Blocks = append(s.Blocks, blk)
	}
	return s, nil
}

// encode writes the spline over b, the animation's data.
func (s *Spline) encode(b []byte, info *pakFormats.AnimationInfo, order binary.ByteOrder) error {
	tables := []struct {
		off  uint32
		vals []uint32
	}{
		{info.BlockStartsOffset, s.BlockStarts},
		{info.BlockStarts2Offset, s.FloatStarts},
		{info.ObjC3Offset, s.C3},
		{info.ObjC4Offset, s.C4},
	}
	for _, t := range tables {
		if err := packAt(b, int(t.off), order, "spline tables", t.vals); err != nil {
			return err
		}
	}

	c := &cursor{b: b, order: order}
	for i, blk := range s.Blocks {
		if i >= len(s.BlockStarts) || i >= len(s.FloatStarts) {
			return lotrcTypes.Mismatch("spline blocks", len(s.Blocks), min(len(s.BlockStarts), len(s.FloatStarts)))
		}
		if len(blk.Translations) != len(blk.Flags) || len(blk.Rotations) != len(blk.Flags) || len(blk.Scales) != len(blk.Flags) {
			return lotrcTypes.Invariantf("spline block %d has %d bone flags but %d/%d/%d tracks", i, len(blk.Flags), len(blk.Translations), len(blk.Rotations), len(blk.Scales))
		}
		if len(blk.Floats) != len(blk.FloatFlags) {
			return lotrcTypes.Invariantf("spline block %d has %d float flags but %d float tracks", i, len(blk.FloatFlags), len(blk.Floats))
		}
		base := int(info.BlockOffset + s.BlockStarts[i])
		if err := packAt(b, base, order, "spline flags", blk.Flags); err != nil {
			return err
		}
		if err := packAt(b, base+4*len(blk.Flags), order, "spline flags", blk.FloatFlags); err != nil {
			return err
		}

		c.pos = base + int(info.DataOffset)
		for j, f := range blk.Flags {
			if err := blk.Translations[j].encode(c, f.A, f.translationKind()); err != nil {
				return err
			}
			if err := blk.Rotations[j].encode(c, f.B, f.rotationKind()); err != nil {
				return err
			}
			if err := blk.Scales[j].encode(c, f.C, f.scaleKind()); err != nil {
				return err
			}
		}

		c.pos = base + int(s.FloatStarts[i])
		for j, f := range blk.FloatFlags {
			flags, kind := floatTrackFlags(f)
			if err := blk.Floats[j].encode(c, flags, kind); err != nil {
				return err
			}
		}
	}
	return nil
}
