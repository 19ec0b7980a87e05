package textures

import (
	"encoding/binary"
	"image"
	"image/color"
)

// Block compressed formats, stored little endian once untiled: BC1 (DXT1) colour blocks,
// BC3 (DXT5) alpha plus colour blocks, BC4 single channel blocks.

func expand565(c uint16) [3]int {
	r, g, b := int(c>>11&31), int(c>>5&63), int(c&31)
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func pack565(c [3]int) uint16 {
	return uint16(c[0]>>3)<<11 | uint16(c[1]>>2)<<5 | uint16(c[2]>>3)
}

func colorPalette(c0, c1 uint16, threeColor bool) [4]color.NRGBA {
	a, b := expand565(c0), expand565(c1)
	mix := func(wa, wb, div int) color.NRGBA {
		return color.NRGBA{
			R: uint8((wa*a[0] + wb*b[0]) / div),
			G: uint8((wa*a[1] + wb*b[1]) / div),
			B: uint8((wa*a[2] + wb*b[2]) / div),
			A: 255,
		}
	}
	p := [4]color.NRGBA{mix(1, 0, 1), mix(0, 1, 1)}
	if c0 > c1 || !threeColor {
		p[2], p[3] = mix(2, 1, 3), mix(1, 2, 3)
	} else {
		p[2] = mix(1, 1, 2)
	}
	return p
}

func alphaPalette(a0, a1 uint8) [8]uint8 {
	p := [8]uint8{a0, a1}
	x, y := int(a0), int(a1)
	if a0 > a1 {
		for i := 1; i <= 6; i++ {
			p[i+1] = uint8(((7-i)*x + i*y) / 7)
		}
	} else {
		for i := 1; i <= 4; i++ {
			p[i+1] = uint8(((5-i)*x + i*y) / 5)
		}
		p[6], p[7] = 0, 255
	}
	return p
}

func blocksAcross(n int) int { return max(1, (n+3)/4) }

func need(data []byte, w, h, blockSize int) error {
	if n := blocksAcross(w) * blocksAcross(h) * blockSize; len(data) < n {
		return short("compressed level", n, len(data))
	}
	return nil
}

func decodeColorBlock(img *image.NRGBA, b []byte, bx, by int, threeColor bool) {
	c0, c1 := binary.LittleEndian.Uint16(b), binary.LittleEndian.Uint16(b[2:])
	p := colorPalette(c0, c1, threeColor)
	idx := binary.LittleEndian.Uint32(b[4:])
	for py := 0; py < 4; py++ {
		for px := 0; px < 4; px++ {
			x, y := bx*4+px, by*4+py
			if x < img.Rect.Dx() && y < img.Rect.Dy() {
				img.SetNRGBA(x, y, p[idx>>(2*(py*4+px))&3])
			}
		}
	}
}

func alphaIndices(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 2; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func decodeAlphaBlock(b []byte, set func(px, py int, a uint8)) {
	p := alphaPalette(b[0], b[1])
	idx := alphaIndices(b)
	for i := 0; i < 16; i++ {
		set(i%4, i/4, p[idx>>(3*i)&7])
	}
}

// DecodeBC1 expands a DXT1 level.
func DecodeBC1(data []byte, w, h int) (*image.NRGBA, error) {
	if err := need(data, w, h, 8); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	bw := blocksAcross(w)
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < bw; bx++ {
			decodeColorBlock(img, data[(by*bw+bx)*8:], bx, by, true)
		}
	}
	return img, nil
}

// DecodeBC3 expands a DXT5 level.
func DecodeBC3(data []byte, w, h int) (*image.NRGBA, error) {
	if err := need(data, w, h, 16); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	bw := blocksAcross(w)
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < bw; bx++ {
			b := data[(by*bw+bx)*16:]
			decodeColorBlock(img, b[8:], bx, by, false)
			decodeAlphaBlock(b, func(px, py int, a uint8) {
				x, y := bx*4+px, by*4+py
				if x < w && y < h {
					img.Pix[img.PixOffset(x, y)+3] = a
				}
			})
		}
	}
	return img, nil
}

// DecodeBC4 expands a single channel level into w*h bytes.
func DecodeBC4(data []byte, w, h int) ([]byte, error) {
	if err := need(data, w, h, 8); err != nil {
		return nil, err
	}
	out := make([]byte, w*h)
	bw := blocksAcross(w)
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < bw; bx++ {
			decodeAlphaBlock(data[(by*bw+bx)*8:], func(px, py int, a uint8) {
				x, y := bx*4+px, by*4+py
				if x < w && y < h {
					out[y*w+x] = a
				}
			})
		}
	}
	return out, nil
}

func dist(a, b color.NRGBA) int {
	dr, dg, db := int(a.R)-int(b.R), int(a.G)-int(b.G), int(a.B)-int(b.B)
	return dr*dr + dg*dg + db*db
}

func blockPixels(img *image.NRGBA, bx, by int) []color.NRGBA {
	px := make([]color.NRGBA, 16)
	r := img.Rect
	for i := range px {
		x, y := min(bx*4+i%4, r.Dx()-1), min(by*4+i/4, r.Dy()-1)
		px[i] = img.NRGBAAt(r.Min.X+x, r.Min.Y+y)
	}
	return px
}

// encodeColorBlock picks the two furthest colours as endpoints and the nearest palette
// entry per pixel. transparent selects the three colour mode.
func encodeColorBlock(px []color.NRGBA, allowAlpha bool) []byte {
	transparent := false
	var opaque []color.NRGBA
	for _, c := range px {
		if allowAlpha && c.A < 128 {
			transparent = true
			continue
		}
		opaque = append(opaque, c)
	}
	var e0, e1 color.NRGBA
	if len(opaque) > 0 {
		e0, e1 = opaque[0], opaque[0]
		best := -1
		for i := range opaque {
			for j := i; j < len(opaque); j++ {
				if d := dist(opaque[i], opaque[j]); d > best {
					best, e0, e1 = d, opaque[i], opaque[j]
				}
			}
		}
	}
	c0 := pack565([3]int{int(e0.R), int(e0.G), int(e0.B)})
	c1 := pack565([3]int{int(e1.R), int(e1.G), int(e1.B)})
	if transparent == (c0 > c1) {
		c0, c1 = c1, c0
	}
	p := colorPalette(c0, c1, allowAlpha)
	var idx uint32
	for i, c := range px {
		k := 0
		if transparent && c.A < 128 {
			k = 3
		} else {
			best := -1
			for j := 0; j < 4; j++ {
				if transparent && j == 3 {
					continue
				}
				if d := dist(c, p[j]); best < 0 || d < best {
					best, k = d, j
				}
			}
		}
		idx |= uint32(k) << (2 * i)
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b, c0)
	binary.LittleEndian.PutUint16(b[2:], c1)
	binary.LittleEndian.PutUint32(b[4:], idx)
	return b
}

func encodeAlphaBlock(vals []uint8) []byte {
	a0, a1 := vals[0], vals[0]
	for _, v := range vals {
		a0, a1 = max(a0, v), min(a1, v)
	}
	p := alphaPalette(a0, a1)
	var idx uint64
	for i, v := range vals {
		k, best := 0, -1
		for j, pv := range p {
			d := int(v) - int(pv)
			if d < 0 {
				d = -d
			}
			if best < 0 || d < best {
				best, k = d, j
			}
		}
		idx |= uint64(k) << (3 * i)
	}
	b := []byte{a0, a1, 0, 0, 0, 0, 0, 0}
	for i := 2; i < 8; i++ {
		b[i] = uint8(idx >> (8 * (i - 2)))
	}
	return b
}

func EncodeBC1(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var out []byte
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < blocksAcross(w); bx++ {
			out = append(out, encodeColorBlock(blockPixels(img, bx, by), true)...)
		}
	}
	return out
}

func EncodeBC3(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var out []byte
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < blocksAcross(w); bx++ {
			px := blockPixels(img, bx, by)
			alpha := make([]uint8, 16)
			for i, c := range px {
				alpha[i] = c.A
			}
			out = append(out, encodeAlphaBlock(alpha)...)
			out = append(out, encodeColorBlock(px, false)...)
		}
	}
	return out
}

func EncodeBC4(pix []byte, w, h int) []byte {
	var out []byte
	for by := 0; by < blocksAcross(h); by++ {
		for bx := 0; bx < blocksAcross(w); bx++ {
			vals := make([]uint8, 16)
			for i := range vals {
				x, y := min(bx*4+i%4, w-1), min(by*4+i/4, h-1)
				vals[i] = pix[y*w+x]
			}
			out = append(out, encodeAlphaBlock(vals)...)
		}
	}
	return out
}
