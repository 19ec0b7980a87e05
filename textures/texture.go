package textures

import (
	"encoding/binary"
	"image"
	"log"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

// Texture kinds in TextureInfo.Kind.
func IsTexture(kind uint32) bool     { return kind == 0 || kind == 7 || kind == 8 }
func IsCubeTexture(kind uint32) bool { return kind == 1 || kind == 9 }

// Texture holds its levels in linear PC layout. Console textures also keep the blobs
// they were read from, so they can be written back unchanged.
type Texture struct {
	Levels        [][]byte
	Format        uint32 // format of Levels, may differ from the source for console BC4
	Kind          uint32 // asset handle type
	Width, Height int
	Opaque        bool // format not understood, Levels holds the two blobs as read

	consoleRaw [2][]byte
}

func levelSize(width, height, i int) (int, int) {
	return max(1, width>>i), max(1, height>>i)
}

func levelBlocks(width, height, i, s int) (int, int) {
	w, h := width>>i, height>>i
	return max(1, w/s), max(1, h/s)
}

// Decode reads a texture from its two blobs: data0 holds level 0 and data1 the other
// levels (or everything, for single level textures).
func Decode(data0, data1 []byte, info *pakFormats.TextureInfo, order binary.ByteOrder) (*Texture, error) {
	t := &Texture{Format: info.Format, Kind: info.AssetType, Width: int(info.Width), Height: int(info.Height)}
	if lotrcTypes.IsBig(order) {
		t.consoleRaw = [2][]byte{data0, data1}
	}
	s, d, ok := StrideWidth(info.Format)
	if !ok {
		log.Printf("Unhandled texture format %d for %s, keeping it as is", info.Format, info.AssetKey)
		t.Levels, t.Opaque = [][]byte{data0, data1}, true
		return t, nil
	}
	data := append(append(make([]byte, 0, len(data0)+len(data1)), data0...), data1...)
	levels := int(info.Levels)

	if !lotrcTypes.IsBig(order) {
		off := 0
		for i := 0; i < levels; i++ {
			bw, bh := levelBlocks(t.Width, t.Height, i, s)
			n := bw * bh * d
			if off+n > len(data) {
				return nil, short("texture level", off+n, len(data))
			}
			t.Levels = append(t.Levels, data[off:off+n])
			off += n
		}
		return t, nil
	}

	var err error
	if levels <= 1 {
		lvl, _, _, _, err := Untile(data, t.Width, t.Height, info.Format)
		if err != nil {
			return nil, err
		}
		t.Levels = [][]byte{lvl}
	} else if t.Levels, err = untileMips(data, t.Width, t.Height, levels, info.Format); err != nil {
		return nil, errors.Wrapf(err, "texture %s", info.AssetKey)
	}
	if info.Format == FormatBC4 {
		if err := t.expandBC4(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// untileMips converts a console mip chain. Levels whose short side is 16 texels or
// less share one packed tile and are cut out of it.
func untileMips(data []byte, width, height, levels int, format uint32) ([][]byte, error) {
	s, bd, _ := StrideWidth(format)
	wide := width > height
	var (
		out      [][]byte
		packed   []byte
		d, pw    int
		off      int
		havePack bool
	)
	for i := 0; i < levels; i++ {
		w, h := width>>i, height>>i
		bw, bh := levelBlocks(width, height, i, s)
		m, M := min(w, h), max(w, h)
		if m > 16 {
			n := max(bw, 32) * max(bh, 32) * bd
			if off+n > len(data) {
				return nil, short("texture level", off+n, len(data))
			}
			lvl, _, _, _, err := Untile(data[off:off+n], w, h, format)
			if err != nil {
				return nil, err
			}
			out = append(out, lvl)
			off += n
			continue
		}
		if m == 16 {
			var err error
			if wide {
				packed, d, pw, _, err = Untile(data[off:], w, h*2, format)
			} else {
				packed, d, pw, _, err = Untile(data[off:], w*2, h, format)
			}
			if err != nil {
				return nil, err
			}
			havePack = true
		}
		if !havePack {
			return nil, lotrcTypes.FormatErrorf("mip %d (%dx%d) has no packed tile to come from", i, w, h)
		}
		var lvl []byte
		var err error
		if m >= 4 {
			if wide {
				lvl, err = subRect(packed, pw, d, m>>2, 0, bw, bh)
			} else {
				lvl, err = subRect(packed, pw, d, 0, m>>2, bw, bh)
			}
		} else {
			if wide {
				lvl, err = subRect(packed, pw, d, 0, M, bw, bh)
			} else {
				lvl, err = subRect(packed, pw, d, M, 0, bw, bh)
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "packed mip %d", i)
		}
		out = append(out, lvl)
	}
	return out, nil
}

// subRect copies a rows by cols block rectangle starting at (col, row) out of an image
// pw blocks wide.
func subRect(img []byte, pw, d, row, col, cols, rows int) ([]byte, error) {
	stride := pw * d
	out := make([]byte, 0, cols*rows*d)
	for r := row; r < row+rows; r++ {
		start, end := r*stride+col*d, r*stride+(col+cols)*d
		if col+cols > pw || end > len(img) {
			return nil, short("packed mip tile", end, len(img))
		}
		out = append(out, img[start:end]...)
	}
	return out, nil
}

// expandBC4 turns console single channel blocks into A8 levels. The two smallest levels
// are rebuilt by halving the level above them.
func (t *Texture) expandBC4() error {
	for i, lvl := range t.Levels {
		w, h := levelSize(t.Width, t.Height, i)
		px, err := DecodeBC4(lvl, max(w, 4), max(h, 4))
		if err != nil {
			return errors.Wrapf(err, "bc4 level %d", i)
		}
		t.Levels[i] = px
	}
	if n := len(t.Levels); n >= 3 {
		w, _ := levelSize(t.Width, t.Height, n-3)
		t.Levels[n-2] = halve(t.Levels[n-3], max(w, 4))
		w, _ = levelSize(t.Width, t.Height, n-2)
		t.Levels[n-1] = halve(t.Levels[n-2], w)
	}
	t.Format = FormatA8
	return nil
}

// halve keeps every other pixel of every other row.
func halve(pix []byte, w int) []byte {
	var out []byte
	for y := 0; y*w < len(pix); y += 2 {
		row := pix[y*w : min((y+1)*w, len(pix))]
		for x := 0; x < len(row); x += 2 {
			out = append(out, row[x])
		}
	}
	return out
}

func knownLayout(format uint32) bool {
	_, _, ok := StrideWidth(format)
	return ok
}

// Dump returns the two blobs for the given order. Console textures can only be written
// back to the console unchanged.
func (t *Texture) Dump(order binary.ByteOrder) ([]byte, []byte, error) {
	if lotrcTypes.IsBig(order) {
		if t.consoleRaw[0] == nil && t.consoleRaw[1] == nil {
			return nil, nil, lotrcTypes.FormatErrorf("writing textures in the console layout is not supported")
		}
		return t.consoleRaw[0], t.consoleRaw[1], nil
	}
	if t.Opaque || !knownLayout(t.Format) {
		if len(t.Levels) != 2 {
			return nil, nil, lotrcTypes.FormatErrorf("opaque texture holds %d blobs", len(t.Levels))
		}
		return t.Levels[0], t.Levels[1], nil
	}
	if len(t.Levels) == 0 {
		return nil, nil, lotrcTypes.FormatErrorf("texture has no levels")
	}
	if len(t.Levels) == 1 {
		return []byte{}, t.Levels[0], nil
	}
	var rest []byte
	for _, l := range t.Levels[1:] {
		rest = append(rest, l...)
	}
	return t.Levels[0], rest, nil
}

// SetLevels replaces the pixel data, dropping any console blobs.
func (t *Texture) SetLevels(format uint32, levels [][]byte) {
	t.Format, t.Levels, t.Opaque = format, levels, false
	t.consoleRaw = [2][]byte{}
}

// Image decodes one level.
func (t *Texture) Image(level int) (image.Image, error) {
	if t.Opaque || level >= len(t.Levels) {
		return nil, unsupported(t.Format)
	}
	w, h := levelSize(t.Width, t.Height, level)
	return levelImage(t.Levels[level], w, h, t.Format)
}

func levelImage(data []byte, w, h int, format uint32) (image.Image, error) {
	switch format {
	case FormatDXT1, FormatDXT1a:
		return DecodeBC1(data, w, h)
	case FormatDXT5, FormatDXT5b, FormatDXT5c, FormatDXT5d:
		return DecodeBC3(data, w, h)
	case FormatBC4:
		px, err := DecodeBC4(data, w, h)
		if err != nil {
			return nil, err
		}
		return &image.Gray{Pix: px, Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
	case FormatA8:
		if len(data) < w*h {
			return nil, short("a8 level", w*h, len(data))
		}
		return &image.Gray{Pix: data[:w*h], Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
	case FormatA8R8G8B8:
		if len(data) < w*h*4 {
			return nil, short("argb level", w*h*4, len(data))
		}
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			b, g, r, a := data[4*i], data[4*i+1], data[4*i+2], data[4*i+3]
			copy(img.Pix[4*i:], []byte{r, g, b, a})
		}
		return img, nil
	}
	return nil, unsupported(format)
}

// ExportPNG writes level 0 to path.
func (t *Texture) ExportPNG(path string) error {
	img, err := t.Image(0)
	if err != nil {
		return err
	}
	return errors.Wrapf(imgio.Save(path, img, imgio.PNGEncoder()), "failed to write %s", path)
}

// CubeTexture holds six single level faces.
type CubeTexture struct {
	Faces         [][]byte
	Format        uint32
	Kind          uint32
	Width, Height int
	Opaque        bool

	consoleRaw [2][]byte
}

func DecodeCube(data0, data1 []byte, info *pakFormats.TextureInfo, order binary.ByteOrder) (*CubeTexture, error) {
	c := &CubeTexture{Format: info.Format, Kind: info.AssetType, Width: int(info.Width), Height: int(info.Height)}
	if lotrcTypes.IsBig(order) {
		c.consoleRaw = [2][]byte{data0, data1}
	}
	s, d, ok := StrideWidth(info.Format)
	if !ok || info.Levels > 1 {
		if info.Levels > 1 {
			log.Printf("Cube texture %s has %d levels, keeping it as is", info.AssetKey, info.Levels)
		} else {
			log.Printf("Unhandled cube texture format %d for %s, keeping it as is", info.Format, info.AssetKey)
		}
		c.Faces, c.Opaque = [][]byte{data0, data1}, true
		return c, nil
	}
	bw, bh := c.Width/s, c.Height/s
	n := bw * bh * d
	if lotrcTypes.IsBig(order) {
		n = max(bw, 32) * max(bh, 32) * d
	}
	if len(data1) < 6*n {
		return nil, short("cube texture", 6*n, len(data1))
	}
	for i := 0; i < 6; i++ {
		face := data1[i*n : (i+1)*n]
		if lotrcTypes.IsBig(order) {
			var err error
			if face, _, _, _, err = Untile(face, c.Width, c.Height, info.Format); err != nil {
				return nil, err
			}
		}
		c.Faces = append(c.Faces, face)
	}
	return c, nil
}

func (c *CubeTexture) Dump(order binary.ByteOrder) ([]byte, []byte, error) {
	if lotrcTypes.IsBig(order) {
		if c.consoleRaw[0] == nil && c.consoleRaw[1] == nil {
			return nil, nil, lotrcTypes.FormatErrorf("writing textures in the console layout is not supported")
		}
		return c.consoleRaw[0], c.consoleRaw[1], nil
	}
	if c.Opaque {
		return c.Faces[0], c.Faces[1], nil
	}
	var all []byte
	for _, f := range c.Faces {
		all = append(all, f...)
	}
	return []byte{}, all, nil
}

// Image decodes one face.
func (c *CubeTexture) Image(face int) (image.Image, error) {
	if c.Opaque || face >= len(c.Faces) {
		return nil, unsupported(c.Format)
	}
	return levelImage(c.Faces[face], c.Width, c.Height, c.Format)
}

func (c *CubeTexture) ExportPNG(path string) error {
	img, err := c.Image(0)
	if err != nil {
		return err
	}
	return errors.Wrapf(imgio.Save(path, img, imgio.PNGEncoder()), "failed to write %s", path)
}
