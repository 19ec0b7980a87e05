package levelContainer

import (
	"encoding/binary"
	"image"
	"log"
	"sort"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/textures"
	"github.com/pkg/errors"
)

// TextureAsset is the pixel data of a texture: *textures.Texture, *textures.CubeTexture
// or *RawTexture.
type TextureAsset interface {
	Dump(order binary.ByteOrder) ([]byte, []byte, error)
}

// RawTexture keeps the two blobs of a texture whose kind is not decoded.
type RawTexture struct {
	Blobs [2][]byte
}

func (r *RawTexture) Dump(binary.ByteOrder) ([]byte, []byte, error) {
	return r.Blobs[0], r.Blobs[1], nil
}

type Texture struct {
	Info  pakFormats.TextureInfo
	Asset TextureAsset
}

// Image decodes level 0, or face 0 of a cube texture.
func (t *Texture) Image() (image.Image, error) {
	switch a := t.Asset.(type) {
	case *textures.Texture:
		return a.Image(0)
	case *textures.CubeTexture:
		return a.Image(0)
	}
	return nil, lotrcTypes.Unsupported("texture kind", t.Info.AssetType)
}

// mipKey is the key of the blob holding every level past the first.
func mipKey(assetKey Crc) Crc {
	return lotrcTypes.HashMask([]byte("*"), assetKey.Key())
}

func (l *Level) parseTextures(block1 []byte, h *pakFormats.PakHeader) error {
	infos, err := pakFormats.UnpackTable[pakFormats.TextureInfo](block1, h, pakFormats.TextureInfoTable, l.Order)
	if err != nil {
		return errors.Wrap(err, "texture infos")
	}
	for i := range infos {
		info := &infos[i]
		name := l.Names().Name(info.Key)
		data0, err := l.assets.Take(AssetKey{info.AssetKey, info.AssetType})
		if err != nil {
			return errors.Wrapf(err, "texture %s", name)
		}
		data1, err := l.assets.Take(AssetKey{mipKey(info.AssetKey), info.AssetType})
		if err != nil {
			return errors.Wrapf(err, "texture %s mips", name)
		}
		t := &Texture{Info: *info}
		switch {
		case textures.IsTexture(info.AssetType):
			t.Asset, err = textures.Decode(data0, data1, info, l.Order)
		case textures.IsCubeTexture(info.AssetType):
			t.Asset, err = textures.DecodeCube(data0, data1, info, l.Order)
		default:
			log.Printf("texture %s: %v, keeping it as is", name, lotrcTypes.Unsupported("texture kind", info.AssetType))
			t.Asset = &RawTexture{Blobs: [2][]byte{data0, data1}}
		}
		if err != nil {
			return errors.Wrapf(err, "texture %s", name)
		}
		if _, ok := l.Textures[info.Key]; ok {
			log.Printf("texture %s is listed twice, keeping the last", name)
		}
		l.Textures[info.Key] = t
		l.verbosef("texture %s: format %d, %dx%d, %d levels", name, info.Format, info.Width, info.Height, info.Levels)
	}
	return nil
}

// Two asset keys the game expects at the front of the texture table.
const (
	firstTextureKey  = 3804089404
	secondTextureKey = 4026460901
)

// textureRank puts the two special textures first, everything else after them.
func textureRank(t *Texture) int {
	switch t.Info.AssetKey.Key() {
	case firstTextureKey:
		return 0
	case secondTextureKey:
		return 1
	}
	return 2
}

// sortedTextures returns the textures in table order: the special ones, then by asset
// key, then by key.
func (l *Level) sortedTextures() []*Texture {
	out := make([]*Texture, 0, len(l.Textures))
	for _, t := range l.Textures {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := textureRank(a), textureRank(b); ra != rb {
			return ra < rb
		}
		if a.Info.AssetKey != b.Info.AssetKey {
			return a.Info.AssetKey < b.Info.AssetKey
		}
		return a.Info.Key < b.Info.Key
	})
	return out
}

type blob struct {
	key  AssetKey
	data []byte
}

// dumpTextures returns the texture info table and the bin blobs of every texture, in
// the order they are stored. The info of a texture follows the format its pixel data
// is now in.
func (l *Level) dumpTextures(order binary.ByteOrder) ([]pakFormats.TextureInfo, []blob, error) {
	var (
		infos []pakFormats.TextureInfo
		blobs []blob
	)
	for _, t := range l.sortedTextures() {
		data0, data1, err := t.Asset.Dump(order)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "texture %s", l.Names().Name(t.Info.Key))
		}
		info := t.Info
		if tex, ok := t.Asset.(*textures.Texture); ok && !lotrcTypes.IsBig(order) && !tex.Opaque {
			info.Format = tex.Format
		}
		main := blob{AssetKey{info.AssetKey, info.AssetType}, data0}
		mips := blob{AssetKey{mipKey(info.AssetKey), info.AssetType}, data1}
		if len(data1) == 0 {
			blobs = append(blobs, mips, main)
		} else {
			blobs = append(blobs, main, mips)
		}
		infos = append(infos, info)
	}
	return infos, blobs, nil
}
