// Package textures converts texture payloads between the console tiled layout and the
// linear PC layout, and decodes the block compressed formats.
package textures

import "github.com/goopsie/lotrcLevelTools/lotrcTypes"

// Texture format codes stored in TextureInfo.Format.
const (
	FormatA8R8G8B8 = 3
	FormatA8       = 6
	FormatDXT1     = 7
	FormatDXT1a    = 8
	FormatDXT5     = 10
	FormatDXT5b    = 11
	FormatDXT5c    = 12
	FormatBC4      = 13 // console only, becomes A8 on PC
	FormatDXT5d    = 17
)

// StrideWidth returns the texels per block side and bytes per block of a format.
func StrideWidth(format uint32) (s, d int, ok bool) {
	switch format {
	case FormatDXT5, FormatDXT5b, FormatDXT5c, FormatDXT5d:
		return 4, 16, true
	case FormatDXT1, FormatDXT1a, FormatBC4:
		return 4, 8, true
	case FormatA8R8G8B8:
		return 1, 4, true
	case FormatA8:
		return 1, 1, true
	}
	return 0, 0, false
}

// Block compressed levels are stored on a grid of at least 32x32 blocks.
func isBlockCompressed(format uint32) bool {
	switch format {
	case FormatDXT1, FormatDXT1a, FormatDXT5, FormatDXT5b, FormatDXT5c, FormatDXT5d, FormatBC4:
		return true
	}
	return false
}

func unsupported(format uint32) error {
	return lotrcTypes.Unsupported("texture format", format)
}

func short(what string, want, got int) error {
	return lotrcTypes.FormatErrorf("%s needs %d bytes, have %d", what, want, got)
}
