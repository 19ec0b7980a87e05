package levelContainer

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/textures"
)

// Convert changes the byte order the level is written in. Only console levels can be
// converted, to the little-endian PC layout.
func (l *Level) Convert(order binary.ByteOrder) error {
	switch {
	case lotrcTypes.IsBig(order) == lotrcTypes.IsBig(l.Order):
		return nil
	case lotrcTypes.IsBig(order):
		return lotrcTypes.FormatErrorf("converting a little-endian level to big-endian is not supported")
	}
	l.ConvertToLittle()
	return nil
}

// ConvertToLittle converts a console level for the PC: vertex data is split and
// requantized, textures keep the linear levels they were decoded to, and every record
// is written little-endian from now on. Converting a little-endian level does nothing.
func (l *Level) ConvertToLittle() {
	if !lotrcTypes.IsBig(l.Order) {
		return
	}
	for _, m := range l.Meshes {
		m.ConvertToLittle(l.formats)
	}
	for _, t := range l.Textures {
		if tex, ok := t.Asset.(*textures.Texture); ok && !tex.Opaque {
			t.Info.Format = tex.Format
		}
	}
	l.Order = binary.LittleEndian
	l.verbosef("converted %d meshes and %d textures", len(l.Meshes), len(l.Textures))
}
