package animations

import (
	"bytes"
	"encoding/binary"
	"log"
	"sort"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

// Selects reports whether an animation with the given game mode mask is stored in
// animation block i.
func Selects(mask int32, i int) bool {
	return i >= 0 && i < 32 && mask&(1<<i) != 0
}

// Unpack reads every animation from the decompressed animation blocks. Within a block
// the animations it selects sit back to back in info order; each animation is
// decoded from the first block that holds it.
func Unpack(infos []pakFormats.AnimationInfo, blocks [][]byte, order binary.ByteOrder) ([]*Animation, error) {
	offsets := make([]int, len(blocks))
	anims := make([]*Animation, 0, len(infos))
	for _, info := range infos {
		var raw []byte
		for i, blk := range blocks {
			if !Selects(info.GameModeMask, i) {
				continue
			}
			data, err := lotrcTypes.Bytes(blk, offsets[i], int(info.Size))
			if err != nil {
				return nil, errors.Wrapf(err, "animation %s in block %d", info.Key, i)
			}
			offsets[i] += int(info.Size)
			if raw == nil {
				raw = data
			} else if !bytes.Equal(raw, data) {
				log.Printf("animation %s differs in block %d, keeping the first copy", info.Key, i)
			}
		}
		if raw == nil {
			return nil, lotrcTypes.FormatErrorf("animation %s has mask 0x%x, selecting none of the %d animation blocks", info.Key, uint32(info.GameModeMask), len(blocks))
		}
		a, err := Decode(raw, info, order)
		if err != nil {
			return nil, err
		}
		anims = append(anims, a)
	}
	for i, off := range offsets {
		if off != len(blocks[i]) {
			log.Printf("animation block %d has %d trailing bytes", i, len(blocks[i])-off)
		}
	}
	return anims, nil
}

// Sort orders animations by key, the order they are stored in.
func Sort(anims []*Animation) {
	sort.SliceStable(anims, func(i, j int) bool { return anims[i].Key() < anims[j].Key() })
}

// Pack assembles the content of n animation blocks. anims is sorted in place, the
// animation info table has to be written in the resulting order. Each info's Offset is
// set to the running sum of the sizes before it.
func Pack(anims []*Animation, n int, order binary.ByteOrder) ([][]byte, error) {
	Sort(anims)
	blocks := make([][]byte, n)
	for i := range blocks {
		blocks[i] = []byte{}
	}
	offset := 0
	for _, a := range anims {
		a.Info.Offset = uint32(offset)
		data, err := a.Encode(order)
		if err != nil {
			return nil, err
		}
		if len(data) != int(a.Info.Size) {
			return nil, lotrcTypes.Mismatch("animation "+a.Key().String(), len(data), int(a.Info.Size))
		}
		offset += len(data)
		for i := range blocks {
			if Selects(a.Info.GameModeMask, i) {
				blocks[i] = append(blocks[i], data...)
			}
		}
	}
	return blocks, nil
}

// Infos returns the info records of anims, in order.
func Infos(anims []*Animation) []pakFormats.AnimationInfo {
	infos := make([]pakFormats.AnimationInfo, len(anims))
	for i, a := range anims {
		infos[i] = a.Info
	}
	return infos
}
