package levelContainer

import (
	"fmt"
	"sort"

	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

// Digests identifies the decompressed contents of a level, independent of how its
// blocks were compressed or where they sit in the files.
type Digests struct {
	// Total covers both blocks and the animation blocks as one stream.
	Total      uint64
	Block1     uint64
	Block2     uint64
	Animations []uint64
	Assets     map[AssetKey]uint64
}

// DigestFiles hashes every decompressed block and bin blob of a level.
func DigestFiles(pak, bin []byte) (*Digests, error) {
	order, err := lotrcTypes.DetectOrder(bin)
	if err != nil {
		return nil, err
	}
	h, err := pakFormats.UnpackPakHeader(pak, order)
	if err != nil {
		return nil, err
	}
	d := &Digests{Assets: map[AssetKey]uint64{}}
	block1, err := blockCodec.Decompress(pak, int(h.Block1Size), int(h.Block1SizeComp), int(h.Block1Offset))
	if err != nil {
		return nil, errors.Wrap(err, "block1")
	}
	block2, err := blockCodec.Decompress(pak, int(h.Block2Size), int(h.Block2SizeComp), int(h.Block2Offset))
	if err != nil {
		return nil, errors.Wrap(err, "block2")
	}
	d.Block1, d.Block2 = blockCodec.Digest(block1), blockCodec.Digest(block2)

	infos, err := pakFormats.UnpackTable[pakFormats.AnimationBlockInfo](block1, &h, pakFormats.AnimationBlockInfoTable, order)
	if err != nil {
		return nil, err
	}
	all := [][]byte{block1, block2}
	for i, info := range infos {
		b, err := blockCodec.Decompress(pak, int(info.Size), int(info.SizeComp), int(info.Offset))
		if err != nil {
			return nil, errors.Wrapf(err, "animation block %d", i)
		}
		d.Animations = append(d.Animations, blockCodec.Digest(b))
		all = append(all, b)
	}
	d.Total = blockCodec.DigestAll(all...)

	bh, err := lotrcTypes.Unpack[pakFormats.BinHeader](bin, 0, order)
	if err != nil {
		return nil, err
	}
	handles, err := lotrcTypes.UnpackSlice[pakFormats.AssetHandle](bin, int(bh.AssetHandleOffset), int(bh.AssetHandleNum), order)
	if err != nil {
		return nil, err
	}
	for _, ah := range handles {
		b, err := blockCodec.Decompress(bin, int(ah.Size), int(ah.SizeComp), int(ah.Offset))
		if err != nil {
			return nil, errors.Wrapf(err, "asset %s", ah.Key)
		}
		d.Assets[AssetKey{ah.Key, ah.Kind}] = blockCodec.Digest(b)
	}
	return d, nil
}

// Diff lists every block or blob that differs between d and o.
func (d *Digests) Diff(o *Digests) []string {
	var out []string
	if d.Block1 != o.Block1 {
		out = append(out, "block1")
	}
	if d.Block2 != o.Block2 {
		out = append(out, "block2")
	}
	if len(d.Animations) != len(o.Animations) {
		out = append(out, fmt.Sprintf("animation block count %d != %d", len(d.Animations), len(o.Animations)))
	} else {
		for i := range d.Animations {
			if d.Animations[i] != o.Animations[i] {
				out = append(out, fmt.Sprintf("animation block %d", i))
			}
		}
	}
	var assets []string
	for k, v := range d.Assets {
		if w, ok := o.Assets[k]; !ok {
			assets = append(assets, fmt.Sprintf("asset %s missing", k))
		} else if v != w {
			assets = append(assets, fmt.Sprintf("asset %s", k))
		}
	}
	for k := range o.Assets {
		if _, ok := d.Assets[k]; !ok {
			assets = append(assets, fmt.Sprintf("asset %s added", k))
		}
	}
	sort.Strings(assets)
	return append(out, assets...)
}

// Verify parses a level, dumps it again in the same byte order and compares the
// digests of both. It returns what differs.
func Verify(pak, bin []byte, opts Options) ([]string, error) {
	before, err := DigestFiles(pak, bin)
	if err != nil {
		return nil, errors.Wrap(err, "source")
	}
	l, err := Parse(pak, bin, opts)
	if err != nil {
		return nil, err
	}
	pak2, bin2, err := l.Dump()
	if err != nil {
		return nil, err
	}
	after, err := DigestFiles(pak2, bin2)
	if err != nil {
		return nil, errors.Wrap(err, "rebuilt")
	}
	return before.Diff(after), nil
}
