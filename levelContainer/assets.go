package levelContainer

import (
	"fmt"

	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// AssetKey identifies a bin blob. The same key may name blobs of different types.
type AssetKey struct {
	Key  Crc
	Kind uint32
}

func (k AssetKey) String() string {
	return fmt.Sprintf("%s/%d", k.Key, k.Kind)
}

// AssetCache decompresses bin blobs on demand and keeps the most recently used ones.
// It also tracks which handles have been claimed by a pak record.
type AssetCache struct {
	bin     []byte
	handles map[AssetKey]pakFormats.AssetHandle
	keys    []AssetKey
	taken   map[AssetKey]bool
	blobs   *lru.Cache[AssetKey, []byte]
}

func NewAssetCache(bin []byte, handles []pakFormats.AssetHandle, size int) (*AssetCache, error) {
	blobs, err := lru.New[AssetKey, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create asset cache")
	}
	c := &AssetCache{
		bin:     bin,
		handles: make(map[AssetKey]pakFormats.AssetHandle, len(handles)),
		taken:   map[AssetKey]bool{},
		blobs:   blobs,
	}
	for _, h := range handles {
		k := AssetKey{h.Key, h.Kind}
		if _, ok := c.handles[k]; ok {
			return nil, lotrcTypes.FormatErrorf("asset %s has two handles", k)
		}
		c.handles[k] = h
		c.keys = append(c.keys, k)
	}
	return c, nil
}

// Keys lists every handle in table order.
func (c *AssetCache) Keys() []AssetKey { return c.keys }

func (c *AssetCache) Handle(k AssetKey) (pakFormats.AssetHandle, bool) {
	h, ok := c.handles[k]
	return h, ok
}

// Blob returns the decompressed payload of a handle. A missing handle is a FormatError,
// the pak refers to data the bin does not hold.
func (c *AssetCache) Blob(k AssetKey) ([]byte, error) {
	if b, ok := c.blobs.Get(k); ok {
		return b, nil
	}
	h, ok := c.handles[k]
	if !ok {
		return nil, lotrcTypes.FormatErrorf("no asset handle for %s", k)
	}
	b, err := blockCodec.Decompress(c.bin, int(h.Size), int(h.SizeComp), int(h.Offset))
	if err != nil {
		return nil, errors.Wrapf(err, "asset %s", k)
	}
	c.blobs.Add(k, b)
	return b, nil
}

// Take is Blob, marking the handle as claimed.
func (c *AssetCache) Take(k AssetKey) ([]byte, error) {
	b, err := c.Blob(k)
	if err == nil {
		c.taken[k] = true
	}
	return b, err
}

// Unclaimed lists the handles no Take has returned, in table order.
func (c *AssetCache) Unclaimed() []AssetKey {
	var out []AssetKey
	for _, k := range c.keys {
		if !c.taken[k] {
			out = append(out, k)
		}
	}
	return out
}
