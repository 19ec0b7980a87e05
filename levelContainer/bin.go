package levelContainer

import (
	"encoding/binary"
	"log"
	"sort"
	"strings"

	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/relocator"
	"github.com/pkg/errors"
)

const binAlign = 2048

func (l *Level) parseBin(bin []byte) error {
	order := l.Order
	h, err := lotrcTypes.Unpack[pakFormats.BinHeader](bin, 0, order)
	if err != nil {
		return errors.Wrap(err, "bin header")
	}
	l.BinHeader = h
	if l.BinStrings, err = lotrcTypes.UnpackStrings(bin, int(h.StringsOffset), int(h.StringsNum), order); err != nil {
		return errors.Wrap(err, "bin strings")
	}
	l.session.Names.Add(l.BinStrings...)
	handles, err := lotrcTypes.UnpackSlice[pakFormats.AssetHandle](bin, int(h.AssetHandleOffset), int(h.AssetHandleNum), order)
	if err != nil {
		return errors.Wrap(err, "asset handles")
	}
	l.assets, err = NewAssetCache(bin, handles, l.opts.CacheSize)
	return err
}

// collectRadiosity keeps the bin blobs no pak record claimed: radiosity blobs are
// decoded as words, anything else is kept as is.
func (l *Level) collectRadiosity() {
	for _, k := range l.assets.Unclaimed() {
		b, err := l.assets.Blob(k)
		if err != nil {
			log.Printf("asset %s: %v, dropping it", k, err)
			continue
		}
		name, _ := l.Names().Lookup(k.Key)
		if !strings.HasSuffix(name, "_radiosity") {
			log.Printf("asset %s is not referenced, keeping it as is", l.Names().Name(k.Key))
			l.Loose[k] = b
			continue
		}
		if len(b)%4 != 0 {
			log.Printf("radiosity %s is %d bytes, not a whole number of words", name, len(b))
			l.Loose[k] = b
			continue
		}
		words, _ := lotrcTypes.UnpackSlice[uint32](b, 0, len(b)/4, l.Order)
		l.Radiosity[k.Key] = &Radiosity{Kind: k.Kind, Words: words}
	}
}

// binWriter appends compressed blobs on 2048 byte boundaries.
type binWriter struct {
	w        *relocator.Writer
	compress bool
}

func (b *binWriter) blob(key AssetKey, data []byte) (pakFormats.AssetHandle, error) {
	h := pakFormats.AssetHandle{Key: key.Key, Kind: key.Kind, Offset: uint32(b.w.Pos())}
	if len(data) == 0 {
		return h, nil
	}
	raw, comp, out, err := blockCodec.Compress(data, b.compress)
	if err != nil {
		return h, errors.Wrapf(err, "asset %s", key)
	}
	h.Size, h.SizeComp = uint32(raw), uint32(comp)
	b.w.Write(out)
	b.w.Pad(binAlign)
	return h, nil
}

func sortHandles(h []pakFormats.AssetHandle) {
	sort.SliceStable(h, func(i, j int) bool { return h[i].Key < h[j].Key })
}

// dumpBin writes the data file: mesh blobs, texture blobs, then radiosity and loose
// blobs, followed by the handle table (mesh and radiosity handles sorted by key, then
// texture handles sorted by key) and the strings.
func (l *Level) dumpBin(order binary.ByteOrder, meshBlobs, textureBlobs []blob) ([]byte, error) {
	w := relocator.NewWriter(order)
	h := l.BinHeader
	h.Version = lotrcTypes.Version(order)
	w.Reserve(pakFormats.BinHeaderSize)
	w.Pad(binAlign)
	bw := &binWriter{w: w, compress: l.opts.Compress}

	var meshHandles, textureHandles []pakFormats.AssetHandle
	for _, b := range meshBlobs {
		ah, err := bw.blob(b.key, b.data)
		if err != nil {
			return nil, err
		}
		meshHandles = append(meshHandles, ah)
	}
	for _, b := range textureBlobs {
		ah, err := bw.blob(b.key, b.data)
		if err != nil {
			return nil, err
		}
		textureHandles = append(textureHandles, ah)
	}
	for _, b := range l.extraBlobs(order) {
		ah, err := bw.blob(b.key, b.data)
		if err != nil {
			return nil, err
		}
		meshHandles = append(meshHandles, ah)
	}
	sortHandles(meshHandles)
	sortHandles(textureHandles)

	w.Pad(binAlign)
	h.AssetHandleOffset = uint32(w.Pos())
	h.AssetHandleNum = uint32(len(meshHandles) + len(textureHandles))
	if len(meshHandles) > 0 {
		w.Put(meshHandles)
	}
	if len(textureHandles) > 0 {
		w.Put(textureHandles)
	}

	h.StringsOffset = uint32(w.Pos())
	h.StringsNum = uint32(len(l.BinStrings))
	h.StringsSize = uint32(l.BinStrings.Size())
	w.Write(l.BinStrings.Pack(order))
	w.Pad(binAlign)

	if err := w.PutAt(0, h); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// extraBlobs returns the radiosity blobs and the loose blobs, sorted by key.
func (l *Level) extraBlobs(order binary.ByteOrder) []blob {
	var out []blob
	for k, r := range l.Radiosity {
		var data []byte
		if len(r.Words) > 0 {
			data = lotrcTypes.Pack(order, r.Words)
		}
		out = append(out, blob{AssetKey{k, r.Kind}, data})
	}
	for k, b := range l.Loose {
		out = append(out, blob{k, b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.Key != out[j].key.Key {
			return out[i].key.Key < out[j].key.Key
		}
		return out[i].key.Kind < out[j].key.Kind
	})
	return out
}
