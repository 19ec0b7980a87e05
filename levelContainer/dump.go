package levelContainer

import (
	"encoding/binary"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goopsie/lotrcLevelTools/animations"
	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/meshes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/relocator"
	"github.com/pkg/errors"
)

const pakAlign = 4096

var (
	occluderKey = lotrcTypes.Hash("occluder")

	effectAlways       = relocator.Fields(pakFormats.EffectInfo{}, "Offset")
	gfxAlways          = relocator.Fields(pakFormats.GFXBlockInfo{}, "Offset")
	illuminationAlways = relocator.Fields(pakFormats.IlluminationInfo{}, "Offset")
	foliageAlways      = relocator.Fields(pakFormats.FoliageInfo{}, "Offset")
)

// Save dumps the level and writes both files.
func (l *Level) Save(pakPath, binPath string) error {
	pak, bin, err := l.Dump()
	if err != nil {
		return err
	}
	if err := os.WriteFile(pakPath, pak, 0777); err != nil {
		return errors.Wrapf(err, "failed to write %s", pakPath)
	}
	return errors.Wrapf(os.WriteFile(binPath, bin, 0777), "failed to write %s", binPath)
}

// Dump encodes the level in its byte order. Every count, offset and relocation is
// recomputed from the in-memory level.
func (l *Level) Dump() (pak, bin []byte, err error) {
	order := l.Order
	textureInfos, textureBlobs, err := l.dumpTextures(order)
	if err != nil {
		return nil, nil, err
	}
	groups := l.meshGroups()

	h := l.PakHeader
	h.Version = lotrcTypes.Version(order)
	l.countRecords(&h, groups, len(textureInfos))

	pw := relocator.NewWriter(order)
	pw.Reserve(pakFormats.PakHeaderSize)

	animBlocks, err := l.dumpAnimations(order)
	if err != nil {
		return nil, nil, err
	}
	animBlockInfos := append([]pakFormats.AnimationBlockInfo(nil), l.AnimationBlocks...)
	for i, data := range animBlocks {
		pw.Pad(pakAlign)
		raw, comp, out, err := blockCodec.Compress(data, l.opts.Compress)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "animation block %d", i)
		}
		animBlockInfos[i].Offset = uint32(pw.Pos())
		animBlockInfos[i].Size, animBlockInfos[i].SizeComp = uint32(raw), uint32(comp)
		pw.Write(out)
	}

	block1, meshBlobs, err := l.dumpBlock1(&h, groups, textureInfos, animBlockInfos)
	if err != nil {
		return nil, nil, err
	}
	if err := relocator.Validate(block1.Bytes(), block1.Relocations(), order); err != nil {
		return nil, nil, errors.Wrap(err, "block1")
	}

	h.SubBlocks2Offset = 0
	block2, err := l.session.EncodeSubBlocks(l.SubBlocks2, order)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sub blocks 2")
	}
	relocs := block1.Relocations()
	h.Block2OffsetsOffset = uint32(len(block2))
	h.Block2OffsetsNum = uint32(len(relocs))
	if len(relocs) > 0 {
		block2 = append(block2, lotrcTypes.Pack(order, relocs)...)
	}
	l.verbosef("block1 %d bytes, %d relocations", len(block1.Bytes()), len(relocs))

	for _, b := range []struct {
		data                   []byte
		offset, size, sizeComp *uint32
	}{
		{block1.Bytes(), &h.Block1Offset, &h.Block1Size, &h.Block1SizeComp},
		{block2, &h.Block2Offset, &h.Block2Size, &h.Block2SizeComp},
	} {
		pw.Pad(pakAlign)
		raw, comp, out, err := blockCodec.Compress(b.data, l.opts.Compress)
		if err != nil {
			return nil, nil, err
		}
		*b.offset, *b.size, *b.sizeComp = uint32(pw.Pos()), uint32(raw), uint32(comp)
		pw.Write(out)
	}

	pw.Pad(pakAlign)
	h.StringsOffset = uint32(pw.Pos())
	h.StringsNum = uint32(len(l.PakStrings))
	h.StringsSize = uint32(l.PakStrings.Size())
	pw.Write(l.PakStrings.Pack(order))

	h.BlockAOffset = uint32(pw.Pos())
	h.BlockANum = uint32(len(l.ValsA))
	if len(l.ValsA) > 0 {
		pw.Put(l.ValsA)
	}
	copy(pw.Bytes(), h.Pack(order))

	bin, err = l.dumpBin(order, meshBlobs, textureBlobs)
	if err != nil {
		return nil, nil, err
	}
	return pw.Bytes(), bin, nil
}

func (l *Level) dumpAnimations(order binary.ByteOrder) ([][]byte, error) {
	return animations.Pack(l.Animations, len(l.AnimationBlocks), order)
}

// meshGroups splits the meshes in the order they are laid out in block 1: normal
// meshes by key, collision and road meshes by the number ending their name, terrain
// meshes likewise, and the occluder last.
type meshGroups struct {
	normal, collision, terrain []*meshes.Mesh
	occluder                   *meshes.Mesh
}

func (g *meshGroups) all() []*meshes.Mesh {
	out := append(append(append([]*meshes.Mesh{}, g.normal...), g.collision...), g.terrain...)
	if g.occluder != nil {
		out = append(out, g.occluder)
	}
	return out
}

// nameSuffix is the number after the last underscore of a name, 0 if there is none.
func nameSuffix(name string) int {
	n, err := strconv.Atoi(name[strings.LastIndex(name, "_")+1:])
	if err != nil {
		return 0
	}
	return n
}

func (l *Level) meshGroups() *meshGroups {
	g := &meshGroups{}
	for k, m := range l.Meshes {
		if k == occluderKey {
			g.occluder = m
			continue
		}
		name, _ := l.Names().Lookup(k)
		switch {
		case strings.HasPrefix(name, "Terrain"):
			g.terrain = append(g.terrain, m)
		case strings.Contains(name, "_Road_"), strings.Contains(name, "_Collision_"):
			g.collision = append(g.collision, m)
		default:
			g.normal = append(g.normal, m)
		}
	}
	sort.Slice(g.normal, func(i, j int) bool { return g.normal[i].Key() < g.normal[j].Key() })
	bySuffix := func(ms []*meshes.Mesh) {
		sort.Slice(ms, func(i, j int) bool {
			a, b := nameSuffix(l.Names().Name(ms[i].Key())), nameSuffix(l.Names().Name(ms[j].Key()))
			if a != b {
				return a < b
			}
			return ms[i].Key() < ms[j].Key()
		})
	}
	bySuffix(g.collision)
	bySuffix(g.terrain)
	return g
}

// countRecords sets every table count of h from the level.
func (l *Level) countRecords(h *pakFormats.PakHeader, groups *meshGroups, textures int) {
	for _, k := range pakFormats.BlockOneTables {
		num, _ := h.Table(k)
		*num = 0
	}
	for _, m := range groups.all() {
		m.CountRecords(h)
	}
	h.ObjANum = uint32(len(l.ObjAs))
	h.Obj0Num = uint32(len(l.Obj0s))
	h.TextureInfoNum = uint32(textures)
	h.AnimationInfoNum = uint32(len(l.Animations))
	h.EffectInfoNum = uint32(len(l.Effects))
	h.PFieldInfoNum = uint32(len(l.PFields))
	h.GFXBlockInfoNum = uint32(len(l.GFXBlocks))
	h.AnimationBlockInfoNum = uint32(len(l.AnimationBlocks))
	h.FoliageInfoNum = uint32(len(l.Foliages))
	h.IlluminationInfoNum = uint32(len(l.Illuminations))
}

func sortedKeys[V any](m map[Crc]V) []Crc {
	keys := make([]Crc, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (l *Level) dumpBlock1(h *pakFormats.PakHeader, groups *meshGroups, textureInfos []pakFormats.TextureInfo,
	animBlockInfos []pakFormats.AnimationBlockInfo) (*relocator.Writer, []blob, error) {
	order := l.Order
	w := relocator.NewWriter(order)
	for _, k := range pakFormats.BlockOneTables {
		num, off := h.Table(k)
		*off = uint32(w.Pos())
		w.Reserve(int(*num) * pakFormats.ElementSize(k, order))
		w.Pad(16)
	}

	effects := make([]pakFormats.EffectInfo, 0, len(l.Effects))
	for _, k := range sortedKeys(l.Effects) {
		e := l.Effects[k]
		data := e.Data
		if e.Objs != nil {
			var err error
			if data, err = e.Objs.Encode(order); err != nil {
				return nil, nil, errors.Wrapf(err, "effect %s", l.Names().Name(k))
			}
		}
		effects = append(effects, pakFormats.EffectInfo{Key: k, GameModeMask: e.GameModeMask, Offset: uint32(w.Pos()), Size: uint32(len(data))})
		w.Write(data)
	}

	tables := meshes.NewTables(h, order)
	var meshBlobs []blob
	vertexData := func(m *meshes.Mesh) error {
		if !m.HasBuffers() {
			return nil
		}
		data, err := m.EncodeBuffers(order)
		if err != nil {
			return err
		}
		meshBlobs = append(meshBlobs, blob{AssetKey{m.Info.AssetKey, m.Info.AssetType}, data})
		return nil
	}
	for _, m := range append(append([]*meshes.Mesh{}, groups.normal...), groups.collision...) {
		if err := vertexData(m); err != nil {
			return nil, nil, err
		}
		if err := tables.Dump(w, m); err != nil {
			return nil, nil, errors.Wrapf(err, "mesh %s", l.Names().Name(m.Key()))
		}
		w.Pad(16)
	}
	terrainStart := uint32(w.Pos())
	w.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	for _, m := range groups.terrain {
		if err := vertexData(m); err != nil {
			return nil, nil, err
		}
		if err := tables.DumpTerrain(w, m, terrainStart); err != nil {
			return nil, nil, errors.Wrapf(err, "terrain %s", l.Names().Name(m.Key()))
		}
	}
	w.Pad(16)

	foliages := make([]pakFormats.FoliageInfo, len(l.Foliages))
	for i, f := range l.Foliages {
		if len(f.Words) != f.Info.Words() {
			return nil, nil, lotrcTypes.Mismatch("foliage "+l.Names().Name(f.Info.Key), len(f.Words), f.Info.Words())
		}
		foliages[i] = f.Info
		foliages[i].Offset = uint32(w.Pos())
		if len(f.Words) > 0 {
			w.Put(f.Words)
		}
		w.Pad(16)
	}

	if m := groups.occluder; m != nil {
		if err := vertexData(m); err != nil {
			return nil, nil, err
		}
		if err := tables.Dump(w, m); err != nil {
			return nil, nil, errors.Wrap(err, "occluder")
		}
		w.Pad(16)
	}

	gfx := make([]pakFormats.GFXBlockInfo, 0, len(l.GFXBlocks))
	for _, k := range sortedKeys(l.GFXBlocks) {
		data := l.GFXBlocks[k]
		gfx = append(gfx, pakFormats.GFXBlockInfo{Key: k, Offset: uint32(w.Pos()), Size: uint32(len(data))})
		w.Write(data)
		w.Pad(16)
	}

	lights := make([]pakFormats.IlluminationInfo, len(l.Illuminations))
	for i, il := range l.Illuminations {
		lights[i] = pakFormats.IlluminationInfo{GUID: il.GUID, Num: uint32(len(il.Words)), Offset: uint32(w.Pos())}
		if len(il.Words) > 0 {
			w.Put(il.Words)
		}
		w.Pad(16)
	}

	w.Pad(16)
	sb1, err := l.session.EncodeSubBlocks(l.SubBlocks1, order)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sub blocks 1")
	}
	h.SubBlocks1Offset = uint32(w.Pos())
	w.Write(sb1)
	keys, err := l.StringKeys.Encode(order)
	if err != nil {
		return nil, nil, errors.Wrap(err, "string keys")
	}
	h.StringKeysOffset = uint32(w.Pos())
	w.Write(keys)

	// ObjA and Obj0 are little endian whatever the file order is.
	put := func(k pakFormats.TableKind, n int, v interface{}) error {
		if n == 0 {
			return nil
		}
		_, off := h.Table(k)
		if k == pakFormats.ObjATable || k == pakFormats.Obj0Table {
			return lotrcTypes.PackAt(w.Bytes(), int(*off), binary.LittleEndian, v)
		}
		return w.PutAt(int(*off), v)
	}
	for _, t := range []struct {
		k pakFormats.TableKind
		n int
		v interface{}
	}{
		{pakFormats.ObjATable, len(l.ObjAs), l.ObjAs},
		{pakFormats.Obj0Table, len(l.Obj0s), l.Obj0s},
		{pakFormats.TextureInfoTable, len(textureInfos), textureInfos},
		{pakFormats.AnimationInfoTable, len(l.Animations), animations.Infos(l.Animations)},
		{pakFormats.EffectInfoTable, len(effects), effects},
		{pakFormats.FoliageInfoTable, len(foliages), foliages},
		{pakFormats.PFieldInfoTable, len(l.PFields), l.PFields},
		{pakFormats.GFXBlockInfoTable, len(gfx), gfx},
		{pakFormats.IlluminationInfoTable, len(lights), lights},
		{pakFormats.AnimationBlockInfoTable, len(animBlockInfos), animBlockInfos},
	} {
		if err := put(t.k, t.n, t.v); err != nil {
			return nil, nil, errors.Wrap(err, t.k.String())
		}
	}
	if err := tables.Flush(w); err != nil {
		return nil, nil, err
	}

	for _, t := range []struct {
		k      pakFormats.TableKind
		n      int
		always []int
	}{
		{pakFormats.EffectInfoTable, len(effects), effectAlways},
		{pakFormats.GFXBlockInfoTable, len(gfx), gfxAlways},
		{pakFormats.IlluminationInfoTable, len(lights), illuminationAlways},
		{pakFormats.FoliageInfoTable, len(foliages), foliageAlways},
	} {
		_, off := h.Table(t.k)
		if err := relocator.Table(w, int(*off), t.n, pakFormats.ElementSize(t.k, order), t.always, nil); err != nil {
			return nil, nil, err
		}
	}
	return w, meshBlobs, nil
}
