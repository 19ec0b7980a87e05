package levelContainer

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goopsie/lotrcLevelTools/animations"
	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/gameObjs"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/meshes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/relocator"
	"github.com/goopsie/lotrcLevelTools/textures"
	"github.com/klauspost/compress/zip"
)

var h = lotrcTypes.Hash

func testObjs(names *lotrcTypes.StringTable) *gameObjs.GameObjs {
	t := &gameObjs.Type{
		Header: gameObjs.TypeHeader{Key: h("Thing")},
		Fields: []gameObjs.Field{
			{Key: h("Name"), Kind: gameObjs.StringKind, Offset: 0},
			{Key: h("Id"), Kind: gameObjs.CRCKind, Offset: 4},
		},
	}
	obj := gameObjs.Object{
		Header: gameObjs.ObjHeader{Unk0: 7, Key: h("Thing")},
		Values: []gameObjs.Value{
			{Kind: gameObjs.StringKind, Data: "gate"},
			{Kind: gameObjs.CRCKind, Data: h("Sword")},
		},
	}
	return &gameObjs.GameObjs{Types: []*gameObjs.Type{t}, Objs: []gameObjs.Object{obj}, Names: names}
}

// vertexData is two vertices of layout 0x141/1 followed by a 16 bit index buffer.
func vertexData(order binary.ByteOrder) []byte {
	words := []uint32{
		math.Float32bits(1), math.Float32bits(2), math.Float32bits(3), 0xAA, 0xBB,
		math.Float32bits(4), math.Float32bits(5), math.Float32bits(6), 0xCC, 0xDD,
	}
	b := lotrcTypes.Pack(order, words)
	return append(b, lotrcTypes.Pack(order, []uint16{0, 1, 1})...)
}

func testMesh(t *testing.T, order binary.ByteOrder, formats *meshes.Formats) *meshes.Mesh {
	t.Helper()
	buf := pakFormats.BufferInfo{VBuffInfoOffset: 0, VBuffInfoOffset2: meshes.NoBuffer, VBuffInfoOffset3: meshes.NoBuffer, IBuffInfoOffset: 0, TriNum: 1}
	m := &meshes.Mesh{
		Info:       pakFormats.MeshInfo{Key: h("rock"), GameModeMask: -1, AssetKey: h("rock_vdata")},
		Indices:    []uint32{0xFFFFFFFF},
		Keys:       []Crc{h("root")},
		Matrices:   []lotrcTypes.Matrix4x4{{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}},
		ValsA:      make([]uint32, 8),
		MatOrder:   []uint32{0},
		VBuffOrder: []uint32{0},
		IBuffOrder: []uint32{0},
		Mats:       []meshes.Material{{Mat1: &pakFormats.Mat1{}}},
		VBuffs:     []pakFormats.VBuffInfo{{Size: 40, Fmt1: 0x141, Fmt2: 1}},
		IBuffs:     []pakFormats.IBuffInfo{{Size: 6, Format: meshes.Index16, Offset: 40}},
		Buffers:    []pakFormats.BufferInfo{buf},
	}
	if err := m.DecodeBuffers(vertexData(order), formats, order); err != nil {
		t.Fatal(err)
	}
	return m
}

// testLevel builds a small level holding one of every record kind.
func testLevel(t *testing.T, order binary.ByteOrder, opts Options) *Level {
	t.Helper()
	l := newLevel(order, opts)
	l.PakHeader.Constx13 = 0x13
	l.BinHeader.Constx06 = lotrcTypes.PakConst
	l.PakStrings = lotrcTypes.Strings{"rock", "stone_tex", "readme.txt", "notes.dat", "greeting", "Thing", "Name", "Id", "Sword", "Terrain_Hill_2"}
	l.BinStrings = lotrcTypes.Strings{"rock_vdata", "tex", "x_radiosity", "stray"}
	l.Names().Add(l.PakStrings...)
	l.Names().Add(l.BinStrings...)

	level := testObjs(l.Names())
	if err := level.Layout(); err != nil {
		t.Fatal(err)
	}
	l.SubBlocks1 = &gameObjs.SubBlocks{
		Headers: []gameObjs.BlockHeader{{Key: gameObjs.LevelKey}, {Key: h("English")}, {Key: h("readme.txt")}},
		Blocks: []gameObjs.SubBlock{
			level,
			&gameObjs.LangStrings{Strings: []string{"Hello"}},
			&gameObjs.Data{Data: []byte("read me")},
		},
	}
	l.SubBlocks2 = &gameObjs.SubBlocks{
		Headers: []gameObjs.BlockHeader{{Key: h("notes.dat")}},
		Blocks:  []gameObjs.SubBlock{&gameObjs.Data{Data: []byte{1, 2, 3}}},
	}
	l.StringKeys = gameObjs.NewStringKeys([]Crc{h("greeting")})

	m := testMesh(t, order, l.formats)
	l.Meshes[m.Key()] = m

	info := pakFormats.TextureInfo{Key: h("stone_tex"), AssetKey: h("tex"), Format: textures.FormatA8R8G8B8, Width: 4, Height: 4, Levels: 1}
	pixels := bytes.Repeat([]byte{0x10, 0x20, 0x30, 0xFF}, 16)
	if lotrcTypes.IsBig(order) {
		info.AssetType = 2
		l.Textures[info.Key] = &Texture{Info: info, Asset: &RawTexture{Blobs: [2][]byte{pixels, nil}}}
	} else {
		tex, err := textures.Decode(nil, pixels, &info, order)
		if err != nil {
			t.Fatal(err)
		}
		l.Textures[info.Key] = &Texture{Info: info, Asset: tex}
	}

	l.AnimationBlocks = []pakFormats.AnimationBlockInfo{{Key: h("anim_a")}, {Key: h("anim_b")}}
	for i, mask := range []int32{0b01, 0b11} {
		l.Animations = append(l.Animations, &animations.Animation{
			Info: pakFormats.AnimationInfo{Key: h(string(rune('a' + i))), GameModeMask: mask, Size: 8, Kind: 1},
			Raw:  bytes.Repeat([]byte{byte(i + 1)}, 8),
		})
	}

	l.Effects[h("smoke")] = &Effect{GameModeMask: 3, Data: []byte("not objects!")}
	l.GFXBlocks[h("hud")] = []byte("gfx")
	l.Foliages = []Foliage{{Info: pakFormats.FoliageInfo{Key: h("grass"), S1b: 1, S2b: 1}, Words: []uint32{4, 5}}}
	l.Illuminations = []Illumination{{GUID: 9, Words: []uint32{1, 2, 3}}}
	l.PFields = []pakFormats.PFieldInfo{{Key1: h("pf"), Width: 2, Height: 2}}
	l.ObjAs = []pakFormats.ObjA{{Key: h("obj"), Kind: 3}}
	l.Obj0s = []pakFormats.Obj0{{Unk0: 1, Key: h("obj")}}
	l.ValsA = []pakFormats.BlockAVal{{GameModeMask: -1, Key: h("va")}}
	l.Radiosity[h("x_radiosity")] = &Radiosity{Words: []uint32{7, 8, 9}}
	l.Loose[AssetKey{h("stray"), 5}] = []byte("stray blob")
	return l
}

var orders = []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

func TestRoundTrip(t *testing.T) {
	for _, order := range orders {
		name := lotrcTypes.OrderName(order)
		l := testLevel(t, order, DefaultOptions())
		pak, bin, err := l.Dump()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(bin)%binAlign != 0 {
			t.Errorf("%s: bin is %d bytes", name, len(bin))
		}
		back, err := Parse(pak, bin, DefaultOptions())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if back.Order != order {
			t.Errorf("%s: parsed as %s", name, lotrcTypes.OrderName(back.Order))
		}
		if back.PakHeader.Version != lotrcTypes.Version(order) || back.BinHeader.Version != lotrcTypes.Version(order) {
			t.Errorf("%s: versions %d %d", name, back.PakHeader.Version, back.BinHeader.Version)
		}

		if len(back.Meshes) != 1 || back.Meshes[h("rock")] == nil {
			t.Fatalf("%s: meshes %v", name, back.Meshes)
		}
		if got := back.Meshes[h("rock")].Indexes[0].Indices; !reflect.DeepEqual(got, []uint32{0, 1, 1}) {
			t.Errorf("%s: indices %v", name, got)
		}
		if len(back.Animations) != 2 || !bytes.Equal(back.Animations[1].Raw, l.Animations[1].Raw) {
			t.Errorf("%s: animations %v", name, back.Animations)
		}
		if e := back.Effects[h("smoke")]; e == nil || e.Objs != nil || string(e.Data) != "not objects!" || e.GameModeMask != 3 {
			t.Errorf("%s: effect %+v", name, e)
		}
		if string(back.GFXBlocks[h("hud")]) != "gfx" {
			t.Errorf("%s: gfx %q", name, back.GFXBlocks[h("hud")])
		}
		if !reflect.DeepEqual(back.Foliages[0].Words, []uint32{4, 5}) || !reflect.DeepEqual(back.Illuminations[0].Words, []uint32{1, 2, 3}) {
			t.Errorf("%s: foliage %v illumination %v", name, back.Foliages, back.Illuminations)
		}
		if !reflect.DeepEqual(back.ObjAs, l.ObjAs) || !reflect.DeepEqual(back.Obj0s, l.Obj0s) ||
			!reflect.DeepEqual(back.PFields, l.PFields) || !reflect.DeepEqual(back.ValsA, l.ValsA) {
			t.Errorf("%s: plain tables changed", name)
		}
		if r := back.Radiosity[h("x_radiosity")]; r == nil || !reflect.DeepEqual(r.Words, []uint32{7, 8, 9}) {
			t.Errorf("%s: radiosity %+v", name, r)
		}
		if b := back.Loose[AssetKey{h("stray"), 5}]; string(b) != "stray blob" {
			t.Errorf("%s: loose blob %q", name, b)
		}
		if tex := back.Textures[h("stone_tex")]; tex == nil {
			t.Errorf("%s: texture missing", name)
		} else if _, raw := tex.Asset.(*RawTexture); raw != lotrcTypes.IsBig(order) {
			t.Errorf("%s: texture asset %T", name, tex.Asset)
		}
		if g, ok := back.SubBlocks1.Block(gameObjs.LevelKey); !ok {
			t.Errorf("%s: no game objects", name)
		} else if objs, ok := g.(*gameObjs.GameObjs); !ok || objs.Objs[0].Values[0].Data != "gate" {
			t.Errorf("%s: game objects %#v", name, g)
		}
		if s, _ := back.SubBlocks1.Block(h("English")); !reflect.DeepEqual(s.(*gameObjs.LangStrings).Strings, []string{"Hello"}) {
			t.Errorf("%s: language strings %v", name, s)
		}
		if !reflect.DeepEqual(back.StringKeys.Keys(), []Crc{h("greeting")}) {
			t.Errorf("%s: string keys %v", name, back.StringKeys.Keys())
		}

		pak2, bin2, err := back.Dump()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(pak, pak2) || !bytes.Equal(bin, bin2) {
			t.Errorf("%s: second dump differs", name)
		}
	}
}

func TestRelocations(t *testing.T) {
	for _, order := range orders {
		pak, bin, err := testLevel(t, order, DefaultOptions()).Dump()
		if err != nil {
			t.Fatal(err)
		}
		l, err := Parse(pak, bin, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		ph := l.PakHeader
		block1, err := blockCodec.Decompress(pak, int(ph.Block1Size), int(ph.Block1SizeComp), int(ph.Block1Offset))
		if err != nil {
			t.Fatal(err)
		}
		if len(l.SourceRelocations) == 0 {
			t.Fatalf("%s: no relocations", lotrcTypes.OrderName(order))
		}
		if err := relocator.Validate(block1, l.SourceRelocations, order); err != nil {
			t.Error(err)
		}
		if d := relocator.Duplicates(l.SourceRelocations); len(d) != 0 {
			t.Errorf("relocations recorded twice: %v", d)
		}
		effect, _ := lotrcTypes.Uint32At(block1, int(ph.EffectInfoOffset)+8, order)
		found := false
		for _, r := range l.SourceRelocations {
			if r == ph.EffectInfoOffset+8 {
				found = true
			}
		}
		if !found || effect == 0 {
			t.Errorf("effect offset %d at %d is not relocated", effect, ph.EffectInfoOffset+8)
		}
	}
}

// aliasBuffers points every slot of the mesh at its one material and buffer pair.
func aliasBuffers(m *meshes.Mesh) {
	m.MatOrder = []uint32{0, 0}
	m.VBuffOrder = []uint32{0, 0}
	m.IBuffOrder = []uint32{0, 0}
	m.Buffers = append(m.Buffers, m.Buffers[0])
}

func TestSharedBuffers(t *testing.T) {
	for _, order := range orders {
		name := lotrcTypes.OrderName(order)
		l := testLevel(t, order, DefaultOptions())
		l.PakStrings = append(l.PakStrings, "boulder")
		l.BinStrings = append(l.BinStrings, "boulder_vdata")
		l.Names().Add("boulder", "boulder_vdata")
		aliasBuffers(l.Meshes[h("rock")])
		boulder := testMesh(t, order, l.formats)
		boulder.Info.Key, boulder.Info.AssetKey = h("boulder"), h("boulder_vdata")
		aliasBuffers(boulder)
		l.Meshes[boulder.Key()] = boulder

		pak, bin, err := l.Dump()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		back, err := Parse(pak, bin, DefaultOptions())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		ph := back.PakHeader
		if ph.MeshInfoNum != 2 || ph.Mat1Num != 2 || ph.VBuffInfoNum != 2 || ph.IBuffInfoNum != 2 || ph.BufferInfoNum != 4 {
			t.Errorf("%s: record counts mesh %d mat1 %d vbuff %d ibuff %d buffer %d", name,
				ph.MeshInfoNum, ph.Mat1Num, ph.VBuffInfoNum, ph.IBuffInfoNum, ph.BufferInfoNum)
		}
		for _, key := range []Crc{h("rock"), h("boulder")} {
			m := back.Meshes[key]
			if m == nil {
				t.Fatalf("%s: mesh %s missing", name, key)
			}
			shared := []uint32{0, 0}
			if !reflect.DeepEqual(m.MatOrder, shared) || !reflect.DeepEqual(m.VBuffOrder, shared) || !reflect.DeepEqual(m.IBuffOrder, shared) {
				t.Errorf("%s: mesh %s orders %v %v %v", name, key, m.MatOrder, m.VBuffOrder, m.IBuffOrder)
			}
			if len(m.Mats) != 1 || len(m.VBuffs) != 1 || len(m.IBuffs) != 1 || len(m.Buffers) != 2 {
				t.Errorf("%s: mesh %s has %d materials, %d/%d buffers, %d buffer infos", name, key,
					len(m.Mats), len(m.VBuffs), len(m.IBuffs), len(m.Buffers))
			}
			if got := m.Indexes[0].Indices; !reflect.DeepEqual(got, []uint32{0, 1, 1}) {
				t.Errorf("%s: mesh %s indices %v", name, key, got)
			}
		}

		block1, err := blockCodec.Decompress(pak, int(ph.Block1Size), int(ph.Block1SizeComp), int(ph.Block1Offset))
		if err != nil {
			t.Fatal(err)
		}
		if err := relocator.Validate(block1, back.SourceRelocations, order); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if d := relocator.Duplicates(back.SourceRelocations); len(d) != 0 {
			t.Errorf("%s: relocations recorded twice: %v", name, d)
		}

		pak2, bin2, err := back.Dump()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(pak, pak2) || !bytes.Equal(bin, bin2) {
			t.Errorf("%s: second dump differs", name)
		}
	}
}

func TestBinHeaderWordsKept(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	for i := range l.BinHeader.Unk7 {
		l.BinHeader.Unk7[i] = uint32(100 + i)
	}
	delete(l.Meshes, h("rock"))
	pak, bin, err := l.Dump()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(pak, bin, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if back.BinHeader.Unk7 != l.BinHeader.Unk7 {
		t.Errorf("header words %v, want %v", back.BinHeader.Unk7, l.BinHeader.Unk7)
	}
}

func TestUncompressed(t *testing.T) {
	opts := DefaultOptions()
	opts.Compress = false
	pak, bin, err := testLevel(t, binary.LittleEndian, opts).Dump()
	if err != nil {
		t.Fatal(err)
	}
	l, err := Parse(pak, bin, opts)
	if err != nil {
		t.Fatal(err)
	}
	if l.PakHeader.Block1SizeComp != 0 || l.PakHeader.Block2SizeComp != 0 {
		t.Errorf("blocks compressed: %+v", l.PakHeader)
	}
	for _, k := range l.assets.Keys() {
		if ah, _ := l.assets.Handle(k); ah.SizeComp != 0 {
			t.Errorf("asset %s stored compressed", k)
		}
	}
	ah, ok := l.assets.Handle(AssetKey{h("rock_vdata"), 0})
	if !ok || int(ah.Size) != len(vertexData(binary.LittleEndian)) || ah.Offset%binAlign != 0 {
		t.Errorf("mesh blob handle %+v", ah)
	}
}

func TestByteOrderMarker(t *testing.T) {
	pak, bin, err := testLevel(t, binary.BigEndian, DefaultOptions()).Dump()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bin[:4], []byte{0, 0, 0, 6}) {
		t.Errorf("console marker % x", bin[:4])
	}
	bad := append([]byte{1, 2, 3, 4}, bin[4:]...)
	if _, err := Parse(pak, bad, DefaultOptions()); !lotrcTypes.IsFormatError(err) {
		t.Errorf("bad marker: err = %v", err)
	}
	// a console data file with a little endian structure file
	lpak, _, err := testLevel(t, binary.LittleEndian, DefaultOptions()).Dump()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(lpak, bin, DefaultOptions()); !lotrcTypes.IsFormatError(err) {
		t.Errorf("mixed orders: err = %v", err)
	}
}

func TestConvert(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	if err := l.Convert(binary.BigEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("little to console: err = %v", err)
	}
	if err := l.Convert(binary.LittleEndian); err != nil {
		t.Error(err)
	}

	pak, bin, err := testLevel(t, binary.BigEndian, DefaultOptions()).Dump()
	if err != nil {
		t.Fatal(err)
	}
	console, err := Parse(pak, bin, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := console.Convert(binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if console.Order != binary.LittleEndian {
		t.Fatalf("order is still %s", lotrcTypes.OrderName(console.Order))
	}
	pak, bin, err = console.Dump()
	if err != nil {
		t.Fatal(err)
	}
	pc, err := Parse(pak, bin, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if pc.Order != binary.LittleEndian || pc.PakHeader.Version != 2 {
		t.Errorf("converted level order %s version %d", lotrcTypes.OrderName(pc.Order), pc.PakHeader.Version)
	}
	if len(pc.Meshes) != 1 || len(pc.Animations) != 2 {
		t.Errorf("converted level lost records")
	}
}

func TestVerify(t *testing.T) {
	for _, order := range orders {
		pak, bin, err := testLevel(t, order, DefaultOptions()).Dump()
		if err != nil {
			t.Fatal(err)
		}
		diffs, err := Verify(pak, bin, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if len(diffs) != 0 {
			t.Errorf("%s: %v", lotrcTypes.OrderName(order), diffs)
		}
	}
}

func TestDigestDiff(t *testing.T) {
	a := &Digests{Block1: 1, Block2: 2, Animations: []uint64{3}, Assets: map[AssetKey]uint64{{1, 0}: 4, {2, 0}: 5}}
	b := &Digests{Block1: 1, Block2: 9, Animations: []uint64{3}, Assets: map[AssetKey]uint64{{1, 0}: 6, {3, 0}: 5}}
	got := a.Diff(b)
	if len(got) != 4 || got[0] != "block2" {
		t.Errorf("diff = %q", got)
	}
	if d := a.Diff(a); len(d) != 0 {
		t.Errorf("self diff = %q", d)
	}
}

func TestMeshGroups(t *testing.T) {
	l := newLevel(binary.LittleEndian, DefaultOptions())
	l.Names().Add("Terrain_Hill_10", "Terrain_Hill_2", "Wall_Collision_3", "Wall_Collision_1", "tree", "occluder")
	for _, n := range []string{"Terrain_Hill_10", "Terrain_Hill_2", "Wall_Collision_3", "Wall_Collision_1", "tree", "occluder"} {
		l.Meshes[h(n)] = &meshes.Mesh{Info: pakFormats.MeshInfo{Key: h(n)}}
	}
	g := l.meshGroups()
	names := func(ms []*meshes.Mesh) []string {
		var out []string
		for _, m := range ms {
			out = append(out, l.Names().Name(m.Key()))
		}
		return out
	}
	if got := names(g.terrain); !reflect.DeepEqual(got, []string{"Terrain_Hill_2", "Terrain_Hill_10"}) {
		t.Errorf("terrain = %v", got)
	}
	if got := names(g.collision); !reflect.DeepEqual(got, []string{"Wall_Collision_1", "Wall_Collision_3"}) {
		t.Errorf("collision = %v", got)
	}
	if got := names(g.normal); !reflect.DeepEqual(got, []string{"tree"}) {
		t.Errorf("normal = %v", got)
	}
	if g.occluder == nil || g.occluder.Key() != h("occluder") {
		t.Errorf("occluder = %v", g.occluder)
	}
	if len(g.all()) != 6 {
		t.Errorf("all = %d meshes", len(g.all()))
	}
	if nameSuffix("plain") != 0 || nameSuffix("a_b_12") != 12 {
		t.Errorf("name suffix")
	}
}

func TestTextureOrder(t *testing.T) {
	l := newLevel(binary.LittleEndian, DefaultOptions())
	for i, k := range []Crc{5, secondTextureKey, 1, firstTextureKey} {
		l.Textures[Crc(100-i)] = &Texture{Info: pakFormats.TextureInfo{Key: Crc(100 - i), AssetKey: k}}
	}
	var got []Crc
	for _, tex := range l.sortedTextures() {
		got = append(got, tex.Info.AssetKey)
	}
	if want := []Crc{firstTextureKey, secondTextureKey, 1, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("texture order %v, want %v", got, want)
	}
}

func TestAssetCache(t *testing.T) {
	bin := []byte("0123456789abcdef")
	handles := []pakFormats.AssetHandle{
		{Key: 1, Offset: 0, Size: 4},
		{Key: 2, Offset: 4, Size: 6, Kind: 3},
	}
	c, err := NewAssetCache(bin, handles, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Take(AssetKey{2, 3})
	if err != nil || string(b) != "456789" {
		t.Fatalf("take = %q %v", b, err)
	}
	if got := c.Unclaimed(); !reflect.DeepEqual(got, []AssetKey{{1, 0}}) {
		t.Errorf("unclaimed = %v", got)
	}
	if b, _ := c.Blob(AssetKey{1, 0}); string(b) != "0123" {
		t.Errorf("blob = %q", b)
	}
	if _, err := c.Take(AssetKey{2, 0}); !lotrcTypes.IsFormatError(err) {
		t.Errorf("missing handle: err = %v", err)
	}
	if _, err := NewAssetCache(bin, append(handles, handles[0]), 1); !lotrcTypes.IsFormatError(err) {
		t.Errorf("duplicate handle: err = %v", err)
	}
}

func TestExtract(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	dir := t.TempDir()
	if err := l.Extract(dir); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{
		"pak_header.json", "string_keys.json", "sub_blocks1/Level.json", "sub_blocks1/English.json",
		"sub_blocks1/readme.txt", "sub_blocks2/notes.dat", "meshes/rock.json", "textures/stone_tex.json",
		"textures/stone_tex.png", "manifest.zst",
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
	lang, err := os.ReadFile(filepath.Join(dir, "sub_blocks1", "English.json"))
	if err != nil || !bytes.Contains(lang, []byte(`"greeting": "Hello"`)) {
		t.Errorf("language file %s", lang)
	}

	path := filepath.Join(t.TempDir(), "level.zip")
	if err := l.ExtractZip(path); err != nil {
		t.Fatal(err)
	}
	z, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()
	found := false
	for _, f := range z.File {
		if f.Name == "sub_blocks1/Level.json" {
			found = true
		}
	}
	if !found {
		t.Errorf("zip lacks the game objects")
	}
}

func TestImport(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	dir := t.TempDir()
	if err := l.Extract(dir); err != nil {
		t.Fatal(err)
	}
	lang := filepath.Join(dir, "sub_blocks1", "English.json")
	if err := os.WriteFile(lang, []byte(`{"greeting": "Welcome"}`), 0777); err != nil {
		t.Fatal(err)
	}
	objs := filepath.Join(dir, "sub_blocks1", "Level.json")
	data, err := os.ReadFile(objs)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(objs, bytes.Replace(data, []byte(`"gate"`), []byte(`"door"`), 1), 0777); err != nil {
		t.Fatal(err)
	}
	if err := l.Import(dir); err != nil {
		t.Fatal(err)
	}

	pak, bin, err := l.Dump()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(pak, bin, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := back.SubBlocks1.Block(h("English"))
	if got := s.(*gameObjs.LangStrings).Strings; !reflect.DeepEqual(got, []string{"Welcome"}) {
		t.Errorf("strings = %v", got)
	}
	g, _ := back.SubBlocks1.Block(gameObjs.LevelKey)
	if v := g.(*gameObjs.GameObjs).Objs[0].Values[0].Data; v != "door" {
		t.Errorf("imported name = %v", v)
	}
}

func TestImportSkipsUnchanged(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	dir := t.TempDir()
	if err := l.Extract(dir); err != nil {
		t.Fatal(err)
	}
	s, _ := l.SubBlocks1.Block(h("English"))
	s.(*gameObjs.LangStrings).Strings = []string{"kept"}
	if err := l.Import(dir); err != nil {
		t.Fatal(err)
	}
	if got := s.(*gameObjs.LangStrings).Strings; !reflect.DeepEqual(got, []string{"kept"}) {
		t.Errorf("unchanged file was imported: %v", got)
	}
}

func TestReplaceObjectsWithoutLevel(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	js, err := testObjs(l.Names()).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	l.SubBlocks1 = &gameObjs.SubBlocks{}
	if err := l.ReplaceObjects(js); !lotrcTypes.IsFormatError(err) {
		t.Errorf("err = %v", err)
	}
}

func TestFoliageMismatch(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	l.Foliages[0].Words = []uint32{1}
	if _, _, err := l.Dump(); !lotrcTypes.IsSizeMismatch(err) {
		t.Errorf("err = %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	l := testLevel(t, binary.LittleEndian, DefaultOptions())
	pakPath, binPath := Paths(filepath.Join(t.TempDir(), "Level"))
	if filepath.Ext(pakPath) != ".PAK" || filepath.Ext(binPath) != ".BIN" {
		t.Errorf("paths %s %s", pakPath, binPath)
	}
	if err := l.Save(pakPath, binPath); err != nil {
		t.Fatal(err)
	}
	back, err := Load(pakPath, binPath, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Meshes) != 1 || len(back.Textures) != 1 {
		t.Errorf("loaded %d meshes %d textures", len(back.Meshes), len(back.Textures))
	}
	if _, err := Load(pakPath+".missing", binPath, DefaultOptions()); err == nil {
		t.Errorf("missing file loaded")
	}
}
