package meshes

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/relocator"
)

func TestLayoutStrides(t *testing.T) {
	tests := []struct {
		fmt1, fmt2 uint32
		stride     int
		attrs      int
	}{
		{0x141, 1, 20, 3},
		{0x1, 1, 12, 1},
		{0x40043, 0, 48, 3},
		{0x309, 1, 36, 5},
	}
	for _, tt := range tests {
		l := NewLayout(tt.fmt1, tt.fmt2)
		if l.Stride != tt.stride || len(l.Attrs) != tt.attrs {
			t.Errorf("layout %#x/%#x: stride %d with %d attrs, want %d with %d", tt.fmt1, tt.fmt2, l.Stride, len(l.Attrs), tt.stride, tt.attrs)
		}
	}
	f := NewFormats()
	if f.Layout(0x141, 1) != f.Layout(0x141, 1) || f.Len() != 1 {
		t.Errorf("layouts not cached")
	}
}

func TestRequantize(t *testing.T) {
	tests := map[uint32]uint32{0x000: 127, 0x200: 0, 0x1FF: 255, 0x201: 0, 0x010: 131}
	for in, want := range tests {
		if got := requantize(in ^ 0x200); got != want {
			t.Errorf("requantize(%#x) = %d, want %d", in, got, want)
		}
	}
}

func TestConvertWeights(t *testing.T) {
	v := &VertexBuffer{Columns: []Column{{Attribute: Attribute{Usage: BlendWeight, Kind: Word}, Words: []uint32{0, 0x1FF}}}}
	info := &pakFormats.VBuffInfo{Fmt1: fmtWeight}
	v.ConvertToLittle(info, NewFormats())
	if want := []uint32{0x7F7F7F7F, 0x7FFF7F7F}; !reflect.DeepEqual(v.Columns[0].Words, want) {
		t.Errorf("weights = %#x, want %#x", v.Columns[0].Words, want)
	}

	wide := &VertexBuffer{Columns: []Column{{Attribute: Attribute{Usage: BlendWeight, Kind: Vec4}, Floats: []float32{-1, 0, 1, 0.25}}}}
	wide.ConvertToLittle(&pakFormats.VBuffInfo{Fmt1: fmtWide | fmtWeight}, NewFormats())
	if want := []float32{0, 0.5, 1, 0.25}; !reflect.DeepEqual(wide.Columns[0].Floats, want) {
		t.Errorf("wide weights = %v, want %v", wide.Columns[0].Floats, want)
	}
}

func TestSplitBasis(t *testing.T) {
	info := &pakFormats.VBuffInfo{Fmt1: fmtPosition | fmtBiNormal | fmtPackedBasis, Fmt2: 1}
	f := NewFormats()
	v := &VertexBuffer{Columns: []Column{
		{Attribute: Attribute{Usage: Position, Kind: Vec3}, Floats: []float32{1, 2, 3}},
		{Attribute: Attribute{Usage: BiNormal, Kind: Word}, Words: []uint32{0x44332211}},
	}}
	v.ConvertToLittle(info, f)
	if info.Fmt1&fmtTangent == 0 || v.Stride() != f.Layout(info.Fmt1, info.Fmt2).Stride {
		t.Fatalf("format not widened: %#x stride %d", info.Fmt1, v.Stride())
	}
	if c := v.Column(BiNormal, 0); c == nil || c.Words[0] != 0x44444433 {
		t.Errorf("binormal = %+v", c)
	}
	if c := v.Column(Tangent, 0); c == nil || c.Words[0] != 0x112200 {
		t.Errorf("tangent = %+v", c)
	}
}

func vertexBlob(order binary.ByteOrder) []byte {
	words := []uint32{
		math.Float32bits(1), math.Float32bits(2), math.Float32bits(3), 0xAA, 0xBB,
		math.Float32bits(4), math.Float32bits(5), math.Float32bits(6), 0xCC, 0xDD,
	}
	return lotrcTypes.Pack(order, words)
}

func TestVertexRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		blob := vertexBlob(order)
		info := &pakFormats.VBuffInfo{Size: uint32(len(blob)), Fmt1: 0x141, Fmt2: 1}
		v, err := DecodeVertexBuffer(blob, info, NewFormats(), order)
		if err != nil {
			t.Fatal(err)
		}
		if v.Len() != 2 {
			t.Fatalf("%d vertices", v.Len())
		}
		if p := v.Positions(); p[1] != (lotrcTypes.Vector3{4, 5, 6}) {
			t.Errorf("positions = %v", p)
		}
		if c := v.Column(Normal, 0); c == nil || c.Words[1] != 0xDD {
			t.Errorf("normal column = %+v", c)
		}
		out, err := v.Encode(order)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out, blob) {
			t.Errorf("%s vertex data not preserved", lotrcTypes.OrderName(order))
		}
	}

	info := &pakFormats.VBuffInfo{Size: 36, Fmt1: 0x141, Fmt2: 1}
	if _, err := DecodeVertexBuffer(make([]byte, 36), info, NewFormats(), binary.LittleEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("partial vertex: err = %v", err)
	}
}

func TestIndexBuffer(t *testing.T) {
	ib := &IndexBuffer{Format: Index16, Indices: []uint32{0, 1, 2}}
	b, err := ib.Encode(binary.BigEndian)
	if err != nil || len(b) != 6 {
		t.Fatalf("encode: %v %x", err, b)
	}
	back, err := DecodeIndexBuffer(b, &pakFormats.IBuffInfo{Format: Index16, Size: 6}, binary.BigEndian)
	if err != nil || !reflect.DeepEqual(back.Indices, ib.Indices) {
		t.Errorf("decode: %v %v", err, back)
	}
	ib.Indices[0] = 0x10000
	if _, err := ib.Encode(binary.BigEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("wide index: err = %v", err)
	}
}

func TestDedupe(t *testing.T) {
	uniq, idx := dedupe([]uint32{300, 100, 300, 200})
	if !reflect.DeepEqual(uniq, []uint32{100, 200, 300}) || !reflect.DeepEqual(idx, []uint32{2, 0, 2, 1}) {
		t.Errorf("dedupe = %v %v", uniq, idx)
	}
}

func seq(n int, from uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = from + uint32(i)
	}
	return out
}

func sampleMesh() *Mesh {
	mat2 := &pakFormats.Mat2{}
	mat2.Base.Kind = 2
	mat2.Base.Key = lotrcTypes.Hash("stone")
	mat2.Unk90[3] = 9
	extra := pakFormats.MatExtra{}
	extra[0] = 0x55

	buf := pakFormats.BufferInfo{VBuffInfoOffset: 0, VBuffInfoOffset2: NoBuffer, VBuffInfoOffset3: NoBuffer, IBuffInfoOffset: 0, TriNum: 4}
	return &Mesh{
		Info:     pakFormats.MeshInfo{Key: lotrcTypes.Hash("rock"), GameModeMask: -1, BlockStart: 2, BlockEnd: 3},
		Indices:  []uint32{0xFFFFFFFF},
		Keys:     []Crc{lotrcTypes.Hash("root")},
		Matrices: []lotrcTypes.Matrix4x4{{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}},
		ValsA:    seq(8, 1),
		MatOrder: []uint32{0, 1, 0},
		ValsC:    seq(2, 10),
		ValsD:    seq(16, 20),
		ValsG:    seq(16, 40),
		ValsJ:    seq(3, 60),

		VBuffOrder: []uint32{0},
		IBuffOrder: []uint32{0},
		Block: &Block{
			Header:  7,
			Offsets: []uint32{16, 108},
			Parts: []BlockPart{{
				Header: BlockHeader{A: 1, Unk4: 3},
				ValsA:  seq(12, 100),
				ValsB:  []BlockVal{{Unk0: 1, Unk5: 2}},
				Extra:  []uint32{5},
			}},
		},

		Mats:             []Material{{Mat1: &pakFormats.Mat1{}}, {Mat2: mat2, Extra: &extra}},
		VBuffs:           []pakFormats.VBuffInfo{{Size: 40, Fmt1: 0x141, Fmt2: 1}},
		IBuffs:           []pakFormats.IBuffInfo{{Size: 6, Format: Index16, Offset: 40}},
		Buffers:          []pakFormats.BufferInfo{buf, buf, buf},
		HkConstraintData: []pakFormats.HkConstraintData{{Kind: 1}},
		HkConstraint: &HkConstraint{
			Shorts:  []uint16{0xFFFF, 3},
			Strings: []ConstraintString{{"hinge", 7}, {"ab", 9}},
			Vals:    seq(12, 200),
			Keys:    []Key2{{Key: lotrcTypes.Hash("root"), Val: 1}},
		},
		Shapes: []Shape{
			{
				Info: pakFormats.ShapeInfo{Kind: 1},
				HkShapes: []HkShape{
					{Info: pakFormats.HkShapeInfo{Kind: 5}, A: seq(4, 1), B: seq(12, 300), BExtra: 3},
					{Info: pakFormats.HkShapeInfo{Kind: 6}, C: []byte{1, 2, 3, 4, 5}, D: seq(3, 400), E: []uint16{1, 2, 3}},
					{Info: pakFormats.HkShapeInfo{Kind: 2}},
				},
			},
			{
				Info:  pakFormats.ShapeInfo{Kind: 0},
				Extra: &ShapeExtra{Header: ShapeExtraHeader{Unk1: 0.5}, Offs: []uint32{0, 2}, Data: []byte{1, 2, 3, 4}},
			},
		},
	}
}

// reserveTables lays out every block 1 table at the start of the writer.
func reserveTables(h *pakFormats.PakHeader, w *relocator.Writer) {
	for _, k := range pakFormats.BlockOneTables {
		num, off := h.Table(k)
		*off = uint32(w.Pos())
		w.Reserve(int(*num) * pakFormats.ElementSize(k, w.Order))
		w.Pad(16)
	}
}

func dumpMeshes(t *testing.T, order binary.ByteOrder, meshes ...*Mesh) ([]byte, *pakFormats.PakHeader, *relocator.Writer) {
	t.Helper()
	h := &pakFormats.PakHeader{}
	for _, m := range meshes {
		m.CountRecords(h)
	}
	w := relocator.NewWriter(order)
	reserveTables(h, w)
	tables := NewTables(h, order)
	for _, m := range meshes {
		if err := tables.Dump(w, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := tables.Flush(w); err != nil {
		t.Fatal(err)
	}
	return w.Bytes(), h, w
}

func TestDumpRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		m := sampleMesh()
		block, h, w := dumpMeshes(t, order, m)
		if h.MeshInfoNum != 1 || h.Mat1Num != 1 || h.Mat2Num != 1 || h.MatExtraNum != 1 || h.BufferInfoNum != 3 ||
			h.HkShapeInfoNum != 3 || h.ShapeInfoNum != 2 || h.HkConstraintInfoNum != 1 {
			t.Fatalf("record counts %+v", h)
		}
		if err := relocator.Validate(block, w.Relocations(), order); err != nil {
			t.Fatal(err)
		}
		if d := relocator.Duplicates(w.Relocations()); len(d) != 0 {
			t.Errorf("relocations recorded twice: %v", d)
		}

		back, err := Decode(block, int(h.MeshInfoOffset), order)
		if err != nil {
			t.Fatal(err)
		}
		same := func(name string, got, want interface{}) {
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%s: %s = %v, want %v", lotrcTypes.OrderName(order), name, got, want)
			}
		}
		same("keys", back.Keys, m.Keys)
		same("matrices", back.Matrices, m.Matrices)
		same("vals a", back.ValsA, m.ValsA)
		same("vals c", back.ValsC, m.ValsC)
		same("vals d", back.ValsD, m.ValsD)
		same("vals g", back.ValsG, m.ValsG)
		same("vals j", back.ValsJ, m.ValsJ)
		same("mat order", back.MatOrder, m.MatOrder)
		same("vbuff order", back.VBuffOrder, m.VBuffOrder)
		same("vbuffs", back.VBuffs, m.VBuffs)
		same("ibuffs", back.IBuffs, m.IBuffs)
		same("buffers", back.Buffers, m.Buffers)
		same("block", back.Block, m.Block)
		same("constraint data", back.HkConstraintData, m.HkConstraintData)

		if len(back.Mats) != 2 || back.Mats[0].Mat1 == nil || back.Mats[1].Mat2 == nil {
			t.Fatalf("materials = %+v", back.Mats)
		}
		same("mat2 payload", back.Mats[1].Mat2.Unk90, m.Mats[1].Mat2.Unk90)
		same("mat extra", back.Mats[1].Extra, m.Mats[1].Extra)
		if back.Mats[0].Extra != nil {
			t.Errorf("mat1 grew an extra")
		}

		c := back.HkConstraint
		if c == nil {
			t.Fatal("constraint lost")
		}
		same("constraint strings", c.Strings, m.HkConstraint.Strings)
		same("constraint shorts", c.Shorts, m.HkConstraint.Shorts)
		same("constraint vals", c.Vals, m.HkConstraint.Vals)
		same("constraint keys", c.Keys, m.HkConstraint.Keys)
		if c.Info.KeysOffset != back.Info.KeysOffset || c.Info.KeysNum != 1 {
			t.Errorf("constraint keys point at %d/%d", c.Info.KeysOffset, c.Info.KeysNum)
		}

		if len(back.Shapes) != 2 || len(back.Shapes[0].HkShapes) != 3 {
			t.Fatalf("shapes = %+v", back.Shapes)
		}
		h5, h6 := back.Shapes[0].HkShapes[0], back.Shapes[0].HkShapes[1]
		same("hk shape a", h5.A, m.Shapes[0].HkShapes[0].A)
		same("hk shape b", h5.B, m.Shapes[0].HkShapes[0].B)
		same("hk shape b extra", h5.BExtra, 3)
		same("hk shape c", h6.C, m.Shapes[0].HkShapes[1].C)
		same("hk shape d", h6.D, m.Shapes[0].HkShapes[1].D)
		same("hk shape e", h6.E, m.Shapes[0].HkShapes[1].E)
		same("shape extra", back.Shapes[1].Extra.Data, m.Shapes[1].Extra.Data)
		same("shape extra offs", back.Shapes[1].Extra.Offs, m.Shapes[1].Extra.Offs)
	}
}

func TestDumpIsStable(t *testing.T) {
	first, h, _ := dumpMeshes(t, binary.BigEndian, sampleMesh())
	m, err := Decode(first, int(h.MeshInfoOffset), binary.BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	second, _, _ := dumpMeshes(t, binary.BigEndian, m)
	if !bytes.Equal(first, second) {
		t.Errorf("second dump differs from the first")
	}
}

func TestFlushCountMismatch(t *testing.T) {
	m := sampleMesh()
	h := &pakFormats.PakHeader{}
	m.CountRecords(h)
	h.Mat1Num++
	w := relocator.NewWriter(binary.LittleEndian)
	reserveTables(h, w)
	tables := NewTables(h, binary.LittleEndian)
	if err := tables.Dump(w, m); err != nil {
		t.Fatal(err)
	}
	if err := tables.Flush(w); !lotrcTypes.IsSizeMismatch(err) {
		t.Errorf("err = %v", err)
	}
}

func TestTerrainDump(t *testing.T) {
	m := &Mesh{
		Info:    pakFormats.MeshInfo{Key: lotrcTypes.Hash("terrain_1"), ValsJOffset: 12},
		Indices: []uint32{0xFFFFFFFF},
		ValsA:   seq(8, 1),
		ValsC:   seq(2, 10),
		ValsD:   seq(16, 20),
	}
	h := &pakFormats.PakHeader{}
	m.CountRecords(h)
	w := relocator.NewWriter(binary.LittleEndian)
	reserveTables(h, w)
	terrain := w.Reserve(16)
	tables := NewTables(h, binary.LittleEndian)
	start := w.Pos()
	if err := tables.DumpTerrain(w, m, uint32(terrain)); err != nil {
		t.Fatal(err)
	}
	info := tables.Meshes[0]
	if info.IndicesOffset != uint32(terrain) || info.ValsGOffset != uint32(terrain) || info.ValsGNum != 0 {
		t.Errorf("terrain indices at %d/%d", info.IndicesOffset, info.ValsGOffset)
	}
	if info.KeysOffset != 0 || info.KeysNum != 1 || info.ValsAOffset != h.MeshInfoOffset+16 {
		t.Errorf("terrain keys %d/%d vals a %d", info.KeysOffset, info.KeysNum, info.ValsAOffset)
	}
	if info.Unk4 != [8]uint32{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Errorf("vals a not stored in the mesh info: %v", info.Unk4)
	}
	if info.ValsJOffset != 12 {
		t.Errorf("vals j offset = %d", info.ValsJOffset)
	}
	if got := w.Pos() - int(info.IBuffOffset); got != terrainSlack {
		t.Errorf("terrain tail is %d bytes (from %d)", got, start)
	}

	m.Keys2 = make([]Key2, 50)
	m.Keys2Order = []uint32{}
	h = &pakFormats.PakHeader{}
	m.CountRecords(h)
	w = relocator.NewWriter(binary.LittleEndian)
	reserveTables(h, w)
	if err := NewTables(h, binary.LittleEndian).DumpTerrain(w, m, 0); !lotrcTypes.IsSizeMismatch(err) {
		t.Errorf("oversized terrain: err = %v", err)
	}
}

func TestDecodeInvariants(t *testing.T) {
	block, h, _ := dumpMeshes(t, binary.LittleEndian, sampleMesh())
	info, err := lotrcTypes.Unpack[pakFormats.MeshInfo](block, int(h.MeshInfoOffset), binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}

	bad := append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(bad[info.IndicesOffset:], 0)
	if _, err := Decode(bad, int(h.MeshInfoOffset), binary.LittleEndian); !lotrcTypes.IsInvariantViolation(err) {
		t.Errorf("indices sentinel: err = %v", err)
	}

	bad = append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(bad[h.Mat2Offset+pakFormats.MatKindOffset:], 9)
	if _, err := Decode(bad, int(h.MeshInfoOffset), binary.LittleEndian); !lotrcTypes.IsUnsupported(err) {
		t.Errorf("material kind 9: err = %v", err)
	}

	bad = append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(bad[h.HkConstraintInfoOffset:], 1)
	if _, err := Decode(bad, int(h.MeshInfoOffset), binary.LittleEndian); !lotrcTypes.IsUnsupported(err) {
		t.Errorf("constraint kind 1: err = %v", err)
	}

	bad = append([]byte(nil), block...)
	binary.LittleEndian.PutUint32(bad[info.BufferInfoOffset:], 4)
	if _, err := Decode(bad, int(h.MeshInfoOffset), binary.LittleEndian); !lotrcTypes.IsFormatError(err) {
		t.Errorf("stray buffer offset: err = %v", err)
	}
}

func TestMeshBuffers(t *testing.T) {
	m := sampleMesh()
	blob := lotrcTypes.Pack(binary.LittleEndian, []uint16{2, 1, 0})
	blob = append(blob, vertexBlob(binary.LittleEndian)...)
	m.IBuffs[0].Offset, m.VBuffs[0].Offset = 0, 6

	if err := m.DecodeBuffers(blob, NewFormats(), binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Indexes[0].Indices, []uint32{2, 1, 0}) || m.Vertices[0].Len() != 2 {
		t.Fatalf("buffers %+v %+v", m.Indexes[0], m.Vertices[0])
	}
	m.Buffers[0].VSize = 0
	out, err := m.EncodeBuffers(binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	want := append(vertexBlob(binary.LittleEndian), lotrcTypes.Pack(binary.LittleEndian, []uint16{2, 1, 0})...)
	if !bytes.Equal(out, want) {
		t.Errorf("blob not interleaved\n got %x\nwant %x", out, want)
	}
	if m.Buffers[0].VSize != 20 || m.Buffers[0].VBuffSize != 40 {
		t.Errorf("buffer info sizes %d %d", m.Buffers[0].VSize, m.Buffers[0].VBuffSize)
	}
	if m.VBuffs[0].Offset != 0 || m.IBuffs[0].Offset != 40 || m.IBuffs[0].Size != 6 {
		t.Errorf("offsets %d %d size %d", m.VBuffs[0].Offset, m.IBuffs[0].Offset, m.IBuffs[0].Size)
	}

	again, err := m.EncodeBuffers(binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, out) {
		t.Errorf("second layout differs\n got %x\nwant %x", again, out)
	}
}
