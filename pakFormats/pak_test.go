package pakFormats

import (
	"encoding/binary"
	"testing"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"PakHeader", PakHeaderSize, 472},
		{"BinHeader", BinHeaderSize, 172},
		{"AssetHandle", AssetHandleSize, 20},
		{"ObjA", ObjASize, 24},
		{"MeshInfo", MeshInfoSize, 256},
		{"BufferInfo", BufferInfoSize, 356},
		{"Mat1", Mat1Size, 360},
		{"Mat2", Mat2Size, 488},
		{"Mat3", Mat3Size, 464},
		{"Mat4", Mat4Size, 584},
		{"MatExtra", MatExtraSize, 200},
		{"ShapeInfo", ShapeInfoSize, 124},
		{"HkShapeInfo", HkShapeInfoSize, 80},
		{"HkConstraintData", HkConstraintDataSize, 116},
		{"TextureInfo", TextureInfoSize, 72},
		{"AnimationInfo", AnimationInfoSize, 148},
		{"HkConstraintInfo", HkConstraintInfoSize, 72},
		{"FoliageInfo", FoliageInfoSize, 80},
		{"AnimationBlockInfo", AnimationBlockInfoSize, 36},
		{"BlockAVal", BlockAValSize, 28},
		{"VBuffInfo LE", VBuffInfoSize(binary.LittleEndian), 32},
		{"VBuffInfo BE", VBuffInfoSize(binary.BigEndian), 56},
		{"IBuffInfo LE", IBuffInfoSize(binary.LittleEndian), 24},
		{"IBuffInfo BE", IBuffInfoSize(binary.BigEndian), 52},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s is %d bytes, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func wordAt(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func TestPointerFieldOffsets(t *testing.T) {
	m := MeshInfo{MatOffset: 1, BufferInfoOffset: 2, ValsCOffset: 3, KeysOffset: 4, IndicesOffset: 5,
		VBuffOffset: 6, ValsJOffset: 7, ShapeOffset: 8, Keys2OrderOffset: 9, ValsAOffset: 10}
	b := lotrcTypes.Pack(binary.LittleEndian, m)
	for off, want := range map[int]uint32{8: 1, 12: 2, 48: 3, 136: 4, 140: 5, 164: 6, 196: 7, 224: 8, 248: 9, 252: 10} {
		if got := wordAt(b, off); got != want {
			t.Errorf("MeshInfo word at %d = %d, want %d", off, got, want)
		}
	}

	bi := BufferInfo{VBuffInfoOffset3: 1, IBuffInfoOffset: 2}
	b = lotrcTypes.Pack(binary.LittleEndian, bi)
	if wordAt(b, 8) != 1 || wordAt(b, 260) != 2 {
		t.Errorf("BufferInfo pointer fields misplaced")
	}

	mat := Mat1{Base: MatBase{Kind: 3, MatExtraOffset: 4}}
	b = lotrcTypes.Pack(binary.LittleEndian, mat)
	if wordAt(b, MatKindOffset) != 3 || wordAt(b, 344) != 4 {
		t.Errorf("MatBase kind/extra misplaced")
	}

	s := ShapeInfo{HkShapeOffset: 5}
	if wordAt(lotrcTypes.Pack(binary.LittleEndian, s), 112) != 5 {
		t.Errorf("ShapeInfo.HkShapeOffset misplaced")
	}

	hk := HkShapeInfo{AOffset: 1, BOffset: 2, COffset: 3, DOffset: 4, EOffset: 5}
	b = lotrcTypes.Pack(binary.LittleEndian, hk)
	for off, want := range map[int]uint32{44: 1, 52: 2, 60: 3, 68: 4, 76: 5} {
		if wordAt(b, off) != want {
			t.Errorf("HkShapeInfo word at %d", off)
		}
	}

	c := HkConstraintInfo{ShortsOffset: 1, StringsOffset: 2, ValsOffset: 3, KeysOffset: 4, Keys2Offset: 5, Vals2Offset: 6}
	b = lotrcTypes.Pack(binary.LittleEndian, c)
	for off, want := range map[int]uint32{4: 1, 12: 2, 20: 3, 40: 4, 48: 5, 64: 6} {
		if wordAt(b, off) != want {
			t.Errorf("HkConstraintInfo word at %d", off)
		}
	}

	f := FoliageInfo{Offset: 9, S1a: 1, S1b: 3, S2a: 0, S2b: 4}
	if wordAt(lotrcTypes.Pack(binary.LittleEndian, f), 28) != 9 || f.Words() != 16 {
		t.Errorf("FoliageInfo offset/words")
	}
}

func TestPakHeaderBlockAAlwaysLittle(t *testing.T) {
	h := PakHeader{BlockANum: 3, BlockAOffset: 0x1000, Constx13: 0x13, Version: 1, Block2OffsetsNum: 7}
	b := h.Pack(binary.BigEndian)
	if wordAt(b, 0) != 3 || wordAt(b, 4) != 0x1000 {
		t.Fatalf("block A fields not little endian: % x", b[:8])
	}
	if binary.BigEndian.Uint32(b[8:]) != 0x13 {
		t.Fatalf("rest of header should follow file order")
	}
	got, err := UnpackPakHeader(b, binary.BigEndian)
	if err != nil || got != h {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestBufferInfoLayouts(t *testing.T) {
	v := VBuffInfo{Size: 64, Offset: 128, Fmt1: 0x1234, Fmt2: 0x5678, Unk8: [6]uint32{1, 2, 3, 4, 5, 6}}
	be := v.Pack(binary.BigEndian)
	if binary.BigEndian.Uint32(be[16:]) != 0x5678 || binary.BigEndian.Uint32(be[20:]) != 0x1234 {
		t.Errorf("console layout should store fmt2 before fmt1")
	}
	got, err := UnpackVBuffInfo(be, 0, binary.BigEndian)
	if err != nil || got != v {
		t.Errorf("console round trip: %+v %v", got, err)
	}
	le := v.Pack(binary.LittleEndian)
	got, _ = UnpackVBuffInfo(le, 0, binary.LittleEndian)
	v.Unk8 = [6]uint32{}
	if got != v || wordAt(le, 16) != 0x1234 {
		t.Errorf("little layout: %+v", got)
	}

	ib := IBuffInfo{Size: 6, Format: 0x10, Offset: 32, Unk6: [7]uint32{9}}
	got2, err := UnpackIBuffInfo(ib.Pack(binary.BigEndian), 0, binary.BigEndian)
	if err != nil || got2 != ib {
		t.Errorf("ibuff console round trip: %+v", got2)
	}
	if len(ib.Pack(binary.LittleEndian)) != 24 {
		t.Errorf("ibuff little layout size")
	}
}

func TestTables(t *testing.T) {
	var h PakHeader
	for i, k := range BlockOneTables {
		num, off := h.Table(k)
		*num = uint32(i + 1)
		*off = uint32(100 * (i + 1))
		if ElementSize(k, binary.LittleEndian) <= 0 {
			t.Errorf("%s has no element size", k)
		}
	}
	if h.MeshInfoNum != 3 || h.IlluminationInfoOffset != 2300 || h.GFXBlockInfoNum != 20 {
		t.Errorf("table accessors point at wrong fields: %+v", h)
	}

	block := make([]byte, 64)
	binary.LittleEndian.PutUint32(block[16:], 0xAABBCCDD)
	h = PakHeader{Obj0Num: 1, Obj0Offset: 12}
	objs, err := UnpackTable[Obj0](block, &h, Obj0Table, binary.BigEndian)
	if err != nil || objs[0].Key != 0xAABBCCDD {
		t.Errorf("Obj0 must be read little endian: %+v %v", objs, err)
	}
}
