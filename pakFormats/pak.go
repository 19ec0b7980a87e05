// Package pakFormats holds every fixed layout record of the structure (pak) and data (bin) files.
package pakFormats

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

type Crc = lotrcTypes.Crc

// pak definition
type PakHeader struct {
	BlockANum        uint32 // always little endian
	BlockAOffset     uint32 // always little endian
	Constx13         uint32
	Version          uint32 // 2 little endian, 1 console
	StringsOffset    uint32
	StringsSize      uint32
	StringsNum       uint32
	Block1Offset     uint32
	Block1Size       uint32
	Block1SizeComp   uint32
	SubBlocks1Offset uint32
	Block2Offset     uint32
	Block2Size       uint32
	Block2SizeComp   uint32
	SubBlocks2Offset uint32
	StringKeysOffset uint32
	Unk16            [26]uint32

	ObjANum               uint32
	Obj0Num               uint32
	MeshInfoNum           uint32
	BufferInfoNum         uint32
	Mat1Num               uint32
	Mat2Num               uint32
	Mat3Num               uint32
	Mat4Num               uint32
	MatExtraNum           uint32
	Unk51                 uint32
	ShapeInfoNum          uint32
	HkShapeInfoNum        uint32
	HkConstraintDataNum   uint32
	VBuffInfoNum          uint32
	IBuffInfoNum          uint32
	TextureInfoNum        uint32
	AnimationInfoNum      uint32
	HkConstraintInfoNum   uint32
	EffectInfoNum         uint32
	PFieldInfoNum         uint32
	GFXBlockInfoNum       uint32
	AnimationBlockInfoNum uint32
	FoliageInfoNum        uint32
	IlluminationInfoNum   uint32
	Unk66                 uint32

	ObjAOffset               uint32
	Obj0Offset               uint32
	MeshInfoOffset           uint32 // max loaded is 0x400
	BufferInfoOffset         uint32
	Mat1Offset               uint32
	Mat2Offset               uint32
	Mat3Offset               uint32
	Mat4Offset               uint32
	MatExtraOffset           uint32
	Unk76                    uint32
	ShapeInfoOffset          uint32
	HkShapeInfoOffset        uint32
	HkConstraintDataOffset   uint32
	VBuffInfoOffset          uint32
	IBuffInfoOffset          uint32
	TextureInfoOffset        uint32 // max loaded is 0x800
	AnimationInfoOffset      uint32
	HkConstraintInfoOffset   uint32
	EffectInfoOffset         uint32
	PFieldInfoOffset         uint32
	GFXBlockInfoOffset       uint32 // max loaded is 0x40
	AnimationBlockInfoOffset uint32
	FoliageInfoOffset        uint32
	IlluminationInfoOffset   uint32

	Unk91               [25]uint32
	Block2OffsetsNum    uint32
	Block2OffsetsOffset uint32
}

// UnpackPakHeader reads the header in the file order, except the block A fields
// which every platform stores little endian.
func UnpackPakHeader(b []byte, order binary.ByteOrder) (PakHeader, error) {
	h, err := lotrcTypes.Unpack[PakHeader](b, 0, order)
	if err != nil {
		return h, err
	}
	h.BlockANum = binary.LittleEndian.Uint32(b[0:])
	h.BlockAOffset = binary.LittleEndian.Uint32(b[4:])
	return h, nil
}

func (h PakHeader) Pack(order binary.ByteOrder) []byte {
	b := lotrcTypes.Pack(order, h)
	binary.LittleEndian.PutUint32(b[0:], h.BlockANum)
	binary.LittleEndian.PutUint32(b[4:], h.BlockAOffset)
	return b
}

// ObjA and Obj0 are little endian on every platform.
type ObjA struct {
	Key      Crc
	Unk1     uint32
	Size     uint32
	SizeComp uint32
	Unk4     uint32
	Kind     uint32
}

type Obj0 struct {
	Unk0 uint32
	Key  Crc
}

type MeshInfo struct {
	Key                    Crc
	GameModeMask           int32
	MatOffset              uint32
	BufferInfoOffset       uint32 // mat_num sequential BufferInfos
	Unk4                   [8]uint32
	ValsCOffset            uint32
	Unk13                  uint32
	Unk14                  uint32
	BlockStart             uint32
	BlockEnd               uint32
	Unk17                  [15]uint32
	ValsCNum               uint32
	MatNum                 uint32
	KeysOffset             uint32
	IndicesOffset          uint32
	MatricesOffset         uint32
	KeysNum                uint32
	ValsGOffset            uint32
	ValsGNum               uint32
	ValsIOffset            uint32
	VBuffOffset            uint32
	VBuffNum               uint32
	IBuffOffset            uint32
	IBuffNum               uint32
	ValsDOffset            uint32
	Unk46                  uint32
	Unk47                  uint32
	ValsJNum               uint32
	ValsJOffset            uint32
	BlockOffset            uint32
	ValsKOffset            uint32
	AssetKey               Crc // vertex & index buffer blob in the bin
	AssetType              uint32
	Unk54                  uint32
	Unk55                  uint32
	ShapeOffset            uint32
	ShapeNum               uint32
	HkConstraintDataOffset uint32
	HkConstraintDataNum    uint32
	HkConstraintOffset     uint32
	Keys2Offset            uint32
	Keys2OrderOffset       uint32
	ValsAOffset            uint32
}

type BufferInfo struct {
	VBuffInfoOffset  uint32
	VBuffInfoOffset2 uint32
	VBuffInfoOffset3 uint32
	Unk3             [29]uint32
	VSize            uint32
	VSize2           uint32
	VSize3           uint32
	Unk35            [13]uint32
	VBuffSize        uint32
	VBuffSize2       uint32
	VBuffSize3       uint32
	Unk51            [14]uint32
	IBuffInfoOffset  uint32
	INum             uint32
	Unk67            [4]uint32
	TriNum           uint32
	Unk72            [16]uint32
	Unk88            [4]uint8
}

type MatBase struct {
	Unk0           uint32
	Unk1           uint32
	Tex            [16]Crc
	Unk18          [16]uint32
	Z34            [6]uint32
	Unk40          [10]uint32
	Flags          uint64
	Kind           uint32
	Unk53          uint32
	Unk54a         uint8
	Unk54b         uint8
	SideFlags      uint16
	Unk55          [31]uint32
	MatExtraOffset uint32
	Key            Crc
	Unk88          uint32
	Z89            uint32
}

// MatKindOffset is where MatBase.Kind sits, read before the record size is known.
const MatKindOffset = 208

type Mat1 struct {
	Base MatBase
}

type Mat2 struct {
	Base   MatBase
	Unk90  [30]uint32
	Unk120 [4]uint8
	Unk121 uint32
}

type Mat3 struct {
	Base   MatBase
	Unk90  [24]uint32
	Unk114 [4]uint8
	Unk115 uint32
}

type Mat4 struct {
	Base  MatBase
	Unk90 [56]uint32
}

type MatExtra [50]uint32

type ShapeInfo struct {
	Offset        uint32 // pointer to a ShapeExtra when Kind is 0
	Kind          uint32
	Unk2          [25]uint32
	HkShapeNum    uint32
	HkShapeOffset uint32
	Unk29         [4]uint8
	Unk30         uint32
}

type HkShapeInfo struct {
	Unk0    lotrcTypes.Vector4
	Unk4    lotrcTypes.Vector4
	Kind    uint32
	Unk9    uint32
	ANum    uint32
	AOffset uint32
	BNum    uint32
	BOffset uint32
	CNum    uint32
	COffset uint32
	DNum    uint32
	DOffset uint32
	ENum    uint32
	EOffset uint32
}

type HkConstraintData struct {
	Kind uint32
	Unk1 [28]uint32
}

type TextureInfo struct {
	Key          Crc
	GameModeMask int32
	AssetKey     Crc
	AssetType    uint32
	Kind         uint32
	Format       uint32
	Unk6         [6]uint32
	Width        uint16
	Height       uint16
	Depth        uint16
	Levels       uint16
	Unk16        [16]uint8
}

type AnimationInfo struct {
	Key                Crc
	GameModeMask       int32
	Offset             uint32
	Size               uint32
	Kind               uint32
	Unk5               uint32
	KeysNum            uint32
	Keys2Num           uint32
	Unk8               uint32
	ValA               uint32
	Unk10              uint32
	Unk11              uint32
	DataOffset         uint32
	Unk13              uint32
	Unk14              uint32
	Unk15              uint32
	BlockStartsOffset  uint32
	BlockStartsNum     uint32
	BlockStarts2Offset uint32
	BlockStarts2Num    uint32
	ObjC3Offset        uint32
	ObjC3Num           uint32
	ObjC4Offset        uint32
	ObjC4Num           uint32
	BlockOffset        uint32
	BlockSize          uint32
	Obj3Num            uint32
	Obj3Offset         uint32
	Unk28              uint32
	Unk29              uint32
	Obj1Num            uint32
	KeysOffset         uint32
	Unk32              uint32
	Obj1Offset         uint32
	Obj2Offset         uint32
	Obj2Num            uint32
	Obj5Offset         uint32
}

type HkConstraintInfo struct {
	Kind          uint32
	ShortsOffset  uint32
	ShortsNum     uint32
	StringsOffset uint32
	StringsNum    uint32
	ValsOffset    uint32
	ValsNum       uint32
	Unk7          [3]uint32
	KeysOffset    uint32
	KeysNum       uint16
	Keys2Num      uint16
	Keys2Offset   uint32
	Unk13         uint32
	Unk14         float32
	Vals2Num      uint32
	Vals2Offset   uint32
	Unk17         uint32
}

type EffectInfo struct {
	Key          Crc
	GameModeMask int32
	Offset       uint32
	Size         uint32
}

type PFieldInfo struct {
	Key1   Crc
	Key2   Crc
	Width  uint32
	Height uint32
	Offset uint32
}

type GFXBlockInfo struct {
	Key    Crc
	Offset uint32
	Size   uint32
}

type AnimationBlockInfo struct {
	Key      Crc
	Unk1     uint32
	KeyName  Crc
	Offset   uint32
	Size     uint32
	SizeComp uint32
	Unk6     [3]uint32
}

type FoliageInfo struct {
	Key         Crc
	Unk1        uint32
	S1a         int32
	S2a         int32
	S1b         int32
	S2b         int32
	Unk6        uint32
	Offset      uint32
	KeyMesh     Crc
	KeyMeshLod1 Crc
	KeyMeshLod2 Crc
	Unk11       [9]uint32
}

// Words is the number of u32s of foliage data the record points at.
func (f FoliageInfo) Words() int {
	return int((f.S1b - f.S1a) * (f.S2b - f.S2a) * 2)
}

type IlluminationInfo struct {
	GUID   uint32
	Num    uint32
	Offset uint32
}

type BlockAVal struct {
	Unk0         uint32
	GameModeMask int32
	Key          Crc
	Unk3         [4]uint32
}

// end pak definition
