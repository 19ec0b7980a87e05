package pakFormats

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

var (
	PakHeaderSize          = binary.Size(PakHeader{})
	BinHeaderSize          = binary.Size(BinHeader{})
	AssetHandleSize        = binary.Size(AssetHandle{})
	ObjASize               = binary.Size(ObjA{})
	Obj0Size               = binary.Size(Obj0{})
	MeshInfoSize           = binary.Size(MeshInfo{})
	BufferInfoSize         = binary.Size(BufferInfo{})
	Mat1Size               = binary.Size(Mat1{})
	Mat2Size               = binary.Size(Mat2{})
	Mat3Size               = binary.Size(Mat3{})
	Mat4Size               = binary.Size(Mat4{})
	MatExtraSize           = binary.Size(MatExtra{})
	ShapeInfoSize          = binary.Size(ShapeInfo{})
	HkShapeInfoSize        = binary.Size(HkShapeInfo{})
	HkConstraintDataSize   = binary.Size(HkConstraintData{})
	TextureInfoSize        = binary.Size(TextureInfo{})
	AnimationInfoSize      = binary.Size(AnimationInfo{})
	HkConstraintInfoSize   = binary.Size(HkConstraintInfo{})
	EffectInfoSize         = binary.Size(EffectInfo{})
	PFieldInfoSize         = binary.Size(PFieldInfo{})
	GFXBlockInfoSize       = binary.Size(GFXBlockInfo{})
	AnimationBlockInfoSize = binary.Size(AnimationBlockInfo{})
	FoliageInfoSize        = binary.Size(FoliageInfo{})
	IlluminationInfoSize   = binary.Size(IlluminationInfo{})
	BlockAValSize          = binary.Size(BlockAVal{})
)

// ElementSize is the size of one record of a header table in the given order.
func ElementSize(k TableKind, order binary.ByteOrder) int {
	switch k {
	case ObjATable:
		return ObjASize
	case Obj0Table:
		return Obj0Size
	case MeshInfoTable:
		return MeshInfoSize
	case BufferInfoTable:
		return BufferInfoSize
	case Mat1Table:
		return Mat1Size
	case Mat2Table:
		return Mat2Size
	case Mat3Table:
		return Mat3Size
	case Mat4Table:
		return Mat4Size
	case MatExtraTable:
		return MatExtraSize
	case ShapeInfoTable:
		return ShapeInfoSize
	case HkShapeInfoTable:
		return HkShapeInfoSize
	case HkConstraintDataTable:
		return HkConstraintDataSize
	case VBuffInfoTable:
		return VBuffInfoSize(order)
	case IBuffInfoTable:
		return IBuffInfoSize(order)
	case TextureInfoTable:
		return TextureInfoSize
	case AnimationInfoTable:
		return AnimationInfoSize
	case HkConstraintInfoTable:
		return HkConstraintInfoSize
	case EffectInfoTable:
		return EffectInfoSize
	case PFieldInfoTable:
		return PFieldInfoSize
	case GFXBlockInfoTable:
		return GFXBlockInfoSize
	case AnimationBlockInfoTable:
		return AnimationBlockInfoSize
	case FoliageInfoTable:
		return FoliageInfoSize
	case IlluminationInfoTable:
		return IlluminationInfoSize
	}
	panic("unknown table kind")
}

// UnpackTable reads the count records of a fixed layout table.
func UnpackTable[T any](block []byte, h *PakHeader, k TableKind, order binary.ByteOrder) ([]T, error) {
	num, off := h.Table(k)
	if k == ObjATable || k == Obj0Table {
		order = binary.LittleEndian
	}
	return lotrcTypes.UnpackSlice[T](block, int(*off), int(*num), order)
}
