package pakFormats

// TableKind names one count/offset pair of the pak header.
type TableKind int

const (
	ObjATable TableKind = iota
	Obj0Table
	MeshInfoTable
	BufferInfoTable
	Mat1Table
	Mat2Table
	Mat3Table
	Mat4Table
	MatExtraTable
	ShapeInfoTable
	HkShapeInfoTable
	HkConstraintDataTable
	VBuffInfoTable
	IBuffInfoTable
	TextureInfoTable
	AnimationInfoTable
	HkConstraintInfoTable
	EffectInfoTable
	PFieldInfoTable
	GFXBlockInfoTable
	AnimationBlockInfoTable
	FoliageInfoTable
	IlluminationInfoTable
)

// BlockOneTables is the order tables are reserved at the start of block 1.
var BlockOneTables = []TableKind{
	ObjATable, Obj0Table, MeshInfoTable, BufferInfoTable,
	Mat1Table, Mat2Table, Mat3Table, Mat4Table, MatExtraTable,
	ShapeInfoTable, HkShapeInfoTable, HkConstraintDataTable,
	VBuffInfoTable, IBuffInfoTable, TextureInfoTable, AnimationInfoTable,
	HkConstraintInfoTable, EffectInfoTable, PFieldInfoTable, GFXBlockInfoTable,
	AnimationBlockInfoTable, FoliageInfoTable, IlluminationInfoTable,
}

var tableNames = [...]string{
	"obja", "obj0", "mesh_info", "buffer_info", "mat1", "mat2", "mat3", "mat4", "mat_extra",
	"shape_info", "hk_shape_info", "hk_constraint_data", "vbuff_info", "ibuff_info",
	"texture_info", "animation_info", "hk_constraint_info", "effect_info", "pfield_info",
	"gfx_block_info", "animation_block_info", "foliage_info", "illumination_info",
}

func (k TableKind) String() string { return tableNames[k] }

// Table returns the header fields holding the element count and block 1 offset of a table.
func (h *PakHeader) Table(k TableKind) (num, offset *uint32) {
	switch k {
	case ObjATable:
		return &h.ObjANum, &h.ObjAOffset
	case Obj0Table:
		return &h.Obj0Num, &h.Obj0Offset
	case MeshInfoTable:
		return &h.MeshInfoNum, &h.MeshInfoOffset
	case BufferInfoTable:
		return &h.BufferInfoNum, &h.BufferInfoOffset
	case Mat1Table:
		return &h.Mat1Num, &h.Mat1Offset
	case Mat2Table:
		return &h.Mat2Num, &h.Mat2Offset
	case Mat3Table:
		return &h.Mat3Num, &h.Mat3Offset
	case Mat4Table:
		return &h.Mat4Num, &h.Mat4Offset
	case MatExtraTable:
		return &h.MatExtraNum, &h.MatExtraOffset
	case ShapeInfoTable:
		return &h.ShapeInfoNum, &h.ShapeInfoOffset
	case HkShapeInfoTable:
		return &h.HkShapeInfoNum, &h.HkShapeInfoOffset
	case HkConstraintDataTable:
		return &h.HkConstraintDataNum, &h.HkConstraintDataOffset
	case VBuffInfoTable:
		return &h.VBuffInfoNum, &h.VBuffInfoOffset
	case IBuffInfoTable:
		return &h.IBuffInfoNum, &h.IBuffInfoOffset
	case TextureInfoTable:
		return &h.TextureInfoNum, &h.TextureInfoOffset
	case AnimationInfoTable:
		return &h.AnimationInfoNum, &h.AnimationInfoOffset
	case HkConstraintInfoTable:
		return &h.HkConstraintInfoNum, &h.HkConstraintInfoOffset
	case EffectInfoTable:
		return &h.EffectInfoNum, &h.EffectInfoOffset
	case PFieldInfoTable:
		return &h.PFieldInfoNum, &h.PFieldInfoOffset
	case GFXBlockInfoTable:
		return &h.GFXBlockInfoNum, &h.GFXBlockInfoOffset
	case AnimationBlockInfoTable:
		return &h.AnimationBlockInfoNum, &h.AnimationBlockInfoOffset
	case FoliageInfoTable:
		return &h.FoliageInfoNum, &h.FoliageInfoOffset
	case IlluminationInfoTable:
		return &h.IlluminationInfoNum, &h.IlluminationInfoOffset
	}
	panic("unknown table kind")
}
