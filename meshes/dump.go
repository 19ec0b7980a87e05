package meshes

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/goopsie/lotrcLevelTools/relocator"
)

// Tables collects the fixed size records meshes emit while their payloads are laid
// out. Header must already carry the record counts and table offsets of block 1.
type Tables struct {
	Header *pakFormats.PakHeader
	Order  binary.ByteOrder

	Meshes           []pakFormats.MeshInfo
	Buffers          []pakFormats.BufferInfo
	Mat1             []pakFormats.Mat1
	Mat2             []pakFormats.Mat2
	Mat3             []pakFormats.Mat3
	Mat4             []pakFormats.Mat4
	MatExtras        []pakFormats.MatExtra
	Shapes           []pakFormats.ShapeInfo
	HkShapes         []pakFormats.HkShapeInfo
	HkConstraints    []pakFormats.HkConstraintInfo
	HkConstraintData []pakFormats.HkConstraintData
	VBuffs           []pakFormats.VBuffInfo
	IBuffs           []pakFormats.IBuffInfo
}

func NewTables(h *pakFormats.PakHeader, order binary.ByteOrder) *Tables {
	return &Tables{Header: h, Order: order}
}

// next is the block offset of record i of table k.
func (t *Tables) next(k pakFormats.TableKind, i int) uint32 {
	_, off := t.Header.Table(k)
	return *off + uint32(i*pakFormats.ElementSize(k, t.Order))
}

func (t *Tables) addMaterial(m *Material) uint32 {
	var base *pakFormats.MatBase
	var off uint32
	switch {
	case m.Mat1 != nil:
		off = t.next(pakFormats.Mat1Table, len(t.Mat1))
		t.Mat1 = append(t.Mat1, *m.Mat1)
		base = &t.Mat1[len(t.Mat1)-1].Base
	case m.Mat2 != nil:
		off = t.next(pakFormats.Mat2Table, len(t.Mat2))
		t.Mat2 = append(t.Mat2, *m.Mat2)
		base = &t.Mat2[len(t.Mat2)-1].Base
	case m.Mat3 != nil:
		off = t.next(pakFormats.Mat3Table, len(t.Mat3))
		t.Mat3 = append(t.Mat3, *m.Mat3)
		base = &t.Mat3[len(t.Mat3)-1].Base
	case m.Mat4 != nil:
		off = t.next(pakFormats.Mat4Table, len(t.Mat4))
		t.Mat4 = append(t.Mat4, *m.Mat4)
		base = &t.Mat4[len(t.Mat4)-1].Base
	default:
		return 0
	}
	base.MatExtraOffset = 0
	if m.Extra != nil {
		base.MatExtraOffset = t.next(pakFormats.MatExtraTable, len(t.MatExtras))
		t.MatExtras = append(t.MatExtras, *m.Extra)
	}
	return off
}

func remap(order, offs []uint32, what string) ([]uint32, error) {
	out := make([]uint32, len(order))
	for i, x := range order {
		if int(x) >= len(offs) {
			return nil, lotrcTypes.Invariantf("%s order entry %d is %d, the mesh has %d", what, i, x, len(offs))
		}
		out[i] = offs[x]
	}
	return out, nil
}

// prepare registers the mesh's table records and returns its info with the record
// offsets filled in, along with the order arrays rewritten as block offsets.
func (t *Tables) prepare(m *Mesh) (info pakFormats.MeshInfo, mats, vbuffs, ibuffs []uint32, err error) {
	info = m.Info
	matOffs := make([]uint32, len(m.Mats))
	for i := range m.Mats {
		if m.Mats[i].Base() == nil {
			return info, nil, nil, nil, lotrcTypes.Invariantf("mesh %s material %d is empty", m.Info.Key, i)
		}
		matOffs[i] = t.addMaterial(&m.Mats[i])
	}
	vOffs := make([]uint32, len(m.VBuffs))
	for i := range vOffs {
		vOffs[i] = t.next(pakFormats.VBuffInfoTable, len(t.VBuffs)+i)
	}
	iOffs := make([]uint32, len(m.IBuffs))
	for i := range iOffs {
		iOffs[i] = t.next(pakFormats.IBuffInfoTable, len(t.IBuffs)+i)
	}
	if mats, err = remap(m.MatOrder, matOffs, "material"); err != nil {
		return
	}
	if vbuffs, err = remap(m.VBuffOrder, vOffs, "vertex buffer"); err != nil {
		return
	}
	if ibuffs, err = remap(m.IBuffOrder, iOffs, "index buffer"); err != nil {
		return
	}

	slot := func(x uint32, offs []uint32) (uint32, error) {
		if x == NoBuffer {
			return 0, nil
		}
		if int(x) >= len(offs) {
			return 0, lotrcTypes.Invariantf("mesh %s buffer info references buffer %d of %d", m.Info.Key, x, len(offs))
		}
		return offs[x], nil
	}
	info.BufferInfoOffset = t.next(pakFormats.BufferInfoTable, len(t.Buffers))
	for _, b := range m.Buffers {
		if b.VBuffInfoOffset, err = slot(b.VBuffInfoOffset, vOffs); err != nil {
			return
		}
		if b.VBuffInfoOffset2, err = slot(b.VBuffInfoOffset2, vOffs); err != nil {
			return
		}
		if b.VBuffInfoOffset3, err = slot(b.VBuffInfoOffset3, vOffs); err != nil {
			return
		}
		if b.IBuffInfoOffset, err = slot(b.IBuffInfoOffset, iOffs); err != nil {
			return
		}
		t.Buffers = append(t.Buffers, b)
	}
	t.VBuffs = append(t.VBuffs, m.VBuffs...)
	t.IBuffs = append(t.IBuffs, m.IBuffs...)

	info.HkConstraintDataNum = uint32(len(m.HkConstraintData))
	info.HkConstraintDataOffset = 0
	if len(m.HkConstraintData) != 0 {
		info.HkConstraintDataOffset = t.next(pakFormats.HkConstraintDataTable, len(t.HkConstraintData))
	}
	t.HkConstraintData = append(t.HkConstraintData, m.HkConstraintData...)
	return info, mats, vbuffs, ibuffs, nil
}

// putOffsets writes a list of block offsets, each one relocated.
func putOffsets(w *relocator.Writer, offs []uint32) uint32 {
	pos := w.Pos()
	for _, o := range offs {
		w.PutOffset(o)
	}
	return uint32(pos)
}

func put(w *relocator.Writer, v interface{}) uint32 { return uint32(w.Put(v)) }

// Dump lays out a regular mesh at the writer's position and records its tables.
func (t *Tables) Dump(w *relocator.Writer, m *Mesh) error {
	if len(m.Keys) != 0 && len(m.Keys) != len(m.Matrices) {
		return lotrcTypes.Invariantf("mesh %s has %d keys and %d matrices", m.Info.Key, len(m.Keys), len(m.Matrices))
	}
	info, matOrder, vbuffOrder, ibuffOrder, err := t.prepare(m)
	if err != nil {
		return err
	}

	info.KeysNum = uint32(len(m.Matrices))
	info.KeysOffset = 0
	if len(m.Keys) != 0 || m.Info.KeysOffset != 0 {
		info.KeysOffset = put(w, m.Keys)
	}
	w.Pad(16)
	info.ValsAOffset = put(w, m.ValsA)
	info.ValsJOffset = put(w, m.ValsJ)
	info.ValsJNum = uint32(len(m.ValsJ))
	if err := t.dumpConstraint(w, m, &info); err != nil {
		return err
	}
	w.Pad(16)

	info.ValsGOffset = put(w, m.ValsG)
	info.ValsGNum = uint32(len(m.ValsG) / 16)
	info.ValsIOffset = 0
	if len(m.ValsI) != 0 {
		info.ValsIOffset = put(w, m.ValsI)
	}
	info.IndicesOffset = put(w, m.Indices)
	w.Pad(16)

	info.MatricesOffset = put(w, m.Matrices)
	info.MatOffset = putOffsets(w, matOrder)
	info.MatNum = uint32(len(matOrder))

	t.shapeRange(m, &info)
	for i := range m.Shapes {
		s := &m.Shapes[i]
		extra := -1
		if s.Extra != nil {
			extra = w.Pos()
			w.Write(s.Extra.encode(t.Order))
			w.Pad(4)
		}
		t.dumpShape(w, s, extra)
	}

	info.ValsCOffset = put(w, m.ValsC)
	info.ValsCNum = uint32(len(m.ValsC))
	w.Pad(16)
	info.ValsDOffset = put(w, m.ValsD)
	info.VBuffOffset = putOffsets(w, vbuffOrder)
	info.VBuffNum = uint32(len(vbuffOrder))
	info.IBuffOffset = putOffsets(w, ibuffOrder)
	info.IBuffNum = uint32(len(ibuffOrder))

	if err := t.dumpTail(w, m, &info); err != nil {
		return err
	}
	t.Meshes = append(t.Meshes, info)
	return nil
}

// terrainSlack is the room a terrain mesh reserves after its index order for the
// optional tail records.
const terrainSlack = 320

// DumpTerrain lays out a terrain mesh. Terrain meshes share the indices at
// terrainStart and keep their ValsA inside their own MeshInfo.
func (t *Tables) DumpTerrain(w *relocator.Writer, m *Mesh, terrainStart uint32) error {
	info, matOrder, vbuffOrder, ibuffOrder, err := t.prepare(m)
	if err != nil {
		return err
	}

	info.KeysOffset = 0
	info.KeysNum = uint32(len(m.ValsA) / 8)
	info.ValsAOffset = t.next(pakFormats.MeshInfoTable, len(t.Meshes)) + 16
	if len(m.ValsA) == len(info.Unk4) {
		copy(info.Unk4[:], m.ValsA)
	}
	info.ValsGOffset = terrainStart
	info.ValsGNum = 0
	info.ValsIOffset = 0
	info.IndicesOffset = terrainStart

	if err := t.dumpConstraint(w, m, &info); err != nil {
		return err
	}
	extras := make([]int, len(m.Shapes))
	for i := range m.Shapes {
		extras[i] = -1
		if e := m.Shapes[i].Extra; e != nil {
			extras[i] = w.Pos()
			w.Write(e.encode(t.Order))
		}
	}
	w.Pad(16)

	info.ValsDOffset = put(w, m.ValsD)
	info.MatricesOffset = put(w, m.Matrices)
	info.MatOffset = putOffsets(w, matOrder)
	info.MatNum = uint32(len(matOrder))
	info.ValsCOffset = put(w, m.ValsC)
	info.ValsCNum = uint32(len(m.ValsC))
	info.VBuffOffset = putOffsets(w, vbuffOrder)
	info.VBuffNum = uint32(len(vbuffOrder))

	end := w.Pos() + terrainSlack
	info.IBuffOffset = putOffsets(w, ibuffOrder)
	info.IBuffNum = uint32(len(ibuffOrder))
	if err := t.dumpTail(w, m, &info); err != nil {
		return err
	}
	if err := w.PadTo(end, "terrain mesh "+m.Info.Key.String()); err != nil {
		return err
	}

	t.shapeRange(m, &info)
	for i := range m.Shapes {
		t.dumpShape(w, &m.Shapes[i], extras[i])
	}
	t.Meshes = append(t.Meshes, info)
	return nil
}

func (t *Tables) shapeRange(m *Mesh, info *pakFormats.MeshInfo) {
	info.ShapeNum = uint32(len(m.Shapes))
	info.ShapeOffset = 0
	if len(m.Shapes) != 0 {
		info.ShapeOffset = t.next(pakFormats.ShapeInfoTable, len(t.Shapes))
	}
}

// dumpTail writes the optional ValsK, Keys2 and sub-block records.
func (t *Tables) dumpTail(w *relocator.Writer, m *Mesh, info *pakFormats.MeshInfo) error {
	info.ValsKOffset = 0
	if len(m.ValsKHeader) != 0 {
		w.Pad(16)
		info.ValsKOffset = put(w, m.ValsKHeader)
		w.Put(m.ValsK)
	}
	info.Keys2Offset, info.Keys2OrderOffset = 0, 0
	if len(m.Keys2) != 0 {
		info.Keys2Offset = put(w, m.Keys2)
		info.Keys2OrderOffset = put(w, m.Keys2Order)
	}
	info.BlockOffset = 0
	blk := m.Block
	if blk == nil {
		return nil
	}
	if len(blk.Offsets) != len(blk.Parts)+1 {
		return lotrcTypes.Invariantf("mesh %s block has %d offsets for %d parts", m.Info.Key, len(blk.Offsets), len(blk.Parts))
	}
	w.Pad(16)
	start := w.Pos()
	info.BlockOffset = uint32(start)
	w.Put(blk.Header)
	w.Put(blk.Offsets)
	for i, p := range blk.Parts {
		if err := w.PadTo(start+int(blk.Offsets[i]), "mesh block part"); err != nil {
			return err
		}
		w.Put(p.Header)
		w.Put(p.ValsA)
		w.Put(p.ValsB)
		w.Put(p.Extra)
	}
	return w.PadTo(start+int(blk.Offsets[len(blk.Parts)]), "mesh block end")
}

func (t *Tables) dumpConstraint(w *relocator.Writer, m *Mesh, info *pakFormats.MeshInfo) error {
	c := m.HkConstraint
	if c == nil {
		info.HkConstraintOffset = 0
		return nil
	}
	info.HkConstraintOffset = t.next(pakFormats.HkConstraintInfoTable, len(t.HkConstraints))
	ci := c.Info
	ci.KeysOffset = info.KeysOffset
	ci.KeysNum = uint16(info.KeysNum)

	n := len(c.Strings)
	table := w.Pos()
	ci.StringsOffset = uint32(table)
	ci.StringsNum = uint32(n)
	w.Reserve(12 * n)
	w.Pad(16)

	ci.ValsOffset = put(w, c.Vals)
	ci.ValsNum = uint32(len(c.Vals) / 12)
	ci.Keys2Offset = put(w, c.Keys)
	ci.Keys2Num = uint16(len(c.Keys))
	ci.ShortsOffset = put(w, c.Shorts)
	ci.ShortsNum = uint32(len(c.Shorts))
	w.Pad(4)

	for i, s := range c.Strings {
		ptr := table + 4*i
		pair := table + 4*n + 8*i
		if err := w.PutAt(ptr, uint32(pair)); err != nil {
			return err
		}
		if err := w.PutAt(pair, [2]uint32{uint32(w.Pos()), s.Val}); err != nil {
			return err
		}
		w.Write([]byte(s.Name))
		w.Reserve(lotrcTypes.Align(w.Pos()+1, 4) - w.Pos())
		w.Relocate(ptr)
		w.Relocate(pair)
	}

	ci.Vals2Offset, ci.Vals2Num = 0, 0
	if len(c.Vals2) != 0 {
		ci.Vals2Offset = put(w, c.Vals2)
		ci.Vals2Num = uint32(len(c.Vals2) / 42)
	}
	t.HkConstraints = append(t.HkConstraints, ci)
	return nil
}

// dumpShape records the shape's info and writes its physics shape payloads. A
// non-negative extra is where the shape's extra payload was written.
func (t *Tables) dumpShape(w *relocator.Writer, s *Shape, extra int) {
	info := s.Info
	if extra >= 0 {
		info.Offset = uint32(extra)
		w.Relocate(int(t.next(pakFormats.ShapeInfoTable, len(t.Shapes))))
	}
	info.HkShapeNum = uint32(len(s.HkShapes))
	info.HkShapeOffset = t.next(pakFormats.HkShapeInfoTable, len(t.HkShapes))
	for i := range s.HkShapes {
		t.dumpHkShape(w, &s.HkShapes[i])
	}
	t.Shapes = append(t.Shapes, info)
}

func (t *Tables) dumpHkShape(w *relocator.Writer, s *HkShape) {
	info := s.Info
	switch info.Kind {
	case 5:
		w.Pad(16)
		info.AOffset = put(w, s.A)
		info.ANum = uint32(len(s.A) / 4)
		info.BOffset = put(w, s.B)
		info.BNum = uint32(max(len(s.B)/3-s.BExtra, 0))
	case 6:
		info.DOffset = put(w, s.D)
		info.DNum = uint32(len(s.D) / 3)
		info.EOffset = put(w, s.E)
		info.ENum = uint32(len(s.E) / 3)
		w.Pad(4)
		info.COffset = uint32(w.Pos())
		info.CNum = uint32(len(s.C))
		w.Write(s.C)
		w.Pad(4)
	}
	t.HkShapes = append(t.HkShapes, info)
}

var (
	meshAlways = relocator.Fields(pakFormats.MeshInfo{},
		"MatOffset", "BufferInfoOffset", "ValsCOffset", "IndicesOffset", "MatricesOffset",
		"ValsGOffset", "VBuffOffset", "IBuffOffset", "ValsDOffset", "ValsAOffset")
	meshIfSet = relocator.Fields(pakFormats.MeshInfo{},
		"KeysOffset", "ValsIOffset", "ValsJOffset", "BlockOffset", "ValsKOffset", "ShapeOffset",
		"HkConstraintDataOffset", "HkConstraintOffset", "Keys2Offset", "Keys2OrderOffset")
	bufferAlways     = relocator.Fields(pakFormats.BufferInfo{}, "VBuffInfoOffset", "IBuffInfoOffset")
	bufferIfSet      = relocator.Fields(pakFormats.BufferInfo{}, "VBuffInfoOffset2", "VBuffInfoOffset3")
	matIfSet         = relocator.Fields(pakFormats.MatBase{}, "MatExtraOffset")
	shapeIfSet       = relocator.Fields(pakFormats.ShapeInfo{}, "HkShapeOffset")
	hkShape5         = relocator.Fields(pakFormats.HkShapeInfo{}, "AOffset", "BOffset")
	hkShape6         = relocator.Fields(pakFormats.HkShapeInfo{}, "COffset", "DOffset", "EOffset")
	constraintAlways = relocator.Fields(pakFormats.HkConstraintInfo{},
		"ShortsOffset", "StringsOffset", "ValsOffset", "KeysOffset", "Keys2Offset")
	constraintIfSet = relocator.Fields(pakFormats.HkConstraintInfo{}, "Vals2Offset")
)

// Flush writes the collected records into their tables and appends the relocations
// of every offset field they hold. The record counts must match the header.
func (t *Tables) Flush(w *relocator.Writer) error {
	vbuffs := make([]byte, 0, len(t.VBuffs)*pakFormats.VBuffInfoSize(t.Order))
	for _, v := range t.VBuffs {
		vbuffs = append(vbuffs, v.Pack(t.Order)...)
	}
	ibuffs := make([]byte, 0, len(t.IBuffs)*pakFormats.IBuffInfoSize(t.Order))
	for _, v := range t.IBuffs {
		ibuffs = append(ibuffs, v.Pack(t.Order)...)
	}
	records := []struct {
		k pakFormats.TableKind
		n int
		v interface{}
	}{
		{pakFormats.MeshInfoTable, len(t.Meshes), t.Meshes},
		{pakFormats.BufferInfoTable, len(t.Buffers), t.Buffers},
		{pakFormats.Mat1Table, len(t.Mat1), t.Mat1},
		{pakFormats.Mat2Table, len(t.Mat2), t.Mat2},
		{pakFormats.Mat3Table, len(t.Mat3), t.Mat3},
		{pakFormats.Mat4Table, len(t.Mat4), t.Mat4},
		{pakFormats.MatExtraTable, len(t.MatExtras), t.MatExtras},
		{pakFormats.ShapeInfoTable, len(t.Shapes), t.Shapes},
		{pakFormats.HkShapeInfoTable, len(t.HkShapes), t.HkShapes},
		{pakFormats.HkConstraintInfoTable, len(t.HkConstraints), t.HkConstraints},
		{pakFormats.HkConstraintDataTable, len(t.HkConstraintData), t.HkConstraintData},
		{pakFormats.VBuffInfoTable, len(t.VBuffs), vbuffs},
		{pakFormats.IBuffInfoTable, len(t.IBuffs), ibuffs},
	}
	for _, r := range records {
		num, off := t.Header.Table(r.k)
		if int(*num) != r.n {
			return lotrcTypes.Mismatch(r.k.String()+" records", r.n, int(*num))
		}
		if r.n == 0 {
			continue
		}
		if err := w.PutAt(int(*off), r.v); err != nil {
			return err
		}
	}

	table := func(k pakFormats.TableKind, n int, always, ifSet []int) error {
		_, off := t.Header.Table(k)
		return relocator.Table(w, int(*off), n, pakFormats.ElementSize(k, t.Order), always, ifSet)
	}
	steps := []error{
		table(pakFormats.MeshInfoTable, len(t.Meshes), meshAlways, meshIfSet),
		table(pakFormats.BufferInfoTable, len(t.Buffers), bufferAlways, bufferIfSet),
		table(pakFormats.Mat1Table, len(t.Mat1), nil, matIfSet),
		table(pakFormats.Mat2Table, len(t.Mat2), nil, matIfSet),
		table(pakFormats.Mat3Table, len(t.Mat3), nil, matIfSet),
		table(pakFormats.Mat4Table, len(t.Mat4), nil, matIfSet),
		table(pakFormats.ShapeInfoTable, len(t.Shapes), nil, shapeIfSet),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	base := t.next(pakFormats.HkShapeInfoTable, 0)
	for i, s := range t.HkShapes {
		var fields []int
		switch s.Kind {
		case 5:
			fields = hkShape5
		case 6:
			fields = hkShape6
		}
		for _, f := range fields {
			w.Relocate(int(base) + i*pakFormats.HkShapeInfoSize + f)
		}
	}
	return table(pakFormats.HkConstraintInfoTable, len(t.HkConstraints), constraintAlways, constraintIfSet)
}
