// Package meshes decodes the mesh graph of block 1 (materials, buffer infos, shapes,
// physics shapes and constraints) and lays it out again with every relocation recorded.
package meshes

import (
	"encoding/binary"
	"sort"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

type Crc = lotrcTypes.Crc

// NoBuffer marks an unused vertex or index buffer slot of a BufferInfo.
const NoBuffer = 0xFFFFFFFF

type Key2 struct {
	Key Crc
	Val uint32
}

type BlockHeader struct {
	A    uint32
	B    uint32
	Unk2 uint32
	Unk3 uint32
	Unk4 uint32
}

type BlockVal struct {
	Unk0 uint32
	Unk1 uint32
	Unk2 uint32
	Unk3 uint32
	Unk4 uint16
	Unk5 uint16
}

type BlockPart struct {
	Header BlockHeader
	ValsA  []uint32
	ValsB  []BlockVal
	Extra  []uint32
}

// Block is the mesh's sub-block table. Offsets are relative to the block and hold
// one more entry than Parts, the last one being the end.
type Block struct {
	Header  uint32
	Offsets []uint32
	Parts   []BlockPart
}

// Mesh is one MeshInfo and everything it points at. MatOrder, VBuffOrder and IBuffOrder
// index Mats, VBuffs and IBuffs; the buffer slots of Buffers index VBuffs and IBuffs
// or hold NoBuffer.
type Mesh struct {
	Info        pakFormats.MeshInfo
	Indices     []uint32
	Keys        []Crc
	Matrices    []lotrcTypes.Matrix4x4
	ValsA       []uint32
	MatOrder    []uint32
	ValsC       []uint32
	ValsD       []uint32
	VBuffOrder  []uint32
	IBuffOrder  []uint32
	ValsG       []uint32
	ValsJ       []uint32
	ValsKHeader []uint16 `json:",omitempty"`
	ValsK       []uint32 `json:",omitempty"`
	ValsI       []uint32
	Keys2       []Key2   `json:",omitempty"`
	Keys2Order  []uint32 `json:",omitempty"`
	Block       *Block   `json:",omitempty"`

	Mats             []Material
	VBuffs           []pakFormats.VBuffInfo
	IBuffs           []pakFormats.IBuffInfo
	Buffers          []pakFormats.BufferInfo
	HkConstraint     *HkConstraint `json:",omitempty"`
	HkConstraintData []pakFormats.HkConstraintData
	Shapes           []Shape

	Vertices []*VertexBuffer `json:",omitempty"`
	Indexes  []*IndexBuffer  `json:",omitempty"`
}

func (m *Mesh) Key() Crc { return m.Info.Key }

type decoder struct {
	b     []byte
	order binary.ByteOrder
	err   error
}

func unpackSlice[T any](d *decoder, off uint32, n int) []T {
	if d.err != nil {
		return nil
	}
	v, err := lotrcTypes.UnpackSlice[T](d.b, int(off), n, d.order)
	d.err = err
	return v
}

func unpack[T any](d *decoder, off uint32) T {
	var v T
	if d.err != nil {
		return v
	}
	v, d.err = lotrcTypes.Unpack[T](d.b, int(off), d.order)
	return v
}

// Decode reads the mesh whose MeshInfo sits at off in block 1.
func Decode(block []byte, off int, order binary.ByteOrder) (*Mesh, error) {
	info, err := lotrcTypes.Unpack[pakFormats.MeshInfo](block, off, order)
	if err != nil {
		return nil, err
	}
	m, err := decode(block, info, order)
	return m, errors.Wrapf(err, "mesh %s", info.Key)
}

func decode(block []byte, info pakFormats.MeshInfo, order binary.ByteOrder) (*Mesh, error) {
	d := &decoder{b: block, order: order}
	m := &Mesh{Info: info}

	m.Indices = unpackSlice[uint32](d, info.IndicesOffset, max(int(info.KeysNum), 1))
	if info.KeysOffset != 0 {
		m.Keys = unpackSlice[Crc](d, info.KeysOffset, int(info.KeysNum))
	}
	m.Matrices = unpackSlice[lotrcTypes.Matrix4x4](d, info.MatricesOffset, int(info.KeysNum))
	m.ValsA = unpackSlice[uint32](d, info.ValsAOffset, int(info.KeysNum)*8)
	matOffs := unpackSlice[uint32](d, info.MatOffset, int(info.MatNum))
	m.ValsC = unpackSlice[uint32](d, info.ValsCOffset, int(info.ValsCNum))
	m.ValsD = unpackSlice[uint32](d, info.ValsDOffset, int(info.ValsCNum)*8)
	vbuffOffs := unpackSlice[uint32](d, info.VBuffOffset, int(info.VBuffNum))
	ibuffOffs := unpackSlice[uint32](d, info.IBuffOffset, int(info.IBuffNum))
	m.ValsG = unpackSlice[uint32](d, info.ValsGOffset, int(info.ValsGNum)*16)
	m.ValsJ = unpackSlice[uint32](d, info.ValsJOffset, int(info.ValsJNum))
	if info.ValsKOffset != 0 {
		m.ValsKHeader = unpackSlice[uint16](d, info.ValsKOffset, 2)
		m.ValsK = unpackSlice[uint32](d, info.ValsKOffset+4, 35)
	}
	if info.ValsIOffset != 0 {
		m.ValsI = unpackSlice[uint32](d, info.ValsIOffset, int(info.ValsGNum))
	}
	if d.err != nil {
		return nil, d.err
	}
	if m.Indices[0] != 0xFFFFFFFF {
		return nil, lotrcTypes.Invariantf("mesh indices start with %#x, not the 0xFFFFFFFF terminator", m.Indices[0])
	}

	if info.Keys2Offset != 0 {
		if err := m.decodeKeys2(d); err != nil {
			return nil, err
		}
	}
	if info.BlockOffset != 0 {
		if err := m.decodeBlock(d); err != nil {
			return nil, err
		}
	}

	for i := 0; i < int(info.ShapeNum); i++ {
		s, err := decodeShape(block, int(info.ShapeOffset)+i*pakFormats.ShapeInfoSize, order)
		if err != nil {
			return nil, errors.Wrapf(err, "shape %d", i)
		}
		m.Shapes = append(m.Shapes, *s)
	}
	if info.HkConstraintOffset != 0 {
		c, err := decodeHkConstraint(block, int(info.HkConstraintOffset), order)
		if err != nil {
			return nil, err
		}
		m.HkConstraint = c
	}
	m.HkConstraintData = unpackSlice[pakFormats.HkConstraintData](d, info.HkConstraintDataOffset, int(info.HkConstraintDataNum))

	var mats []uint32
	mats, m.MatOrder = dedupe(matOffs)
	for _, off := range mats {
		mat, err := decodeMaterial(block, int(off), order)
		if err != nil {
			return nil, err
		}
		m.Mats = append(m.Mats, *mat)
	}

	vbuffs, vbuffIdx := dedupe(vbuffOffs)
	ibuffs, ibuffIdx := dedupe(ibuffOffs)
	m.VBuffOrder, m.IBuffOrder = vbuffIdx, ibuffIdx
	for _, off := range vbuffs {
		v, err := pakFormats.UnpackVBuffInfo(block, int(off), order)
		if err != nil {
			return nil, err
		}
		m.VBuffs = append(m.VBuffs, v)
	}
	for _, off := range ibuffs {
		v, err := pakFormats.UnpackIBuffInfo(block, int(off), order)
		if err != nil {
			return nil, err
		}
		m.IBuffs = append(m.IBuffs, v)
	}

	m.Buffers = unpackSlice[pakFormats.BufferInfo](d, info.BufferInfoOffset, int(info.MatNum))
	if d.err != nil {
		return nil, d.err
	}
	var err error
	for i := range m.Buffers {
		b := &m.Buffers[i]
		for _, slot := range []*uint32{&b.VBuffInfoOffset, &b.VBuffInfoOffset2, &b.VBuffInfoOffset3} {
			if *slot, err = indexOf(vbuffs, *slot, "vertex buffer"); err != nil {
				return nil, err
			}
		}
		if b.IBuffInfoOffset, err = indexOf(ibuffs, b.IBuffInfoOffset, "index buffer"); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// dedupe returns the distinct offsets in ascending order and the order rewritten as
// indices into them.
func dedupe(offs []uint32) (uniq, idx []uint32) {
	seen := make(map[uint32]bool, len(offs))
	for _, o := range offs {
		if !seen[o] {
			seen[o] = true
			uniq = append(uniq, o)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	pos := make(map[uint32]uint32, len(uniq))
	for i, o := range uniq {
		pos[o] = uint32(i)
	}
	idx = make([]uint32, len(offs))
	for i, o := range offs {
		idx[i] = pos[o]
	}
	return uniq, idx
}

func indexOf(offs []uint32, off uint32, what string) (uint32, error) {
	if off == 0 {
		return NoBuffer, nil
	}
	for i, o := range offs {
		if o == off {
			return uint32(i), nil
		}
	}
	return 0, lotrcTypes.FormatErrorf("buffer info points at %s %d, which the mesh does not list", what, off)
}

// decodeKeys2 reads the zero terminated key table and the order table whose length
// the terminator's value gives.
func (m *Mesh) decodeKeys2(d *decoder) error {
	if m.Info.Keys2OrderOffset == 0 {
		return lotrcTypes.Invariantf("mesh has keys2 at %d but no keys2 order", m.Info.Keys2Offset)
	}
	for off := m.Info.Keys2Offset; ; off += 8 {
		k := unpack[Key2](d, off)
		if d.err != nil {
			return d.err
		}
		m.Keys2 = append(m.Keys2, k)
		if k.Key == 0 {
			break
		}
	}
	m.Keys2Order = unpackSlice[uint32](d, m.Info.Keys2OrderOffset, int(m.Keys2[len(m.Keys2)-1].Val))
	return d.err
}

var (
	blockHeaderSize = binary.Size(BlockHeader{})
	blockValSize    = binary.Size(BlockVal{})
)

func (m *Mesh) decodeBlock(d *decoder) error {
	info := &m.Info
	if info.BlockEnd < info.BlockStart {
		return lotrcTypes.FormatErrorf("mesh block range %d..%d is reversed", info.BlockStart, info.BlockEnd)
	}
	n := int(info.BlockEnd - info.BlockStart)
	blk := &Block{Header: unpack[uint32](d, info.BlockOffset)}
	blk.Offsets = unpackSlice[uint32](d, info.BlockOffset+4, n+1)
	if d.err != nil {
		return d.err
	}
	for i := 0; i < n; i++ {
		if blk.Offsets[i+1] < blk.Offsets[i] {
			return lotrcTypes.FormatErrorf("mesh block part %d ends before it starts", i)
		}
		size := int(blk.Offsets[i+1] - blk.Offsets[i])
		off := info.BlockOffset + blk.Offsets[i]
		var p BlockPart
		p.Header = unpack[BlockHeader](d, off)
		s := blockHeaderSize
		p.ValsA = unpackSlice[uint32](d, off+uint32(s), int(p.Header.A+p.Header.B)*12)
		s += 4 * len(p.ValsA)
		if d.err == nil && s > size {
			return lotrcTypes.FormatErrorf("mesh block part %d is %d bytes, its header needs %d", i, size, s)
		}
		p.ValsB = unpackSlice[BlockVal](d, off+uint32(s), (size-s)/blockValSize)
		s += blockValSize * len(p.ValsB)
		p.Extra = unpackSlice[uint32](d, off+uint32(s), (size-s)/4)
		if d.err != nil {
			return d.err
		}
		blk.Parts = append(blk.Parts, p)
	}
	m.Block = blk
	return nil
}

// DecodeBuffers reads the vertex and index buffers from the mesh's bin blob.
func (m *Mesh) DecodeBuffers(blob []byte, formats *Formats, order binary.ByteOrder) error {
	m.Vertices, m.Indexes = nil, nil
	for i := range m.VBuffs {
		v, err := DecodeVertexBuffer(blob, &m.VBuffs[i], formats, order)
		if err != nil {
			return errors.Wrapf(err, "mesh %s vertex buffer %d", m.Info.Key, i)
		}
		m.Vertices = append(m.Vertices, v)
	}
	for i := range m.IBuffs {
		ib, err := DecodeIndexBuffer(blob, &m.IBuffs[i], order)
		if err != nil {
			return errors.Wrapf(err, "mesh %s index buffer %d", m.Info.Key, i)
		}
		m.Indexes = append(m.Indexes, ib)
	}
	return nil
}

// HasBuffers reports whether the mesh owns a vertex data blob in the bin.
func (m *Mesh) HasBuffers() bool {
	return len(m.VBuffs) != 0 || len(m.IBuffs) != 0
}

// EncodeBuffers lays out the mesh's vertex data blob: vertex buffer i followed by index
// buffer i, for every i, back to back. Buffer infos are updated to the new offsets and
// sizes, so the offsets they held before do not affect the layout.
func (m *Mesh) EncodeBuffers(order binary.ByteOrder) ([]byte, error) {
	if len(m.Vertices) != len(m.VBuffs) || len(m.Indexes) != len(m.IBuffs) {
		return nil, lotrcTypes.Invariantf("mesh %s has %d/%d decoded buffers for %d/%d buffer infos",
			m.Info.Key, len(m.Vertices), len(m.Indexes), len(m.VBuffs), len(m.IBuffs))
	}
	var blob []byte
	for i := 0; i < len(m.VBuffs) || i < len(m.IBuffs); i++ {
		if i < len(m.VBuffs) {
			v := m.Vertices[i]
			data, err := v.Encode(order)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s vertex buffer %d", m.Info.Key, i)
			}
			info := &m.VBuffs[i]
			info.Offset, info.Size = uint32(len(blob)), uint32(len(data))
			blob = append(blob, data...)
			for j := range m.Buffers {
				b := &m.Buffers[j]
				if b.VBuffInfoOffset == uint32(i) {
					b.VSize, b.VBuffSize = uint32(v.Stride()), info.Size
				}
				if b.VBuffInfoOffset2 == uint32(i) {
					b.VSize2, b.VBuffSize2 = uint32(v.Stride()), info.Size
				}
				if b.VBuffInfoOffset3 == uint32(i) {
					b.VSize3, b.VBuffSize3 = uint32(v.Stride()), info.Size
				}
			}
		}
		if i < len(m.IBuffs) {
			data, err := m.Indexes[i].Encode(order)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s index buffer %d", m.Info.Key, i)
			}
			m.IBuffs[i].Offset, m.IBuffs[i].Size = uint32(len(blob)), uint32(len(data))
			blob = append(blob, data...)
		}
	}
	return blob, nil
}

// ConvertToLittle converts the console vertex data of the mesh for the PC layout.
func (m *Mesh) ConvertToLittle(formats *Formats) {
	for i, v := range m.Vertices {
		v.ConvertToLittle(&m.VBuffs[i], formats)
	}
}

// CountRecords adds the table records the mesh will emit to the header counts.
func (m *Mesh) CountRecords(h *pakFormats.PakHeader) {
	add := func(k pakFormats.TableKind, n int) {
		num, _ := h.Table(k)
		*num += uint32(n)
	}
	add(pakFormats.MeshInfoTable, 1)
	add(pakFormats.BufferInfoTable, len(m.Buffers))
	add(pakFormats.VBuffInfoTable, len(m.VBuffs))
	add(pakFormats.IBuffInfoTable, len(m.IBuffs))
	add(pakFormats.ShapeInfoTable, len(m.Shapes))
	add(pakFormats.HkConstraintDataTable, len(m.HkConstraintData))
	if m.HkConstraint != nil {
		add(pakFormats.HkConstraintInfoTable, 1)
	}
	for _, s := range m.Shapes {
		add(pakFormats.HkShapeInfoTable, len(s.HkShapes))
	}
	for i := range m.Mats {
		k, _ := m.Mats[i].record()
		add(k, 1)
		if m.Mats[i].Extra != nil {
			add(pakFormats.MatExtraTable, 1)
		}
	}
}
