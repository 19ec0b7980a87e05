package pakFormats

import (
	"encoding/binary"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

// Vertex and index buffer infos are the records whose layout differs between
// platforms: the console swaps the two format words and carries trailing fields.
// Each platform layout has its own struct, converted to and from one canonical form.

// canonical definitions
type VBuffInfo struct {
	Unk0   uint32
	Size   uint32
	Unk3   uint32
	Offset uint32
	Fmt1   uint32
	Fmt2   uint32
	Unk6   uint32
	Unk7   uint32
	Unk8   [6]uint32 // console only
}

type IBuffInfo struct {
	Unk0   uint32
	Size   uint32
	Format uint32
	Unk3   uint32
	Offset uint32
	Unk5   uint32
	Unk6   [7]uint32 // console only
}

type vbuffInfoLE struct {
	Unk0   uint32
	Size   uint32
	Unk3   uint32
	Offset uint32
	Fmt1   uint32
	Fmt2   uint32
	Unk6   uint32
	Unk7   uint32
}

type vbuffInfoBE struct {
	Unk0   uint32
	Size   uint32
	Unk3   uint32
	Offset uint32
	Fmt2   uint32
	Fmt1   uint32
	Unk6   uint32
	Unk7   uint32
	Unk8   [6]uint32
}

type ibuffInfoLE struct {
	Unk0   uint32
	Size   uint32
	Format uint32
	Unk3   uint32
	Offset uint32
	Unk5   uint32
}

type ibuffInfoBE struct {
	Unk0   uint32
	Size   uint32
	Format uint32
	Unk3   uint32
	Offset uint32
	Unk5   uint32
	Unk6   [7]uint32
}

func (v vbuffInfoLE) convToCanonical() VBuffInfo {
	return VBuffInfo{Unk0: v.Unk0, Size: v.Size, Unk3: v.Unk3, Offset: v.Offset, Fmt1: v.Fmt1, Fmt2: v.Fmt2, Unk6: v.Unk6, Unk7: v.Unk7}
}

func (v vbuffInfoBE) convToCanonical() VBuffInfo {
	return VBuffInfo{Unk0: v.Unk0, Size: v.Size, Unk3: v.Unk3, Offset: v.Offset, Fmt1: v.Fmt1, Fmt2: v.Fmt2, Unk6: v.Unk6, Unk7: v.Unk7, Unk8: v.Unk8}
}

func (v VBuffInfo) toLE() vbuffInfoLE {
	return vbuffInfoLE{Unk0: v.Unk0, Size: v.Size, Unk3: v.Unk3, Offset: v.Offset, Fmt1: v.Fmt1, Fmt2: v.Fmt2, Unk6: v.Unk6, Unk7: v.Unk7}
}

func (v VBuffInfo) toBE() vbuffInfoBE {
	return vbuffInfoBE{Unk0: v.Unk0, Size: v.Size, Unk3: v.Unk3, Offset: v.Offset, Fmt1: v.Fmt1, Fmt2: v.Fmt2, Unk6: v.Unk6, Unk7: v.Unk7, Unk8: v.Unk8}
}

func (v ibuffInfoLE) convToCanonical() IBuffInfo {
	return IBuffInfo{Unk0: v.Unk0, Size: v.Size, Format: v.Format, Unk3: v.Unk3, Offset: v.Offset, Unk5: v.Unk5}
}

func (v ibuffInfoBE) convToCanonical() IBuffInfo {
	return IBuffInfo{Unk0: v.Unk0, Size: v.Size, Format: v.Format, Unk3: v.Unk3, Offset: v.Offset, Unk5: v.Unk5, Unk6: v.Unk6}
}

func (v IBuffInfo) toLE() ibuffInfoLE {
	return ibuffInfoLE{Unk0: v.Unk0, Size: v.Size, Format: v.Format, Unk3: v.Unk3, Offset: v.Offset, Unk5: v.Unk5}
}

func (v IBuffInfo) toBE() ibuffInfoBE {
	return ibuffInfoBE{Unk0: v.Unk0, Size: v.Size, Format: v.Format, Unk3: v.Unk3, Offset: v.Offset, Unk5: v.Unk5, Unk6: v.Unk6}
}

func VBuffInfoSize(order binary.ByteOrder) int {
	if lotrcTypes.IsBig(order) {
		return binary.Size(vbuffInfoBE{})
	}
	return binary.Size(vbuffInfoLE{})
}

func IBuffInfoSize(order binary.ByteOrder) int {
	if lotrcTypes.IsBig(order) {
		return binary.Size(ibuffInfoBE{})
	}
	return binary.Size(ibuffInfoLE{})
}

func UnpackVBuffInfo(b []byte, off int, order binary.ByteOrder) (VBuffInfo, error) {
	if lotrcTypes.IsBig(order) {
		v, err := lotrcTypes.Unpack[vbuffInfoBE](b, off, order)
		return v.convToCanonical(), err
	}
	v, err := lotrcTypes.Unpack[vbuffInfoLE](b, off, order)
	return v.convToCanonical(), err
}

func (v VBuffInfo) Pack(order binary.ByteOrder) []byte {
	if lotrcTypes.IsBig(order) {
		return lotrcTypes.Pack(order, v.toBE())
	}
	return lotrcTypes.Pack(order, v.toLE())
}

func UnpackIBuffInfo(b []byte, off int, order binary.ByteOrder) (IBuffInfo, error) {
	if lotrcTypes.IsBig(order) {
		v, err := lotrcTypes.Unpack[ibuffInfoBE](b, off, order)
		return v.convToCanonical(), err
	}
	v, err := lotrcTypes.Unpack[ibuffInfoLE](b, off, order)
	return v.convToCanonical(), err
}

func (v IBuffInfo) Pack(order binary.ByteOrder) []byte {
	if lotrcTypes.IsBig(order) {
		return lotrcTypes.Pack(order, v.toBE())
	}
	return lotrcTypes.Pack(order, v.toLE())
}
