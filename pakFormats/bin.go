package pakFormats

// bin definition
type BinHeader struct {
	Constx06          uint32
	Version           uint32
	StringsOffset     uint32
	StringsSize       uint32
	StringsNum        uint32
	AssetHandleNum    uint32
	AssetHandleOffset uint32
	Unk7              [36]uint32
}

// AssetHandle locates one payload blob in the bin. SizeComp 0 means stored raw.
type AssetHandle struct {
	Key      Crc
	Offset   uint32
	Size     uint32
	SizeComp uint32
	Kind     uint32
}

// end bin definition
