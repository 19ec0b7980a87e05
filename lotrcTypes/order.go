package lotrcTypes

import "encoding/binary"

const (
	PakConst       = 6
	LevelInfoConst = 4
)

// DetectOrder reads the 4 byte marker at the start of a structure or data file.
// The constant stored little-endian selects little order, stored big-endian selects big.
func DetectOrder(b []byte) (binary.ByteOrder, error) {
	return detectOrder(b, PakConst)
}

// DetectLevelInfoOrder is DetectOrder for the level metadata file, whose marker is 4.
func DetectLevelInfoOrder(b []byte) (binary.ByteOrder, error) {
	return detectOrder(b, LevelInfoConst)
}

func detectOrder(b []byte, marker byte) (binary.ByteOrder, error) {
	if len(b) < 4 {
		return nil, FormatErrorf("file is %d bytes, too short for a byte order marker", len(b))
	}
	switch {
	case b[0] == marker && b[1] == 0 && b[2] == 0 && b[3] == 0:
		return binary.LittleEndian, nil
	case b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == marker:
		return binary.BigEndian, nil
	}
	return nil, FormatErrorf("bad byte order marker % x", b[:4])
}

func IsBig(order binary.ByteOrder) bool {
	return order == binary.BigEndian
}

// Version is the header version written for a byte order: 2 on the little-endian
// platform, 1 on the console.
func Version(order binary.ByteOrder) uint32 {
	if IsBig(order) {
		return 1
	}
	return 2
}

func OrderName(order binary.ByteOrder) string {
	if IsBig(order) {
		return "big"
	}
	return "little"
}
