package lotrcTypes

import "encoding/binary"

// Strings is a length prefixed string table: u32 length then the bytes, no terminator.
type Strings []string

func UnpackStrings(b []byte, off, num int, order binary.ByteOrder) (Strings, error) {
	s := make(Strings, 0, num)
	for i := 0; i < num; i++ {
		k, err := Uint32At(b, off, order)
		if err != nil {
			return nil, err
		}
		off += 4
		v, err := Bytes(b, off, int(k))
		if err != nil {
			return nil, err
		}
		s = append(s, string(v))
		off += int(k)
	}
	return s, nil
}

func (s Strings) Pack(order binary.ByteOrder) []byte {
	out := make([]byte, 0, s.Size())
	var n [4]byte
	for _, v := range s {
		order.PutUint32(n[:], uint32(len(v)))
		out = append(out, n[:]...)
		out = append(out, v...)
	}
	return out
}

func (s Strings) Size() int {
	n := 4 * len(s)
	for _, v := range s {
		n += len(v)
	}
	return n
}
