package lotrcTypes

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Every fixed layout record is a plain struct of sized fields, read and written with
// encoding/binary in whichever order the file uses. Records whose layout differs
// between platforms have one struct per platform, see pakFormats.

// SizeOf is the encoded size of a record or slice of records, -1 if it has no fixed size.
func SizeOf(v interface{}) int {
	return binary.Size(v)
}

// Unpack decodes one record of type T stored at off.
func Unpack[T any](b []byte, off int, order binary.ByteOrder) (T, error) {
	var v T
	n := binary.Size(&v)
	if n < 0 {
		return v, FormatErrorf("%T has no fixed layout", v)
	}
	if off < 0 || off+n > len(b) {
		return v, FormatErrorf("%T at offset %d runs past the end of its block (%d bytes)", v, off, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[off:off+n]), order, &v); err != nil {
		return v, errors.Wrapf(err, "failed to read %T at offset %d", v, off)
	}
	return v, nil
}

// UnpackSlice decodes n consecutive records of type T starting at off.
func UnpackSlice[T any](b []byte, off, n int, order binary.ByteOrder) ([]T, error) {
	if n < 0 {
		return nil, FormatErrorf("negative element count %d", n)
	}
	v := make([]T, n)
	if n == 0 {
		return v, nil
	}
	size := binary.Size(v)
	if size < 0 {
		return nil, FormatErrorf("%T has no fixed layout", v)
	}
	if off < 0 || off+size > len(b) {
		return nil, FormatErrorf("%d x %T at offset %d runs past the end of its block (%d bytes)", n, v[0], off, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[off:off+size]), order, v); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d x %T at offset %d", n, v[0], off)
	}
	return v, nil
}

// Pack encodes a record or slice of records.
func Pack(order binary.ByteOrder, v interface{}) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, max(binary.Size(v), 0)))
	if err := binary.Write(buf, order, v); err != nil {
		// only reachable with a type that has no fixed layout, a programming error
		panic(err)
	}
	return buf.Bytes()
}

// PackAt encodes v over b starting at off.
func PackAt(b []byte, off int, order binary.ByteOrder, v interface{}) error {
	p := Pack(order, v)
	if off < 0 || off+len(p) > len(b) {
		return FormatErrorf("%T at offset %d does not fit in %d bytes", v, off, len(b))
	}
	copy(b[off:], p)
	return nil
}

func Uint32At(b []byte, off int, order binary.ByteOrder) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, FormatErrorf("u32 at offset %d runs past the end of its block (%d bytes)", off, len(b))
	}
	return order.Uint32(b[off:]), nil
}

// CString reads a nul terminated string starting at off.
func CString(b []byte, off int) (string, error) {
	if off < 0 || off > len(b) {
		return "", FormatErrorf("string offset %d outside block (%d bytes)", off, len(b))
	}
	end := bytes.IndexByte(b[off:], 0)
	if end < 0 {
		return "", FormatErrorf("unterminated string at offset %d", off)
	}
	return string(b[off : off+end]), nil
}

// Bytes copies n raw bytes at off.
func Bytes(b []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(b) {
		return nil, FormatErrorf("%d bytes at offset %d runs past the end of its block (%d bytes)", n, off, len(b))
	}
	out := make([]byte, n)
	copy(out, b[off:off+n])
	return out, nil
}

// Align rounds n up to a multiple of a, a power of two.
func Align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// AlignPast is the next multiple of 16 strictly after n, the spacing used between sub-blocks.
func AlignPast(n int) int {
	return (n + 16) &^ 15
}
