// Package blockCodec handles the zlib wrapped payload blocks of both files.
package blockCodec

import (
	"bytes"
	"io"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// DefaultLevel matches the speed oriented level the game tools were built with.
const DefaultLevel = zlib.BestSpeed

// Decompress returns the rawSize byte payload stored at offset. A compSize of 0 means
// the payload was stored uncompressed.
func Decompress(blob []byte, rawSize, compSize, offset int) ([]byte, error) {
	if compSize == 0 {
		return lotrcTypes.Bytes(blob, offset, rawSize)
	}
	if offset < 0 || offset+compSize > len(blob) {
		return nil, lotrcTypes.FormatErrorf("compressed block at %d (%d bytes) runs past the end of the file (%d bytes)", offset, compSize, len(blob))
	}
	r, err := zlib.NewReader(bytes.NewReader(blob[offset : offset+compSize]))
	if err != nil {
		return nil, errors.Wrap(lotrcTypes.FormatErrorf("bad zlib header at offset %d", offset), err.Error())
	}
	defer r.Close()
	out := bytes.NewBuffer(make([]byte, 0, rawSize))
	if _, err := io.Copy(out, r); err != nil {
		return nil, errors.Wrap(lotrcTypes.FormatErrorf("corrupt deflate stream at offset %d", offset), err.Error())
	}
	if out.Len() != rawSize {
		return nil, lotrcTypes.FormatErrorf("size of decompressed data does not match header for block at %d, is %d but should be %d", offset, out.Len(), rawSize)
	}
	return out.Bytes(), nil
}

// Compress returns the sizes to record for buf and the bytes to store. With enable
// false, or when deflate does not shrink the payload, the payload is stored raw and
// compSize is 0. An empty buffer stores nothing.
func Compress(buf []byte, enable bool) (rawSize, compSize int, out []byte, err error) {
	return CompressLevel(buf, enable, DefaultLevel)
}

func CompressLevel(buf []byte, enable bool, level int) (rawSize, compSize int, out []byte, err error) {
	if len(buf) == 0 {
		return 0, 0, nil, nil
	}
	if !enable {
		return len(buf), 0, buf, nil
	}
	var b bytes.Buffer
	w, err := zlib.NewWriterLevel(&b, level)
	if err != nil {
		return 0, 0, nil, errors.Wrapf(err, "bad compression level %d", level)
	}
	if _, err := w.Write(buf); err != nil {
		return 0, 0, nil, errors.Wrap(err, "failed to compress block")
	}
	if err := w.Close(); err != nil {
		return 0, 0, nil, errors.Wrap(err, "failed to compress block")
	}
	if b.Len() >= len(buf) {
		return len(buf), 0, buf, nil
	}
	return len(buf), b.Len(), b.Bytes(), nil
}
