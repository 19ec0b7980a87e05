package blockCodec

import "github.com/cespare/xxhash/v2"

// Digest identifies the contents of a decompressed block.
func Digest(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// DigestAll hashes several blocks in order as one stream.
func DigestAll(blocks ...[]byte) uint64 {
	d := xxhash.New()
	for _, b := range blocks {
		d.Write(b)
	}
	return d.Sum64()
}
