package blockCodec

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

func TestCompressRoundTrip(t *testing.T) {
	buf := bytes.Repeat([]byte("level data "), 500)
	raw, comp, out, err := Compress(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	if raw != len(buf) || comp == 0 || comp != len(out) || comp >= raw {
		t.Fatalf("raw %d comp %d out %d", raw, comp, len(out))
	}
	file := append(make([]byte, 7), out...)
	got, err := Decompress(file, raw, comp, 7)
	if err != nil || !bytes.Equal(got, buf) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestStoredRaw(t *testing.T) {
	// raw payloads are read straight from the blob
	blob := []byte{0xAA, 1, 2, 3, 4, 0xBB}
	got, err := Decompress(blob, 4, 0, 1)
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("got % x %v", got, err)
	}
	// incompressible data is never stored larger than it is
	small := []byte{0x9c, 0x01}
	raw, comp, out, err := Compress(small, true)
	if err != nil || raw != 2 || comp != 0 || !bytes.Equal(out, small) {
		t.Fatalf("raw %d comp %d %v", raw, comp, err)
	}
	raw, comp, out, _ = Compress(bytes.Repeat([]byte{0}, 64), false)
	if raw != 64 || comp != 0 || len(out) != 64 {
		t.Fatalf("disabled compression should store raw")
	}
	raw, comp, out, _ = Compress(nil, true)
	if raw != 0 || comp != 0 || len(out) != 0 {
		t.Fatalf("empty buffer should store nothing")
	}
}

func TestDecompressErrors(t *testing.T) {
	_, comp, out, _ := Compress(bytes.Repeat([]byte{1, 2, 3}, 100), true)
	if _, err := Decompress(out, 300, comp+10, 0); !lotrcTypes.IsFormatError(err) {
		t.Errorf("expected FormatError for out of range block, got %v", err)
	}
	bad := append([]byte{}, out...)
	for i := 2; i < len(bad); i++ {
		bad[i] ^= 0x55
	}
	if _, err := Decompress(bad, 300, comp, 0); !lotrcTypes.IsFormatError(err) {
		t.Errorf("expected FormatError for corrupt stream, got %v", err)
	}
	if _, err := Decompress(out, 299, comp, 0); !lotrcTypes.IsFormatError(err) {
		t.Errorf("expected FormatError for size mismatch, got %v", err)
	}
	if _, err := Decompress([]byte{1, 2}, 4, 0, 0); !lotrcTypes.IsFormatError(err) {
		t.Errorf("expected FormatError for short raw block, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	buf := bytes.Repeat([]byte{7, 8, 9}, 1000)
	if err := Snapshot(dir, "block1", buf); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSnapshot(filepath.Join(dir, "block1.zst"))
	if err != nil || !bytes.Equal(got, buf) {
		t.Fatalf("snapshot round trip: %v", err)
	}
}

func TestDigest(t *testing.T) {
	a, b := []byte("abc"), []byte("def")
	if DigestAll(a, b) != Digest([]byte("abcdef")) {
		t.Errorf("DigestAll should hash the concatenation")
	}
	if Digest(a) == Digest(b) {
		t.Errorf("distinct inputs collide")
	}
}
