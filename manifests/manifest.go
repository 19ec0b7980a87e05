// Package manifests records the files of an extracted level tree, so an import can tell
// which of them were edited.
package manifests

import (
	"bytes"
	"encoding/binary"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

// Name is the file the manifest is stored as at the root of the tree.
const Name = "manifest.zst"

const compressionLevel = zstd.BestSpeed

var magic = [4]byte{0x5A, 0x53, 0x54, 0x44} // Z S T D

type CompressedHeader struct {
	Magic            [4]byte
	HeaderSize       uint32
	UncompressedSize uint64
	CompressedSize   uint64
}

type Header struct {
	Version    uint32 // version of the level the tree was extracted from
	EntryCount uint32
	NamesSize  uint32 // byte length of the name table after the entries
	_          uint32
}

type Entry struct { // 16 bytes
	Digest uint64 // xxhash of the file contents
	Size   uint32
	Name   uint32 // index into the name table
}

type Manifest struct {
	Header  Header
	Entries []Entry
	Names   lotrcTypes.Strings

	index map[string]int
}

func New(version uint32) *Manifest {
	return &Manifest{Header: Header{Version: version}, index: map[string]int{}}
}

// Add records a file. Adding a name again replaces its entry.
func (m *Manifest) Add(name string, data []byte) {
	e := Entry{Digest: xxhash.Sum64(data), Size: uint32(len(data))}
	if i, ok := m.index[name]; ok {
		e.Name = m.Entries[i].Name
		m.Entries[i] = e
		return
	}
	e.Name = uint32(len(m.Names))
	m.index[name] = len(m.Entries)
	m.Names = append(m.Names, name)
	m.Entries = append(m.Entries, e)
}

// Changed reports whether data differs from what was recorded for name. Unknown names
// count as changed.
func (m *Manifest) Changed(name string, data []byte) bool {
	i, ok := m.index[name]
	if !ok {
		return true
	}
	e := m.Entries[i]
	return e.Size != uint32(len(data)) || e.Digest != xxhash.Sum64(data)
}

func (m *Manifest) Len() int { return len(m.Entries) }

// Marshal writes the manifest little endian, zstd compressed behind a CompressedHeader.
func (m *Manifest) Marshal() ([]byte, error) {
	h := m.Header
	h.EntryCount = uint32(len(m.Entries))
	h.NamesSize = uint32(m.Names.Size())
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, h)
	binary.Write(&buf, binary.LittleEndian, m.Entries)
	buf.Write(m.Names.Pack(binary.LittleEndian))

	comp, err := zstd.CompressLevel(nil, buf.Bytes(), compressionLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compress manifest")
	}
	ch := CompressedHeader{magic, uint32(binary.Size(CompressedHeader{})), uint64(buf.Len()), uint64(len(comp))}
	out := bytes.NewBuffer(nil)
	binary.Write(out, binary.LittleEndian, ch)
	return append(out.Bytes(), comp...), nil
}

func Unmarshal(b []byte) (*Manifest, error) {
	ch, err := lotrcTypes.Unpack[CompressedHeader](b, 0, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if ch.Magic != magic {
		return nil, lotrcTypes.FormatErrorf("bad manifest magic % x", ch.Magic)
	}
	if int(ch.HeaderSize) > len(b) {
		return nil, lotrcTypes.FormatErrorf("manifest header size %d past the end of the file", ch.HeaderSize)
	}
	body := b[ch.HeaderSize:]
	if len(body) != int(ch.CompressedSize) {
		return nil, lotrcTypes.Mismatch("compressed manifest size", len(body), int(ch.CompressedSize))
	}
	data, err := zstd.Decompress(nil, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress manifest")
	}
	if len(data) != int(ch.UncompressedSize) {
		return nil, lotrcTypes.Mismatch("manifest size", len(data), int(ch.UncompressedSize))
	}

	h, err := lotrcTypes.Unpack[Header](data, 0, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	m := New(h.Version)
	m.Header = h
	off := binary.Size(Header{})
	if m.Entries, err = lotrcTypes.UnpackSlice[Entry](data, off, int(h.EntryCount), binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "manifest entries")
	}
	off += int(h.EntryCount) * binary.Size(Entry{})
	if m.Names, err = lotrcTypes.UnpackStrings(data, off, int(h.EntryCount), binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "manifest names")
	}
	for i, e := range m.Entries {
		if int(e.Name) >= len(m.Names) {
			return nil, lotrcTypes.FormatErrorf("manifest entry %d names string %d of %d", i, e.Name, len(m.Names))
		}
		m.index[m.Names[e.Name]] = i
	}
	return m, nil
}
