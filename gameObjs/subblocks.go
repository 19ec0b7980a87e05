package gameObjs

import (
	"encoding/binary"
	"log"
	"strings"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

// Sub-block keys recognised by name.
var (
	PFieldsKey = lotrcTypes.Hash("PFields")
	SprayKey   = lotrcTypes.Hash("Spray")
	CrowdKey   = lotrcTypes.Hash("3dCrowd")
	AtlasKeys  = []Crc{lotrcTypes.Hash("atlas_1.uv"), lotrcTypes.Hash("atlas_2.uv")}
)

// Languages are the names of the localized string sub-blocks.
var Languages = []string{"Polish", "German", "French", "Spanish", "Russian", "Swedish", "English", "Italian", "Norwegian"}

// SubBlock is one entry of a sub-block table.
type SubBlock interface {
	Encode(order binary.ByteOrder) ([]byte, error)
}

type SubBlocksHeader struct {
	Z0       uint32
	BlockNum uint32
	Z2       uint32
	Z3       uint32
}

type BlockHeader struct {
	Key    Crc
	Offset uint32
	Size   uint32
}

type SubBlocks struct {
	Header  SubBlocksHeader
	Headers []BlockHeader
	Blocks  []SubBlock
}

// Session carries what sub-block codecs share for one container.
type Session struct {
	Names   *lotrcTypes.StringTable
	Schemas *Schemas
	Lua     LuaTool
}

func NewSession() *Session {
	names := lotrcTypes.NewStringTable(KindNames...)
	names.Add(Languages...)
	names.Add("PFields", "Spray", "3dCrowd", "Level", "atlas_1.uv", "atlas_2.uv")
	return &Session{Names: names, Schemas: NewSchemas(), Lua: PassthroughLua{}}
}

func isLanguage(key Crc) bool {
	for _, l := range Languages {
		if lotrcTypes.Hash(l) == key {
			return true
		}
	}
	return false
}

func isAtlas(key Crc) bool {
	return key == AtlasKeys[0] || key == AtlasKeys[1]
}

// DecodeSubBlocks reads the table at off. Block offsets are relative to off.
func (s *Session) DecodeSubBlocks(b []byte, off int, order binary.ByteOrder) (*SubBlocks, error) {
	h, err := lotrcTypes.Unpack[SubBlocksHeader](b, off, order)
	if err != nil {
		return nil, err
	}
	headers, err := lotrcTypes.UnpackSlice[BlockHeader](b, off+16, int(h.BlockNum), order)
	if err != nil {
		return nil, err
	}
	sb := &SubBlocks{Header: h, Headers: headers}
	for _, bh := range headers {
		data, err := lotrcTypes.Bytes(b, off+int(bh.Offset), int(bh.Size))
		if err != nil {
			return nil, errors.Wrapf(err, "sub-block %s", s.Names.Name(bh.Key))
		}
		block, err := s.decodeBlock(bh.Key, data, order)
		if err != nil {
			return nil, err
		}
		sb.Blocks = append(sb.Blocks, block)
	}
	return sb, nil
}

func (s *Session) decodeBlock(key Crc, data []byte, order binary.ByteOrder) (SubBlock, error) {
	var (
		block SubBlock
		err   error
	)
	switch {
	case isLanguage(key):
		block, err = DecodeLangStrings(data, order)
	case key == PFieldsKey:
		return &Data{Data: data}, nil
	case key == SprayKey:
		block, err = DecodeSpray(data, order)
	case key == CrowdKey:
		block, err = DecodeCrowd(data, order)
	case key == LevelKey:
		block, err = Decode(data, order, s.Schemas, s.Names)
	case isAtlas(key):
		block, err = DecodeAtlasUV(data, order)
	default:
		name, _ := s.Names.Lookup(key)
		switch {
		case strings.HasSuffix(name, ".lua"):
			return &Lua{Name: name, Data: data}, nil
		case strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".txt"), strings.HasSuffix(name, ".dat"):
			return &Data{Data: data}, nil
		}
		log.Printf("Unknown sub-block type %s, keeping it as data", s.Names.Name(key))
		return &Data{Data: data}, nil
	}
	if lotrcTypes.IsUnsupported(err) {
		log.Printf("sub-block %s: %v, keeping it as data", s.Names.Name(key), err)
		return &Data{Data: data}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sub-block %s", s.Names.Name(key))
	}
	return block, nil
}

// EncodeSubBlocks lays the blocks out after the headers, each starting on the 16 byte boundary
// strictly past the previous end, and pads the whole table the same way.
func (s *Session) EncodeSubBlocks(sb *SubBlocks, order binary.ByteOrder) ([]byte, error) {
	if len(sb.Blocks) != len(sb.Headers) {
		return nil, lotrcTypes.Mismatch("sub-block count", len(sb.Blocks), len(sb.Headers))
	}
	headers := make([]BlockHeader, len(sb.Headers))
	copy(headers, sb.Headers)
	h := sb.Header
	h.BlockNum = uint32(len(headers))

	data := make([]byte, 16+12*len(headers))
	for i, block := range sb.Blocks {
		var (
			b   []byte
			err error
		)
		if l, ok := block.(*Lua); ok {
			b, err = l.encodeWith(s.Lua, order)
		} else {
			b, err = block.Encode(order)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "sub-block %s", s.Names.Name(headers[i].Key))
		}
		data = append(data, make([]byte, lotrcTypes.AlignPast(len(data))-len(data))...)
		headers[i].Offset = uint32(len(data))
		headers[i].Size = uint32(len(b))
		data = append(data, b...)
	}
	data = append(data, make([]byte, lotrcTypes.AlignPast(len(data))-len(data))...)
	copy(data, lotrcTypes.Pack(order, h))
	if len(headers) > 0 {
		copy(data[16:], lotrcTypes.Pack(order, headers))
	}
	return data, nil
}

// Block returns the first block with the given key.
func (sb *SubBlocks) Block(key Crc) (SubBlock, bool) {
	for i, h := range sb.Headers {
		if h.Key == key {
			return sb.Blocks[i], true
		}
	}
	return nil, false
}

// Replace swaps the first block with the given key.
func (sb *SubBlocks) Replace(key Crc, block SubBlock) bool {
	for i, h := range sb.Headers {
		if h.Key == key {
			sb.Blocks[i] = block
			return true
		}
	}
	return false
}
