// Package levelContainer reads and writes a level: the structure file (PAK) and the
// data file (BIN) it is paired with.
package levelContainer

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/goopsie/lotrcLevelTools/animations"
	"github.com/goopsie/lotrcLevelTools/blockCodec"
	"github.com/goopsie/lotrcLevelTools/gameObjs"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/meshes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

type Crc = lotrcTypes.Crc

// Options configures a level session.
type Options struct {
	Compress    bool   // deflate blocks and blobs on save
	Verbose     bool   // log every record as it is read and written
	CacheSize   int    // decompressed bin blobs kept by the asset cache
	SnapshotDir string // write zstd snapshots of every decompressed block here
	Lua         gameObjs.LuaTool
}

const defaultCacheSize = 64

func DefaultOptions() Options {
	return Options{Compress: true, CacheSize: defaultCacheSize, Lua: gameObjs.PassthroughLua{}}
}

// Effect is an effect block. Objs is nil when the block could not be decoded as game
// objects, Data then holds it as read.
type Effect struct {
	GameModeMask int32
	Objs         *gameObjs.GameObjs `json:",omitempty"`
	Data         []byte             `json:",omitempty"`
}

type Foliage struct {
	Info  pakFormats.FoliageInfo
	Words []uint32
}

type Illumination struct {
	GUID  uint32
	Words []uint32
}

// Radiosity is a static lighting blob of the bin.
type Radiosity struct {
	Kind  uint32
	Words []uint32
}

// Level is one loaded container. Everything is owned by the session: the vertex layout
// cache, the game object schemas and the name table are never shared between levels.
type Level struct {
	Order binary.ByteOrder

	BinHeader  pakFormats.BinHeader
	BinStrings lotrcTypes.Strings
	PakHeader  pakFormats.PakHeader
	PakStrings lotrcTypes.Strings

	ObjAs           []pakFormats.ObjA
	Obj0s           []pakFormats.Obj0
	Meshes          map[Crc]*meshes.Mesh
	Textures        map[Crc]*Texture
	Animations      []*animations.Animation
	Foliages        []Foliage
	Illuminations   []Illumination
	Effects         map[Crc]*Effect
	PFields         []pakFormats.PFieldInfo
	AnimationBlocks []pakFormats.AnimationBlockInfo
	GFXBlocks       map[Crc][]byte
	StringKeys      *gameObjs.StringKeys
	SubBlocks1      *gameObjs.SubBlocks
	SubBlocks2      *gameObjs.SubBlocks
	ValsA           []pakFormats.BlockAVal

	Radiosity map[Crc]*Radiosity
	// Loose holds bin blobs nothing in the pak refers to, written back unchanged.
	Loose map[AssetKey][]byte

	// SourceRelocations is the relocation table of the loaded block 2. Saving always
	// regenerates it.
	SourceRelocations []uint32

	opts    Options
	session *gameObjs.Session
	formats *meshes.Formats
	assets  *AssetCache
}

// Paths returns the structure and data file of a level given its path without extension.
func Paths(base string) (pak, bin string) {
	return base + ".PAK", base + ".BIN"
}

func newLevel(order binary.ByteOrder, opts Options) *Level {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	s := gameObjs.NewSession()
	if opts.Lua != nil {
		s.Lua = opts.Lua
	}
	return &Level{
		Order:     order,
		Meshes:    map[Crc]*meshes.Mesh{},
		Textures:  map[Crc]*Texture{},
		Effects:   map[Crc]*Effect{},
		GFXBlocks: map[Crc][]byte{},
		Radiosity: map[Crc]*Radiosity{},
		Loose:     map[AssetKey][]byte{},
		opts:      opts,
		session:   s,
		formats:   meshes.NewFormats(),
	}
}

// Names is the session name table, used to print Crc keys.
func (l *Level) Names() *lotrcTypes.StringTable { return l.session.Names }

// Formats is the session vertex layout cache.
func (l *Level) Formats() *meshes.Formats { return l.formats }

// Load reads both files fully before parsing them.
func Load(pakPath, binPath string, opts Options) (*Level, error) {
	pak, err := os.ReadFile(pakPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", pakPath)
	}
	bin, err := os.ReadFile(binPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", binPath)
	}
	l, err := Parse(pak, bin, opts)
	return l, errors.Wrapf(err, "level %s", pakPath)
}

// Parse decodes a level from the contents of its two files. The byte order is taken
// from the marker of the data file and checked against the structure file header.
func Parse(pak, bin []byte, opts Options) (*Level, error) {
	order, err := lotrcTypes.DetectOrder(bin)
	if err != nil {
		return nil, errors.Wrap(err, "data file")
	}
	l := newLevel(order, opts)
	if err := l.parseBin(bin); err != nil {
		return nil, err
	}
	if err := l.parsePak(pak); err != nil {
		return nil, err
	}
	l.collectRadiosity()
	return l, nil
}

func (l *Level) verbosef(format string, args ...interface{}) {
	if l.opts.Verbose {
		log.Printf(format, args...)
	}
}

func (l *Level) snapshot(name string, b []byte) error {
	if l.opts.SnapshotDir == "" {
		return nil
	}
	return blockCodec.Snapshot(l.opts.SnapshotDir, name, b)
}

func (l *Level) block(pak []byte, size, sizeComp, offset uint32, name string) ([]byte, error) {
	b, err := blockCodec.Decompress(pak, int(size), int(sizeComp), int(offset))
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return b, l.snapshot(name, b)
}

func (l *Level) parsePak(pak []byte) error {
	order := l.Order
	h, err := pakFormats.UnpackPakHeader(pak, order)
	if err != nil {
		return errors.Wrap(err, "pak header")
	}
	if h.Constx13 != 0x13 {
		return lotrcTypes.FormatErrorf("pak header constant is 0x%x in %s order, want 0x13", h.Constx13, lotrcTypes.OrderName(order))
	}
	l.PakHeader = h
	if l.PakStrings, err = lotrcTypes.UnpackStrings(pak, int(h.StringsOffset), int(h.StringsNum), order); err != nil {
		return errors.Wrap(err, "pak strings")
	}
	l.session.Names.Add(l.PakStrings...)

	block2, err := l.block(pak, h.Block2Size, h.Block2SizeComp, h.Block2Offset, "block2")
	if err != nil {
		return err
	}
	if l.SubBlocks2, err = l.session.DecodeSubBlocks(block2, int(h.SubBlocks2Offset), order); err != nil {
		return errors.Wrap(err, "sub blocks 2")
	}
	if l.SourceRelocations, err = lotrcTypes.UnpackSlice[uint32](block2, int(h.Block2OffsetsOffset), int(h.Block2OffsetsNum), order); err != nil {
		return errors.Wrap(err, "relocation table")
	}

	block1, err := l.block(pak, h.Block1Size, h.Block1SizeComp, h.Block1Offset, "block1")
	if err != nil {
		return err
	}
	if err := l.parseBlock1(block1, &h); err != nil {
		return err
	}

	l.AnimationBlocks, err = pakFormats.UnpackTable[pakFormats.AnimationBlockInfo](block1, &h, pakFormats.AnimationBlockInfoTable, order)
	if err != nil {
		return errors.Wrap(err, "animation block infos")
	}
	blocks := make([][]byte, len(l.AnimationBlocks))
	for i, info := range l.AnimationBlocks {
		if blocks[i], err = l.block(pak, info.Size, info.SizeComp, info.Offset, fmt.Sprintf("animation_block_%d", i)); err != nil {
			return err
		}
	}
	infos, err := pakFormats.UnpackTable[pakFormats.AnimationInfo](block1, &h, pakFormats.AnimationInfoTable, order)
	if err != nil {
		return errors.Wrap(err, "animation infos")
	}
	if l.Animations, err = animations.Unpack(infos, blocks, order); err != nil {
		return err
	}

	// block A sits between the strings and the end of the file and is in file order,
	// only its count and offset are always little endian
	if l.ValsA, err = lotrcTypes.UnpackSlice[pakFormats.BlockAVal](pak, int(h.BlockAOffset), int(h.BlockANum), order); err != nil {
		return errors.Wrap(err, "block a")
	}
	return nil
}

func (l *Level) parseBlock1(block1 []byte, h *pakFormats.PakHeader) error {
	order := l.Order
	var err error
	if l.ObjAs, err = pakFormats.UnpackTable[pakFormats.ObjA](block1, h, pakFormats.ObjATable, order); err != nil {
		return errors.Wrap(err, "obja")
	}
	if l.Obj0s, err = pakFormats.UnpackTable[pakFormats.Obj0](block1, h, pakFormats.Obj0Table, order); err != nil {
		return errors.Wrap(err, "obj0")
	}
	if l.PFields, err = pakFormats.UnpackTable[pakFormats.PFieldInfo](block1, h, pakFormats.PFieldInfoTable, order); err != nil {
		return errors.Wrap(err, "pfield infos")
	}
	if err := l.parseMeshes(block1, h); err != nil {
		return err
	}
	if err := l.parseEffects(block1, h); err != nil {
		return err
	}
	if err := l.parseTextures(block1, h); err != nil {
		return err
	}

	gfx, err := pakFormats.UnpackTable[pakFormats.GFXBlockInfo](block1, h, pakFormats.GFXBlockInfoTable, order)
	if err != nil {
		return errors.Wrap(err, "gfx block infos")
	}
	for _, info := range gfx {
		b, err := lotrcTypes.Bytes(block1, int(info.Offset), int(info.Size))
		if err != nil {
			return errors.Wrapf(err, "gfx block %s", l.Names().Name(info.Key))
		}
		l.GFXBlocks[info.Key] = append([]byte(nil), b...)
	}

	lights, err := pakFormats.UnpackTable[pakFormats.IlluminationInfo](block1, h, pakFormats.IlluminationInfoTable, order)
	if err != nil {
		return errors.Wrap(err, "illumination infos")
	}
	for _, info := range lights {
		words, err := lotrcTypes.UnpackSlice[uint32](block1, int(info.Offset), int(info.Num), order)
		if err != nil {
			return errors.Wrapf(err, "illumination %d", info.GUID)
		}
		l.Illuminations = append(l.Illuminations, Illumination{GUID: info.GUID, Words: words})
	}

	foliages, err := pakFormats.UnpackTable[pakFormats.FoliageInfo](block1, h, pakFormats.FoliageInfoTable, order)
	if err != nil {
		return errors.Wrap(err, "foliage infos")
	}
	for _, info := range foliages {
		n := info.Words()
		if n < 0 {
			return lotrcTypes.FormatErrorf("foliage %s has a negative extent", l.Names().Name(info.Key))
		}
		words, err := lotrcTypes.UnpackSlice[uint32](block1, int(info.Offset), n, order)
		if err != nil {
			return errors.Wrapf(err, "foliage %s", l.Names().Name(info.Key))
		}
		l.Foliages = append(l.Foliages, Foliage{Info: info, Words: words})
	}

	if l.SubBlocks1, err = l.session.DecodeSubBlocks(block1, int(h.SubBlocks1Offset), order); err != nil {
		return errors.Wrap(err, "sub blocks 1")
	}
	if l.StringKeys, err = gameObjs.DecodeStringKeys(block1, int(h.StringKeysOffset), order); err != nil {
		return errors.Wrap(err, "string keys")
	}
	return nil
}

func (l *Level) parseMeshes(block1 []byte, h *pakFormats.PakHeader) error {
	for i := 0; i < int(h.MeshInfoNum); i++ {
		m, err := meshes.Decode(block1, int(h.MeshInfoOffset)+i*pakFormats.MeshInfoSize, l.Order)
		if err != nil {
			return err
		}
		if m.HasBuffers() {
			blob, err := l.assets.Take(AssetKey{m.Info.AssetKey, m.Info.AssetType})
			if err != nil {
				return errors.Wrapf(err, "mesh %s", l.Names().Name(m.Key()))
			}
			if err := m.DecodeBuffers(blob, l.formats, l.Order); err != nil {
				return err
			}
		}
		if _, ok := l.Meshes[m.Key()]; ok {
			log.Printf("mesh %s is listed twice, keeping the last", l.Names().Name(m.Key()))
		}
		l.Meshes[m.Key()] = m
		l.verbosef("mesh %s: %d materials, %d vertex buffers", l.Names().Name(m.Key()), len(m.Mats), len(m.Vertices))
	}
	return nil
}

func (l *Level) parseEffects(block1 []byte, h *pakFormats.PakHeader) error {
	infos, err := pakFormats.UnpackTable[pakFormats.EffectInfo](block1, h, pakFormats.EffectInfoTable, l.Order)
	if err != nil {
		return errors.Wrap(err, "effect infos")
	}
	for _, info := range infos {
		b, err := lotrcTypes.Bytes(block1, int(info.Offset), int(info.Size))
		if err != nil {
			return errors.Wrapf(err, "effect %s", l.Names().Name(info.Key))
		}
		e := &Effect{GameModeMask: info.GameModeMask}
		if e.Objs, err = gameObjs.Decode(b, l.Order, l.session.Schemas, l.Names()); err != nil {
			log.Printf("effect %s: %v, keeping it as data", l.Names().Name(info.Key), err)
			e.Objs, e.Data = nil, append([]byte(nil), b...)
		}
		l.Effects[info.Key] = e
	}
	return nil
}
