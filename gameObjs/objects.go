// Package gameObjs decodes the level sub-blocks, chiefly the self describing game
// object table: a list of types (field name, field type, offset) followed by object
// records laid out by those types.
package gameObjs

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

const (
	ObjsConst      = 1296123652
	typesOffset    = 32
	typeHeaderSize = 12
	fieldSize      = 12
	objHeaderSize  = 16
)

// LevelKey names the game object sub-block.
var LevelKey = lotrcTypes.Hash("Level")

// field key whose list payload is followed by realignment to 16
var intListField = lotrcTypes.Hash("IntList")

type Header struct {
	Const       uint32
	TypesNum    uint32
	TypesOffset uint32
	ObjNum      uint32
	ObjOffset   uint32
	Z5          uint32
	Z6          uint32
	Z7          uint32
}

type TypeHeader struct {
	Key    Crc
	Size   uint32 // number of fields
	Fields uint32 // ?
}

type Field struct {
	Key    Crc
	Kind   Crc
	Offset uint32
}

type ObjHeader struct {
	Unk0 uint32
	Key  Crc
	Size uint16 // record size, multiple of 16
	Z3   uint16
	Z4   uint32
}

type Type struct {
	Header TypeHeader
	Fields []Field
}

// fixedEnd is the end of the furthest fixed field, where variable data may begin.
func (t *Type) fixedEnd() int {
	end := 0
	for _, f := range t.Fields {
		n, _ := fixedSize(f.Kind)
		end = max(end, int(f.Offset)+n)
	}
	return end
}

type Object struct {
	Header ObjHeader
	Values []Value // one per type field, in type field order
}

// Schemas caches decoded types by key. It belongs to one container session and may be
// shared by every game object block that session decodes.
type Schemas struct {
	mu    sync.Mutex
	types map[Crc]*Type
}

func NewSchemas() *Schemas {
	return &Schemas{types: make(map[Crc]*Type)}
}

// Intern returns the cached type for t's key, caching t on first sight. A later
// definition that disagrees with the cached one is kept separately and logged.
func (s *Schemas) Intern(t *Type) *Type {
	if s == nil {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.types[t.Header.Key]; ok {
		if sameType(old, t) {
			return old
		}
		log.Printf("game object type %s redefined with %d fields (was %d)", t.Header.Key, len(t.Fields), len(old.Fields))
		return t
	}
	s.types[t.Header.Key] = t
	return t
}

func (s *Schemas) Get(key Crc) (*Type, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[key]
	return t, ok
}

func (s *Schemas) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.types)
}

func sameType(a, b *Type) bool {
	if a.Header != b.Header || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

type GameObjs struct {
	Size   int
	Header Header
	Types  []*Type
	Objs   []Object

	Names  *lotrcTypes.StringTable `json:"-"`
	lookup map[Crc]*Type
}

func (g *GameObjs) index() {
	g.lookup = make(map[Crc]*Type, len(g.Types))
	for _, t := range g.Types {
		g.lookup[t.Header.Key] = t
	}
}

// TypeOf returns the type describing objects with the given key.
func (g *GameObjs) TypeOf(key Crc) (*Type, bool) {
	if g.lookup == nil {
		g.index()
	}
	t, ok := g.lookup[key]
	return t, ok
}

// Decode reads a game object block. b holds exactly the block.
func Decode(b []byte, order binary.ByteOrder, schemas *Schemas, names *lotrcTypes.StringTable) (*GameObjs, error) {
	h, err := lotrcTypes.Unpack[Header](b, 0, order)
	if err != nil {
		return nil, err
	}
	g := &GameObjs{Size: len(b), Header: h, Names: names}

	off := int(h.TypesOffset)
	for i := 0; i < int(h.TypesNum); i++ {
		th, err := lotrcTypes.Unpack[TypeHeader](b, off, order)
		if err != nil {
			return nil, errors.Wrapf(err, "type %d", i)
		}
		off += typeHeaderSize
		fields, err := lotrcTypes.UnpackSlice[Field](b, off, int(th.Size), order)
		if err != nil {
			return nil, errors.Wrapf(err, "fields of type %s", th.Key)
		}
		off += len(fields) * fieldSize
		g.Types = append(g.Types, schemas.Intern(&Type{Header: th, Fields: fields}))
	}
	g.index()

	off = int(h.ObjOffset)
	for i := 0; i < int(h.ObjNum); i++ {
		oh, err := lotrcTypes.Unpack[ObjHeader](b, off, order)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
		off += objHeaderSize
		t, ok := g.lookup[oh.Key]
		if !ok {
			return nil, lotrcTypes.FormatErrorf("object %d has undeclared type %s", i, oh.Key)
		}
		obj := Object{Header: oh, Values: make([]Value, len(t.Fields))}
		for j, f := range t.Fields {
			if obj.Values[j], err = decodeValue(b, off+int(f.Offset), f.Kind, order); err != nil {
				return nil, errors.Wrapf(err, "object %d field %s", i, names.Name(f.Key))
			}
		}
		off += int(oh.Size)
		g.Objs = append(g.Objs, obj)
	}
	return g, nil
}

// Encode writes the block into a buffer of g.Size bytes. Object records keep their
// declared sizes; call Layout after changing values that alter variable data.
func (g *GameObjs) Encode(order binary.ByteOrder) ([]byte, error) {
	if g.lookup == nil {
		g.index()
	}
	b := make([]byte, g.Size)
	if err := lotrcTypes.PackAt(b, 0, order, g.Header); err != nil {
		return nil, err
	}

	off := int(g.Header.TypesOffset)
	for _, t := range g.Types {
		if err := lotrcTypes.PackAt(b, off, order, t.Header); err != nil {
			return nil, err
		}
		off += typeHeaderSize
		if len(t.Fields) > 0 {
			if err := lotrcTypes.PackAt(b, off, order, t.Fields); err != nil {
				return nil, err
			}
		}
		off += len(t.Fields) * fieldSize
	}

	off = int(g.Header.ObjOffset)
	for i, obj := range g.Objs {
		if err := lotrcTypes.PackAt(b, off, order, obj.Header); err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
		off += objHeaderSize
		t, ok := g.lookup[obj.Header.Key]
		if !ok {
			return nil, lotrcTypes.FormatErrorf("object %d has undeclared type %s", i, obj.Header.Key)
		}
		if len(obj.Values) != len(t.Fields) {
			return nil, lotrcTypes.Mismatch("object field count", len(obj.Values), len(t.Fields))
		}
		rel := lotrcTypes.Align(t.fixedEnd(), 16)
		for j, f := range t.Fields {
			end, err := obj.Values[j].encode(b, off+int(f.Offset), off+rel, order)
			if err != nil {
				return nil, errors.Wrapf(err, "object %d field %s", i, g.Names.Name(f.Key))
			}
			rel = end - off
			if f.Key == intListField {
				rel = lotrcTypes.Align(rel, 16)
			}
		}
		if rel > int(obj.Header.Size) {
			return nil, lotrcTypes.Mismatch("object record", rel, int(obj.Header.Size))
		}
		off += int(obj.Header.Size)
	}
	return b, nil
}

// recordSize is the record size the object needs with its current values.
func recordSize(t *Type, values []Value) int {
	rel := lotrcTypes.Align(t.fixedEnd(), 16)
	for j, f := range t.Fields {
		rel += values[j].VarSize()
		if f.Key == intListField {
			rel = lotrcTypes.Align(rel, 16)
		}
	}
	return lotrcTypes.Align(rel, 16)
}

// Layout recomputes every count, offset and record size from the types and values.
func (g *GameObjs) Layout() error {
	g.index()
	fields := 0
	for _, t := range g.Types {
		t.Header.Size = uint32(len(t.Fields))
		fields += len(t.Fields)
	}
	g.Header.Const = ObjsConst
	g.Header.TypesNum = uint32(len(g.Types))
	g.Header.TypesOffset = typesOffset
	g.Header.ObjNum = uint32(len(g.Objs))
	g.Header.ObjOffset = uint32(lotrcTypes.Align(typesOffset+len(g.Types)*typeHeaderSize+fields*fieldSize, 16))

	size := int(g.Header.ObjOffset)
	for i := range g.Objs {
		obj := &g.Objs[i]
		t, ok := g.lookup[obj.Header.Key]
		if !ok {
			return lotrcTypes.FormatErrorf("object %d has undeclared type %s", i, obj.Header.Key)
		}
		if len(obj.Values) != len(t.Fields) {
			return lotrcTypes.Mismatch("object field count", len(obj.Values), len(t.Fields))
		}
		n := recordSize(t, obj.Values)
		if n > 0xFFFF {
			return lotrcTypes.Mismatch("object record", n, 0xFFF0)
		}
		obj.Header.Size = uint16(n)
		size += objHeaderSize + n
	}
	g.Size = size
	return nil
}
