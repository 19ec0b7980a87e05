package gameObjs

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/pkg/errors"
)

type jsonField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset uint32 `json:"offset"`
}

type jsonType struct {
	Name   string      `json:"name"`
	Size   uint32      `json:"size"`
	Fields []jsonField `json:"fields"`
}

type jsonObj struct {
	Type   string          `json:"type"`
	Unk0   uint32          `json:"unk0"`
	Fields json.RawMessage `json:"fields"`
}

type jsonObjs struct {
	Types []jsonType `json:"types"`
	Objs  []jsonObj  `json:"objs"`
}

// orderedFields marshals as an object whose keys keep field offset order.
type orderedFields struct {
	keys []string
	vals []interface{}
}

func (o orderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes the types and the objects, each object's fields keyed by name
// in offset order.
func (g *GameObjs) MarshalJSON() ([]byte, error) {
	if g.lookup == nil {
		g.index()
	}
	out := jsonObjs{Types: make([]jsonType, len(g.Types)), Objs: make([]jsonObj, len(g.Objs))}
	for i, t := range g.Types {
		jt := jsonType{Name: g.Names.Name(t.Header.Key), Size: t.Header.Size, Fields: make([]jsonField, len(t.Fields))}
		for j, f := range t.Fields {
			jt.Fields[j] = jsonField{Name: g.Names.Name(f.Key), Type: g.Names.Name(f.Kind), Offset: f.Offset}
		}
		out.Types[i] = jt
	}
	for i, obj := range g.Objs {
		t, ok := g.lookup[obj.Header.Key]
		if !ok {
			return nil, lotrcTypes.FormatErrorf("object %d has undeclared type %s", i, obj.Header.Key)
		}
		order := make([]int, len(t.Fields))
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool { return t.Fields[order[a]].Offset < t.Fields[order[b]].Offset })
		var of orderedFields
		for _, j := range order {
			of.keys = append(of.keys, g.Names.Name(t.Fields[j].Key))
			of.vals = append(of.vals, obj.Values[j].toJSON(g.Names))
		}
		fields, err := json.Marshal(of)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
		out.Objs[i] = jsonObj{Type: g.Names.Name(obj.Header.Key), Unk0: obj.Header.Unk0, Fields: fields}
	}
	return json.MarshalIndent(out, "", "  ")
}

// UnmarshalJSON rebuilds the block from its interchange form and lays it out again.
// Names seen in the document are added to g.Names.
func (g *GameObjs) UnmarshalJSON(data []byte) error {
	var in jsonObjs
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "failed to parse game objects")
	}
	if g.Names == nil {
		g.Names = lotrcTypes.NewStringTable(KindNames...)
	}
	g.Types = g.Types[:0]
	g.Objs = g.Objs[:0]
	g.Header = Header{}

	for _, jt := range in.Types {
		key, err := parseCrc(jt.Name, g.Names)
		if err != nil {
			return err
		}
		t := &Type{Header: TypeHeader{Key: key, Size: jt.Size}, Fields: make([]Field, len(jt.Fields))}
		for j, jf := range jt.Fields {
			if t.Fields[j].Key, err = parseCrc(jf.Name, g.Names); err != nil {
				return err
			}
			if t.Fields[j].Kind, err = parseCrc(jf.Type, g.Names); err != nil {
				return err
			}
			t.Fields[j].Offset = jf.Offset
		}
		g.Types = append(g.Types, t)
	}
	g.index()

	for i, jo := range in.Objs {
		key, err := parseCrc(jo.Type, g.Names)
		if err != nil {
			return err
		}
		t, ok := g.lookup[key]
		if !ok {
			return lotrcTypes.FormatErrorf("object %d has undeclared type %q", i, jo.Type)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(jo.Fields, &raw); err != nil {
			return errors.Wrapf(err, "object %d", i)
		}
		byKey := make(map[Crc]json.RawMessage, len(raw))
		for name, v := range raw {
			k, err := parseCrc(name, g.Names)
			if err != nil {
				return err
			}
			byKey[k] = v
		}
		obj := Object{Header: ObjHeader{Unk0: jo.Unk0, Key: key}, Values: make([]Value, len(t.Fields))}
		for j, f := range t.Fields {
			v, ok := byKey[f.Key]
			if !ok {
				return lotrcTypes.FormatErrorf("object %d is missing field %s", i, g.Names.Name(f.Key))
			}
			if obj.Values[j], err = valueFromJSON(v, f.Kind, g.Names); err != nil {
				return errors.Wrapf(err, "object %d field %s", i, g.Names.Name(f.Key))
			}
		}
		g.Objs = append(g.Objs, obj)
	}
	return g.Layout()
}
