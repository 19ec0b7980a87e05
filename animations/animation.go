// Package animations decodes the skeletal animations stored in a level's animation
// blocks and assembles those blocks again on save.
package animations

import (
	"encoding/binary"
	"log"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/pakFormats"
	"github.com/pkg/errors"
)

type Crc = lotrcTypes.Crc

// SplineKind is the AnimationInfo.Kind of spline compressed animations, the only
// kind with a decoded payload.
const SplineKind = 3

// Event is a keyed event fired at time T.
type Event struct {
	T     float32
	Event Crc
	Args  [9]Crc
}

type Obj5Header struct {
	ANum, AOffset uint32
	BNum, BOffset uint32
}

// Animation is one animation's data, Info.Size bytes long. Raw holds the bytes as
// read; the decoded parts are written over it on encode, so regions nobody decodes
// are kept.
type Animation struct {
	Info   pakFormats.AnimationInfo
	Obj1   []uint32
	Obj2   []uint32
	Events []Event
	Keys   []Crc
	Obj5   *Obj5Header `json:",omitempty"`
	Obj5A  []uint32
	Obj5B  []uint32
	Spline *Spline `json:",omitempty"`

	Raw []byte `json:"-"`
}

func (a *Animation) Key() Crc { return a.Info.Key }

// Decode reads an animation from its data.
func Decode(raw []byte, info pakFormats.AnimationInfo, order binary.ByteOrder) (*Animation, error) {
	if len(raw) != int(info.Size) {
		return nil, lotrcTypes.Mismatch("animation "+info.Key.String(), len(raw), int(info.Size))
	}
	a := &Animation{Info: info, Raw: raw}
	var err error
	if a.Obj1, err = lotrcTypes.UnpackSlice[uint32](raw, int(info.Obj1Offset), int(info.Obj1Num)*2, order); err != nil {
		return nil, errors.Wrapf(err, "animation %s", info.Key)
	}
	if a.Obj2, err = lotrcTypes.UnpackSlice[uint32](raw, int(info.Obj2Offset), int(info.Obj2Num)*4, order); err != nil {
		return nil, errors.Wrapf(err, "animation %s", info.Key)
	}
	if a.Events, err = lotrcTypes.UnpackSlice[Event](raw, int(info.Obj3Offset), int(info.Obj3Num), order); err != nil {
		return nil, errors.Wrapf(err, "animation %s", info.Key)
	}
	if a.Keys, err = lotrcTypes.UnpackSlice[Crc](raw, int(info.KeysOffset), int(info.KeysNum+info.Obj1Num), order); err != nil {
		return nil, errors.Wrapf(err, "animation %s", info.Key)
	}
	if info.Obj5Offset != 0 {
		h, err := lotrcTypes.Unpack[Obj5Header](raw, int(info.Obj5Offset), order)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s", info.Key)
		}
		a.Obj5 = &h
		if a.Obj5A, err = lotrcTypes.UnpackSlice[uint32](raw, int(h.AOffset), int(h.ANum)*7, order); err != nil {
			return nil, errors.Wrapf(err, "animation %s", info.Key)
		}
		if a.Obj5B, err = lotrcTypes.UnpackSlice[uint32](raw, int(h.BOffset), int(h.BNum)*7, order); err != nil {
			return nil, errors.Wrapf(err, "animation %s", info.Key)
		}
	}

	switch {
	case info.Kind == SplineKind:
		a.Spline, err = DecodeSpline(raw, &a.Info, order)
		if lotrcTypes.IsUnsupported(err) {
			log.Printf("animation %s: %v, keeping its tracks as raw data", info.Key, err)
			a.Spline, err = nil, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s", info.Key)
		}
	case info.Kind < SplineKind:
		log.Printf("animation %s: tracks of kind %d are kept as raw data", info.Key, info.Kind)
	default:
		log.Printf("animation %s: %v, keeping its tracks as raw data", info.Key, lotrcTypes.Unsupported("animation", info.Kind))
	}
	return a, nil
}

// Encode returns the animation's data, exactly Info.Size bytes.
func (a *Animation) Encode(order binary.ByteOrder) ([]byte, error) {
	size := int(a.Info.Size)
	out := make([]byte, size)
	if a.Raw != nil {
		if len(a.Raw) != size {
			return nil, lotrcTypes.Mismatch("animation "+a.Info.Key.String(), len(a.Raw), size)
		}
		copy(out, a.Raw)
	}

	what := "animation " + a.Info.Key.String()
	parts := []part{
		{a.Info.Obj1Offset, a.Obj1},
		{a.Info.Obj2Offset, a.Obj2},
		{a.Info.Obj3Offset, a.Events},
		{a.Info.KeysOffset, a.Keys},
	}
	if a.Obj5 != nil {
		parts = append(parts, part{a.Info.Obj5Offset, *a.Obj5}, part{a.Obj5.AOffset, a.Obj5A}, part{a.Obj5.BOffset, a.Obj5B})
	}
	for _, p := range parts {
		if err := packAt(out, int(p.off), order, what, p.v); err != nil {
			return nil, err
		}
	}

	if a.Spline != nil {
		if err := a.Spline.encode(out, &a.Info, order); err != nil {
			return nil, errors.Wrapf(err, "animation %s", a.Info.Key)
		}
	}
	return out, nil
}

type part struct {
	off uint32
	v   interface{}
}

// packAt writes v at off; anything past the end of b is a size mismatch.
func packAt(b []byte, off int, order binary.ByteOrder, what string, v interface{}) error {
	p := lotrcTypes.Pack(order, v)
	if off < 0 || off+len(p) > len(b) {
		return lotrcTypes.Mismatch(what, off+len(p), len(b))
	}
	copy(b[off:], p)
	return nil
}
