package levelContainer

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/goopsie/lotrcLevelTools/gameObjs"
	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
	"github.com/goopsie/lotrcLevelTools/manifests"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// sink receives the files of an extracted level.
type sink interface {
	put(name string, data []byte) error
}

// recordSink notes every file it passes on in a manifest.
type recordSink struct {
	sink
	m *manifests.Manifest
}

func (r recordSink) put(name string, data []byte) error {
	r.m.Add(name, data)
	return r.sink.put(name, data)
}

type dirSink string

func (d dirSink) put(name string, data []byte) error {
	path := filepath.Join(string(d), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0777), "failed to write %s", path)
}

type zipSink struct {
	w *zip.Writer
}

func (z zipSink) put(name string, data []byte) error {
	f, err := z.w.Create(name)
	if err != nil {
		return errors.Wrapf(err, "failed to add %s", name)
	}
	_, err = f.Write(data)
	return err
}

// Extract writes the editable parts of the level under dir: headers and strings, game
// objects and language strings as JSON, raw sub-blocks, meshes and animations as JSON,
// and textures as PNG. A manifest of the tree lets Import skip the files left untouched.
func (l *Level) Extract(dir string) error {
	return l.extract(dirSink(dir))
}

// ExtractZip writes the same tree as Extract into a zip archive.
func (l *Level) ExtractZip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	z := zip.NewWriter(f)
	if err := l.extract(zipSink{z}); err != nil {
		return err
	}
	return z.Close()
}

// fileName turns a key into something usable as a file name.
func (l *Level) fileName(k Crc) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(l.Names().Name(k))
}

func putJSON(s sink, name string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", name)
	}
	return s.put(name, b)
}

// putDecoded is putJSON for decoded records, which may hold values JSON cannot carry
// (NaN floats). Those are logged and skipped.
func (l *Level) putDecoded(s sink, name string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("%s: %v, not exporting it", name, err)
		return nil
	}
	return s.put(name, b)
}

func (l *Level) extract(out sink) error {
	m := manifests.New(lotrcTypes.Version(l.Order))
	if err := l.extractTree(recordSink{out, m}); err != nil {
		return err
	}
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	l.verbosef("extracted %d files", m.Len())
	return out.put(manifests.Name, data)
}

func (l *Level) extractTree(s sink) error {
	for _, f := range []struct {
		name string
		v    interface{}
	}{
		{"pak_header.json", l.PakHeader},
		{"bin_header.json", l.BinHeader},
		{"pak_strings.json", l.PakStrings},
		{"bin_strings.json", l.BinStrings},
		{"obja.json", l.ObjAs},
		{"obj0.json", l.Obj0s},
		{"pfields.json", l.PFields},
		{"vals_a.json", l.ValsA},
	} {
		if err := putJSON(s, f.name, f.v); err != nil {
			return err
		}
	}

	var keys []string
	for _, k := range l.StringKeys.Keys() {
		keys = append(keys, l.Names().Name(k))
	}
	if err := putJSON(s, "string_keys.json", keys); err != nil {
		return err
	}

	if err := l.extractSubBlocks(s, "sub_blocks1", l.SubBlocks1); err != nil {
		return err
	}
	if err := l.extractSubBlocks(s, "sub_blocks2", l.SubBlocks2); err != nil {
		return err
	}

	for _, k := range sortedKeys(l.Meshes) {
		if err := l.putDecoded(s, "meshes/"+l.fileName(k)+".json", l.Meshes[k]); err != nil {
			return err
		}
	}
	for _, a := range l.Animations {
		if err := l.putDecoded(s, "animations/"+l.fileName(a.Key())+".json", a); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(l.Effects) {
		if err := l.putDecoded(s, "effects/"+l.fileName(k)+".json", l.Effects[k]); err != nil {
			return err
		}
	}

	for _, k := range sortedKeys(l.Textures) {
		t := l.Textures[k]
		if err := putJSON(s, "textures/"+l.fileName(k)+".json", t.Info); err != nil {
			return err
		}
		img, err := t.Image()
		if err != nil {
			log.Printf("texture %s: %v, not exporting it", l.Names().Name(k), err)
			continue
		}
		var b bytes.Buffer
		if err := imgio.PNGEncoder()(&b, img); err != nil {
			return errors.Wrapf(err, "failed to encode texture %s", l.Names().Name(k))
		}
		if err := s.put("textures/"+l.fileName(k)+".png", b.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (l *Level) extractSubBlocks(s sink, dir string, sb *gameObjs.SubBlocks) error {
	for i, h := range sb.Headers {
		name := dir + "/" + l.fileName(h.Key)
		var err error
		switch b := sb.Blocks[i].(type) {
		case *gameObjs.GameObjs:
			err = putJSON(s, name+".json", b)
		case *gameObjs.LangStrings:
			var data []byte
			if data, err = b.MarshalKeyed(l.StringKeys, l.Names()); err == nil {
				err = s.put(name+".json", data)
			}
		case *gameObjs.Lua:
			err = s.put(name, b.Data)
		case *gameObjs.Data:
			err = s.put(name, b.Data)
		default:
			err = putJSON(s, name+".json", b)
		}
		if err != nil {
			return errors.Wrapf(err, "sub-block %s", l.Names().Name(h.Key))
		}
	}
	return nil
}

// readManifest loads the manifest of an extracted tree, nil if it has none.
func readManifest(dir string) (*manifests.Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifests.Name))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	m, err := manifests.Unmarshal(b)
	return m, errors.Wrapf(err, "manifest of %s", dir)
}

// Import replaces the game objects and language strings of the level with the
// JSON files found in a tree written by Extract. Missing files are skipped, as are
// files the tree's manifest shows unchanged.
func (l *Level) Import(dir string) error {
	m, err := readManifest(dir)
	if err != nil {
		return err
	}
	for i, h := range l.SubBlocks1.Headers {
		name := "sub_blocks1/" + l.fileName(h.Key) + ".json"
		path := filepath.Join(dir, filepath.FromSlash(name))
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return err
		}
		if m != nil && !m.Changed(name, data) {
			l.verbosef("%s is unchanged", name)
			continue
		}
		switch b := l.SubBlocks1.Blocks[i].(type) {
		case *gameObjs.GameObjs:
			if err := l.ReplaceObjects(data); err != nil {
				return errors.Wrapf(err, "failed to import %s", path)
			}
		case *gameObjs.LangStrings:
			if err := b.UnmarshalKeyed(data); err != nil {
				return errors.Wrapf(err, "failed to import %s", path)
			}
		}
		l.verbosef("imported %s", path)
	}
	return nil
}

// ReplaceObjects swaps the level's game objects for the ones in a JSON document in
// the form GameObjs.MarshalJSON writes.
func (l *Level) ReplaceObjects(data []byte) error {
	g := &gameObjs.GameObjs{Names: l.Names()}
	if err := g.UnmarshalJSON(data); err != nil {
		return err
	}
	if !l.SubBlocks1.Replace(gameObjs.LevelKey, g) {
		return lotrcTypes.FormatErrorf("level has no game object block")
	}
	return nil
}
