package manifests

import (
	"testing"

	"github.com/goopsie/lotrcLevelTools/lotrcTypes"
)

func TestRoundTrip(t *testing.T) {
	m := New(2)
	m.Add("pak_header.json", []byte("{}"))
	m.Add("sub_blocks1/Level.json", []byte(`{"Types": []}`))
	m.Add("pak_header.json", []byte(`{"Version": 2}`))
	if m.Len() != 2 {
		t.Fatalf("%d entries", m.Len())
	}
	b, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if back.Header.Version != 2 || back.Len() != 2 {
		t.Errorf("header %+v", back.Header)
	}
	if back.Changed("pak_header.json", []byte(`{"Version": 2}`)) {
		t.Errorf("unchanged file reported as changed")
	}
	if !back.Changed("pak_header.json", []byte("{}")) {
		t.Errorf("replaced entry not kept")
	}
	if !back.Changed("sub_blocks1/Level.json", []byte(`{"Types": [1]}`)) || !back.Changed("new.json", nil) {
		t.Errorf("edits not detected")
	}
}

func TestUnmarshalErrors(t *testing.T) {
	b, err := New(1).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte{}, b...)
	bad[0] = 'X'
	if _, err := Unmarshal(bad); !lotrcTypes.IsFormatError(err) {
		t.Errorf("bad magic: err = %v", err)
	}
	if _, err := Unmarshal(b[:len(b)-1]); !lotrcTypes.IsSizeMismatch(err) {
		t.Errorf("truncated: err = %v", err)
	}
	if _, err := Unmarshal(b[:8]); !lotrcTypes.IsFormatError(err) {
		t.Errorf("short header: err = %v", err)
	}
}
