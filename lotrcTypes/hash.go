package lotrcTypes

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Crc is a 32 bit key produced by HashString. Names, types and asset references
// throughout both files are stored as Crc values.
type Crc uint32

var hashTable [256]uint32

func init() {
	for i := range hashTable {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = (c << 1) ^ 0x04c11db7
			} else {
				c <<= 1
			}
		}
		hashTable[i] = c
	}
}

func foldByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// HashMask hashes b with a seed mask, used for keys derived from another key
// (e.g. the mip chain blob of a texture is HashMask("*", assetKey)).
func HashMask(b []byte, mask uint32) Crc {
	h := ^mask
	for _, c := range b {
		h = (h << 8) ^ hashTable[uint32(foldByte(c))^(h>>24)]
	}
	return Crc(^h)
}

// Hash is case insensitive over ASCII letters.
func Hash(s string) Crc {
	return HashMask([]byte(s), 0)
}

func (c Crc) Key() uint32 { return uint32(c) }

func (c Crc) String() string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// ParseCrc accepts either the hex form produced by String or a plain name, which is hashed.
func ParseCrc(s string) (Crc, error) {
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, FormatErrorf("bad crc %q", s)
		}
		return Crc(v), nil
	}
	return Hash(s), nil
}

// StringTable maps keys back to the names they were hashed from. One table belongs
// to one container session.
type StringTable struct {
	mu    sync.RWMutex
	names map[Crc]string
}

func NewStringTable(names ...string) *StringTable {
	t := &StringTable{names: make(map[Crc]string, len(names))}
	t.Add(names...)
	return t
}

func (t *StringTable) Add(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		if n == "" {
			continue
		}
		t.names[Hash(n)] = n
	}
}

func (t *StringTable) Lookup(c Crc) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.names[c]
	return n, ok
}

// Name returns the known name of c or its hex form.
func (t *StringTable) Name(c Crc) string {
	if n, ok := t.Lookup(c); ok {
		return n
	}
	return c.String()
}

func (t *StringTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
