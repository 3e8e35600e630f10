package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TableEntry is the external form of one assigned field, consumed by the
// ABI generator and by tooling that computes addresses offline.
type TableEntry struct {
	Path   string `cbor:"1,keyasint"`
	Key    string `cbor:"2,keyasint"` // 0x-prefixed 64 hex digits
	Offset uint8  `cbor:"3,keyasint"`
	Words  int    `cbor:"4,keyasint"`
	Type   string `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Table returns the layout as a path-sorted entry list.
func (l *Layout) Table() []TableEntry {
	entries := l.Entries()
	out := make([]TableEntry, len(entries))
	for i, e := range entries {
		out[i] = TableEntry{
			Path:   e.Path.String(),
			Key:    e.Slot.Key.Hex(),
			Offset: e.Slot.Offset,
			Words:  e.Words,
			Type:   e.Type.String(),
		}
	}
	return out
}

// MarshalTable serializes the slot table to canonical CBOR.
func (l *Layout) MarshalTable() ([]byte, error) {
	return cborEncMode.Marshal(l.Table())
}

// UnmarshalTable deserializes a slot table.
func UnmarshalTable(data []byte) ([]TableEntry, error) {
	var t []TableEntry
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("storage: unmarshal table: %w", err)
	}
	return t, nil
}
