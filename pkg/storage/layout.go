// Package storage assigns persistent-state fields to fixed 256-bit
// storage keys. The mapping is a pure function of the declared field
// paths: a one-way hash over a canonical, versioned encoding, so the
// same declarations produce the same layout on every machine, and adding
// a field never moves an existing one.
package storage

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// LayoutVersion prefixes every hashed encoding. Bumping it changes every
// derived key, so it is frozen; the tag bytes below are frozen with it.
const LayoutVersion byte = 1

// Tag bytes for the canonical encoding. Once assigned, a tag must never
// change meaning; new tags may be appended.
const (
	tagFieldPath byte = 0x01
	tagElement   byte = 0x02
)

// FieldPath identifies a declared state field: the chain of enclosing
// namespaces plus the field name.
type FieldPath struct {
	Namespace []string
	Name      string
}

func (p FieldPath) String() string {
	if len(p.Namespace) == 0 {
		return p.Name
	}
	return strings.Join(p.Namespace, ".") + "." + p.Name
}

// Slot is a storage coordinate: a 256-bit key plus a byte offset within
// that key's 32-byte word.
type Slot struct {
	Key    types.Word
	Offset uint8
}

func (s Slot) String() string {
	if s.Offset == 0 {
		return s.Key.Hex()
	}
	return fmt.Sprintf("%s+%d", s.Key.Hex(), s.Offset)
}

// FieldSpec is one declared field handed in by the front end.
type FieldSpec struct {
	Path FieldPath
	Type types.Type

	// Override, when non-nil, pins the field to an exact key instead of
	// the derived one.
	Override *types.Word

	Pos source.Pos
}

// Entry is one assigned field in the final layout.
type Entry struct {
	Path  FieldPath
	Type  types.Type
	Slot  Slot
	Words int // consecutive keys occupied, starting at Slot.Key
}

// Layout is the completed, immutable field → slot mapping.
type Layout struct {
	entries []Entry
	byPath  map[string]int
}

// Lookup returns the entry for a field path.
func (l *Layout) Lookup(path FieldPath) (Entry, bool) {
	i, ok := l.byPath[path.String()]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Entries returns all assigned fields sorted by path.
func (l *Layout) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

// BaseKey derives the default storage key for a field path:
// Keccak-256 of the canonical encoding of the namespace chain and name.
func BaseKey(path FieldPath) types.Word {
	var enc encoder
	enc.writeByte(LayoutVersion)
	enc.writeByte(tagFieldPath)
	enc.writeUint32(uint32(len(path.Namespace)))
	for _, ns := range path.Namespace {
		enc.writeString(ns)
	}
	enc.writeString(path.Name)
	return keccak(enc.buf)
}

// ElementKey derives the key of one element of a collection-backed field:
// Keccak-256 over the base key and the element's own key word. Insertion
// order never affects existing elements' addresses. The VM's slot-hash
// instruction computes exactly this derivation at run time.
func ElementKey(base, elem types.Word) types.Word {
	buf := make([]byte, 0, 2+2*types.WordSize)
	buf = append(buf, LayoutVersion, tagElement)
	buf = append(buf, base[:]...)
	buf = append(buf, elem[:]...)
	return keccak(buf)
}

func keccak(data []byte) types.Word {
	var w types.Word
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	copy(w[:], h.Sum(nil))
	return w
}

// fieldWords returns the number of consecutive storage keys a field of
// type t occupies at its base key. Collection-backed fields hold only
// their control word (e.g. a sequence length) at the base.
func fieldWords(t types.Type) int {
	if types.IsStorageOnly(t) {
		return 1
	}
	if n := t.Words(); n > 0 {
		return n
	}
	return 1
}

// Assign produces the total, injective field → slot mapping. Two
// distinct fields resolving to the same (key, offset) — whether by
// conflicting explicit overrides or a hash collision — is a build error,
// reported against both declarations, never silently accepted.
func Assign(fields []FieldSpec) (*Layout, error) {
	l := &Layout{
		entries: make([]Entry, 0, len(fields)),
		byPath:  make(map[string]int, len(fields)),
	}

	type claim struct {
		path FieldPath
		pos  source.Pos
	}
	claimed := make(map[Slot]claim)
	var errs []string

	for _, f := range fields {
		ps := f.Path.String()
		if _, dup := l.byPath[ps]; dup {
			errs = append(errs, fmt.Sprintf("%s: state field %s declared twice", f.Pos, ps))
			continue
		}

		key := BaseKey(f.Path)
		if f.Override != nil {
			key = *f.Override
		}
		words := fieldWords(f.Type)

		k := key
		for w := 0; w < words; w++ {
			s := Slot{Key: k}
			if prev, taken := claimed[s]; taken {
				errs = append(errs, fmt.Sprintf(
					"%s: state fields %s and %s collide at storage key %s",
					f.Pos, prev.path, ps, k.Hex()))
			} else {
				claimed[s] = claim{path: f.Path, pos: f.Pos}
			}
			k = k.Succ()
		}

		l.byPath[ps] = len(l.entries)
		l.entries = append(l.entries, Entry{
			Path:  f.Path,
			Type:  f.Type,
			Slot:  Slot{Key: key},
			Words: words,
		})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("storage layout: %s", strings.Join(errs, "; "))
	}
	return l, nil
}

// ParseOverride parses a user-pinned key: 64 hex digits with an optional
// 0x prefix.
func ParseOverride(s string) (types.Word, error) {
	var w types.Word
	t := strings.TrimPrefix(s, "0x")
	if len(t) != 2*types.WordSize {
		return w, fmt.Errorf("storage override %q: want %d hex digits", s, 2*types.WordSize)
	}
	b, err := hex.DecodeString(t)
	if err != nil {
		return w, fmt.Errorf("storage override %q: %w", s, err)
	}
	copy(w[:], b)
	return w, nil
}

// encoder builds the canonical byte encoding fed to the hash. Big-endian
// fixed-width integers, length-prefixed strings; same discipline as the
// bytecode container so the two formats never diverge in spirit.
type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *encoder) writeString(s string) {
	e.writeUint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}
