// Package types defines the resolved type model handed to the middle end
// by the front end. Every type reaching this package is fully resolved and
// monomorphized; there are no type variables, no generics, and no inference.
package types

import (
	"fmt"
	"strings"
)

// WordSize is the width in bytes of a VM register and of one storage word.
const WordSize = 32

// Type is the interface implemented by all Covenant types.
type Type interface {
	// Size returns the byte size of a value of this type. For basic
	// types this is the value width; for aggregates it is the
	// word-granular in-memory footprint.
	Size() int

	// Words returns the number of 32-byte VM words a value occupies.
	Words() int

	// String returns the source-level spelling of the type.
	String() string
}

// BasicKind identifies a basic (single-word) type.
type BasicKind int

const (
	Invalid BasicKind = iota
	Bool
	U8
	U64
	U128
	U256
	Address
)

var basicNames = [...]string{
	Invalid: "invalid",
	Bool:    "bool",
	U8:      "u8",
	U64:     "u64",
	U128:    "u128",
	U256:    "u256",
	Address: "address",
}

var basicSizes = [...]int{
	Invalid: 0,
	Bool:    1,
	U8:      1,
	U64:     8,
	U128:    16,
	U256:    32,
	Address: 20,
}

// Basic is a scalar type occupying at most one VM word.
type Basic struct {
	kind BasicKind
}

var basicTypes [len(basicNames)]*Basic

func init() {
	for k := range basicTypes {
		basicTypes[k] = &Basic{kind: BasicKind(k)}
	}
}

// MakeBasic returns the canonical Basic for the given kind.
func MakeBasic(kind BasicKind) *Basic {
	return basicTypes[kind]
}

// Kind returns the basic kind.
func (b *Basic) Kind() BasicKind { return b.kind }

func (b *Basic) Size() int      { return basicSizes[b.kind] }
func (b *Basic) Words() int     { return 1 }
func (b *Basic) String() string { return basicNames[b.kind] }

// Field is a named struct field.
type Field struct {
	Name string
	Type Type
}

// Struct is an ordered collection of named fields. Layout is flat: fields
// occupy consecutive byte ranges in declaration order, no padding.
type Struct struct {
	Name   string
	Fields []Field
}

func (s *Struct) Size() int {
	n := 0
	for _, f := range s.Fields {
		n += Footprint(f.Type)
	}
	return n
}

func (s *Struct) Words() int {
	n := 0
	for _, f := range s.Fields {
		n += f.Type.Words()
	}
	return n
}

func (s *Struct) String() string {
	if s.Name != "" {
		return s.Name
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "struct { " + strings.Join(parts, ", ") + " }"
}

// FieldOffset returns the in-memory byte offset of field i. Memory
// layout is word-granular: every scalar leaf occupies one full word, so
// offsets are always multiples of WordSize.
func (s *Struct) FieldOffset(i int) int {
	off := 0
	for j := 0; j < i; j++ {
		off += Footprint(s.Fields[j].Type)
	}
	return off
}

// FieldIndex returns the index of the named field, or -1.
func (s *Struct) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Variant is one arm of an enum.
type Variant struct {
	Name    string
	Payload []Type // empty for unit variants
}

// Enum is a tagged union. The flat layout is one tag word followed by the
// payload of the widest variant.
type Enum struct {
	Name     string
	Variants []Variant
}

// PayloadSize returns the in-memory byte footprint of the widest variant
// payload. Like all memory layout it is word-granular.
func (e *Enum) PayloadSize() int {
	max := 0
	for _, v := range e.Variants {
		n := 0
		for _, t := range v.Payload {
			n += Footprint(t)
		}
		if n > max {
			max = n
		}
	}
	return max
}

func (e *Enum) Size() int  { return WordSize + e.PayloadSize() }
func (e *Enum) Words() int { return 1 + e.PayloadSize()/WordSize }

func (e *Enum) String() string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("enum(%d variants)", len(e.Variants))
}

// VariantIndex returns the tag value of the named variant, or -1.
func (e *Enum) VariantIndex(name string) int {
	for i, v := range e.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// Tuple is an unnamed ordered aggregate.
type Tuple struct {
	Elems []Type
}

func (t *Tuple) Size() int {
	n := 0
	for _, e := range t.Elems {
		n += Footprint(e)
	}
	return n
}

func (t *Tuple) Words() int {
	n := 0
	for _, e := range t.Elems {
		n += e.Words()
	}
	return n
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ElemOffset returns the in-memory byte offset of element i.
func (t *Tuple) ElemOffset(i int) int {
	off := 0
	for j := 0; j < i; j++ {
		off += Footprint(t.Elems[j])
	}
	return off
}

// Array is a fixed-length homogeneous aggregate.
type Array struct {
	Elem Type
	Len  int
}

func (a *Array) Size() int      { return Footprint(a.Elem) * a.Len }
func (a *Array) Words() int     { return a.Elem.Words() * a.Len }
func (a *Array) String() string { return fmt.Sprintf("[%s; %d]", a.Elem, a.Len) }

// Map is a persistent-storage key/value collection. Maps exist only in
// contract state; they have no in-memory flat layout and no meaningful
// Size. Elements are addressed by hashing, never by offset.
type Map struct {
	Key   Type
	Value Type
}

func (m *Map) Size() int      { return 0 }
func (m *Map) Words() int     { return 0 }
func (m *Map) String() string { return fmt.Sprintf("map<%s, %s>", m.Key, m.Value) }

// Sequence is a growable persistent-storage list. Like Map it exists only
// in contract state: a length word at the base slot, elements by hashing.
type Sequence struct {
	Elem Type
}

func (s *Sequence) Size() int      { return 0 }
func (s *Sequence) Words() int     { return 0 }
func (s *Sequence) String() string { return fmt.Sprintf("seq<%s>", s.Elem) }

// Pointer is an internal middle-end type: the address of a memory-backed
// local. It never appears in source programs or in contract state.
type Pointer struct {
	Elem Type
}

func (p *Pointer) Size() int      { return WordSize }
func (p *Pointer) Words() int     { return 1 }
func (p *Pointer) String() string { return "*" + p.Elem.String() }

// Footprint returns the in-memory byte footprint of t. Layout is
// word-granular: a scalar leaf occupies one full word regardless of its
// value width, so every field pointer lands on a word boundary.
func Footprint(t Type) int { return t.Words() * WordSize }

// IsAggregate reports whether t is a memory-backed aggregate (struct,
// enum, tuple, or fixed array).
func IsAggregate(t Type) bool {
	switch t.(type) {
	case *Struct, *Enum, *Tuple, *Array:
		return true
	}
	return false
}

// IsStorageOnly reports whether t can live only in contract state.
func IsStorageOnly(t Type) bool {
	switch t.(type) {
	case *Map, *Sequence:
		return true
	}
	return false
}

// IsScalar reports whether t fits in a single register.
func IsScalar(t Type) bool {
	switch t.(type) {
	case *Basic, *Pointer:
		return true
	}
	return false
}

// Identical reports structural type equality.
func Identical(a, b Type) bool {
	switch x := a.(type) {
	case *Basic:
		y, ok := b.(*Basic)
		return ok && x.kind == y.kind
	case *Pointer:
		y, ok := b.(*Pointer)
		return ok && Identical(x.Elem, y.Elem)
	case *Array:
		y, ok := b.(*Array)
		return ok && x.Len == y.Len && Identical(x.Elem, y.Elem)
	case *Tuple:
		y, ok := b.(*Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Identical(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Struct:
		y, ok := b.(*Struct)
		if !ok || x.Name != y.Name || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Identical(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		return true
	case *Enum:
		y, ok := b.(*Enum)
		if !ok || x.Name != y.Name || len(x.Variants) != len(y.Variants) {
			return false
		}
		for i := range x.Variants {
			if x.Variants[i].Name != y.Variants[i].Name || len(x.Variants[i].Payload) != len(y.Variants[i].Payload) {
				return false
			}
			for j := range x.Variants[i].Payload {
				if !Identical(x.Variants[i].Payload[j], y.Variants[i].Payload[j]) {
					return false
				}
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		return ok && Identical(x.Key, y.Key) && Identical(x.Value, y.Value)
	case *Sequence:
		y, ok := b.(*Sequence)
		return ok && Identical(x.Elem, y.Elem)
	}
	return false
}
