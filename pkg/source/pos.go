// Package source carries source positions through the middle end.
// Positions originate in the front end and survive every transformation
// so that emitted bytecode can be mapped back to source spans.
package source

import "fmt"

// Pos is a source position. The zero Pos means "no position".
type Pos struct {
	Line   uint32 `cbor:"1,keyasint"`
	Column uint16 `cbor:"2,keyasint"`
}

// IsValid reports whether p refers to an actual source location.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open source range.
type Span struct {
	Start Pos `cbor:"1,keyasint"`
	End   Pos `cbor:"2,keyasint"`
}

func (s Span) String() string {
	if !s.Start.IsValid() {
		return "-"
	}
	return s.Start.String() + ".." + s.End.String()
}
