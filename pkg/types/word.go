package types

import (
	"encoding/binary"
	"encoding/hex"
)

// Word is one 256-bit VM word, big-endian. Registers, storage keys, and
// storage cells are all Words.
type Word [WordSize]byte

// WordFromUint64 returns the word holding v.
func WordFromUint64(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[WordSize-8:], v)
	return w
}

// Uint64 returns the low 64 bits of w.
func (w Word) Uint64() uint64 {
	return binary.BigEndian.Uint64(w[WordSize-8:])
}

// FitsUint64 reports whether w has no bits set above the low 64.
func (w Word) FitsUint64() bool {
	for _, b := range w[:WordSize-8] {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsZero reports whether every byte of w is zero.
func (w Word) IsZero() bool {
	return w == Word{}
}

// Succ returns w+1, wrapping at 2^256. Multi-word storage fields occupy
// consecutive keys produced by this rule.
func (w Word) Succ() Word {
	for i := WordSize - 1; i >= 0; i-- {
		w[i]++
		if w[i] != 0 {
			break
		}
	}
	return w
}

// Hex returns the full 64-digit hex spelling of w.
func (w Word) Hex() string {
	return "0x" + hex.EncodeToString(w[:])
}

func (w Word) String() string {
	if w.FitsUint64() {
		return "0x" + hex.EncodeToString(w[WordSize-8:])
	}
	return w.Hex()
}
