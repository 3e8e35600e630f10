package decl

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so a tree serializes to the same
// bytes on every machine and run.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("decl: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalContract serializes a declaration tree to canonical CBOR.
func MarshalContract(c *Contract) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalContract deserializes a declaration tree from CBOR bytes.
func UnmarshalContract(data []byte) (*Contract, error) {
	var c Contract
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decl: unmarshal contract: %w", err)
	}
	return &c, nil
}
