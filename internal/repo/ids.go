package repo

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Fleurer/meme/internal/merrors"
)

// idByteLength is the decoded length required of every credit, debit, and
// order identifier: a 32-byte digest, hex-encoded with a 0x prefix.
const idByteLength = 32

// ValidateID checks the syntactic shape of a credit/debit/order id: a
// lowercase "0x"-prefixed hex string decoding to exactly idByteLength
// bytes. This is the implementation's chosen answer to validate_id, left
// unspecified by the matching rules themselves — any deterministic check
// satisfies them, and this one reuses the digest format the rest of the
// stack already speaks.
func ValidateID(id string) error {
	if id != strings.ToLower(id) {
		return &merrors.ValidationError{Field: "id", Reason: "must be lowercase"}
	}
	b, err := hexutil.Decode(id)
	if err != nil {
		return &merrors.ValidationError{Field: "id", Reason: fmt.Sprintf("must be 0x-prefixed hex: %v", err)}
	}
	if len(b) != idByteLength {
		return &merrors.ValidationError{Field: "id", Reason: fmt.Sprintf("must decode to %d bytes, got %d", idByteLength, len(b))}
	}
	return nil
}
