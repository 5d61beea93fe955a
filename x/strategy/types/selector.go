package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SelectorLen is the byte length of a function selector
const SelectorLen = 4

// Function signatures gated by the capability registry
const (
	SigAllocate   = "allocate(string,uint256)"
	SigDeallocate = "deallocate(string,uint256)"
)

// Selector is the first four bytes of the Keccak-256 hash of a function signature
type Selector [SelectorLen]byte

var (
	SelectorAllocate   = SelectorOf(SigAllocate)
	SelectorDeallocate = SelectorOf(SigDeallocate)
)

// SelectorOf hashes a canonical signature such as "transfer(address,uint256)"
func SelectorOf(signature string) Selector {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var s Selector
	copy(s[:], h.Sum(nil))
	return s
}

// String renders the selector as 0x-prefixed hex
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// ParseSelector accepts a 0x-prefixed 8 digit hex selector or a function
// signature containing parentheses
func ParseSelector(raw string) (Selector, error) {
	if strings.Contains(raw, "(") {
		return SelectorOf(raw), nil
	}
	bz, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil || len(bz) != SelectorLen {
		return Selector{}, fmt.Errorf("invalid selector %q", raw)
	}
	var s Selector
	copy(s[:], bz)
	return s, nil
}

// DecodeSelector reads the selector from the head of a call payload
func DecodeSelector(payload []byte) (Selector, error) {
	if len(payload) < SelectorLen {
		return Selector{}, ErrInvalidPayload.Wrapf("payload is %d bytes, need at least %d", len(payload), SelectorLen)
	}
	var s Selector
	copy(s[:], payload[:SelectorLen])
	return s, nil
}
