package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Selector is a 4-byte method id.
type Selector [4]byte

// ParseSelector parses "0x4bb278f3" style method ids.
func ParseSelector(text string) (Selector, error) {
	var sel Selector
	raw, err := hexutil.Decode(strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return sel, fmt.Errorf("parse selector %q: %w", text, err)
	}
	if len(raw) != len(sel) {
		return sel, fmt.Errorf("parse selector %q: want 4 bytes, got %d", text, len(raw))
	}
	copy(sel[:], raw)
	return sel, nil
}

func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// SelectorSet is a small ordered set of selectors.
type SelectorSet []Selector

// Contains reports whether sel is in the set.
func (s SelectorSet) Contains(sel Selector) bool {
	for _, item := range s {
		if item == sel {
			return true
		}
	}
	return false
}
