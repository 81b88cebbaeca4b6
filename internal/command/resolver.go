// Package command – destination resolver.
//
// This file resolves a message against the registered secret codes. Codes
// are matched as string prefixes of the message; when several codes prefix
// the same text the longest one wins, so "#site12" beats "#site1" even when
// the shorter code was registered first.
package command

import "strings"

// Resolution is the outcome of matching a message against the code map.
type Resolution struct {
	// Destination is the upload target mapped to the matched code.
	Destination string
	// Remainder is the message text with the code prefix stripped and
	// leading whitespace trimmed. Empty when the message was only a code.
	Remainder string
}

// Resolve finds the longest registered code that prefixes text.
//
// Equal-length candidates tie-break on the lexicographically smallest code
// so the result is deterministic under Go's randomized map iteration; true
// ties only arise from questionable configurations anyway. The second
// return value is false when no code prefixes text.
func Resolve(codes map[string]string, text string) (Resolution, bool) {
	var (
		bestCode string
		found    bool
	)
	for code := range codes {
		if code == "" || !strings.HasPrefix(text, code) {
			continue
		}
		switch {
		case !found:
			bestCode, found = code, true
		case len(code) > len(bestCode):
			bestCode = code
		case len(code) == len(bestCode) && code < bestCode:
			bestCode = code
		}
	}
	if !found {
		return Resolution{}, false
	}
	return Resolution{
		Destination: codes[bestCode],
		Remainder:   strings.TrimLeft(text[len(bestCode):], " \t"),
	}, true
}
