// Package hexutil encodes and decodes the hexadecimal strings ISOD uses as
// filesystem-safe directory names for task signatures.
package hexutil

import (
	"fmt"
	"strings"
)

const upperDigits = "0123456789ABCDEF"

// ErrNullArgument is returned when EncodeUpper is called with a nil byte
// slice.
var ErrNullArgument = fmt.Errorf("argument is null")

// EncodeUpper renders b as an upper-case hexadecimal string, two characters
// per byte. It is the canonical signature encoding used throughout the
// engine.
func EncodeUpper(b []byte) (string, error) {
	if b == nil {
		return "", ErrNullArgument
	}
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteByte(upperDigits[c>>4])
		sb.WriteByte(upperDigits[c&0x0f])
	}
	return sb.String(), nil
}

// Decode parses a hexadecimal string back into bytes. It accepts both
// upper- and lower-case digits.
//
// Errors use the exact wording the engine's callers surface to users:
//   - odd-length input: "The given string has an odd length. Hex strings
//     must be of even length."
//   - a non-hex character: "The character '<c>' is not a valid hexadecimal
//     digit. Allowed characters: 0-9, a-f, A-F."
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("The given string has an odd length. Hex strings must be of even length.")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := digitValue(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := digitValue(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func digitValue(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("The character '%c' is not a valid hexadecimal digit. Allowed characters: 0-9, a-f, A-F.", c)
	}
}
