package hexutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xff, 0x00, 0x10, 0xab},
		[]byte("hello world"),
	}
	for _, b := range inputs {
		enc, err := EncodeUpper(b)
		require.NoError(t, err)

		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, b, dec)
	}
}

func TestDecodeUppercasesViaRoundTrip(t *testing.T) {
	dec, err := Decode("deadBEEF")
	require.NoError(t, err)

	enc, err := EncodeUpper(dec)
	require.NoError(t, err)
	require.Equal(t, strings.ToUpper("deadbeef"), enc)
}

func TestEncodeNilArgument(t *testing.T) {
	_, err := EncodeUpper(nil)
	require.ErrorIs(t, err, ErrNullArgument)
}

func TestDecodeOddLength(t *testing.T) {
	_, err := Decode("abc")
	require.EqualError(t, err, "The given string has an odd length. Hex strings must be of even length.")
}

func TestDecodeInvalidDigit(t *testing.T) {
	_, err := Decode("zz")
	require.EqualError(t, err, "The character 'z' is not a valid hexadecimal digit. Allowed characters: 0-9, a-f, A-F.")
}
