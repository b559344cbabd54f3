// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package addresses

import (
	"strings"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
)

func TestAddressText(t *testing.T) {
	r := require.New(t)

	a := codec.CreateAddress(0, ids.ID{1, 2, 3})
	s := Format(a)
	r.True(strings.HasPrefix(s, "0x"))
	r.Len(s, 2+2*codec.AddressLen)

	parsed, err := Parse(s)
	r.NoError(err)
	r.Equal(a, parsed)

	parsed, err = Parse(strings.TrimPrefix(s, "0x"))
	r.NoError(err)
	r.Equal(a, parsed)

	all, err := ParseAll(FormatAll([]codec.Address{a, {9}}))
	r.NoError(err)
	r.Equal([]codec.Address{a, {9}}, all)
}

func TestAddressTextErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not hex", input: "0xzz"},
		{name: "too short", input: "0x0102"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.ErrorIs(t, err, ErrInvalidAddress)
		})
	}

	_, err := ParseAll([]string{Format(codec.Address{1}), "nope"})
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCodeHashText(t *testing.T) {
	r := require.New(t)

	h := ids.ID{0xde, 0xad, 0xbe, 0xef}
	parsed, err := ParseCodeHash(FormatCodeHash(h))
	r.NoError(err)
	r.Equal(h, parsed)

	_, err = ParseCodeHash("0x01")
	r.ErrorIs(err, ErrInvalidCodeHash)

	all, err := ParseCodeHashes(FormatCodeHashes([]ids.ID{h, ids.Empty}))
	r.NoError(err)
	r.Equal([]ids.ID{h, ids.Empty}, all)
}
