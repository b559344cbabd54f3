// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package addresses converts addresses and code hashes to and from their
// 0x-prefixed hex text form.
package addresses

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/hypersdk/codec"
)

const hexPrefix = "0x"

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidCodeHash = errors.New("invalid code hash")
)

// Format returns the 0x-prefixed hex form of an address
func Format(a codec.Address) string {
	return hexPrefix + hex.EncodeToString(a[:])
}

// Parse parses a hex address, with or without the 0x prefix
func Parse(s string) (codec.Address, error) {
	b, err := decode(s)
	if err != nil {
		return codec.Address{}, fmt.Errorf("%w %q: %w", ErrInvalidAddress, s, err)
	}
	if len(b) != codec.AddressLen {
		return codec.Address{}, fmt.Errorf("%w %q: expected %d bytes, got %d", ErrInvalidAddress, s, codec.AddressLen, len(b))
	}

	var a codec.Address
	copy(a[:], b)
	return a, nil
}

// ParseAll parses every address in ss, failing on the first invalid one
func ParseAll(ss []string) ([]codec.Address, error) {
	parsed := make([]codec.Address, 0, len(ss))
	for _, s := range ss {
		a, err := Parse(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, a)
	}
	return parsed, nil
}

// FormatAll formats every address in as
func FormatAll(as []codec.Address) []string {
	formatted := make([]string, 0, len(as))
	for _, a := range as {
		formatted = append(formatted, Format(a))
	}
	return formatted
}

// FormatCodeHash returns the 0x-prefixed hex form of a code hash
func FormatCodeHash(h ids.ID) string {
	return hexPrefix + hex.EncodeToString(h[:])
}

// ParseCodeHash parses a hex code hash, with or without the 0x prefix
func ParseCodeHash(s string) (ids.ID, error) {
	b, err := decode(s)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w %q: %w", ErrInvalidCodeHash, s, err)
	}
	h, err := ids.ToID(b)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w %q: %w", ErrInvalidCodeHash, s, err)
	}
	return h, nil
}

// ParseCodeHashes parses every code hash in ss, failing on the first invalid one
func ParseCodeHashes(ss []string) ([]ids.ID, error) {
	parsed := make([]ids.ID, 0, len(ss))
	for _, s := range ss {
		h, err := ParseCodeHash(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, h)
	}
	return parsed, nil
}

// FormatCodeHashes formats every code hash in hs
func FormatCodeHashes(hs []ids.ID) []string {
	formatted := make([]string, 0, len(hs))
	for _, h := range hs {
		formatted = append(formatted, FormatCodeHash(h))
	}
	return formatted
}

func decode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), hexPrefix))
}
