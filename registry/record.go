// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"bytes"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/near/borsh-go"
	"golang.org/x/exp/slices"

	"github.com/ava-labs/hypersdk/codec"
)

const registrationPrefix byte = 'r'

// Registration is the stored record of a registrant. Every list is kept
// sorted and free of duplicates.
//
// A record that was never written is the zero Registration. Unregistering
// keeps the record with Tombstoned set, so stale subscribers still resolve
// to an empty list.
type Registration struct {
	Registered bool
	Tombstoned bool

	Subscribed   bool
	Subscription codec.Address
	Subscribers  []codec.Address

	FilteredOperators  []codec.Address
	FilteredCodeHashes []ids.ID
}

func registrationKey(registrant codec.Address) []byte {
	k := make([]byte, 1+codec.AddressLen)
	k[0] = registrationPrefix
	copy(k[1:], registrant[:])
	return k
}

// Marshal serializes the record to bytes
func (r *Registration) Marshal() ([]byte, error) {
	return borsh.Serialize(*r)
}

// Unmarshal deserializes the record from bytes
func (r *Registration) Unmarshal(data []byte) error {
	var decoded Registration
	if err := borsh.Deserialize(&decoded, data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if !sortedUnique(decoded.Subscribers, compareAddresses) ||
		!sortedUnique(decoded.FilteredOperators, compareAddresses) ||
		!sortedUnique(decoded.FilteredCodeHashes, compareCodeHashes) {
		return fmt.Errorf("%w: unsorted list", ErrInvalidRecord)
	}
	if len(decoded.Subscribers) == 0 {
		decoded.Subscribers = nil
	}
	if len(decoded.FilteredOperators) == 0 {
		decoded.FilteredOperators = nil
	}
	if len(decoded.FilteredCodeHashes) == 0 {
		decoded.FilteredCodeHashes = nil
	}
	*r = decoded
	return nil
}

// clone returns a deep copy so callers never share list backing arrays
func (r *Registration) clone() Registration {
	c := *r
	c.Subscribers = slices.Clone(r.Subscribers)
	c.FilteredOperators = slices.Clone(r.FilteredOperators)
	c.FilteredCodeHashes = slices.Clone(r.FilteredCodeHashes)
	return c
}

func (r *Registration) hasOperator(operator codec.Address) bool {
	_, ok := slices.BinarySearchFunc(r.FilteredOperators, operator, compareAddresses)
	return ok
}

func (r *Registration) hasCodeHash(codeHash ids.ID) bool {
	_, ok := slices.BinarySearchFunc(r.FilteredCodeHashes, codeHash, compareCodeHashes)
	return ok
}

// setOperator reports whether the list changed
func (r *Registration) setOperator(operator codec.Address, filtered bool) bool {
	var changed bool
	r.FilteredOperators, changed = setMember(r.FilteredOperators, operator, filtered, compareAddresses)
	return changed
}

// setCodeHash reports whether the list changed
func (r *Registration) setCodeHash(codeHash ids.ID, filtered bool) bool {
	var changed bool
	r.FilteredCodeHashes, changed = setMember(r.FilteredCodeHashes, codeHash, filtered, compareCodeHashes)
	return changed
}

func (r *Registration) addSubscriber(subscriber codec.Address) {
	r.Subscribers, _ = setMember(r.Subscribers, subscriber, true, compareAddresses)
}

func (r *Registration) removeSubscriber(subscriber codec.Address) {
	r.Subscribers, _ = setMember(r.Subscribers, subscriber, false, compareAddresses)
}

// setMember inserts or removes v in the sorted list, reporting whether the
// list changed.
func setMember[T any](list []T, v T, present bool, cmp func(T, T) int) ([]T, bool) {
	i, found := slices.BinarySearchFunc(list, v, cmp)
	switch {
	case present && !found:
		return slices.Insert(list, i, v), true
	case !present && found:
		return slices.Delete(list, i, i+1), true
	default:
		return list, false
	}
}

func sortedUnique[T any](list []T, cmp func(T, T) int) bool {
	for i := 1; i < len(list); i++ {
		if cmp(list[i-1], list[i]) >= 0 {
			return false
		}
	}
	return true
}

func compareAddresses(a, b codec.Address) int {
	return bytes.Compare(a[:], b[:])
}

func compareCodeHashes(a, b ids.ID) int {
	return bytes.Compare(a[:], b[:])
}
