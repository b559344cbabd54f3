// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"context"
	"sync"

	"github.com/ava-labs/hypersdk/codec"
)

var _ OwnerLookup = (*Directory)(nil)

// Directory records the owners of accounts. Only the guard's owner may
// change entries.
type Directory struct {
	guard *Guard

	mu     sync.RWMutex
	owners map[codec.Address]codec.Address
}

func NewDirectory(guard *Guard) *Directory {
	return &Directory{
		guard:  guard,
		owners: make(map[codec.Address]codec.Address),
	}
}

// SetOwner records owner as the owner of account. The zero owner removes
// the entry.
func (d *Directory) SetOwner(caller, account, owner codec.Address) error {
	if err := d.guard.CheckOwner(caller); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if owner == codec.EmptyAddress {
		delete(d.owners, account)
		return nil
	}
	d.owners[account] = owner
	return nil
}

func (d *Directory) OwnerOf(_ context.Context, account codec.Address) (codec.Address, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	owner, ok := d.owners[account]
	return owner, ok, nil
}
