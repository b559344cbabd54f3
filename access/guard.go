// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access gates administrative operations: a single-owner Guard, a
// directory of registrant owners, and the Authorizer that combines them.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/hypersdk/codec"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidOwner = errors.New("invalid owner")
)

// Guard is a single-owner permission check. The zero owner means nobody
// holds the role.
type Guard struct {
	mu    sync.RWMutex
	owner codec.Address
}

func NewGuard(owner codec.Address) *Guard {
	return &Guard{owner: owner}
}

// Owner returns the current owner
func (g *Guard) Owner() codec.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// IsOwner reports whether caller currently holds the owner role
func (g *Guard) IsOwner(caller codec.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isOwner(caller)
}

func (g *Guard) isOwner(caller codec.Address) bool {
	return g.owner != codec.EmptyAddress && caller == g.owner
}

// CheckOwner returns ErrUnauthorized unless caller is the owner
func (g *Guard) CheckOwner(caller codec.Address) error {
	if !g.IsOwner(caller) {
		return fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner
func (g *Guard) TransferOwnership(caller, newOwner codec.Address) error {
	if newOwner == codec.EmptyAddress {
		return fmt.Errorf("%w: new owner is the zero address", ErrInvalidOwner)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isOwner(caller) {
		return fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
	}
	g.owner = newOwner
	return nil
}

// RenounceOwnership leaves the guard without an owner. Owner-gated
// operations fail for every caller afterwards.
func (g *Guard) RenounceOwnership(caller codec.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isOwner(caller) {
		return fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
	}
	g.owner = codec.EmptyAddress
	return nil
}

// OwnerLookup resolves who owns an account, such as the owner of a protected
// asset contract.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, account codec.Address) (codec.Address, bool, error)
}

// Authorizer decides whether a caller may mutate a registrant's record: the
// registrant itself, the administrator, or the registrant's owner.
type Authorizer struct {
	Admin  *Guard
	Owners OwnerLookup
}

func (a Authorizer) Authorize(ctx context.Context, caller, registrant codec.Address) error {
	if caller == codec.EmptyAddress {
		return fmt.Errorf("%w: anonymous caller", ErrUnauthorized)
	}
	if caller == registrant {
		return nil
	}
	if a.Admin != nil && a.Admin.IsOwner(caller) {
		return nil
	}
	if a.Owners != nil {
		owner, ok, err := a.Owners.OwnerOf(ctx, registrant)
		if err != nil {
			return err
		}
		if ok && owner != codec.EmptyAddress && owner == caller {
			return nil
		}
	}
	return fmt.Errorf("%w: caller may not act for registrant", ErrUnauthorized)
}
