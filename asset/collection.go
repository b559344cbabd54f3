// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset is a minimal non-fungible token ledger protected by a
// transfer hook.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/set"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/hook"
)

var (
	ErrTokenExists      = errors.New("token already minted")
	ErrTokenNotFound    = errors.New("token not found")
	ErrNotApproved      = errors.New("operator not approved")
	ErrWrongOwner       = errors.New("from is not the token owner")
	ErrInvalidRecipient = errors.New("invalid recipient")

	_ access.OwnerLookup = (*Collection)(nil)
)

// Guard is the subset of the transfer hook a collection consults
type Guard interface {
	CheckBeforeTransfer(ctx context.Context, registrant, operator codec.Address) error
}

var _ Guard = (*hook.TransferHook)(nil)

// Collection is registered in the filter registry under its own address.
// Its owner may manage that registration on its behalf.
type Collection struct {
	log     logging.Logger
	address codec.Address
	owner   *access.Guard
	hook    Guard

	mu             sync.RWMutex
	owners         map[uint64]codec.Address
	balances       map[codec.Address]uint64
	tokenApprovals map[uint64]codec.Address
	operators      map[codec.Address]set.Set[codec.Address]
}

func NewCollection(log logging.Logger, address, owner codec.Address, transferHook Guard) *Collection {
	return &Collection{
		log:            log,
		address:        address,
		owner:          access.NewGuard(owner),
		hook:           transferHook,
		owners:         make(map[uint64]codec.Address),
		balances:       make(map[codec.Address]uint64),
		tokenApprovals: make(map[uint64]codec.Address),
		operators:      make(map[codec.Address]set.Set[codec.Address]),
	}
}

func (c *Collection) Address() codec.Address {
	return c.address
}

// OwnerOf reports the collection owner when account is the collection
func (c *Collection) OwnerOf(_ context.Context, account codec.Address) (codec.Address, bool, error) {
	if account != c.address {
		return codec.EmptyAddress, false, nil
	}
	return c.owner.Owner(), true, nil
}

// Mint creates tokenID for to. Only the collection owner may mint.
func (c *Collection) Mint(_ context.Context, caller, to codec.Address, tokenID uint64) error {
	if err := c.owner.CheckOwner(caller); err != nil {
		return err
	}
	if to == codec.EmptyAddress {
		return ErrInvalidRecipient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.owners[tokenID]; ok {
		return fmt.Errorf("%w: %d", ErrTokenExists, tokenID)
	}
	c.owners[tokenID] = to
	c.balances[to]++
	return nil
}

func (c *Collection) TokenOwner(tokenID uint64) (codec.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	holder, ok := c.owners[tokenID]
	if !ok {
		return codec.EmptyAddress, fmt.Errorf("%w: %d", ErrTokenNotFound, tokenID)
	}
	return holder, nil
}

func (c *Collection) BalanceOf(holder codec.Address) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[holder]
}

func (c *Collection) Approved(tokenID uint64) codec.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenApprovals[tokenID]
}

func (c *Collection) IsApprovedForAll(holder, operator codec.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isApprovedForAll(holder, operator)
}

func (c *Collection) isApprovedForAll(holder, operator codec.Address) bool {
	approvals := c.operators[holder]
	return approvals.Contains(operator)
}

// SetApprovalForAll lets operator move every token of caller. Approvals are
// not filtered; a filtered operator is refused when it transfers.
func (c *Collection) SetApprovalForAll(_ context.Context, caller, operator codec.Address, approved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	approvals, ok := c.operators[caller]
	if !ok {
		approvals = set.NewSet[codec.Address](1)
		c.operators[caller] = approvals
	}
	if approved {
		approvals.Add(operator)
	} else {
		approvals.Remove(operator)
	}
	return nil
}

// Approve lets approved move tokenID
func (c *Collection) Approve(_ context.Context, caller, approved codec.Address, tokenID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	holder, ok := c.owners[tokenID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, tokenID)
	}
	if caller != holder && !c.isApprovedForAll(holder, caller) {
		return ErrNotApproved
	}
	c.tokenApprovals[tokenID] = approved
	return nil
}

// TransferFrom moves tokenID from from to to. The hook runs first unless
// the holder moves its own token, so a refused transfer changes nothing.
func (c *Collection) TransferFrom(ctx context.Context, operator, from, to codec.Address, tokenID uint64) error {
	if operator != from {
		if err := c.hook.CheckBeforeTransfer(ctx, c.address, operator); err != nil {
			c.log.Debug("transfer refused",
				zap.String("operator", addresses.Format(operator)),
				zap.Uint64("tokenID", tokenID),
				zap.Error(err),
			)
			return err
		}
	}
	if to == codec.EmptyAddress {
		return ErrInvalidRecipient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	holder, ok := c.owners[tokenID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, tokenID)
	}
	if holder != from {
		return ErrWrongOwner
	}
	if operator != from && c.tokenApprovals[tokenID] != operator && !c.isApprovedForAll(from, operator) {
		return ErrNotApproved
	}

	delete(c.tokenApprovals, tokenID)
	c.owners[tokenID] = to
	c.balances[from]--
	c.balances[to]++
	return nil
}
