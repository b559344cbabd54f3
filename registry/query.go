// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
)

// effective is a registrant's record paired with the record of its
// subscription, if any. Inheritance never goes beyond one hop.
type effective struct {
	own    *Registration
	parent *Registration
}

func (e effective) hasOperator(operator codec.Address) bool {
	return e.own.hasOperator(operator) || (e.parent != nil && e.parent.hasOperator(operator))
}

func (e effective) hasCodeHash(codeHash ids.ID) bool {
	return e.own.hasCodeHash(codeHash) || (e.parent != nil && e.parent.hasCodeHash(codeHash))
}

func (e effective) filtersCode() bool {
	return len(e.own.FilteredCodeHashes) > 0 || (e.parent != nil && len(e.parent.FilteredCodeHashes) > 0)
}

// loadEffective returns the zero effective lists for registrants that are
// unknown or tombstoned.
func (r *filterRegistry) loadEffective(ctx context.Context, registrant codec.Address) (effective, error) {
	own, err := r.load(ctx, registrant)
	if err != nil {
		return effective{}, err
	}
	if !own.Registered {
		return effective{own: &Registration{}}, nil
	}
	e := effective{own: own}
	if own.Subscribed {
		e.parent, err = r.load(ctx, own.Subscription)
		if err != nil {
			return effective{}, err
		}
	}
	return e, nil
}

// IsOperatorAllowed reports whether operator may initiate transfers on
// behalf of registrant. Unknown registrants allow every operator.
func (r *filterRegistry) IsOperatorAllowed(ctx context.Context, registrant, operator codec.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed, err := r.isOperatorAllowed(ctx, registrant, operator)
	if err != nil {
		return false, err
	}
	r.metrics.check(allowed)
	return allowed, nil
}

func (r *filterRegistry) isOperatorAllowed(ctx context.Context, registrant, operator codec.Address) (bool, error) {
	e, err := r.loadEffective(ctx, registrant)
	if err != nil {
		return false, err
	}
	if e.hasOperator(operator) {
		return false, nil
	}
	if !e.filtersCode() {
		return true, nil
	}
	codeHash, err := r.codeHashes.CodeHashOf(ctx, operator)
	if err != nil {
		return false, err
	}
	if codeHash == codehash.Empty {
		return true, nil
	}
	return !e.hasCodeHash(codeHash), nil
}

func (r *filterRegistry) IsRegistered(ctx context.Context, registrant codec.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.load(ctx, registrant)
	if err != nil {
		return false, err
	}
	return rec.Registered, nil
}

// IsOperatorFiltered checks registrant's own list and its subscription's
func (r *filterRegistry) IsOperatorFiltered(ctx context.Context, registrant, operator codec.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.loadEffective(ctx, registrant)
	if err != nil {
		return false, err
	}
	return e.hasOperator(operator), nil
}

// IsCodeHashFiltered checks registrant's own list and its subscription's
func (r *filterRegistry) IsCodeHashFiltered(ctx context.Context, registrant codec.Address, codeHash ids.ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.loadEffective(ctx, registrant)
	if err != nil {
		return false, err
	}
	return e.hasCodeHash(codeHash), nil
}

// IsCodeHashOfFiltered resolves the code hash of operatorWithCode and checks
// it against registrant's effective list. Plain accounts are never filtered.
func (r *filterRegistry) IsCodeHashOfFiltered(ctx context.Context, registrant, operatorWithCode codec.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.loadEffective(ctx, registrant)
	if err != nil {
		return false, err
	}
	codeHash, err := r.codeHashes.CodeHashOf(ctx, operatorWithCode)
	if err != nil {
		return false, err
	}
	if codeHash == codehash.Empty {
		return false, nil
	}
	return e.hasCodeHash(codeHash), nil
}

// FilteredOperators returns registrant's direct list, sorted
func (r *filterRegistry) FilteredOperators(ctx context.Context, registrant codec.Address) ([]codec.Address, error) {
	rec, err := r.Registration(ctx, registrant)
	if err != nil {
		return nil, err
	}
	return rec.FilteredOperators, nil
}

// FilteredCodeHashes returns registrant's direct list, sorted
func (r *filterRegistry) FilteredCodeHashes(ctx context.Context, registrant codec.Address) ([]ids.ID, error) {
	rec, err := r.Registration(ctx, registrant)
	if err != nil {
		return nil, err
	}
	return rec.FilteredCodeHashes, nil
}

func (r *filterRegistry) SubscriptionOf(ctx context.Context, registrant codec.Address) (codec.Address, bool, error) {
	rec, err := r.Registration(ctx, registrant)
	if err != nil {
		return codec.EmptyAddress, false, err
	}
	return rec.Subscription, rec.Subscribed, nil
}

func (r *filterRegistry) Subscribers(ctx context.Context, registrant codec.Address) ([]codec.Address, error) {
	rec, err := r.Registration(ctx, registrant)
	if err != nil {
		return nil, err
	}
	return rec.Subscribers, nil
}

func (r *filterRegistry) CodeHashOf(ctx context.Context, account codec.Address) (ids.ID, error) {
	return r.codeHashes.CodeHashOf(ctx, account)
}

// Registration returns a copy of the stored record. Unknown registrants
// yield the zero Registration.
func (r *filterRegistry) Registration(ctx context.Context, registrant codec.Address) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.load(ctx, registrant)
	if err != nil {
		return Registration{}, err
	}
	return rec.clone(), nil
}
