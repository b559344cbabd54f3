// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"
	"fmt"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
	"github.com/ava-labs/hypersdk/x/operatorfilter/events"
)

// Subscribe makes registrant inherit the direct lists of subscribeTo. Any
// entries registrant had set directly are cleared. An existing subscription
// to another target is replaced.
func (r *filterRegistry) Subscribe(ctx context.Context, caller, registrant, subscribeTo codec.Address) error {
	return r.mutate(ctx, "subscribe", caller, registrant, func(tx *txn) error {
		return tx.subscribe(registrant, subscribeTo)
	})
}

// Unsubscribe drops registrant's subscription. With copyExistingEntries set,
// the former target's direct lists are first merged into registrant's own.
func (r *filterRegistry) Unsubscribe(ctx context.Context, caller, registrant codec.Address, copyExistingEntries bool) error {
	return r.mutate(ctx, "unsubscribe", caller, registrant, func(tx *txn) error {
		rec, err := tx.registered(registrant)
		if err != nil {
			return err
		}
		if !rec.Subscribed {
			return fmt.Errorf("%w: %s", ErrNotSubscribed, addresses.Format(registrant))
		}
		if copyExistingEntries {
			if err := tx.copyEntries(registrant, rec.Subscription); err != nil {
				return err
			}
		}
		return tx.detach(registrant, rec)
	})
}

// CopyEntriesOf merges the direct lists of registrantToCopy into
// registrant's own lists.
func (r *filterRegistry) CopyEntriesOf(ctx context.Context, caller, registrant, registrantToCopy codec.Address) error {
	return r.mutate(ctx, "copyEntriesOf", caller, registrant, func(tx *txn) error {
		if registrant == registrantToCopy {
			return ErrCannotCopyFromSelf
		}
		if _, err := tx.registered(registrant); err != nil {
			return err
		}
		if _, err := tx.registered(registrantToCopy); err != nil {
			return err
		}
		return tx.copyEntries(registrant, registrantToCopy)
	})
}

func (tx *txn) subscribe(registrant, subscribeTo codec.Address) error {
	if registrant == subscribeTo {
		return ErrCannotSubscribeToSelf
	}
	rec, err := tx.registered(registrant)
	if err != nil {
		return err
	}
	target, err := tx.registered(subscribeTo)
	if err != nil {
		return err
	}

	switch {
	case rec.Subscribed && rec.Subscription == subscribeTo:
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, addresses.Format(subscribeTo))
	case target.Subscribed && target.Subscription == registrant:
		return fmt.Errorf("%w: %s is subscribed to %s", ErrCyclicSubscription, addresses.Format(subscribeTo), addresses.Format(registrant))
	case target.Subscribed:
		return fmt.Errorf("%w: %s", ErrTargetHasSubscription, addresses.Format(subscribeTo))
	case len(rec.Subscribers) > 0:
		return fmt.Errorf("%w: %d subscribers", ErrHasSubscribers, len(rec.Subscribers))
	case len(target.Subscribers) >= tx.r.limits.MaxSubscribers:
		return fmt.Errorf("%w: %s already has %d subscribers", ErrLimitExceeded, addresses.Format(subscribeTo), len(target.Subscribers))
	}

	if rec.Subscribed {
		if err := tx.detach(registrant, rec); err != nil {
			return err
		}
	}

	// inheritance replaces any direct entries
	rec.FilteredOperators = nil
	rec.FilteredCodeHashes = nil

	rec.Subscribed = true
	rec.Subscription = subscribeTo
	target.addSubscriber(registrant)
	tx.emit(events.SubscriptionUpdated{
		RegistrantAddress: registrant,
		Subscription:      subscribeTo,
		Subscribed:        true,
	})
	return nil
}

// detach removes the link between rec and its subscription. The former
// target may already be tombstoned.
func (tx *txn) detach(registrant codec.Address, rec *Registration) error {
	previous := rec.Subscription
	target, err := tx.get(previous)
	if err != nil {
		return err
	}
	target.removeSubscriber(registrant)
	tx.markDirty(previous)

	rec.Subscribed = false
	rec.Subscription = codec.EmptyAddress
	tx.emit(events.SubscriptionUpdated{
		RegistrantAddress: registrant,
		Subscription:      previous,
		Subscribed:        false,
	})
	return nil
}

// copyEntries merges from's direct lists into registrant's lists. The
// registrant's own code hash and the plain account hash are never copied.
func (tx *txn) copyEntries(registrant, from codec.Address) error {
	rec, err := tx.registered(registrant)
	if err != nil {
		return err
	}
	source, err := tx.get(from)
	if err != nil {
		return err
	}
	own, err := tx.r.codeHashes.CodeHashOf(tx.ctx, registrant)
	if err != nil {
		return err
	}

	for _, operator := range source.FilteredOperators {
		if rec.setOperator(operator, true) {
			tx.emit(events.OperatorUpdated{
				RegistrantAddress: registrant,
				Operator:          operator,
				Filtered:          true,
			})
		}
	}
	for _, codeHash := range source.FilteredCodeHashes {
		if codeHash == own || codeHash == codehash.Empty {
			continue
		}
		if rec.setCodeHash(codeHash, true) {
			tx.emit(events.CodeHashUpdated{
				RegistrantAddress: registrant,
				CodeHash:          codeHash,
				Filtered:          true,
			})
		}
	}

	limits := tx.r.limits
	if len(rec.FilteredOperators) > limits.MaxFilteredOperators {
		return fmt.Errorf("%w: %d filtered operators exceeds maximum %d", ErrLimitExceeded, len(rec.FilteredOperators), limits.MaxFilteredOperators)
	}
	if len(rec.FilteredCodeHashes) > limits.MaxFilteredCodeHashes {
		return fmt.Errorf("%w: %d filtered code hashes exceeds maximum %d", ErrLimitExceeded, len(rec.FilteredCodeHashes), limits.MaxFilteredCodeHashes)
	}
	return nil
}
