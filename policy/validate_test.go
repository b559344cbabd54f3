// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		policy *Policy
		rules  []Rule
		err    error
	}{
		{
			name: "valid",
			policy: &Policy{
				Registrant:         addresses.Format(mirror),
				Subscription:       addresses.Format(parent),
				FilteredOperators:  addresses.FormatAll(operators),
				FilteredCodeHashes: addresses.FormatCodeHashes([]ids.ID{marketHash}),
			},
			rules: StructuralRules(),
		},
		{
			name: "self subscription",
			policy: &Policy{
				Registrant:   addresses.Format(mirror),
				Subscription: addresses.Format(mirror),
			},
			rules: StructuralRules(),
			err:   registry.ErrCannotSubscribeToSelf,
		},
		{
			name: "plain account hash",
			policy: &Policy{
				Registrant:         addresses.Format(mirror),
				FilteredCodeHashes: addresses.FormatCodeHashes([]ids.ID{marketHash, ids.Empty}),
			},
			rules: StructuralRules(),
			err:   registry.ErrCannotFilterPlainAccounts,
		},
		{
			name: "duplicate operator",
			policy: &Policy{
				Registrant:        addresses.Format(mirror),
				FilteredOperators: addresses.FormatAll([]codec.Address{operators[0], operators[1], operators[0]}),
			},
			rules: StructuralRules(),
			err:   ErrDuplicateEntry,
		},
		{
			name: "duplicate code hash",
			policy: &Policy{
				Registrant:         addresses.Format(mirror),
				FilteredCodeHashes: addresses.FormatCodeHashes([]ids.ID{marketHash, marketHash}),
			},
			rules: StructuralRules(),
			err:   ErrDuplicateEntry,
		},
		{
			name: "too many operators",
			policy: &Policy{
				Registrant:        addresses.Format(mirror),
				FilteredOperators: addresses.FormatAll(operators),
			},
			rules: []Rule{WithinLimits(registry.Limits{MaxFilteredOperators: len(operators) - 1})},
			err:   ErrTooManyEntries,
		},
		{
			name: "zero limits are unbounded",
			policy: &Policy{
				Registrant:         addresses.Format(mirror),
				FilteredOperators:  addresses.FormatAll(operators),
				FilteredCodeHashes: addresses.FormatCodeHashes([]ids.ID{marketHash}),
			},
			rules: []Rule{WithinLimits(registry.Limits{})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			e, err := tt.policy.Parse()
			r.NoError(err)

			err = Validate(e, tt.rules...)
			if tt.err == nil {
				r.NoError(err)
				return
			}
			r.ErrorIs(err, ErrInvalidPolicy)
			r.ErrorIs(err, tt.err)
		})
	}
}

func TestParse(t *testing.T) {
	r := require.New(t)

	e, err := (&Policy{
		Registrant:        addresses.Format(mirror),
		Subscription:      addresses.Format(parent),
		FilteredOperators: addresses.FormatAll(operators[:2]),
	}).Parse()
	r.NoError(err)
	r.Equal(mirror, e.Registrant)
	r.True(e.Subscribed)
	r.Equal(parent, e.Subscription)
	r.Equal(operators[:2], e.Operators)
	r.Empty(e.CodeHashes)

	e, err = (&Policy{Registrant: addresses.Format(mirror)}).Parse()
	r.NoError(err)
	r.False(e.Subscribed)

	_, err = (&Policy{}).Parse()
	r.ErrorIs(err, ErrMissingRegistrant)
}

func TestApplyValidatesBeforeSending(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	filters := newRegistry(t)
	errFrozen := errors.New("frozen")

	p := &Policy{
		Registrant:        addresses.Format(mirror),
		FilteredOperators: addresses.FormatAll([]codec.Address{operators[0], operators[0]}),
	}
	err := Apply(ctx, registry.Session{FilterRegistry: filters, Caller: admin}, p, 10)
	r.ErrorIs(err, ErrDuplicateEntry)

	p.FilteredOperators = addresses.FormatAll(operators)
	frozen := Rule{
		Name:  "frozen",
		Check: func(*Entries) error { return errFrozen },
	}
	err = Apply(ctx, registry.Session{FilterRegistry: filters, Caller: admin}, p, 10, frozen)
	r.ErrorIs(err, errFrozen)

	// nothing was sent, so the registrant was never registered
	registered, err := filters.IsRegistered(ctx, mirror)
	r.NoError(err)
	r.False(registered)
}
