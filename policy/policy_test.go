// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package policy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

var (
	admin   = codec.Address{0xad}
	curator = codec.Address{0x01}
	mirror  = codec.Address{0x02}
	parent  = codec.Address{0x03}

	operators  = []codec.Address{{0x10}, {0x11}, {0x12}, {0x13}, {0x14}}
	marketHash = codehash.Compute([]byte("market"))
)

func newRegistry(t *testing.T) registry.FilterRegistry {
	r, err := registry.New(logging.NoLog{}, storage.NewMemory(), registry.Config{
		Limits:     registry.DefaultLimits(),
		Authorizer: access.Authorizer{Admin: access.NewGuard(admin)},
	})
	require.NoError(t, err)
	return r
}

func TestExportApplyRoundTrip(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	source := newRegistry(t)

	r.NoError(source.Register(ctx, curator, curator))
	r.NoError(source.UpdateOperators(ctx, curator, curator, operators, true))
	r.NoError(source.UpdateCodeHash(ctx, curator, curator, marketHash, true))

	exported, err := Export(ctx, source, curator)
	r.NoError(err)
	path := filepath.Join(t.TempDir(), "curator.yaml")
	r.NoError(WriteFile(path, exported))

	loaded, err := ReadFile(path)
	r.NoError(err)
	r.Equal(exported, loaded)

	// apply to a different registrant in a fresh registry, in small batches
	loaded.Registrant = addresses.Format(mirror)
	target := newRegistry(t)
	r.NoError(Apply(ctx, registry.Session{FilterRegistry: target, Caller: admin}, loaded, 2))

	got, err := target.FilteredOperators(ctx, mirror)
	r.NoError(err)
	r.Equal(operators, got)
	hashes, err := target.FilteredCodeHashes(ctx, mirror)
	r.NoError(err)
	r.Equal([]ids.ID{marketHash}, hashes)

	// applying again is idempotent
	r.NoError(Apply(ctx, registry.Session{FilterRegistry: target, Caller: admin}, loaded, 2))
	got, err = target.FilteredOperators(ctx, mirror)
	r.NoError(err)
	r.Equal(operators, got)
}

func TestApplySubscribesFirst(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	filters := newRegistry(t)
	r.NoError(filters.Register(ctx, parent, parent))

	p := &Policy{
		Registrant:        addresses.Format(mirror),
		Subscription:      addresses.Format(parent),
		FilteredOperators: addresses.FormatAll(operators[:1]),
	}
	r.NoError(Apply(ctx, registry.Session{FilterRegistry: filters, Caller: admin}, p, 10))

	subscription, subscribed, err := filters.SubscriptionOf(ctx, mirror)
	r.NoError(err)
	r.True(subscribed)
	r.Equal(parent, subscription)
	got, err := filters.FilteredOperators(ctx, mirror)
	r.NoError(err)
	r.Equal(operators[:1], got)

	exported, err := Export(ctx, filters, mirror)
	r.NoError(err)
	r.Equal(p.Subscription, exported.Subscription)
}

func TestApplyRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		policy *Policy
		caller codec.Address
		err    error
	}{
		{
			name:   "missing registrant",
			policy: &Policy{},
			caller: admin,
			err:    ErrMissingRegistrant,
		},
		{
			name:   "invalid operator",
			policy: &Policy{Registrant: addresses.Format(mirror), FilteredOperators: []string{"0x1234"}},
			caller: admin,
			err:    addresses.ErrInvalidAddress,
		},
		{
			name:   "invalid code hash",
			policy: &Policy{Registrant: addresses.Format(mirror), FilteredCodeHashes: []string{"zz"}},
			caller: admin,
			err:    addresses.ErrInvalidCodeHash,
		},
		{
			name:   "unauthorized",
			policy: &Policy{Registrant: addresses.Format(mirror)},
			caller: curator,
			err:    access.ErrUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, Apply(ctx, registry.Session{FilterRegistry: newRegistry(t), Caller: tt.caller}, tt.policy, 10), tt.err)
		})
	}
}

func TestExportUnregistered(t *testing.T) {
	_, err := Export(context.Background(), newRegistry(t), curator)
	require.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestUnmarshal(t *testing.T) {
	r := require.New(t)

	_, err := Unmarshal([]byte("filteredOperators: []\n"))
	r.ErrorIs(err, ErrMissingRegistrant)

	_, err = Unmarshal([]byte("registrant: 0x01\nunknown: true\n"))
	r.Error(err)
}
