// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

var (
	owner      = codec.Address{0x01}
	stranger   = codec.Address{0x02}
	collection = codec.Address{0x03}
	curator    = codec.Address{0x04}

	marketplace = codec.Address{0x10}
	exchange    = codec.Address{0x11}

	errFilter = errors.New("filter unavailable")
)

type failingFilter struct{}

func (failingFilter) IsOperatorAllowed(context.Context, codec.Address, codec.Address) (bool, error) {
	return false, errFilter
}

func newRegistry(t *testing.T) registry.FilterRegistry {
	r, err := registry.New(logging.NoLog{}, storage.NewMemory(), registry.Config{
		Limits:     registry.DefaultLimits(),
		Authorizer: access.Authorizer{},
	})
	require.NoError(t, err)
	return r
}

func TestUnsetAllowsEverything(t *testing.T) {
	r := require.New(t)

	h, err := New(logging.NoLog{}, owner)
	r.NoError(err)
	r.Nil(h.OperatorFilterRegistry())
	r.NoError(h.CheckBeforeTransfer(context.Background(), collection, marketplace))
}

func TestSetOperatorFilterRegistry(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	filters := newRegistry(t)

	h, err := New(logging.NoLog{}, owner)
	r.NoError(err)

	r.ErrorIs(h.SetOperatorFilterRegistry(ctx, stranger, filters), access.ErrUnauthorized)
	r.Nil(h.OperatorFilterRegistry())

	r.NoError(h.SetOperatorFilterRegistry(ctx, owner, filters))
	r.Equal(filters, h.OperatorFilterRegistry())

	r.NoError(h.Guard().TransferOwnership(owner, stranger))
	r.ErrorIs(h.SetOperatorFilterRegistry(ctx, owner, nil), access.ErrUnauthorized)
	r.NoError(h.SetOperatorFilterRegistry(ctx, stranger, nil))
	r.Nil(h.OperatorFilterRegistry())
}

func TestCheckBeforeTransfer(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	filters := newRegistry(t)

	r.NoError(filters.Register(ctx, curator, curator))
	r.NoError(filters.UpdateOperator(ctx, curator, curator, marketplace, true))
	r.NoError(filters.RegisterAndSubscribe(ctx, collection, collection, curator))

	reg := prometheus.NewRegistry()
	h, err := New(logging.NoLog{}, owner, WithFilter(filters), WithRegisterer(reg, "operatorfilter"))
	r.NoError(err)

	err = h.CheckBeforeTransfer(ctx, collection, marketplace)
	r.ErrorIs(err, ErrAddressFiltered)
	var filteredErr *AddressFilteredError
	r.ErrorAs(err, &filteredErr)
	r.Equal(marketplace, filteredErr.Operator)

	r.NoError(h.CheckBeforeTransfer(ctx, collection, exchange))

	// unknown registrants are not filtered
	r.NoError(h.CheckBeforeTransfer(ctx, stranger, marketplace))

	r.NoError(filters.UpdateOperator(ctx, curator, curator, marketplace, false))
	r.NoError(h.CheckBeforeTransfer(ctx, collection, marketplace))

	r.InDelta(1, testutil.ToFloat64(h.checks.WithLabelValues("blocked")), 0)
	r.InDelta(3, testutil.ToFloat64(h.checks.WithLabelValues("allowed")), 0)

	_, err = New(logging.NoLog{}, owner, WithRegisterer(reg, "operatorfilter"))
	r.Error(err)
}

func TestCheckBeforeTransferFilterError(t *testing.T) {
	r := require.New(t)

	h, err := New(logging.NoLog{}, owner, WithFilter(failingFilter{}))
	r.NoError(err)

	err = h.CheckBeforeTransfer(context.Background(), collection, marketplace)
	r.ErrorIs(err, errFilter)
	r.NotErrorIs(err, ErrAddressFiltered)
}
