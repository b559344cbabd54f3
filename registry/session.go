// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/hypersdk/codec"
)

// Session binds a FilterRegistry to a fixed caller, giving it the same
// method set as a signing api.Client. Queries pass through unchanged.
type Session struct {
	FilterRegistry
	Caller codec.Address
}

func (s Session) Register(ctx context.Context, registrant codec.Address) error {
	return s.FilterRegistry.Register(ctx, s.Caller, registrant)
}

func (s Session) RegisterAndSubscribe(ctx context.Context, registrant, subscribeTo codec.Address) error {
	return s.FilterRegistry.RegisterAndSubscribe(ctx, s.Caller, registrant, subscribeTo)
}

func (s Session) RegisterAndCopyEntries(ctx context.Context, registrant, copyFrom codec.Address) error {
	return s.FilterRegistry.RegisterAndCopyEntries(ctx, s.Caller, registrant, copyFrom)
}

func (s Session) Unregister(ctx context.Context, registrant codec.Address) error {
	return s.FilterRegistry.Unregister(ctx, s.Caller, registrant)
}

func (s Session) UpdateOperators(ctx context.Context, registrant codec.Address, operators []codec.Address, filtered bool) error {
	return s.FilterRegistry.UpdateOperators(ctx, s.Caller, registrant, operators, filtered)
}

func (s Session) UpdateCodeHashes(ctx context.Context, registrant codec.Address, codeHashes []ids.ID, filtered bool) error {
	return s.FilterRegistry.UpdateCodeHashes(ctx, s.Caller, registrant, codeHashes, filtered)
}

func (s Session) Subscribe(ctx context.Context, registrant, subscribeTo codec.Address) error {
	return s.FilterRegistry.Subscribe(ctx, s.Caller, registrant, subscribeTo)
}

func (s Session) Unsubscribe(ctx context.Context, registrant codec.Address, copyExistingEntries bool) error {
	return s.FilterRegistry.Unsubscribe(ctx, s.Caller, registrant, copyExistingEntries)
}

func (s Session) CopyEntriesOf(ctx context.Context, registrant, registrantToCopy codec.Address) error {
	return s.FilterRegistry.CopyEntriesOf(ctx, s.Caller, registrant, registrantToCopy)
}
