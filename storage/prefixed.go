// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"

	"github.com/ava-labs/hypersdk/state"
)

var _ state.Mutable = (*Prefixed)(nil)

// Prefixed isolates a namespace inside a shared state.Mutable by prefixing
// every key.
type Prefixed struct {
	db     state.Mutable
	prefix []byte
}

// NewPrefixed wraps db so that every key is stored under prefix
func NewPrefixed(db state.Mutable, prefix []byte) *Prefixed {
	return &Prefixed{
		db:     db,
		prefix: copyBytes(prefix),
	}
}

func (p *Prefixed) key(key []byte) []byte {
	k := make([]byte, len(p.prefix)+len(key))
	copy(k, p.prefix)
	copy(k[len(p.prefix):], key)
	return k
}

func (p *Prefixed) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return p.db.GetValue(ctx, p.key(key))
}

func (p *Prefixed) Insert(ctx context.Context, key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.db.Insert(ctx, p.key(key), value)
}

func (p *Prefixed) Remove(ctx context.Context, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.db.Remove(ctx, p.key(key))
}
