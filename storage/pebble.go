// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/state"
)

var _ state.Mutable = (*Pebble)(nil)

// Pebble is a state.Mutable persisted to a pebble database on disk. Every
// write is synced before it returns.
type Pebble struct {
	log logging.Logger
	db  *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir
func OpenPebble(dir string, log logging.Logger) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database at %s: %w", dir, err)
	}
	log.Info("opened pebble database", zap.String("dir", dir))
	return &Pebble{
		log: log,
		db:  db,
	}, nil
}

func (p *Pebble) GetValue(_ context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return copyBytes(value), nil
}

func (p *Pebble) Insert(_ context.Context, key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *Pebble) Remove(_ context.Context, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.db.Delete(key, pebble.Sync)
}

// Close flushes and closes the underlying database
func (p *Pebble) Close() error {
	p.log.Info("closing pebble database")
	return p.db.Close()
}
