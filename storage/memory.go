// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/hypersdk/state"
)

var (
	ErrEmptyKey = errors.New("empty key")

	_ state.Mutable = (*Memory)(nil)
)

// Memory is an in-memory state.Mutable. Values are copied on the way in and
// on the way out so callers can never alias stored bytes.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// GetValue returns the value associated with the key, or database.ErrNotFound.
func (m *Memory) GetValue(_ context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	m.mu.RLock()
	value, ok := m.data[string(key)]
	m.mu.RUnlock()

	if !ok {
		return nil, database.ErrNotFound
	}
	return copyBytes(value), nil
}

// Insert inserts a key-value pair into the store.
func (m *Memory) Insert(_ context.Context, key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	m.mu.Lock()
	m.data[string(key)] = copyBytes(value)
	m.mu.Unlock()
	return nil
}

// Remove removes a key-value pair from the store.
func (m *Memory) Remove(_ context.Context, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	m.mu.Lock()
	delete(m.data, string(key))
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
