// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/hypersdk/state"
)

var (
	ErrInjected = errors.New("injected failure")

	_ state.Mutable = (*MockDB)(nil)
)

// MockDB implements state.Mutable for testing. InsertErr, when set, is
// consulted before every insert so tests can fail storage on demand.
type MockDB struct {
	mu    sync.RWMutex
	store map[string][]byte

	Inserts   int
	InsertErr func(key []byte) error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		store: make(map[string][]byte),
	}
}

// GetValue returns the value for a key
func (m *MockDB) GetValue(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if val, ok := m.store[string(key)]; ok {
		return val, nil
	}
	return nil, database.ErrNotFound
}

// Insert adds a value to the mock database
func (m *MockDB) Insert(_ context.Context, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		if err := m.InsertErr(key); err != nil {
			return err
		}
	}
	m.Inserts++
	m.store[string(key)] = value
	return nil
}

// Remove removes a value from the mock database
func (m *MockDB) Remove(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store, string(key))
	return nil
}

// Snapshot returns a copy of every stored key-value pair
func (m *MockDB) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string][]byte, len(m.store))
	for k, v := range m.store {
		snapshot[k] = append([]byte(nil), v...)
	}
	return snapshot
}
