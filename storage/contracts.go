// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/state"
)

const (
	accountPrefix  byte = 'a'
	contractPrefix byte = 'c'

	// ContractAccountTypeID is the address type byte of accounts created by
	// NewAccountWithContract.
	ContractAccountTypeID uint8 = 2
)

var (
	ErrContractNotFound = errors.New("contract not found")
	ErrContractExists   = errors.New("contract already stored with different bytes")
	ErrEmptyContract    = errors.New("empty contract bytes")
)

type ContractID []byte

// ContractReader resolves the code deployed behind an account.
type ContractReader interface {
	// GetAccountContract returns the contract ID associated with the given
	// account, or a nil ID if the account has no code.
	GetAccountContract(ctx context.Context, account codec.Address) (ContractID, error)
	// GetContractBytes returns the deployed bytes of the contract with the given ID.
	GetContractBytes(ctx context.Context, contractID ContractID) ([]byte, error)
}

var _ ContractReader = (*ContractStore)(nil)

// ContractStore records which contract bytes are deployed behind which
// accounts. Contract bytes are immutable once stored under an ID.
type ContractStore struct {
	db state.Mutable
}

func NewContractStore(db state.Mutable) *ContractStore {
	return &ContractStore{db: db}
}

// GetAccountContract returns the contract ID associated with the given account.
// Plain accounts return a nil ID and no error.
func (c *ContractStore) GetAccountContract(ctx context.Context, account codec.Address) (ContractID, error) {
	value, err := c.db.GetValue(ctx, accountKey(account))
	if errors.Is(err, database.ErrNotFound) || (err == nil && len(value) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ContractID(value), nil
}

// GetContractBytes returns the deployed bytes of the contract with the given ID.
func (c *ContractStore) GetContractBytes(ctx context.Context, contractID ContractID) ([]byte, error) {
	value, err := c.db.GetValue(ctx, contractKey(contractID))
	if errors.Is(err, database.ErrNotFound) || (err == nil && len(value) == 0) {
		return nil, fmt.Errorf("%w: %x", ErrContractNotFound, []byte(contractID))
	}
	return value, err
}

// SetContractBytes stores the deployed bytes of a contract. Storing the same
// bytes twice is a no-op.
func (c *ContractStore) SetContractBytes(ctx context.Context, contractID ContractID, code []byte) error {
	if len(code) == 0 {
		return ErrEmptyContract
	}

	existing, err := c.db.GetValue(ctx, contractKey(contractID))
	switch {
	case err == nil && len(existing) > 0:
		if !bytes.Equal(existing, code) {
			return fmt.Errorf("%w: %x", ErrContractExists, []byte(contractID))
		}
		return nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return err
	}

	return c.db.Insert(ctx, contractKey(contractID), code)
}

// SetAccountContract associates a stored contract with an account.
func (c *ContractStore) SetAccountContract(ctx context.Context, account codec.Address, contractID ContractID) error {
	if _, err := c.GetContractBytes(ctx, contractID); err != nil {
		return err
	}
	return c.db.Insert(ctx, accountKey(account), contractID)
}

// NewAccountWithContract derives a new account from the contract ID and the
// creation data, and deploys the contract behind it.
func (c *ContractStore) NewAccountWithContract(ctx context.Context, contractID ContractID, accountCreationData []byte) (codec.Address, error) {
	preimage := make([]byte, 0, len(contractID)+len(accountCreationData))
	preimage = append(preimage, contractID...)
	preimage = append(preimage, accountCreationData...)

	address := codec.CreateAddress(ContractAccountTypeID, ids.ID(hashing.ComputeHash256Array(preimage)))
	if err := c.SetAccountContract(ctx, address, contractID); err != nil {
		return codec.EmptyAddress, fmt.Errorf("failed to set account contract: %w", err)
	}
	return address, nil
}

func accountKey(account codec.Address) []byte {
	k := make([]byte, 1+codec.AddressLen)
	k[0] = accountPrefix
	copy(k[1:], account[:])
	return k
}

func contractKey(id ContractID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = contractPrefix
	copy(k[1:], id)
	return k
}
