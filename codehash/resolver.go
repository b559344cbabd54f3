// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codehash computes code fingerprints: the keccak-256 digest of the
// bytecode deployed behind an account. Plain accounts have the Empty
// fingerprint.
package codehash

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

// Empty is the fingerprint of an account without code
var Empty = ids.Empty

// Reader resolves the fingerprint of the code deployed behind an account.
type Reader interface {
	CodeHashOf(ctx context.Context, account codec.Address) (ids.ID, error)
}

// Compute returns the fingerprint of code
func Compute(code []byte) ids.ID {
	if len(code) == 0 {
		return Empty
	}

	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write(code)

	var id ids.ID
	copy(id[:], hasher.Sum(nil))
	return id
}

var _ Reader = (*Resolver)(nil)

// Resolver looks up deployed code through a storage.ContractReader and caches
// fingerprints by contract ID. Contract bytes never change under an ID, so
// cached entries never go stale.
type Resolver struct {
	log    logging.Logger
	reader storage.ContractReader
	hashes cache.Cacher[string, ids.ID]
}

// NewResolver returns a Resolver whose cache holds up to cacheSize bytes of
// entries. A nil reader reports every account as a plain account.
func NewResolver(log logging.Logger, reader storage.ContractReader, cacheSize int) *Resolver {
	return &Resolver{
		log:    log,
		reader: reader,
		hashes: cache.NewSizedLRU(cacheSize, func(id string, _ ids.ID) int {
			return len(id) + ids.IDLen
		}),
	}
}

// CodeHashOf returns the fingerprint of the code deployed behind account
func (r *Resolver) CodeHashOf(ctx context.Context, account codec.Address) (ids.ID, error) {
	if r.reader == nil {
		return Empty, nil
	}

	contractID, err := r.reader.GetAccountContract(ctx, account)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to resolve account contract: %w", err)
	}
	if len(contractID) == 0 {
		return Empty, nil
	}

	if hash, ok := r.hashes.Get(string(contractID)); ok {
		return hash, nil
	}

	code, err := r.reader.GetContractBytes(ctx, contractID)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to load contract bytes: %w", err)
	}

	hash := Compute(code)
	r.hashes.Put(string(contractID), hash)
	r.log.Debug("computed code hash",
		zap.Binary("contractID", contractID),
		zap.Stringer("codeHash", hash),
	)
	return hash, nil
}
