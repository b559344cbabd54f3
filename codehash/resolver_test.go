// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codehash

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

type countingReader struct {
	storage.ContractReader
	loads int
}

func (c *countingReader) GetContractBytes(ctx context.Context, id storage.ContractID) ([]byte, error) {
	c.loads++
	return c.ContractReader.GetContractBytes(ctx, id)
}

func TestCompute(t *testing.T) {
	r := require.New(t)

	r.Equal(Empty, Compute(nil))

	// keccak-256("abc")
	expected, err := hex.DecodeString("4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45")
	r.NoError(err)
	got := Compute([]byte("abc"))
	r.Equal(expected, got[:])
}

func TestResolver(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	contracts := storage.NewContractStore(storage.NewMemory())
	reader := &countingReader{ContractReader: contracts}
	resolver := NewResolver(logging.NoLog{}, reader, units.MiB)

	plain := codec.Address{1}
	hash, err := resolver.CodeHashOf(ctx, plain)
	r.NoError(err)
	r.Equal(Empty, hash)

	code := []byte("operator bytecode")
	r.NoError(contracts.SetContractBytes(ctx, storage.ContractID("op"), code))
	first, err := contracts.NewAccountWithContract(ctx, storage.ContractID("op"), []byte{1})
	r.NoError(err)
	clone, err := contracts.NewAccountWithContract(ctx, storage.ContractID("op"), []byte{2})
	r.NoError(err)

	hash, err = resolver.CodeHashOf(ctx, first)
	r.NoError(err)
	r.Equal(Compute(code), hash)

	// redeployed clones share the fingerprint and hit the cache
	cloneHash, err := resolver.CodeHashOf(ctx, clone)
	r.NoError(err)
	r.Equal(hash, cloneHash)
	r.Equal(1, reader.loads)
}

func TestResolverWithoutReader(t *testing.T) {
	r := require.New(t)

	resolver := NewResolver(logging.NoLog{}, nil, units.KiB)
	hash, err := resolver.CodeHashOf(context.Background(), codec.Address{7})
	r.NoError(err)
	r.Equal(ids.Empty, hash)
}
