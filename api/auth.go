// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/hdevalence/ed25519consensus"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/codec"
)

const (
	PublicKeyHeader = "X-Operatorfilter-Public-Key"
	SignatureHeader = "X-Operatorfilter-Signature"
	NonceHeader     = "X-Operatorfilter-Nonce"

	// ED25519ID prefixes addresses derived from ed25519 public keys
	ED25519ID uint8 = 0

	DefaultReplayWindow   = time.Minute
	DefaultTrackedCallers = 65_536
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrStaleNonce       = errors.New("stale nonce")
	ErrReusedNonce      = errors.New("reused nonce")
)

type callerKey struct{}

// CallerAddress derives the address that acts for publicKey
func CallerAddress(publicKey ed25519.PublicKey) codec.Address {
	return codec.CreateAddress(ED25519ID, ids.ID(hashing.ComputeHash256Array(publicKey)))
}

// CallerFrom returns the authenticated caller of a request. Unsigned
// requests act as the empty address.
func CallerFrom(ctx context.Context) codec.Address {
	caller, _ := ctx.Value(callerKey{}).(codec.Address)
	return caller
}

// SignedMessage is what a caller signs: the endpoint path, the nonce and
// the raw body.
func SignedMessage(path string, nonce uint64, body []byte) ([]byte, error) {
	p := codec.NewWriter(len(path)+len(body)+16, len(path)+len(body)+16)
	p.PackString(path)
	p.PackUint64(nonce)
	p.PackFixedBytes(body)
	return p.Bytes(), p.Err()
}

// authenticate verifies the signature headers against the signed message
// of the request. Unsigned requests return the empty caller.
func authenticate(header http.Header, path string, body []byte) (codec.Address, uint64, error) {
	encodedKey := header.Get(PublicKeyHeader)
	encodedSig := header.Get(SignatureHeader)
	if encodedKey == "" && encodedSig == "" {
		return codec.EmptyAddress, 0, nil
	}

	publicKey, err := hex.DecodeString(encodedKey)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return codec.EmptyAddress, 0, ErrInvalidPublicKey
	}
	sig, err := hex.DecodeString(encodedSig)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return codec.EmptyAddress, 0, ErrInvalidSignature
	}
	nonce, err := strconv.ParseUint(header.Get(NonceHeader), 10, 64)
	if err != nil {
		return codec.EmptyAddress, 0, fmt.Errorf("%w: %w", ErrInvalidNonce, err)
	}
	msg, err := SignedMessage(path, nonce, body)
	if err != nil {
		return codec.EmptyAddress, 0, err
	}
	if !ed25519consensus.Verify(publicKey, msg, sig) {
		return codec.EmptyAddress, 0, ErrInvalidSignature
	}
	return CallerAddress(publicKey), nonce, nil
}

// replayGuard accepts a caller's nonces only in increasing order and only
// while they are within window of the server clock. Nonces are unix
// nanosecond timestamps. The last nonce of at most size callers is kept; a
// caller evicted from the cache is still bound by the window.
type replayGuard struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last *cache.LRU[codec.Address, uint64]
}

func newReplayGuard(window time.Duration, size int) *replayGuard {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	if size <= 0 {
		size = DefaultTrackedCallers
	}
	return &replayGuard{
		window: window,
		now:    time.Now,
		last:   &cache.LRU[codec.Address, uint64]{Size: size},
	}
}

func (g *replayGuard) accept(caller codec.Address, nonce uint64) error {
	now := g.now()
	lowest := now.Add(-g.window).UnixNano()
	highest := now.Add(g.window).UnixNano()
	if nonce < uint64(lowest) || nonce > uint64(highest) {
		return fmt.Errorf("%w: %d is outside %s of %d", ErrStaleNonce, nonce, g.window, now.UnixNano())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last.Get(caller); ok && nonce <= last {
		return fmt.Errorf("%w: %d, last accepted %d", ErrReusedNonce, nonce, last)
	}
	g.last.Put(caller, nonce)
	return nil
}

// withAuthentication resolves the caller of every request before it reaches
// next. Requests with a bad signature or a replayed nonce are rejected
// outright.
func withAuthentication(log logging.Logger, maxBodySize int64, replay *replayGuard, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to read request: %s", err), http.StatusRequestEntityTooLarge)
			return
		}

		caller, nonce, err := authenticate(r.Header, r.URL.Path, body)
		if err == nil && caller != codec.EmptyAddress {
			err = replay.accept(caller, nonce)
		}
		if err != nil {
			log.Debug("rejected request",
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// Sign sets the signature and nonce headers of a request to path carrying
// body.
func Sign(header http.Header, privateKey ed25519.PrivateKey, path string, nonce uint64, body []byte) error {
	msg, err := SignedMessage(path, nonce, body)
	if err != nil {
		return err
	}
	publicKey := privateKey.Public().(ed25519.PublicKey)
	header.Set(PublicKeyHeader, hex.EncodeToString(publicKey))
	header.Set(NonceHeader, strconv.FormatUint(nonce, 10))
	header.Set(SignatureHeader, hex.EncodeToString(ed25519.Sign(privateKey, msg)))
	return nil
}
