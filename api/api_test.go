// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
	"github.com/ava-labs/hypersdk/x/operatorfilter/events"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

var (
	marketplace = codec.Address{0x10}
	exchange    = codec.Address{0x11}
	marketHash  = codehash.Compute([]byte("market"))
)

type node struct {
	server      *httptest.Server
	broadcaster *events.Broadcaster
}

func newNode(t *testing.T) *node {
	log := logging.NoLog{}
	broadcaster := events.NewBroadcaster(log, 16)
	metrics := prometheus.NewRegistry()

	filters, err := registry.New(log, storage.NewMemory(), registry.Config{
		Limits:     registry.DefaultLimits(),
		Authorizer: access.Authorizer{},
		Emitter:    broadcaster,
		Registerer: metrics,
		Namespace:  "operatorfilter",
	})
	require.NoError(t, err)

	handler, err := NewHandler(log, Config{
		Registry:    filters,
		Broadcaster: broadcaster,
		Gatherer:    metrics,
		MaxBodySize: units.MiB,
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		broadcaster.Close()
		server.Close()
	})
	return &node{server: server, broadcaster: broadcaster}
}

func newKey(t *testing.T) (ed25519.PrivateKey, codec.Address) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv, CallerAddress(pub)
}

func TestSignedClient(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	n := newNode(t)
	key, caller := newKey(t)
	client := NewClient(n.server.URL, key)

	r.NoError(client.Register(ctx, caller))
	registered, err := client.IsRegistered(ctx, caller)
	r.NoError(err)
	r.True(registered)

	r.NoError(client.UpdateOperators(ctx, caller, []codec.Address{exchange, marketplace}, true))
	r.NoError(client.UpdateCodeHashes(ctx, caller, []ids.ID{marketHash}, true))

	operators, err := client.FilteredOperators(ctx, caller)
	r.NoError(err)
	r.Equal([]codec.Address{marketplace, exchange}, operators)
	hashes, err := client.FilteredCodeHashes(ctx, caller)
	r.NoError(err)
	r.Equal([]ids.ID{marketHash}, hashes)

	allowed, err := client.IsOperatorAllowed(ctx, caller, marketplace)
	r.NoError(err)
	r.False(allowed)

	codeHash, err := client.CodeHashOf(ctx, marketplace)
	r.NoError(err)
	r.Equal(codehash.Empty, codeHash)

	err = client.Register(ctx, caller)
	r.ErrorContains(err, registry.ErrAlreadyRegistered.Error())
}

func TestSubscriptionOverRPC(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	n := newNode(t)
	curatorKey, curator := newKey(t)
	holderKey, holder := newKey(t)

	r.NoError(NewClient(n.server.URL, curatorKey).Register(ctx, curator))
	client := NewClient(n.server.URL, holderKey)
	r.NoError(client.RegisterAndSubscribe(ctx, holder, curator))

	subscription, subscribed, err := client.SubscriptionOf(ctx, holder)
	r.NoError(err)
	r.True(subscribed)
	r.Equal(curator, subscription)
	subscribers, err := client.Subscribers(ctx, curator)
	r.NoError(err)
	r.Equal([]codec.Address{holder}, subscribers)

	r.NoError(client.Unsubscribe(ctx, holder, true))
	_, subscribed, err = client.SubscriptionOf(ctx, holder)
	r.NoError(err)
	r.False(subscribed)
}

func TestUnsignedMutationIsUnauthorized(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	n := newNode(t)
	_, caller := newKey(t)

	client := NewClient(n.server.URL, nil)
	r.ErrorContains(client.Register(ctx, caller), access.ErrUnauthorized.Error())

	// queries need no signature
	registered, err := client.IsRegistered(ctx, caller)
	r.NoError(err)
	r.False(registered)
}

func TestSignatureForAnotherCallerIsUnauthorized(t *testing.T) {
	r := require.New(t)
	n := newNode(t)
	key, _ := newKey(t)
	_, victim := newKey(t)

	err := NewClient(n.server.URL, key).Register(context.Background(), victim)
	r.ErrorContains(err, access.ErrUnauthorized.Error())
}

// post sends body to the RPC endpoint with headers signed over signedPath
// and signedBody, and returns the response status.
func post(t *testing.T, n *node, key ed25519.PrivateKey, signedPath string, nonce uint64, signedBody, body []byte) int {
	r := require.New(t)
	req, err := http.NewRequest(http.MethodPost, n.server.URL+RPCEndpoint, bytes.NewReader(body))
	r.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	r.NoError(Sign(req.Header, key, signedPath, nonce, signedBody))

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func encodeRequest(t *testing.T, method string, args interface{}) []byte {
	body, err := json2.EncodeClientRequest(ServiceName+"."+method, args)
	require.NoError(t, err)
	return body
}

func TestTamperedRequestIsRejected(t *testing.T) {
	n := newNode(t)
	key, caller := newKey(t)
	body := encodeRequest(t, "Register", &RegistrantArgs{Registrant: addresses.Format(caller)})
	nonce := uint64(time.Now().UnixNano())

	tests := []struct {
		name       string
		signedPath string
		signedBody []byte
	}{
		{
			name:       "other body",
			signedPath: RPCEndpoint,
			signedBody: []byte("something else"),
		},
		{
			name:       "other endpoint",
			signedPath: EventsEndpoint,
			signedBody: body,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			r.Equal(http.StatusUnauthorized, post(t, n, key, tt.signedPath, nonce+uint64(i), tt.signedBody, body))

			registered, err := NewClient(n.server.URL, nil).IsRegistered(context.Background(), caller)
			r.NoError(err)
			r.False(registered)
		})
	}
}

func TestReplayedRequestIsRejected(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	n := newNode(t)
	key, caller := newKey(t)
	client := NewClient(n.server.URL, key)
	r.NoError(client.Register(ctx, caller))
	r.NoError(client.UpdateOperators(ctx, caller, []codec.Address{marketplace}, true))

	unfilter := encodeRequest(t, "UpdateOperators", &OperatorsArgs{
		Registrant: addresses.Format(caller),
		Operators:  addresses.FormatAll([]codec.Address{marketplace}),
		Filtered:   false,
	})
	nonce := client.nextNonce()
	r.Equal(http.StatusOK, post(t, n, key, RPCEndpoint, nonce, unfilter, unfilter))

	// the caller filters again with a later request
	r.NoError(client.UpdateOperators(ctx, caller, []codec.Address{marketplace}, true))

	// the captured unfilter request cannot be sent again
	r.Equal(http.StatusUnauthorized, post(t, n, key, RPCEndpoint, nonce, unfilter, unfilter))
	allowed, err := client.IsOperatorAllowed(ctx, caller, marketplace)
	r.NoError(err)
	r.False(allowed)

	// nor re-signed with a nonce outside the window
	stale := uint64(time.Now().Add(-2 * DefaultReplayWindow).UnixNano())
	r.Equal(http.StatusUnauthorized, post(t, n, key, RPCEndpoint, stale, unfilter, unfilter))
	allowed, err = client.IsOperatorAllowed(ctx, caller, marketplace)
	r.NoError(err)
	r.False(allowed)
}

func TestReplayGuard(t *testing.T) {
	r := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	g := newReplayGuard(time.Minute, 1)
	g.now = func() time.Time { return now }

	alice := codec.Address{0x0a}
	bob := codec.Address{0x0b}
	base := uint64(now.UnixNano())

	r.NoError(g.accept(alice, base))
	r.ErrorIs(g.accept(alice, base), ErrReusedNonce)
	r.ErrorIs(g.accept(alice, base-1), ErrReusedNonce)
	r.NoError(g.accept(alice, base+1))

	r.ErrorIs(g.accept(bob, uint64(now.Add(-2*time.Minute).UnixNano())), ErrStaleNonce)
	r.ErrorIs(g.accept(bob, uint64(now.Add(2*time.Minute).UnixNano())), ErrStaleNonce)
	r.NoError(g.accept(bob, base))
}

func TestEventStream(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	n := newNode(t)
	key, caller := newKey(t)

	url := "ws" + strings.TrimPrefix(n.server.URL, "http") + EventsEndpoint
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	r.NoError(err)
	defer resp.Body.Close()
	defer conn.Close()
	r.Eventually(func() bool {
		return n.broadcaster.Subscribers() == 1
	}, 5*time.Second, 10*time.Millisecond)

	client := NewClient(n.server.URL, key)
	r.NoError(client.Register(ctx, caller))
	r.NoError(client.UpdateOperators(ctx, caller, []codec.Address{marketplace}, true))

	r.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var first, second events.Envelope
	r.NoError(conn.ReadJSON(&first))
	r.NoError(conn.ReadJSON(&second))

	r.Equal(events.TypeRegistrationUpdated, first.Type)
	r.NotNil(first.Registered)
	r.True(*first.Registered)
	r.Equal(events.TypeOperatorUpdated, second.Type)
	r.Greater(second.Sequence, first.Sequence)
	r.NotNil(second.Filtered)
	r.True(*second.Filtered)
}

func TestMetricsEndpoint(t *testing.T) {
	r := require.New(t)
	n := newNode(t)
	key, caller := newKey(t)
	r.NoError(NewClient(n.server.URL, key).Register(context.Background(), caller))

	resp, err := http.Get(n.server.URL + MetricsEndpoint)
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	r.NoError(err)
	r.Contains(string(body), "operatorfilter_registry_operations_total")
}
