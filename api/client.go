// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/atomic"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

// Client calls a node's JSON-RPC service. With a key set every request is
// signed and acts as CallerAddress(key).
type Client struct {
	uri  string
	key  ed25519.PrivateKey
	http *http.Client

	lastNonce atomic.Uint64
}

// NewClient targets the node at uri, such as http://127.0.0.1:9650. key may
// be nil for read-only use.
func NewClient(uri string, key ed25519.PrivateKey) *Client {
	return &Client{
		uri:  strings.TrimSuffix(uri, "/") + RPCEndpoint,
		key:  key,
		http: http.DefaultClient,
	}
}

// nextNonce returns the current time in unix nanoseconds, bumped past the
// previous nonce so concurrent calls never share one.
func (c *Client) nextNonce() uint64 {
	now := uint64(time.Now().UnixNano())
	for {
		last := c.lastNonce.Load()
		next := max(now, last+1)
		if c.lastNonce.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(ServiceName+"."+method, args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != nil {
		if err := Sign(req.Header, c.key, RPCEndpoint, c.nextNonce(), body); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method string, args interface{}) error {
	return c.call(ctx, method, args, &SuccessReply{})
}

func (c *Client) Register(ctx context.Context, registrant codec.Address) error {
	return c.mutate(ctx, "Register", &RegistrantArgs{Registrant: addresses.Format(registrant)})
}

func (c *Client) RegisterAndSubscribe(ctx context.Context, registrant, subscribeTo codec.Address) error {
	return c.mutate(ctx, "RegisterAndSubscribe", targetArgs(registrant, subscribeTo))
}

func (c *Client) RegisterAndCopyEntries(ctx context.Context, registrant, copyFrom codec.Address) error {
	return c.mutate(ctx, "RegisterAndCopyEntries", targetArgs(registrant, copyFrom))
}

func (c *Client) Unregister(ctx context.Context, registrant codec.Address) error {
	return c.mutate(ctx, "Unregister", &RegistrantArgs{Registrant: addresses.Format(registrant)})
}

func (c *Client) UpdateOperators(ctx context.Context, registrant codec.Address, operators []codec.Address, filtered bool) error {
	return c.mutate(ctx, "UpdateOperators", &OperatorsArgs{
		Registrant: addresses.Format(registrant),
		Operators:  addresses.FormatAll(operators),
		Filtered:   filtered,
	})
}

func (c *Client) UpdateCodeHashes(ctx context.Context, registrant codec.Address, codeHashes []ids.ID, filtered bool) error {
	return c.mutate(ctx, "UpdateCodeHashes", &CodeHashesArgs{
		Registrant: addresses.Format(registrant),
		CodeHashes: addresses.FormatCodeHashes(codeHashes),
		Filtered:   filtered,
	})
}

func (c *Client) Subscribe(ctx context.Context, registrant, subscribeTo codec.Address) error {
	return c.mutate(ctx, "Subscribe", targetArgs(registrant, subscribeTo))
}

func (c *Client) Unsubscribe(ctx context.Context, registrant codec.Address, copyExistingEntries bool) error {
	return c.mutate(ctx, "Unsubscribe", &UnsubscribeArgs{
		Registrant:          addresses.Format(registrant),
		CopyExistingEntries: copyExistingEntries,
	})
}

func (c *Client) CopyEntriesOf(ctx context.Context, registrant, registrantToCopy codec.Address) error {
	return c.mutate(ctx, "CopyEntriesOf", targetArgs(registrant, registrantToCopy))
}

func (c *Client) IsOperatorAllowed(ctx context.Context, registrant, operator codec.Address) (bool, error) {
	reply := &BoolReply{}
	err := c.call(ctx, "IsOperatorAllowed", &OperatorArgs{
		Registrant: addresses.Format(registrant),
		Operator:   addresses.Format(operator),
	}, reply)
	return reply.Value, err
}

func (c *Client) IsRegistered(ctx context.Context, registrant codec.Address) (bool, error) {
	reply := &BoolReply{}
	err := c.call(ctx, "IsRegistered", &RegistrantArgs{Registrant: addresses.Format(registrant)}, reply)
	return reply.Value, err
}

func (c *Client) FilteredOperators(ctx context.Context, registrant codec.Address) ([]codec.Address, error) {
	reply := &AddressesReply{}
	if err := c.call(ctx, "FilteredOperators", &RegistrantArgs{Registrant: addresses.Format(registrant)}, reply); err != nil {
		return nil, err
	}
	return addresses.ParseAll(reply.Addresses)
}

func (c *Client) FilteredCodeHashes(ctx context.Context, registrant codec.Address) ([]ids.ID, error) {
	reply := &CodeHashesReply{}
	if err := c.call(ctx, "FilteredCodeHashes", &RegistrantArgs{Registrant: addresses.Format(registrant)}, reply); err != nil {
		return nil, err
	}
	return addresses.ParseCodeHashes(reply.CodeHashes)
}

func (c *Client) SubscriptionOf(ctx context.Context, registrant codec.Address) (codec.Address, bool, error) {
	reply := &SubscriptionReply{}
	if err := c.call(ctx, "SubscriptionOf", &RegistrantArgs{Registrant: addresses.Format(registrant)}, reply); err != nil {
		return codec.EmptyAddress, false, err
	}
	if !reply.Subscribed {
		return codec.EmptyAddress, false, nil
	}
	subscription, err := addresses.Parse(reply.Subscription)
	return subscription, true, err
}

func (c *Client) Subscribers(ctx context.Context, registrant codec.Address) ([]codec.Address, error) {
	reply := &AddressesReply{}
	if err := c.call(ctx, "Subscribers", &RegistrantArgs{Registrant: addresses.Format(registrant)}, reply); err != nil {
		return nil, err
	}
	return addresses.ParseAll(reply.Addresses)
}

func (c *Client) CodeHashOf(ctx context.Context, account codec.Address) (ids.ID, error) {
	reply := &CodeHashReply{}
	if err := c.call(ctx, "CodeHashOf", &AccountArgs{Account: addresses.Format(account)}, reply); err != nil {
		return ids.Empty, err
	}
	return addresses.ParseCodeHash(reply.CodeHash)
}

func targetArgs(registrant, target codec.Address) *TargetArgs {
	return &TargetArgs{
		Registrant: addresses.Format(registrant),
		Target:     addresses.Format(target),
	}
}
