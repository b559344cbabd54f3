// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package policy reads and writes curated filter lists as YAML so they can
// be reviewed, shared and applied to other registrants.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/ids"
	"gopkg.in/yaml.v2"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

var ErrMissingRegistrant = errors.New("policy has no registrant")

// Source is read by Export. registry.FilterRegistry and api.Client both
// satisfy it.
type Source interface {
	IsRegistered(ctx context.Context, registrant codec.Address) (bool, error)
	SubscriptionOf(ctx context.Context, registrant codec.Address) (codec.Address, bool, error)
	FilteredOperators(ctx context.Context, registrant codec.Address) ([]codec.Address, error)
	FilteredCodeHashes(ctx context.Context, registrant codec.Address) ([]ids.ID, error)
}

// Target is written by Apply on behalf of a fixed caller, such as a
// registry.Session or a signing api.Client.
type Target interface {
	IsRegistered(ctx context.Context, registrant codec.Address) (bool, error)
	SubscriptionOf(ctx context.Context, registrant codec.Address) (codec.Address, bool, error)
	Register(ctx context.Context, registrant codec.Address) error
	Subscribe(ctx context.Context, registrant, subscribeTo codec.Address) error
	UpdateOperators(ctx context.Context, registrant codec.Address, operators []codec.Address, filtered bool) error
	UpdateCodeHashes(ctx context.Context, registrant codec.Address, codeHashes []ids.ID, filtered bool) error
}

type Policy struct {
	Registrant         string   `yaml:"registrant"`
	Subscription       string   `yaml:"subscription,omitempty"`
	FilteredOperators  []string `yaml:"filteredOperators,omitempty"`
	FilteredCodeHashes []string `yaml:"filteredCodeHashes,omitempty"`
}

// Export captures registrant's direct lists and subscription
func Export(ctx context.Context, r Source, registrant codec.Address) (*Policy, error) {
	registered, err := r.IsRegistered(ctx, registrant)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRegistered, addresses.Format(registrant))
	}
	subscription, subscribed, err := r.SubscriptionOf(ctx, registrant)
	if err != nil {
		return nil, err
	}
	operators, err := r.FilteredOperators(ctx, registrant)
	if err != nil {
		return nil, err
	}
	codeHashes, err := r.FilteredCodeHashes(ctx, registrant)
	if err != nil {
		return nil, err
	}

	p := &Policy{
		Registrant:         addresses.Format(registrant),
		FilteredOperators:  addresses.FormatAll(operators),
		FilteredCodeHashes: addresses.FormatCodeHashes(codeHashes),
	}
	if subscribed {
		p.Subscription = addresses.Format(subscription)
	}
	return p, nil
}

// Apply registers the policy's registrant if needed, subscribes it, and adds
// every listed entry in batches of at most batchSize. The policy is checked
// against StructuralRules and then rules before anything is sent. Each batch
// commits on its own, so a failure can leave earlier batches applied.
func Apply(ctx context.Context, r Target, p *Policy, batchSize int, rules ...Rule) error {
	if batchSize <= 0 {
		return fmt.Errorf("invalid batch size %d", batchSize)
	}
	e, err := p.Parse()
	if err != nil {
		return err
	}
	if err := Validate(e, append(StructuralRules(), rules...)...); err != nil {
		return err
	}
	registrant := e.Registrant

	registered, err := r.IsRegistered(ctx, registrant)
	if err != nil {
		return err
	}
	if !registered {
		if err := r.Register(ctx, registrant); err != nil {
			return err
		}
	}

	// subscribing clears direct entries, so it has to happen first
	if e.Subscribed {
		current, subscribed, err := r.SubscriptionOf(ctx, registrant)
		if err != nil {
			return err
		}
		if !subscribed || current != e.Subscription {
			if err := r.Subscribe(ctx, registrant, e.Subscription); err != nil {
				return err
			}
		}
	}

	for _, batch := range chunk(e.Operators, batchSize) {
		if err := r.UpdateOperators(ctx, registrant, batch, true); err != nil {
			return err
		}
	}
	for _, batch := range chunk(e.CodeHashes, batchSize) {
		if err := r.UpdateCodeHashes(ctx, registrant, batch, true); err != nil {
			return err
		}
	}
	return nil
}

func chunk[T codec.Address | ids.ID](list []T, size int) [][]T {
	var chunks [][]T
	for len(list) > size {
		chunks = append(chunks, list[:size])
		list = list[size:]
	}
	if len(list) > 0 {
		chunks = append(chunks, list)
	}
	return chunks
}

func Marshal(p *Policy) ([]byte, error) {
	return yaml.Marshal(p)
}

func Unmarshal(data []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if p.Registrant == "" {
		return nil, ErrMissingRegistrant
	}
	return p, nil
}

func ReadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func WriteFile(path string, p *Policy) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
