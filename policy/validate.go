// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package policy

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

var (
	ErrInvalidPolicy  = errors.New("invalid policy")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrTooManyEntries = errors.New("too many entries")
)

// Entries is a policy with its addresses and code hashes decoded
type Entries struct {
	Registrant   codec.Address
	Subscription codec.Address
	Subscribed   bool
	Operators    []codec.Address
	CodeHashes   []ids.ID
}

// Parse decodes every address and code hash of p
func (p *Policy) Parse() (*Entries, error) {
	if p.Registrant == "" {
		return nil, ErrMissingRegistrant
	}
	registrant, err := addresses.Parse(p.Registrant)
	if err != nil {
		return nil, err
	}
	operators, err := addresses.ParseAll(p.FilteredOperators)
	if err != nil {
		return nil, err
	}
	codeHashes, err := addresses.ParseCodeHashes(p.FilteredCodeHashes)
	if err != nil {
		return nil, err
	}
	e := &Entries{
		Registrant: registrant,
		Operators:  operators,
		CodeHashes: codeHashes,
	}
	if p.Subscription != "" {
		e.Subscription, err = addresses.Parse(p.Subscription)
		if err != nil {
			return nil, err
		}
		e.Subscribed = true
	}
	return e, nil
}

// Rule is a named check run against decoded entries before they are applied
type Rule struct {
	Name  string
	Check func(*Entries) error
}

// Validate runs every rule in order and stops at the first failure
func Validate(e *Entries, rules ...Rule) error {
	for _, rule := range rules {
		if err := rule.Check(e); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, rule.Name, err)
		}
	}
	return nil
}

// StructuralRules are always run by Apply. They reject what the registry
// would reject anyway, but before any request is sent.
func StructuralRules() []Rule {
	return []Rule{
		NoSelfSubscription(),
		NoPlainAccountHash(),
		NoDuplicates(),
	}
}

func NoSelfSubscription() Rule {
	return Rule{
		Name: "self-subscription",
		Check: func(e *Entries) error {
			if e.Subscribed && e.Subscription == e.Registrant {
				return registry.ErrCannotSubscribeToSelf
			}
			return nil
		},
	}
}

func NoPlainAccountHash() Rule {
	return Rule{
		Name: "plain-account-hash",
		Check: func(e *Entries) error {
			for _, codeHash := range e.CodeHashes {
				if codeHash == ids.Empty {
					return registry.ErrCannotFilterPlainAccounts
				}
			}
			return nil
		},
	}
}

func NoDuplicates() Rule {
	return Rule{
		Name: "duplicates",
		Check: func(e *Entries) error {
			if err := unique(e.Operators, addresses.Format); err != nil {
				return err
			}
			return unique(e.CodeHashes, addresses.FormatCodeHash)
		},
	}
}

func unique[T codec.Address | ids.ID](list []T, format func(T) string) error {
	seen := set.NewSet[T](len(list))
	for _, entry := range list {
		if seen.Contains(entry) {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, format(entry))
		}
		seen.Add(entry)
	}
	return nil
}

// WithinLimits rejects lists a registrant could not hold directly. A zero
// limit is unbounded.
func WithinLimits(limits registry.Limits) Rule {
	return Rule{
		Name: "limits",
		Check: func(e *Entries) error {
			if limits.MaxFilteredOperators > 0 && len(e.Operators) > limits.MaxFilteredOperators {
				return fmt.Errorf("%w: %d operators, max %d", ErrTooManyEntries, len(e.Operators), limits.MaxFilteredOperators)
			}
			if limits.MaxFilteredCodeHashes > 0 && len(e.CodeHashes) > limits.MaxFilteredCodeHashes {
				return fmt.Errorf("%w: %d code hashes, max %d", ErrTooManyEntries, len(e.CodeHashes), limits.MaxFilteredCodeHashes)
			}
			return nil
		},
	}
}
