// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the observable events of the filter registry and
// the emitters that deliver them.
package events

import (
	"context"
	"sync"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/hypersdk/codec"
)

// Type identifies the kind of registry event.
type Type string

const (
	TypeOperatorUpdated     Type = "OperatorUpdated"
	TypeCodeHashUpdated     Type = "CodeHashUpdated"
	TypeSubscriptionUpdated Type = "SubscriptionUpdated"
	TypeRegistrationUpdated Type = "RegistrationUpdated"
)

// Event is implemented by every registry event. Each event carries the
// registrant it concerns and the state after the change.
type Event interface {
	Type() Type
	Registrant() codec.Address
}

// OperatorUpdated is emitted when an operator is added to or removed from a
// registrant's filtered operators.
type OperatorUpdated struct {
	RegistrantAddress codec.Address
	Operator          codec.Address
	Filtered          bool
}

func (OperatorUpdated) Type() Type                  { return TypeOperatorUpdated }
func (e OperatorUpdated) Registrant() codec.Address { return e.RegistrantAddress }

// CodeHashUpdated is emitted when a code hash is added to or removed from a
// registrant's filtered code hashes.
type CodeHashUpdated struct {
	RegistrantAddress codec.Address
	CodeHash          ids.ID
	Filtered          bool
}

func (CodeHashUpdated) Type() Type                  { return TypeCodeHashUpdated }
func (e CodeHashUpdated) Registrant() codec.Address { return e.RegistrantAddress }

// SubscriptionUpdated is emitted when a registrant subscribes to or
// unsubscribes from another registrant.
type SubscriptionUpdated struct {
	RegistrantAddress codec.Address
	Subscription      codec.Address
	Subscribed        bool
}

func (SubscriptionUpdated) Type() Type                  { return TypeSubscriptionUpdated }
func (e SubscriptionUpdated) Registrant() codec.Address { return e.RegistrantAddress }

// RegistrationUpdated is emitted on register and unregister.
type RegistrationUpdated struct {
	RegistrantAddress codec.Address
	Registered        bool
}

func (RegistrationUpdated) Type() Type                  { return TypeRegistrationUpdated }
func (e RegistrationUpdated) Registrant() codec.Address { return e.RegistrantAddress }

// Emitter receives committed registry events. Emit must not block for long:
// it runs while the registry still serializes callers.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NoEmitter drops every event
type NoEmitter struct{}

func (NoEmitter) Emit(context.Context, Event) {}

// Multi fans every event out to each emitter in order
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		e.Emit(ctx, event)
	}
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset forgets every recorded event
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
