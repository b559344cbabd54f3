// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

// Envelope is the wire form of an event, numbered in emission order.
type Envelope struct {
	Sequence     uint64 `json:"sequence"`
	Type         Type   `json:"type"`
	Registrant   string `json:"registrant"`
	Operator     string `json:"operator,omitempty"`
	CodeHash     string `json:"codeHash,omitempty"`
	Subscription string `json:"subscription,omitempty"`
	Filtered     *bool  `json:"filtered,omitempty"`
	Subscribed   *bool  `json:"subscribed,omitempty"`
	Registered   *bool  `json:"registered,omitempty"`
}

// NewEnvelope wraps event with the given sequence number
func NewEnvelope(sequence uint64, event Event) Envelope {
	env := Envelope{
		Sequence:   sequence,
		Type:       event.Type(),
		Registrant: addresses.Format(event.Registrant()),
	}

	switch e := event.(type) {
	case OperatorUpdated:
		env.Operator = addresses.Format(e.Operator)
		env.Filtered = &e.Filtered
	case CodeHashUpdated:
		env.CodeHash = addresses.FormatCodeHash(e.CodeHash)
		env.Filtered = &e.Filtered
	case SubscriptionUpdated:
		env.Subscription = addresses.Format(e.Subscription)
		env.Subscribed = &e.Subscribed
	case RegistrationUpdated:
		env.Registered = &e.Registered
	}
	return env
}

// Broadcaster fans events out to any number of subscribers. A subscriber
// whose buffer is full misses the event rather than stalling the registry.
type Broadcaster struct {
	log        logging.Logger
	bufferSize int

	sequence atomic.Uint64
	dropped  atomic.Uint64
	closed   atomic.Bool

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Envelope
}

func NewBroadcaster(log logging.Logger, bufferSize int) *Broadcaster {
	return &Broadcaster{
		log:        log,
		bufferSize: bufferSize,
		subs:       make(map[uint64]chan Envelope),
	}
}

func (b *Broadcaster) Emit(_ context.Context, event Event) {
	env := NewEnvelope(b.sequence.Inc(), event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed.Load() {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- env:
		default:
			b.dropped.Inc()
			b.log.Warn("dropped event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.Uint64("sequence", env.Sequence),
			)
		}
	}
}

// Subscribe returns a channel of future events and a function that cancels
// the subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Envelope, b.bufferSize)
	if b.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed.Store(true)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
