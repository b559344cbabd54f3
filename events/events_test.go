// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

func TestMultiAndRecorder(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	first := &Recorder{}
	second := &Recorder{}
	emitter := Multi{first, second, NoEmitter{}, LogEmitter{Log: logging.NoLog{}}}

	event := OperatorUpdated{
		RegistrantAddress: codec.Address{1},
		Operator:          codec.Address{2},
		Filtered:          true,
	}
	emitter.Emit(ctx, event)

	r.Equal([]Event{event}, first.Events())
	r.Equal([]Event{event}, second.Events())

	first.Reset()
	r.Empty(first.Events())
	r.Len(second.Events(), 1)
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(*require.Assertions, Envelope)
	}{
		{
			name:  "operator",
			event: OperatorUpdated{RegistrantAddress: codec.Address{1}, Operator: codec.Address{2}, Filtered: true},
			check: func(r *require.Assertions, env Envelope) {
				r.Equal(addresses.Format(codec.Address{2}), env.Operator)
				r.NotNil(env.Filtered)
				r.True(*env.Filtered)
				r.Nil(env.Subscribed)
			},
		},
		{
			name:  "code hash",
			event: CodeHashUpdated{RegistrantAddress: codec.Address{1}, CodeHash: ids.ID{3}, Filtered: false},
			check: func(r *require.Assertions, env Envelope) {
				r.Equal(addresses.FormatCodeHash(ids.ID{3}), env.CodeHash)
				r.NotNil(env.Filtered)
				r.False(*env.Filtered)
			},
		},
		{
			name:  "subscription",
			event: SubscriptionUpdated{RegistrantAddress: codec.Address{1}, Subscription: codec.Address{4}, Subscribed: true},
			check: func(r *require.Assertions, env Envelope) {
				r.Equal(addresses.Format(codec.Address{4}), env.Subscription)
				r.NotNil(env.Subscribed)
				r.True(*env.Subscribed)
			},
		},
		{
			name:  "registration",
			event: RegistrationUpdated{RegistrantAddress: codec.Address{1}, Registered: false},
			check: func(r *require.Assertions, env Envelope) {
				r.NotNil(env.Registered)
				r.False(*env.Registered)
				r.Nil(env.Filtered)
			},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			env := NewEnvelope(uint64(i), tt.event)
			r.Equal(uint64(i), env.Sequence)
			r.Equal(tt.event.Type(), env.Type)
			r.Equal(addresses.Format(codec.Address{1}), env.Registrant)
			tt.check(r, env)
		})
	}
}

func TestBroadcaster(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	b := NewBroadcaster(logging.NoLog{}, 1)
	events, cancel := b.Subscribe()
	r.Equal(1, b.Subscribers())

	b.Emit(ctx, RegistrationUpdated{RegistrantAddress: codec.Address{1}, Registered: true})
	// buffer is full, so the second event is dropped for this subscriber
	b.Emit(ctx, RegistrationUpdated{RegistrantAddress: codec.Address{2}, Registered: true})
	r.Equal(uint64(1), b.Dropped())

	env := <-events
	r.Equal(uint64(1), env.Sequence)
	r.Equal(addresses.Format(codec.Address{1}), env.Registrant)

	b.Emit(ctx, RegistrationUpdated{RegistrantAddress: codec.Address{3}, Registered: true})
	env = <-events
	r.Equal(uint64(3), env.Sequence)

	cancel()
	cancel()
	_, ok := <-events
	r.False(ok)
	r.Zero(b.Subscribers())
}

func TestBroadcasterClose(t *testing.T) {
	r := require.New(t)

	b := NewBroadcaster(logging.NoLog{}, 4)
	events, cancel := b.Subscribe()
	b.Close()

	_, ok := <-events
	r.False(ok)
	cancel()

	// emitting and subscribing after close are safe
	b.Emit(context.Background(), RegistrationUpdated{})
	late, _ := b.Subscribe()
	_, ok = <-late
	r.False(ok)
}
