// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"encoding/hex"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"
)

// LogEmitter writes every event to a logger at info level
type LogEmitter struct {
	Log logging.Logger
}

func (l LogEmitter) Emit(_ context.Context, event Event) {
	registrant := event.Registrant()
	fields := []zap.Field{
		zap.String("type", string(event.Type())),
		zap.String("registrant", hex.EncodeToString(registrant[:])),
	}

	switch e := event.(type) {
	case OperatorUpdated:
		fields = append(fields,
			zap.String("operator", hex.EncodeToString(e.Operator[:])),
			zap.Bool("filtered", e.Filtered),
		)
	case CodeHashUpdated:
		fields = append(fields,
			zap.String("codeHash", hex.EncodeToString(e.CodeHash[:])),
			zap.Bool("filtered", e.Filtered),
		)
	case SubscriptionUpdated:
		fields = append(fields,
			zap.String("subscription", hex.EncodeToString(e.Subscription[:])),
			zap.Bool("subscribed", e.Subscribed),
		)
	case RegistrationUpdated:
		fields = append(fields, zap.Bool("registered", e.Registered))
	}

	l.Log.Info("registry event", fields...)
}
