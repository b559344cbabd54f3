// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import "errors"

var (
	ErrNotRegistered     = errors.New("registrant not registered")
	ErrAlreadyRegistered = errors.New("registrant already registered")

	ErrCannotSubscribeToSelf = errors.New("cannot subscribe to self")
	ErrCyclicSubscription    = errors.New("subscription target is subscribed to registrant")
	ErrTargetHasSubscription = errors.New("subscription target has its own subscription")
	ErrHasSubscribers        = errors.New("registrant with subscribers cannot subscribe")
	ErrAlreadySubscribed     = errors.New("already subscribed")
	ErrNotSubscribed         = errors.New("not subscribed")
	ErrCannotCopyFromSelf    = errors.New("cannot copy entries from self")

	ErrCannotFilterOwnCode       = errors.New("cannot filter own code hash")
	ErrCannotFilterPlainAccounts = errors.New("cannot filter the code hash of plain accounts")

	ErrBatchTooLarge = errors.New("batch too large")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrInvalidRecord = errors.New("invalid registration record")
)
