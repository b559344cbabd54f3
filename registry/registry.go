// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry stores, per registrant, the operators and code hashes
// that may not initiate transfers, and answers whether an operator is
// allowed to act for a registrant.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/state"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
	"github.com/ava-labs/hypersdk/x/operatorfilter/events"
)

// FilterRegistry owns every registrant's filter lists and the subscription
// graph. Mutations are authorized against the registrant they act on and
// either commit completely or not at all.
type FilterRegistry interface {
	// Registration
	Register(ctx context.Context, caller, registrant codec.Address) error
	RegisterAndSubscribe(ctx context.Context, caller, registrant, subscribeTo codec.Address) error
	RegisterAndCopyEntries(ctx context.Context, caller, registrant, copyFrom codec.Address) error
	Unregister(ctx context.Context, caller, registrant codec.Address) error

	// Filter updates
	UpdateOperator(ctx context.Context, caller, registrant, operator codec.Address, filtered bool) error
	UpdateOperators(ctx context.Context, caller, registrant codec.Address, operators []codec.Address, filtered bool) error
	UpdateCodeHash(ctx context.Context, caller, registrant codec.Address, codeHash ids.ID, filtered bool) error
	UpdateCodeHashes(ctx context.Context, caller, registrant codec.Address, codeHashes []ids.ID, filtered bool) error

	// Subscriptions
	Subscribe(ctx context.Context, caller, registrant, subscribeTo codec.Address) error
	Unsubscribe(ctx context.Context, caller, registrant codec.Address, copyExistingEntries bool) error
	CopyEntriesOf(ctx context.Context, caller, registrant, registrantToCopy codec.Address) error

	// Queries
	IsOperatorAllowed(ctx context.Context, registrant, operator codec.Address) (bool, error)
	IsRegistered(ctx context.Context, registrant codec.Address) (bool, error)
	IsOperatorFiltered(ctx context.Context, registrant, operator codec.Address) (bool, error)
	IsCodeHashFiltered(ctx context.Context, registrant codec.Address, codeHash ids.ID) (bool, error)
	IsCodeHashOfFiltered(ctx context.Context, registrant, operatorWithCode codec.Address) (bool, error)
	FilteredOperators(ctx context.Context, registrant codec.Address) ([]codec.Address, error)
	FilteredCodeHashes(ctx context.Context, registrant codec.Address) ([]ids.ID, error)
	SubscriptionOf(ctx context.Context, registrant codec.Address) (codec.Address, bool, error)
	Subscribers(ctx context.Context, registrant codec.Address) ([]codec.Address, error)
	CodeHashOf(ctx context.Context, account codec.Address) (ids.ID, error)
	Registration(ctx context.Context, registrant codec.Address) (Registration, error)
}

// Authorizer decides whether caller may mutate registrant's record
type Authorizer interface {
	Authorize(ctx context.Context, caller, registrant codec.Address) error
}

type Config struct {
	Limits Limits

	// Authorizer gates every mutation. Required.
	Authorizer Authorizer

	// CodeHashes resolves operator fingerprints. When nil every operator is
	// treated as a plain account.
	CodeHashes codehash.Reader

	// Emitter receives committed events. Optional.
	Emitter events.Emitter

	// Registerer receives the registry's metrics. Optional.
	Registerer prometheus.Registerer
	Namespace  string
}

type filterRegistry struct {
	log        logging.Logger
	db         state.Mutable
	limits     Limits
	authorizer Authorizer
	codeHashes codehash.Reader
	emitter    events.Emitter
	metrics    *metrics

	// serializes every operation; readers never observe a partial commit
	mu sync.RWMutex
}

type plainAccounts struct{}

func (plainAccounts) CodeHashOf(context.Context, codec.Address) (ids.ID, error) {
	return codehash.Empty, nil
}

// New creates a filter registry persisted in db
func New(log logging.Logger, db state.Mutable, cfg Config) (FilterRegistry, error) {
	if cfg.Authorizer == nil {
		return nil, errors.New("registry requires an authorizer")
	}
	m, err := newMetrics(cfg.Namespace, cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	r := &filterRegistry{
		log:        log,
		db:         db,
		limits:     cfg.Limits,
		authorizer: cfg.Authorizer,
		codeHashes: cfg.CodeHashes,
		emitter:    cfg.Emitter,
		metrics:    m,
	}
	if r.codeHashes == nil {
		r.codeHashes = plainAccounts{}
	}
	if r.emitter == nil {
		r.emitter = events.NoEmitter{}
	}
	return r, nil
}

// Register registers registrant with empty filter lists
func (r *filterRegistry) Register(ctx context.Context, caller, registrant codec.Address) error {
	return r.mutate(ctx, "register", caller, registrant, func(tx *txn) error {
		return tx.register(registrant)
	})
}

// RegisterAndSubscribe registers registrant and subscribes it to subscribeTo
func (r *filterRegistry) RegisterAndSubscribe(ctx context.Context, caller, registrant, subscribeTo codec.Address) error {
	return r.mutate(ctx, "registerAndSubscribe", caller, registrant, func(tx *txn) error {
		if err := tx.register(registrant); err != nil {
			return err
		}
		return tx.subscribe(registrant, subscribeTo)
	})
}

// RegisterAndCopyEntries registers registrant with a snapshot of copyFrom's
// filter lists. Later changes to copyFrom are not propagated.
func (r *filterRegistry) RegisterAndCopyEntries(ctx context.Context, caller, registrant, copyFrom codec.Address) error {
	return r.mutate(ctx, "registerAndCopyEntries", caller, registrant, func(tx *txn) error {
		if _, err := tx.registered(copyFrom); err != nil {
			return err
		}
		if err := tx.register(registrant); err != nil {
			return err
		}
		return tx.copyEntries(registrant, copyFrom)
	})
}

// Unregister clears registrant's lists and subscription and tombstones its
// record. Registrants subscribed to it keep their subscription and inherit
// nothing from then on.
func (r *filterRegistry) Unregister(ctx context.Context, caller, registrant codec.Address) error {
	return r.mutate(ctx, "unregister", caller, registrant, func(tx *txn) error {
		rec, err := tx.registered(registrant)
		if err != nil {
			return err
		}
		if rec.Subscribed {
			if err := tx.detach(registrant, rec); err != nil {
				return err
			}
		}

		rec.Registered = false
		rec.Tombstoned = true
		rec.FilteredOperators = nil
		rec.FilteredCodeHashes = nil
		tx.emit(events.RegistrationUpdated{RegistrantAddress: registrant, Registered: false})
		return nil
	})
}

// UpdateOperator filters or unfilters a single operator
func (r *filterRegistry) UpdateOperator(ctx context.Context, caller, registrant, operator codec.Address, filtered bool) error {
	return r.mutate(ctx, "updateOperator", caller, registrant, func(tx *txn) error {
		return tx.updateOperators(registrant, []codec.Address{operator}, filtered)
	})
}

// UpdateOperators filters or unfilters every operator in operators
func (r *filterRegistry) UpdateOperators(ctx context.Context, caller, registrant codec.Address, operators []codec.Address, filtered bool) error {
	return r.mutate(ctx, "updateOperators", caller, registrant, func(tx *txn) error {
		return tx.updateOperators(registrant, operators, filtered)
	})
}

// UpdateCodeHash filters or unfilters a single code hash
func (r *filterRegistry) UpdateCodeHash(ctx context.Context, caller, registrant codec.Address, codeHash ids.ID, filtered bool) error {
	return r.mutate(ctx, "updateCodeHash", caller, registrant, func(tx *txn) error {
		return tx.updateCodeHashes(registrant, []ids.ID{codeHash}, filtered)
	})
}

// UpdateCodeHashes filters or unfilters every code hash in codeHashes
func (r *filterRegistry) UpdateCodeHashes(ctx context.Context, caller, registrant codec.Address, codeHashes []ids.ID, filtered bool) error {
	return r.mutate(ctx, "updateCodeHashes", caller, registrant, func(tx *txn) error {
		return tx.updateCodeHashes(registrant, codeHashes, filtered)
	})
}

// mutate authorizes caller, runs fn against a fresh transaction and commits
// it only if fn succeeds.
func (r *filterRegistry) mutate(ctx context.Context, op string, caller, registrant codec.Address, fn func(*txn) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		r.metrics.operation(op, err)
		if err != nil {
			r.log.Debug("registry operation failed",
				zap.String("operation", op),
				zap.String("registrant", addresses.Format(registrant)),
				zap.Error(err),
			)
		}
	}()

	if err := r.authorizer.Authorize(ctx, caller, registrant); err != nil {
		return err
	}

	tx := r.newTxn(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// load reads a record outside of any transaction. Missing records are the
// zero Registration.
func (r *filterRegistry) load(ctx context.Context, registrant codec.Address) (*Registration, error) {
	data, err := r.db.GetValue(ctx, registrationKey(registrant))
	if errors.Is(err, database.ErrNotFound) || (err == nil && len(data) == 0) {
		return &Registration{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registration: %w", err)
	}

	rec := &Registration{}
	if err := rec.Unmarshal(data); err != nil {
		return nil, err
	}
	return rec, nil
}

// txn stages record changes and events until commit. Records are loaded
// once and shared by every step, so a step always sees earlier steps'
// changes.
type txn struct {
	r   *filterRegistry
	ctx context.Context

	records map[codec.Address]*Registration
	dirty   []codec.Address
	events  []events.Event
}

func (r *filterRegistry) newTxn(ctx context.Context) *txn {
	return &txn{
		r:       r,
		ctx:     ctx,
		records: make(map[codec.Address]*Registration),
	}
}

func (tx *txn) get(registrant codec.Address) (*Registration, error) {
	if rec, ok := tx.records[registrant]; ok {
		return rec, nil
	}
	rec, err := tx.r.load(tx.ctx, registrant)
	if err != nil {
		return nil, err
	}
	tx.records[registrant] = rec
	return rec, nil
}

// registered returns the record of registrant, marked for writing, or
// ErrNotRegistered.
func (tx *txn) registered(registrant codec.Address) (*Registration, error) {
	rec, err := tx.get(registrant)
	if err != nil {
		return nil, err
	}
	if !rec.Registered {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, addresses.Format(registrant))
	}
	tx.markDirty(registrant)
	return rec, nil
}

func (tx *txn) markDirty(registrant codec.Address) {
	for _, d := range tx.dirty {
		if d == registrant {
			return
		}
	}
	tx.dirty = append(tx.dirty, registrant)
}

func (tx *txn) emit(event events.Event) {
	tx.events = append(tx.events, event)
}

// prior is what a dirty record's key held before commit
type prior struct {
	registrant codec.Address
	value      []byte
	found      bool
}

// commit writes every dirty record. If a write fails, the records already
// written are restored so the store never holds half a transaction.
func (tx *txn) commit() error {
	encoded := make([][]byte, len(tx.dirty))
	for i, registrant := range tx.dirty {
		data, err := tx.records[registrant].Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal registration: %w", err)
		}
		encoded[i] = data
	}

	priors := make([]prior, len(tx.dirty))
	for i, registrant := range tx.dirty {
		value, err := tx.r.db.GetValue(tx.ctx, registrationKey(registrant))
		switch {
		case errors.Is(err, database.ErrNotFound):
			priors[i] = prior{registrant: registrant}
		case err != nil:
			return fmt.Errorf("failed to read registration: %w", err)
		default:
			priors[i] = prior{registrant: registrant, value: value, found: true}
		}
	}

	for i, registrant := range tx.dirty {
		if err := tx.r.db.Insert(tx.ctx, registrationKey(registrant), encoded[i]); err != nil {
			tx.r.log.Error("failed to write registration",
				zap.String("registrant", addresses.Format(registrant)),
				zap.Error(err),
			)
			tx.rollback(priors[:i])
			return fmt.Errorf("failed to write registration: %w", err)
		}
	}
	for _, event := range tx.events {
		tx.r.emitter.Emit(tx.ctx, event)
	}
	return nil
}

func (tx *txn) rollback(written []prior) {
	for i := len(written) - 1; i >= 0; i-- {
		p := written[i]
		key := registrationKey(p.registrant)
		var err error
		if p.found {
			err = tx.r.db.Insert(tx.ctx, key, p.value)
		} else {
			err = tx.r.db.Remove(tx.ctx, key)
		}
		if err != nil {
			tx.r.log.Error("failed to roll back registration",
				zap.String("registrant", addresses.Format(p.registrant)),
				zap.Error(err),
			)
		}
	}
}

func (tx *txn) register(registrant codec.Address) error {
	rec, err := tx.get(registrant)
	if err != nil {
		return err
	}
	if rec.Registered {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, addresses.Format(registrant))
	}
	if rec.Tombstoned {
		return fmt.Errorf("%w: %s was unregistered and cannot be reused", ErrAlreadyRegistered, addresses.Format(registrant))
	}

	rec.Registered = true
	tx.markDirty(registrant)
	tx.emit(events.RegistrationUpdated{RegistrantAddress: registrant, Registered: true})
	return nil
}

func (tx *txn) updateOperators(registrant codec.Address, operators []codec.Address, filtered bool) error {
	rec, err := tx.registered(registrant)
	if err != nil {
		return err
	}
	limits := tx.r.limits
	if len(operators) > limits.MaxBatchSize {
		return fmt.Errorf("%w: %d operators exceeds maximum %d", ErrBatchTooLarge, len(operators), limits.MaxBatchSize)
	}

	for _, operator := range operators {
		if rec.setOperator(operator, filtered) {
			tx.emit(events.OperatorUpdated{
				RegistrantAddress: registrant,
				Operator:          operator,
				Filtered:          filtered,
			})
		}
	}
	if len(rec.FilteredOperators) > limits.MaxFilteredOperators {
		return fmt.Errorf("%w: %d filtered operators exceeds maximum %d", ErrLimitExceeded, len(rec.FilteredOperators), limits.MaxFilteredOperators)
	}
	return nil
}

func (tx *txn) updateCodeHashes(registrant codec.Address, codeHashes []ids.ID, filtered bool) error {
	rec, err := tx.registered(registrant)
	if err != nil {
		return err
	}
	limits := tx.r.limits
	if len(codeHashes) > limits.MaxBatchSize {
		return fmt.Errorf("%w: %d code hashes exceeds maximum %d", ErrBatchTooLarge, len(codeHashes), limits.MaxBatchSize)
	}

	own, err := tx.r.codeHashes.CodeHashOf(tx.ctx, registrant)
	if err != nil {
		return err
	}
	for _, codeHash := range codeHashes {
		if codeHash == codehash.Empty {
			return ErrCannotFilterPlainAccounts
		}
		if codeHash == own {
			return fmt.Errorf("%w: %s", ErrCannotFilterOwnCode, addresses.FormatCodeHash(codeHash))
		}
	}

	for _, codeHash := range codeHashes {
		if rec.setCodeHash(codeHash, filtered) {
			tx.emit(events.CodeHashUpdated{
				RegistrantAddress: registrant,
				CodeHash:          codeHash,
				Filtered:          filtered,
			})
		}
	}
	if len(rec.FilteredCodeHashes) > limits.MaxFilteredCodeHashes {
		return fmt.Errorf("%w: %d filtered code hashes exceeds maximum %d", ErrLimitExceeded, len(rec.FilteredCodeHashes), limits.MaxFilteredCodeHashes)
	}
	return nil
}
