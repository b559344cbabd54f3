// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hook enforces a filter registry on transfers of protected assets.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

const tracerName = "operatorfilter/hook"

var ErrAddressFiltered = errors.New("address filtered")

// AddressFilteredError reports the operator that was refused
type AddressFilteredError struct {
	Operator codec.Address
}

func (e *AddressFilteredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAddressFiltered, addresses.Format(e.Operator))
}

func (*AddressFilteredError) Is(target error) bool {
	return target == ErrAddressFiltered
}

// Filter answers whether operator may act on behalf of registrant.
// registry.FilterRegistry satisfies it.
type Filter interface {
	IsOperatorAllowed(ctx context.Context, registrant, operator codec.Address) (bool, error)
}

type Option func(*TransferHook)

// WithTracer replaces the globally registered tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(h *TransferHook) {
		h.tracer = tracer
	}
}

// WithRegisterer exports check counters under namespace
func WithRegisterer(registerer prometheus.Registerer, namespace string) Option {
	return func(h *TransferHook) {
		h.registerer = registerer
		h.namespace = namespace
	}
}

// WithFilter installs filter at construction
func WithFilter(filter Filter) Option {
	return func(h *TransferHook) {
		h.filter = filter
	}
}

// TransferHook holds the active filter for an asset. Until a filter is set
// every operator is allowed.
type TransferHook struct {
	log   logging.Logger
	guard *access.Guard

	tracer     trace.Tracer
	registerer prometheus.Registerer
	namespace  string
	checks     *prometheus.CounterVec

	mu     sync.RWMutex
	filter Filter
}

// New creates a hook whose filter can only be changed by owner
func New(log logging.Logger, owner codec.Address, opts ...Option) (*TransferHook, error) {
	h := &TransferHook{
		log:    log,
		guard:  access.NewGuard(owner),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.checks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: h.namespace,
		Name:      "hook_checks_total",
		Help:      "number of transfer checks by result",
	}, []string{"result"})
	if h.registerer != nil {
		if err := h.registerer.Register(h.checks); err != nil {
			return nil, fmt.Errorf("failed to register hook metrics: %w", err)
		}
	}
	return h, nil
}

// Guard exposes the owner guard so ownership can be transferred
func (h *TransferHook) Guard() *access.Guard {
	return h.guard
}

// SetOperatorFilterRegistry replaces the active filter. A nil filter turns
// enforcement off.
func (h *TransferHook) SetOperatorFilterRegistry(_ context.Context, caller codec.Address, filter Filter) error {
	if err := h.guard.CheckOwner(caller); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = filter
	h.log.Info("operator filter registry updated",
		zap.Bool("enforced", filter != nil),
	)
	return nil
}

// OperatorFilterRegistry returns the active filter or nil
func (h *TransferHook) OperatorFilterRegistry() Filter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.filter
}

// CheckBeforeTransfer must run before a transfer initiated by operator on an
// asset protected by registrant. A non-nil error aborts the transfer.
func (h *TransferHook) CheckBeforeTransfer(ctx context.Context, registrant, operator codec.Address) error {
	ctx, span := h.tracer.Start(ctx, "TransferHook.CheckBeforeTransfer",
		trace.WithAttributes(
			attribute.String("registrant", addresses.Format(registrant)),
			attribute.String("operator", addresses.Format(operator)),
		),
	)
	defer span.End()

	filter := h.OperatorFilterRegistry()
	if filter == nil {
		h.checks.WithLabelValues("unset").Inc()
		return nil
	}

	allowed, err := filter.IsOperatorAllowed(ctx, registrant, operator)
	if err != nil {
		h.checks.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "filter lookup failed")
		return fmt.Errorf("failed to check operator: %w", err)
	}
	if !allowed {
		h.checks.WithLabelValues("blocked").Inc()
		span.SetStatus(codes.Error, ErrAddressFiltered.Error())
		h.log.Debug("transfer blocked",
			zap.String("registrant", addresses.Format(registrant)),
			zap.String("operator", addresses.Format(operator)),
		)
		return &AddressFilteredError{Operator: operator}
	}
	h.checks.WithLabelValues("allowed").Inc()
	return nil
}
