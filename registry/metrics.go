// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultAllowed = "allowed"
	resultBlocked = "blocked"
)

type metrics struct {
	operations *prometheus.CounterVec
	checks     *prometheus.CounterVec
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "number of registry mutations by operation and result",
		}, []string{"operation", "result"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operator_checks_total",
			Help:      "number of operator authorization queries by result",
		}, []string{"result"}),
	}
	if registerer == nil {
		return m, nil
	}
	return m, errors.Join(
		registerer.Register(m.operations),
		registerer.Register(m.checks),
	)
}

func (m *metrics) operation(name string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.operations.WithLabelValues(name, result).Inc()
}

func (m *metrics) check(allowed bool) {
	result := resultAllowed
	if !allowed {
		result = resultBlocked
	}
	m.checks.WithLabelValues(result).Inc()
}
