// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves a filter registry over JSON-RPC, streams its events
// over a websocket and exposes its metrics.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ava-labs/hypersdk/x/operatorfilter/events"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

const (
	RPCEndpoint     = "/ext/operatorfilter"
	EventsEndpoint  = "/ext/operatorfilter/events"
	MetricsEndpoint = "/ext/metrics"

	writeWait = 10 * time.Second
)

type Config struct {
	Registry    registry.FilterRegistry
	Broadcaster *events.Broadcaster
	Gatherer    prometheus.Gatherer
	MaxBodySize int64

	// ReplayWindow bounds how far a signed request's nonce may be from the
	// server clock. Zero uses DefaultReplayWindow.
	ReplayWindow time.Duration
	// TrackedCallers bounds how many callers' last nonces are remembered.
	// Zero uses DefaultTrackedCallers.
	TrackedCallers int
}

// NewHandler routes every endpoint of the node
func NewHandler(log logging.Logger, cfg Config) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	if err := server.RegisterService(&Service{registry: cfg.Registry}, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(RPCEndpoint, withAuthentication(log, cfg.MaxBodySize, newReplayGuard(cfg.ReplayWindow, cfg.TrackedCallers), server))
	if cfg.Broadcaster != nil {
		mux.Handle(EventsEndpoint, &eventStream{
			log:         log,
			broadcaster: cfg.Broadcaster,
		})
	}
	if cfg.Gatherer != nil {
		mux.Handle(MetricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux, nil
}

// eventStream writes every broadcast event to a websocket as JSON until the
// client goes away.
type eventStream struct {
	log         logging.Logger
	broadcaster *events.Broadcaster
	upgrader    websocket.Upgrader
}

func (s *eventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("failed to upgrade event stream", zap.Error(err))
		return
	}
	defer conn.Close()

	envelopes, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// reads only detect the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env, ok := <-envelopes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debug("failed to write event", zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}
