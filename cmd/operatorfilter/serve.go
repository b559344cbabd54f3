// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/hypersdk/x/operatorfilter/access"
	"github.com/ava-labs/hypersdk/x/operatorfilter/api"
	"github.com/ava-labs/hypersdk/x/operatorfilter/codehash"
	"github.com/ava-labs/hypersdk/x/operatorfilter/config"
	"github.com/ava-labs/hypersdk/x/operatorfilter/events"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

const (
	metricsNamespace = "operatorfilter"
	shutdownTimeout  = 5 * time.Second
)

var (
	registryPrefix  = []byte("registry/")
	contractsPrefix = []byte("contracts/")
)

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String(config.ListenAddressKey, "", "address the API listens on")
	flags.String(config.DataDirKey, "", "directory of the node's database")
	flags.String(config.LogLevelKey, "", "log level")
	flags.String(config.AdminKey, "", "address allowed to act for every registrant")
	for _, key := range []string{config.ListenAddressKey, config.DataDirKey, config.LogLevelKey, config.AdminKey} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		log, err := cfg.Logger()
		if err != nil {
			return err
		}
		db, err := storage.OpenPebble(cfg.DataDir, log)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, log, cfg, db)
	},
}

func serve(ctx context.Context, log logging.Logger, cfg *config.Config, db *storage.Pebble) error {
	admin, err := cfg.AdminAddress()
	if err != nil {
		return err
	}
	adminGuard := access.NewGuard(admin)
	owners := access.NewDirectory(adminGuard)
	registrantOwners, err := cfg.RegistrantOwners()
	if err != nil {
		return err
	}
	for registrant, owner := range registrantOwners {
		if err := owners.SetOwner(admin, registrant, owner); err != nil {
			return err
		}
	}

	contracts := storage.NewContractStore(storage.NewPrefixed(db, contractsPrefix))
	broadcaster := events.NewBroadcaster(log, cfg.EventBufferSize)
	metrics := prometheus.NewRegistry()

	filters, err := registry.New(log, storage.NewPrefixed(db, registryPrefix), registry.Config{
		Limits:     cfg.Limits(),
		Authorizer: access.Authorizer{Admin: adminGuard, Owners: owners},
		CodeHashes: codehash.NewResolver(log, contracts, cfg.CodeHashCacheSize),
		Emitter:    events.Multi{events.LogEmitter{Log: log}, broadcaster},
		Registerer: metrics,
		Namespace:  metricsNamespace,
	})
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(log, api.Config{
		Registry:     filters,
		Broadcaster:  broadcaster,
		Gatherer:     metrics,
		MaxBodySize:  cfg.MaxRequestBodySize,
		ReplayWindow: cfg.ReplayWindow,
	})
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving registry",
			zap.String("address", cfg.ListenAddress),
			zap.String("dataDir", cfg.DataDir),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		broadcaster.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
