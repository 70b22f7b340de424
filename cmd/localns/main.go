// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// localns is a dynamic split-horizon DNS server for small networks: it
// aggregates A/AAAA/CNAME records from a handful of discovery sources (a
// static file, dnsmasq leases, Docker, Traefik, and peer localns nodes),
// merges them into a single record store, and answers DNS queries against
// that store with per-zone upstream/authoritative policy (spec §1-§5).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mossop/localns/internal/api"
	"github.com/Mossop/localns/internal/config"
	"github.com/Mossop/localns/internal/dnsserver"
	"github.com/Mossop/localns/internal/logging"
	"github.com/Mossop/localns/internal/metrics"
	"github.com/Mossop/localns/internal/resolver"
	"github.com/Mossop/localns/internal/sources"
	"github.com/Mossop/localns/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// configEnvVar names the config file, consulted when no path is given on
// the command line (spec §6: CLI precedence).
const configEnvVar = "LOCALNS_CONFIG"

// defaultConfigPath is used when neither a positional argument nor
// configEnvVar names a file.
const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logFilter string

	cmd := &cobra.Command{
		Use:   "localns [config]",
		Short: "Dynamic split-horizon DNS server for small networks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(args)
			return run(cmd.Context(), path, logFilter)
		},
	}
	cmd.Flags().StringVar(&logFilter, "log-filter", os.Getenv(logging.EnvVar),
		"per-target log level filter, e.g. \"supervisor=debug,dnsserver=warn\" (also read from "+logging.EnvVar+")")
	return cmd
}

// configPath applies the CLI precedence of spec §6: a positional argument
// wins, then LOCALNS_CONFIG, then ./config.yaml.
func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if p := os.Getenv(configEnvVar); p != "" {
		return p
	}
	return defaultConfigPath
}

func run(ctx context.Context, cfgPath, logFilter string) error {
	log, err := logging.New(logFilter, zapcore.InfoLevel)
	if err != nil {
		return fmt.Errorf("localns: building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	sugar := log.Sugar()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("localns: loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	bus := store.NewBus()
	st := store.New(sugar.Named("store"))
	st.SetRecorder(m)

	supervisor := sources.New(bus, st, sugar.Named("supervisor"))
	supervisor.SetRecorder(m)

	zones, err := cfg.BuildZones()
	if err != nil {
		return fmt.Errorf("localns: building zones: %w", err)
	}
	res := resolver.New(st, zones)

	dnsSrv := dnsserver.New(fmt.Sprintf(":%d", cfg.Server.Port), res, m, sugar.Named("dnsserver"))

	var apiSrv *api.Server
	if cfg.API != nil {
		apiSrv = api.New(cfg.API.Address, st, reg, sugar.Named("api"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		store.RunConsumer(gctx, bus, st, sugar.Named("store"))
		return nil
	})

	specs, err := buildSpecs(cfg)
	if err != nil {
		return fmt.Errorf("localns: building sources: %w", err)
	}
	supervisor.Apply(gctx, specs)
	if apiSrv != nil {
		apiSrv.SetReady(true)
	}

	g.Go(func() error {
		return dnsSrv.Run(gctx)
	})
	if apiSrv != nil {
		g.Go(func() error {
			return apiSrv.Run(gctx)
		})
	}

	g.Go(func() error {
		return watchConfig(gctx, cfgPath, supervisor, res, sugar.Named("config"))
	})

	err = g.Wait()
	supervisor.Shutdown()
	return err
}

// watchConfig reapplies the source set and rebuilds the zone forest whenever
// the config file changes (spec §1 scope item 4: hot-reload "may add,
// remove, or reconfigure sources and zones"; spec §4.6). Zones are rebuilt
// from scratch and swapped into res atomically, so in-flight queries always
// see either the old or the new forest, never a torn one. If either the
// sources or the zones of a reload are invalid, the error is logged and
// neither is applied: the previous sources and zones both stay in effect.
func watchConfig(ctx context.Context, path string, supervisor *sources.Supervisor, res *resolver.Resolver, log *zap.SugaredLogger) error {
	watcher := config.NewWatcher(path, log)
	changes, err := watcher.Run(ctx)
	if err != nil {
		return fmt.Errorf("localns: watching config: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-changes:
			if !ok {
				return nil
			}
			specs, err := buildSpecs(cfg)
			if err != nil {
				log.Errorw("config reload produced invalid sources, keeping previous sources", "error", err)
				continue
			}
			zones, err := cfg.BuildZones()
			if err != nil {
				log.Errorw("config reload produced invalid zones, keeping previous zones", "error", err)
				continue
			}
			supervisor.Apply(ctx, specs)
			res.SetZones(zones)
		}
	}
}
