// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command envmonitor ingests environmental sensor readings from MQTT or a
// replayed dataset and serves the rolling history over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartertinney/envmonitor/api"
	"github.com/cartertinney/envmonitor/broker"
	"github.com/cartertinney/envmonitor/config"
	"github.com/cartertinney/envmonitor/ingest"
	"github.com/cartertinney/envmonitor/metrics"
	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/cartertinney/envmonitor/normalize"
	"github.com/cartertinney/envmonitor/pipeline"
	"github.com/cartertinney/envmonitor/replay"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/cartertinney/envmonitor/snapshot"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags := pflag.NewFlagSet("envmonitor", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "YAML configuration file")
	envFile := flags.String("env-file", ".env", "dotenv file read before the environment")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	level, _ := cfg.Level()
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("envmonitor failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	reg := metrics.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	if cfg.Broker.Enabled {
		opts := []broker.Option{
			broker.WithAddress(cfg.Broker.Address),
			broker.WithLogger(logger.With("component", "broker")),
		}
		if cfg.Broker.Username != "" {
			opts = append(opts, broker.WithCredentials{
				Username: cfg.Broker.Username,
				Password: cfg.Broker.Password,
			})
		}
		b, err := broker.New(opts...)
		if err != nil {
			return fmt.Errorf("starting embedded broker: %w", err)
		}
		defer b.Close()
		logger.Info("embedded broker listening", "address", b.Address())
	}

	transport, norm, err := source(cfg, logger)
	if err != nil {
		return err
	}

	hub := api.NewHub(logger)
	pipe := pipeline.New(
		pipeline.WithCapacity(cfg.Capacity),
		pipeline.WithMetrics{Metrics: m},
		pipeline.WithObserver(hub.Observe),
		pipeline.WithLogger(logger),
	)

	loop := ingest.New(transport, norm, pipe,
		ingest.WithHandshakeTimeout(cfg.HandshakeTimeout),
		ingest.WithMetrics{Metrics: m},
		ingest.WithLogger(logger),
	)
	if err := loop.Start(ctx); err != nil {
		// Reconnection is manual, through POST /api/reconnect.
		logger.Warn("initial connection failed", "error", err)
	}
	defer loop.Stop()

	handler := api.NewHandler(snapshot.NewReader(pipe), loop, hub, logger)
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.NewRouter(handler, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("serving HTTP", "address", cfg.HTTP.Address, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// source builds the transport and normalizer for the configured mode. A
// replay dataset that cannot be loaded is fatal.
func source(
	cfg *config.Config,
	logger *slog.Logger,
) (sensor.Transport, normalize.Normalizer, error) {
	switch cfg.Mode {
	case config.ModeReplay:
		rows, err := replay.Load(cfg.Replay.File)
		if err != nil {
			return nil, nil, err
		}
		norm, err := normalize.NewReplay(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cfg.Replay.File, err)
		}
		logger.Info("replaying dataset",
			"file", cfg.Replay.File,
			"rows", len(rows),
			"interval", cfg.Replay.Interval,
		)
		return replay.NewTicker(cfg.Replay.Interval, logger), norm, nil

	default:
		settings, err := mqtt.ParseConnectionString(cfg.MQTT.ConnectionString)
		if err != nil {
			return nil, nil, err
		}
		client, err := mqtt.NewClient(settings,
			mqtt.WithTopics(cfg.MQTTTopics()),
			mqtt.WithQoS(byte(cfg.MQTT.QoS)),
			mqtt.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, normalize.NewLive(), nil
	}
}
