// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Command sensorsim publishes simulated temperature and humidity readings to
// an MQTT server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartertinney/envmonitor/config"
	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/cartertinney/envmonitor/retry"
	"github.com/cartertinney/envmonitor/simulate"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("sensorsim", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "YAML configuration file")
	envFile := flags.String("env-file", ".env", "dotenv file read before the environment")
	count := flags.Uint64P("count", "n", 0, "stop after this many samples (0 runs until interrupted)")
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

	if err := run(cfg, *count, logger); err != nil {
		logger.Error("sensorsim failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, count uint64, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	client, err := mqtt.NewClientFromConnectionString(
		cfg.MQTT.ConnectionString,
		mqtt.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var session *mqtt.Session
	backoff := retry.Backoff{Spread: 0.05, Logger: logger}
	err = backoff.Run(ctx, "connect", func(ctx context.Context) (bool, error) {
		var err error
		session, err = client.Dial(ctx)
		// A refused CONNECT will not succeed on retry.
		var connack *mqtt.ConnackError
		return !errors.As(err, &connack), err
	})
	if err != nil {
		return err
	}
	defer session.Close()

	sim, err := simulate.New(session,
		simulate.NewGenerator(cfg.Simulator.AnomalyRate, nil),
		simulate.WithInterval(cfg.Simulator.Interval),
		simulate.WithTopics(cfg.MQTTTopics()),
		simulate.WithSensorID(cfg.Simulator.SensorID),
		simulate.WithQoS(byte(cfg.MQTT.QoS)),
		simulate.WithLimit(count),
		simulate.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	go func() {
		<-session.Done()
		stop()
	}()

	if err := sim.Run(ctx); err != nil {
		return err
	}
	if err := session.Err(); err != nil {
		return err
	}
	logger.Info("simulation finished", "samples", sim.Sent())
	return nil
}
