// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/config"
	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.ModeLive, cfg.Mode)
	require.Equal(t, 100, cfg.Capacity)
	require.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	require.Equal(t, 2*time.Second, cfg.Replay.Interval)
	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, mqtt.DefaultTopics, cfg.MQTTTopics())
	require.Equal(t, 0.1, cfg.Simulator.AnomalyRate)

	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}

func TestFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: replay
capacity: 50
log_level: debug
replay:
  file: data/iot.csv
  interval: 500ms
mqtt:
  topics:
    combined: plant/+/data
`), 0o600))

	t.Setenv("ENVMONITOR_CAPACITY", "25")
	t.Setenv("ENVMONITOR_HTTP_ADDRESS", "127.0.0.1:9090")

	cfg, err := config.Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, config.ModeReplay, cfg.Mode)
	require.Equal(t, 25, cfg.Capacity)
	require.Equal(t, "data/iot.csv", cfg.Replay.File)
	require.Equal(t, 500*time.Millisecond, cfg.Replay.Interval)
	require.Equal(t, "127.0.0.1:9090", cfg.HTTP.Address)
	require.Equal(t, "plant/+/data", cfg.MQTT.Topics.Combined)
	require.Equal(t, mqtt.DefaultTopics.Temperature, cfg.MQTT.Topics.Temperature)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile,
		[]byte("ENVMONITOR_BROKER_ENABLED=true\nENVMONITOR_LOG_LEVEL=warn\n"), 0o600))
	t.Setenv("ENVMONITOR_BROKER_ENABLED", "")
	require.NoError(t, os.Unsetenv("ENVMONITOR_BROKER_ENABLED"))
	t.Setenv("ENVMONITOR_LOG_LEVEL", "error")

	chdir(t, dir)
	cfg, err := config.Load("", envFile)
	require.NoError(t, err)
	require.True(t, cfg.Broker.Enabled)
	// Variables already in the environment win over the file.
	require.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	for name, env := range map[string][2]string{
		"mode":        {"ENVMONITOR_MODE", "batch"},
		"replay file": {"ENVMONITOR_MODE", "replay"},
		"capacity":    {"ENVMONITOR_CAPACITY", "0"},
		"qos":         {"ENVMONITOR_MQTT_QOS", "3"},
		"rate":        {"ENVMONITOR_SIMULATOR_ANOMALY_RATE", "1.5"},
		"level":       {"ENVMONITOR_LOG_LEVEL", "chatty"},
		"timeout":     {"ENVMONITOR_HANDSHAKE_TIMEOUT", "0s"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := config.Load("")
			require.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
