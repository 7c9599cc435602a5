// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package config loads the service configuration from an optional YAML file,
// a .env file and ENVMONITOR_ environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeLive   = "live"
	ModeReplay = "replay"

	envPrefix = "ENVMONITOR"
)

type (
	Config struct {
		Mode             string        `mapstructure:"mode"`
		Capacity         int           `mapstructure:"capacity"`
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
		LogLevel         string        `mapstructure:"log_level"`

		MQTT      MQTT      `mapstructure:"mqtt"`
		Replay    Replay    `mapstructure:"replay"`
		HTTP      HTTP      `mapstructure:"http"`
		Broker    Broker    `mapstructure:"broker"`
		Simulator Simulator `mapstructure:"simulator"`
	}

	MQTT struct {
		// ConnectionString uses the HostName=...;TcpPort=... format.
		ConnectionString string `mapstructure:"connection_string"`
		QoS              int    `mapstructure:"qos"`
		Topics           Topics `mapstructure:"topics"`
	}

	Topics struct {
		Temperature string `mapstructure:"temperature"`
		Humidity    string `mapstructure:"humidity"`
		Combined    string `mapstructure:"combined"`
	}

	Replay struct {
		File     string        `mapstructure:"file"`
		Interval time.Duration `mapstructure:"interval"`
	}

	HTTP struct {
		Address string `mapstructure:"address"`
	}

	Broker struct {
		Enabled  bool   `mapstructure:"enabled"`
		Address  string `mapstructure:"address"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	}

	Simulator struct {
		Interval    time.Duration `mapstructure:"interval"`
		AnomalyRate float64       `mapstructure:"anomaly_rate"`
		SensorID    string        `mapstructure:"sensor_id"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeLive)
	v.SetDefault("capacity", 100)
	v.SetDefault("handshake_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")

	v.SetDefault("mqtt.connection_string", "HostName=localhost;TcpPort=1883")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.topics.temperature", mqtt.DefaultTopics.Temperature)
	v.SetDefault("mqtt.topics.humidity", mqtt.DefaultTopics.Humidity)
	v.SetDefault("mqtt.topics.combined", mqtt.DefaultTopics.Combined)

	v.SetDefault("replay.file", "")
	v.SetDefault("replay.interval", 2*time.Second)

	v.SetDefault("http.address", ":8080")

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.address", "localhost:1883")
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")

	v.SetDefault("simulator.interval", 2*time.Second)
	v.SetDefault("simulator.anomaly_rate", 0.1)
	v.SetDefault("simulator.sensor_id", "sensor_001")
}

// Load reads the configuration. configFile may be empty, in which case an
// envmonitor.yaml in the working directory is used if present. Each env file
// is loaded into the process environment without overriding variables that
// are already set; missing env files are ignored. With no env files given,
// .env is tried.
func Load(configFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("envmonitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and mode-specific requirements.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeLive:
		if c.MQTT.ConnectionString == "" {
			errs = append(errs, errors.New("mqtt.connection_string is required in live mode"))
		}
	case ModeReplay:
		if c.Replay.File == "" {
			errs = append(errs, errors.New("replay.file is required in replay mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q",
			ModeLive, ModeReplay, c.Mode))
	}

	if c.Capacity <= 0 {
		errs = append(errs, errors.New("capacity must be positive"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake_timeout must be positive"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, errors.New("mqtt.qos must be 0, 1 or 2"))
	}
	if c.Replay.Interval <= 0 {
		errs = append(errs, errors.New("replay.interval must be positive"))
	}
	if c.Simulator.AnomalyRate < 0 || c.Simulator.AnomalyRate > 1 {
		errs = append(errs, errors.New("simulator.anomaly_rate must be within [0, 1]"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level: %w", err)
	}
	return level, nil
}

// MQTTTopics converts the configured topics for the mqtt package.
func (c *Config) MQTTTopics() mqtt.Topics {
	return mqtt.Topics{
		Temperature: c.MQTT.Topics.Temperature,
		Humidity:    c.MQTT.Topics.Humidity,
		Combined:    c.MQTT.Topics.Combined,
	}
}
