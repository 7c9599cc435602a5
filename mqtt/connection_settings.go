// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

const (
	defaultTCPPort           = 1883
	defaultKeepAlive         = 60 * time.Second
	defaultConnectionTimeout = 10 * time.Second

	// MQTT keep-alive is a two-byte field in seconds.
	maxKeepAlive = 65535 * time.Second
)

// ConnectionSettings describes how to reach and authenticate to an MQTT
// server.
type ConnectionSettings struct {
	HostName string
	TCPPort  uint16
	UseTLS   bool

	ClientID string
	Username string
	Password string

	KeepAlive         time.Duration
	ConnectionTimeout time.Duration

	CertFile        string
	KeyFile         string
	KeyFilePassword string
	CAFile          string
}

// ParseConnectionString parses settings of the form
// HostName=localhost;TcpPort=1883;UseTls=false;ClientId=Test;KeepAlive=PT60S.
// Keys are case-insensitive; durations are ISO 8601.
func ParseConnectionString(connStr string) (*ConnectionSettings, error) {
	settings := make(map[string]string)
	for _, param := range strings.Split(strings.TrimSuffix(connStr, ";"), ";") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) == 2 {
			k := strings.ToLower(strings.TrimSpace(kv[0]))
			settings[k] = strings.TrimSpace(kv[1])
		}
	}
	return fromSettingsMap(settings)
}

// ConnectionSettingsFromEnv parses settings from MQTT_ prefixed environment
// variables, e.g. MQTT_HOST_NAME=localhost, MQTT_TCP_PORT=8883,
// MQTT_USE_TLS=true.
func ConnectionSettingsFromEnv() (*ConnectionSettings, error) {
	settings := make(map[string]string)
	for _, env := range os.Environ() {
		kv := strings.SplitN(env, "=", 2)
		if len(kv) == 2 && strings.HasPrefix(kv[0], "MQTT_") {
			k := strings.ToLower(strings.ReplaceAll(
				strings.TrimPrefix(kv[0], "MQTT_"),
				"_",
				"",
			))
			settings[k] = strings.TrimSpace(kv[1])
		}
	}
	return fromSettingsMap(settings)
}

func fromSettingsMap(settings map[string]string) (*ConnectionSettings, error) {
	cs := &ConnectionSettings{
		HostName:          settings["hostname"],
		TCPPort:           defaultTCPPort,
		ClientID:          settings["clientid"],
		Username:          settings["username"],
		Password:          settings["password"],
		KeepAlive:         defaultKeepAlive,
		ConnectionTimeout: defaultConnectionTimeout,
		CertFile:          settings["certfile"],
		KeyFile:           settings["keyfile"],
		KeyFilePassword:   settings["keyfilepassword"],
		CAFile:            settings["cafile"],
	}

	if cs.HostName == "" {
		return nil, &InvalidArgumentError{message: "HostName must not be empty"}
	}

	if value := settings["tcpport"]; value != "" {
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil || port == 0 {
			return nil, &InvalidArgumentError{
				message: "invalid TcpPort in connection string",
				wrapped: err,
			}
		}
		cs.TCPPort = uint16(port)
	}

	if value := settings["usetls"]; value != "" {
		useTLS, err := strconv.ParseBool(value)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "invalid UseTls in connection string",
				wrapped: err,
			}
		}
		cs.UseTLS = useTLS
	}

	for key, field := range map[string]*time.Duration{
		"keepalive":         &cs.KeepAlive,
		"connectiontimeout": &cs.ConnectionTimeout,
	} {
		value := settings[key]
		if value == "" {
			continue
		}
		d, err := duration.Parse(value)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "invalid " + key + " in connection string",
				wrapped: err,
			}
		}
		*field = d.ToTimeDuration()
	}

	if cs.ClientID == "" {
		cs.ClientID = RandomClientID()
	}

	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Validate checks the settings for consistency.
func (cs *ConnectionSettings) Validate() error {
	if cs.HostName == "" {
		return &InvalidArgumentError{message: "HostName must not be empty"}
	}
	if cs.KeepAlive < 0 || cs.KeepAlive > maxKeepAlive {
		return &InvalidArgumentError{
			message: "KeepAlive must be between 0 and 65535 seconds",
		}
	}
	if len(cs.ClientID) > maxClientIDLength {
		return &InvalidArgumentError{
			message: "ClientId must be at most 23 bytes",
		}
	}
	if !cs.UseTLS && cs.hasTLS() {
		return &InvalidArgumentError{
			message: "TLS configuration provided but not using TLS",
		}
	}
	if (cs.CertFile != "") != (cs.KeyFile != "") {
		return &InvalidArgumentError{
			message: "certificate file and key file must be provided together",
		}
	}
	return nil
}

// ConnectionProvider builds the network connection function described by the
// settings. TLS material is loaded here, so file errors surface early.
func (cs *ConnectionSettings) ConnectionProvider() (ConnectionProvider, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	if !cs.UseTLS {
		return TCPConnection(cs.HostName, cs.TCPPort), nil
	}

	cfg, err := cs.tlsConfig()
	if err != nil {
		return nil, err
	}
	return TLSConnection(cs.HostName, cs.TCPPort, cfg), nil
}

func (cs *ConnectionSettings) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}

	// Bypasses hostname check in TLS config when deliberately connecting to
	// localhost.
	if cs.HostName == "localhost" {
		cfg.InsecureSkipVerify = true // #nosec G402
	}

	if cs.CertFile != "" {
		var cert tls.Certificate
		var err error
		if cs.KeyFilePassword != "" {
			cert, err = loadX509KeyPairWithPassword(
				cs.CertFile,
				cs.KeyFile,
				cs.KeyFilePassword,
			)
		} else {
			cert, err = tls.LoadX509KeyPair(cs.CertFile, cs.KeyFile)
		}
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "X509 key pair cannot be loaded",
				wrapped: err,
			}
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if cs.CAFile != "" {
		pool, err := loadCACertPool(cs.CAFile)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "cannot load a CA certificate pool from CaFile",
				wrapped: err,
			}
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func (cs *ConnectionSettings) hasTLS() bool {
	return cs.CAFile != "" || cs.CertFile != "" ||
		cs.KeyFile != "" || cs.KeyFilePassword != ""
}
