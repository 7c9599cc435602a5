// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package sensor

import (
	"context"
	"time"
)

type (
	// Source identifies where a reading originated.
	Source string

	// Category is the coarse temperature classification of a reading.
	Category string

	// Channel is the logical inbound channel a message arrived on. Transports
	// map their own addressing (e.g. MQTT topics) onto these.
	Channel string

	// Message is a single raw inbound payload, prior to normalization.
	Message struct {
		Channel  Channel
		Payload  []byte
		Received time.Time
	}

	// Reading is one temperature/humidity observation.
	Reading struct {
		Timestamp   time.Time `json:"timestamp"`
		Temperature float64   `json:"temperature"`
		Humidity    float64   `json:"humidity"`
		Source      Source    `json:"source"`

		// Label carries the recorded prediction of a replayed row. It is
		// informational only and empty for live readings.
		Label string `json:"label,omitempty"`
	}

	// Derived is a Reading enriched with its classification. Values are
	// immutable once applied to a pipeline.
	Derived struct {
		Reading

		Category       Category `json:"prediction"`
		Confidence     float64  `json:"confidence"`
		Anomaly        bool     `json:"anomaly_flag"`
		AnomalyReason  string   `json:"anomaly_reason"`
		AlertTriggered bool     `json:"alert_triggered"`
	}

	// Stream is a live link delivering inbound messages. Messages is closed
	// by the implementation only after Done is closed.
	Stream interface {
		Messages() <-chan Message
		Done() <-chan struct{}
		Err() error
		Close() error
	}

	// Transport establishes a Stream. Connect must honor the context deadline
	// for the handshake.
	Transport interface {
		Connect(ctx context.Context) (Stream, error)
	}
)

const (
	Live   Source = "live"
	Replay Source = "replay"
)

const (
	Cold   Category = "Cold"
	Normal Category = "Normal"
	Hot    Category = "Hot"
)

const (
	Temperature Channel = "temperature"
	Humidity    Channel = "humidity"
	Combined    Channel = "combined"

	// Tick is used by replay transports; its payload is empty.
	Tick Channel = "tick"
)
