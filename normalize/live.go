// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package normalize turns inbound messages into canonical readings.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Normalizer converts one message into at most one reading. A false
	// result with a nil error means the message was accepted but no complete
	// reading is available yet.
	Normalizer interface {
		Normalize(msg sensor.Message) (sensor.Reading, bool, error)
	}

	// Rewinder is implemented by normalizers whose position can be reset.
	Rewinder interface {
		Rewind()
	}

	// Live normalizes messages from the three live channels, retaining the
	// last-seen value of each field.
	Live struct {
		mu          sync.Mutex
		temperature *float64
		humidity    *float64
	}

	combined struct {
		Temperature *json.Number `json:"temperature"`
		Humidity    *json.Number `json:"humidity"`
	}
)

// NewLive creates a live normalizer with no known values.
func NewLive() *Live {
	return &Live{}
}

// Normalize updates the held fields from the message and emits a reading once
// both are known. Malformed messages leave the held values untouched.
func (n *Live) Normalize(msg sensor.Message) (sensor.Reading, bool, error) {
	var temp, hum *float64

	switch msg.Channel {
	case sensor.Temperature:
		v, err := parseBare(msg)
		if err != nil {
			return sensor.Reading{}, false, err
		}
		temp = &v

	case sensor.Humidity:
		v, err := parseBare(msg)
		if err != nil {
			return sensor.Reading{}, false, err
		}
		hum = &v

	case sensor.Combined:
		t, h, err := parseCombined(msg)
		if err != nil {
			return sensor.Reading{}, false, err
		}
		temp, hum = &t, &h

	default:
		return sensor.Reading{}, false, &MalformedError{
			Channel: msg.Channel,
			Payload: msg.Payload,
			Reason:  "unknown channel",
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if temp != nil {
		n.temperature = temp
	}
	if hum != nil {
		n.humidity = hum
	}
	if n.temperature == nil || n.humidity == nil {
		return sensor.Reading{}, false, nil
	}

	ts := msg.Received
	if ts.IsZero() {
		ts = wallclock.Instance.Now()
	}
	return sensor.Reading{
		Timestamp:   ts,
		Temperature: *n.temperature,
		Humidity:    *n.humidity,
		Source:      sensor.Live,
	}, true, nil
}

// Reset forgets the held values.
func (n *Live) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.temperature, n.humidity = nil, nil
}

func parseBare(msg sensor.Message) (float64, error) {
	v, err := ParseFinite(strings.TrimSpace(string(msg.Payload)))
	if err != nil {
		return 0, &MalformedError{
			Channel: msg.Channel,
			Payload: msg.Payload,
			Reason:  "not a number",
			wrapped: err,
		}
	}
	return v, nil
}

func parseCombined(msg sensor.Message) (float64, float64, error) {
	malformed := func(reason string, err error) error {
		return &MalformedError{
			Channel: msg.Channel,
			Payload: msg.Payload,
			Reason:  reason,
			wrapped: err,
		}
	}

	dec := json.NewDecoder(bytes.NewReader(msg.Payload))
	dec.UseNumber()

	var c combined
	if err := dec.Decode(&c); err != nil {
		return 0, 0, malformed("invalid JSON", err)
	}
	if c.Temperature == nil {
		return 0, 0, malformed("missing temperature", nil)
	}
	if c.Humidity == nil {
		return 0, 0, malformed("missing humidity", nil)
	}

	t, err := ParseFinite(c.Temperature.String())
	if err != nil {
		return 0, 0, malformed("invalid temperature", err)
	}
	h, err := ParseFinite(c.Humidity.String())
	if err != nil {
		return 0, 0, malformed("invalid humidity", err)
	}
	return t, h, nil
}

// ParseFinite parses a decimal number, rejecting NaN and infinities.
func ParseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
