// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package snapshot provides read-only views over the pipeline for
// presentation consumers. Every call works on one consistent copy and never
// holds the pipeline lock while iterating.
package snapshot

import (
	"time"

	"github.com/cartertinney/envmonitor/alert"
	"github.com/cartertinney/envmonitor/pipeline"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Source is anything that can produce a consistent pipeline view.
	Source interface {
		Snapshot() pipeline.View
	}

	// Reader answers queries over pipeline snapshots.
	Reader struct {
		src Source
	}
)

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// View returns the raw snapshot.
func (r *Reader) View() pipeline.View {
	return r.src.Snapshot()
}

// Full returns every buffered reading, oldest first.
func (r *Reader) Full() []sensor.Derived {
	return r.src.Snapshot().Readings
}

// Tail returns the newest k readings, oldest first.
func (r *Reader) Tail(k int) []sensor.Derived {
	return Tail(r.src.Snapshot().Readings, k)
}

// Anomalies returns the buffered readings flagged as anomalous.
func (r *Reader) Anomalies() []sensor.Derived {
	return Anomalies(r.src.Snapshot().Readings)
}

// Since returns the readings stamped at or after t.
func (r *Reader) Since(t time.Time) []sensor.Derived {
	return Since(r.src.Snapshot().Readings, t)
}

// Describe summarizes the buffered readings.
func (r *Reader) Describe() Summary {
	return Describe(r.src.Snapshot().Readings)
}

func (r *Reader) State() alert.State {
	return r.src.Snapshot().State
}

// Tail returns the last k readings. Non-positive k yields none.
func Tail(readings []sensor.Derived, k int) []sensor.Derived {
	if k <= 0 {
		return []sensor.Derived{}
	}
	if k >= len(readings) {
		return readings
	}
	return readings[len(readings)-k:]
}

// Anomalies filters readings to those flagged anomalous.
func Anomalies(readings []sensor.Derived) []sensor.Derived {
	out := []sensor.Derived{}
	for _, d := range readings {
		if d.Anomaly {
			out = append(out, d)
		}
	}
	return out
}

// Since filters readings to those stamped at or after t.
func Since(readings []sensor.Derived, t time.Time) []sensor.Derived {
	out := []sensor.Derived{}
	for _, d := range readings {
		if !d.Timestamp.Before(t) {
			out = append(out, d)
		}
	}
	return out
}
