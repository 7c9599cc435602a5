// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package alert

import "time"

// State is a point-in-time copy of the tracker.
type State struct {
	TotalMessages  uint64    `json:"total_messages"`
	AlertCount     uint64    `json:"alert_count"`
	AnomalyLatched bool      `json:"anomaly_latched"`
	Paused         bool      `json:"paused"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	LastUpdate     time.Time `json:"last_update"`
	LastReason     string    `json:"last_reason,omitempty"`
}

// Tracker holds the process-wide counters, the anomaly latch and the two
// operator switches. It is not synchronized; the pipeline guards it together
// with the history buffer.
type Tracker struct {
	state State
}

// NewTracker returns a tracker with alerts enabled and not paused.
func NewTracker() *Tracker {
	return &Tracker{state: State{AlertsEnabled: true}}
}

// Record folds one classified reading into the counters. Nothing changes
// while paused. The latch is re-evaluated on every accepted reading.
func (t *Tracker) Record(
	anomaly bool,
	reason string,
	at time.Time,
) (accepted, alerted bool) {
	if t.state.Paused {
		return false, false
	}

	t.state.TotalMessages++
	t.state.LastUpdate = at
	alerted = anomaly && t.state.AlertsEnabled
	t.state.AnomalyLatched = alerted
	if alerted {
		t.state.AlertCount++
		t.state.LastReason = reason
	}
	return true, alerted
}

func (t *Tracker) Pause() {
	t.state.Paused = true
}

func (t *Tracker) Resume() {
	t.state.Paused = false
}

func (t *Tracker) SetAlertsEnabled(enabled bool) {
	t.state.AlertsEnabled = enabled
}

// Reset zeroes the counters, latch and last-update details. The switches are
// left alone.
func (t *Tracker) Reset() {
	t.state = State{
		Paused:        t.state.Paused,
		AlertsEnabled: t.state.AlertsEnabled,
	}
}

func (t *Tracker) State() State {
	return t.state
}
