// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package alert_test

import (
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/alert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	tr := alert.NewTracker()
	require.Equal(t, alert.State{AlertsEnabled: true}, tr.State())

	at := time.Unix(1000, 0)
	accepted, alerted := tr.Record(true, "hot", at)
	require.True(t, accepted)
	require.True(t, alerted)

	s := tr.State()
	require.Equal(t, uint64(1), s.TotalMessages)
	require.Equal(t, uint64(1), s.AlertCount)
	require.True(t, s.AnomalyLatched)
	require.Equal(t, at, s.LastUpdate)
	require.Equal(t, "hot", s.LastReason)

	// The latch reflects only the latest reading.
	accepted, alerted = tr.Record(false, "", at.Add(time.Second))
	require.True(t, accepted)
	require.False(t, alerted)

	s = tr.State()
	require.Equal(t, uint64(2), s.TotalMessages)
	require.Equal(t, uint64(1), s.AlertCount)
	require.False(t, s.AnomalyLatched)
	require.Equal(t, "hot", s.LastReason)
}

func TestAlertsDisabled(t *testing.T) {
	tr := alert.NewTracker()
	tr.SetAlertsEnabled(false)

	accepted, alerted := tr.Record(true, "hot", time.Now())
	require.True(t, accepted)
	require.False(t, alerted)

	s := tr.State()
	require.Equal(t, uint64(1), s.TotalMessages)
	require.Zero(t, s.AlertCount)
	require.False(t, s.AnomalyLatched)
	require.Empty(t, s.LastReason)
}

func TestPause(t *testing.T) {
	tr := alert.NewTracker()
	tr.Record(true, "hot", time.Unix(1, 0))
	tr.Pause()
	before := tr.State()
	require.True(t, before.Paused)

	for range 3 {
		accepted, alerted := tr.Record(true, "cold", time.Unix(2, 0))
		require.False(t, accepted)
		require.False(t, alerted)
	}
	require.Equal(t, before, tr.State())

	tr.Resume()
	tr.Record(false, "", time.Unix(3, 0))
	require.Equal(t, uint64(2), tr.State().TotalMessages)
}

func TestReset(t *testing.T) {
	tr := alert.NewTracker()
	tr.Record(true, "hot", time.Unix(1, 0))
	tr.Pause()
	tr.SetAlertsEnabled(false)

	tr.Reset()
	require.Equal(t, alert.State{Paused: true}, tr.State())
}
