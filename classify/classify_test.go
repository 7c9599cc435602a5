// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package classify_test

import (
	"math"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/classify"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	for _, tc := range []struct {
		temp float64
		want sensor.Category
	}{
		{-40, sensor.Cold},
		{19.999, sensor.Cold},
		{20, sensor.Normal},
		{25, sensor.Normal},
		{30, sensor.Normal},
		{30.001, sensor.Hot},
		{150, sensor.Hot},
	} {
		require.Equal(t, tc.want, classify.Categorize(tc.temp), "temp %v", tc.temp)
	}
}

func TestDetectAnomaly(t *testing.T) {
	for _, tc := range []struct {
		temp, hum float64
		anomaly   bool
		reason    string
	}{
		{35, 50, false, ""},
		{35.1, 50, true, classify.ReasonTemperature},
		{9.9, 50, true, classify.ReasonTemperature},
		{10, 50, false, ""},
		{25, 85.1, true, classify.ReasonHumidity},
		{25, 19.9, true, classify.ReasonHumidity},
		{25, 85, false, ""},
		{32, 75, true, classify.ReasonCombination},
		{30, 75, false, ""},
		{32, 70, false, ""},
		// First match wins; temperature outranks humidity.
		{40, 95, true, classify.ReasonTemperature},
		{32, 90, true, classify.ReasonHumidity},
	} {
		anomaly, reason := classify.DetectAnomaly(tc.temp, tc.hum)
		require.Equal(t, tc.anomaly, anomaly, "(%v, %v)", tc.temp, tc.hum)
		require.Equal(t, tc.reason, reason, "(%v, %v)", tc.temp, tc.hum)
	}
}

func TestConfidence(t *testing.T) {
	require.Equal(t, 100.0, classify.Confidence(25, 50, 0))
	require.Equal(t, 100.0, classify.Confidence(25, 50, 5))
	require.Equal(t, 95.0, classify.Confidence(25, 50, -5))
	require.Equal(t, 90.0, classify.Confidence(40, 50, 0))
	require.Equal(t, 92.5, classify.Confidence(25, 90, 0))
	require.Equal(t, 82.5, classify.Confidence(40, 90, 0))
	require.Equal(t, 77.5, classify.Confidence(40, 90, -5))
	require.Equal(t, 83.7, classify.Confidence(40, 90, 1.234))
	require.Equal(t, 60.0, classify.Confidence(40, 90, -50))
}

func TestScoreConfidenceBounds(t *testing.T) {
	inputs := []float64{
		-1e9, -100, -10, 0, 9.99, 10, 14.9, 15, 20, 30, 35, 35.1, 80, 85, 100,
		1e9,
	}
	for _, temp := range inputs {
		for _, hum := range inputs {
			for range 20 {
				c := classify.ScoreConfidence(temp, hum)
				require.GreaterOrEqual(t, c, 60.0)
				require.LessOrEqual(t, c, 100.0)
				require.InDelta(t, c, math.Round(c*10)/10, 1e-9)
			}
		}
	}
}

func TestDerive(t *testing.T) {
	scorer := &classify.Scorer{Jitter: func() float64 { return -2 }}
	r := sensor.Reading{
		Timestamp:   time.Unix(100, 0),
		Temperature: 32,
		Humidity:    75,
		Source:      sensor.Live,
	}

	d := classify.Derive(r, scorer)
	require.Equal(t, r, d.Reading)
	require.Equal(t, sensor.Hot, d.Category)
	require.Equal(t, 98.0, d.Confidence)
	require.True(t, d.Anomaly)
	require.Equal(t, classify.ReasonCombination, d.AnomalyReason)
	require.False(t, d.AlertTriggered)

	d = classify.Derive(sensor.Reading{Temperature: 22, Humidity: 50}, nil)
	require.Equal(t, sensor.Normal, d.Category)
	require.False(t, d.Anomaly)
	require.Empty(t, d.AnomalyReason)
	require.GreaterOrEqual(t, d.Confidence, 95.0)
}
