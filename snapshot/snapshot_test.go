// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package snapshot_test

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/classify"
	"github.com/cartertinney/envmonitor/pipeline"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/cartertinney/envmonitor/snapshot"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

func fill(t *testing.T, temps ...float64) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New(pipeline.WithScorer{
		Scorer: &classify.Scorer{Jitter: func() float64 { return 0 }},
	})
	for i, temp := range temps {
		_, ok := p.Apply(sensor.Reading{
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Temperature: temp,
			Humidity:    50,
			Source:      sensor.Live,
		})
		require.True(t, ok)
	}
	return p
}

func temps(readings []sensor.Derived) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Temperature
	}
	return out
}

func TestReader(t *testing.T) {
	r := snapshot.NewReader(fill(t, 22, 40, 25, 5, 28))

	require.Equal(t, []float64{22, 40, 25, 5, 28}, temps(r.Full()))
	require.Equal(t, []float64{5, 28}, temps(r.Tail(2)))
	require.Equal(t, []float64{22, 40, 25, 5, 28}, temps(r.Tail(50)))
	require.Empty(t, r.Tail(0))
	require.Equal(t, []float64{40, 5}, temps(r.Anomalies()))
	require.Equal(t, []float64{25, 5, 28}, temps(r.Since(base.Add(2*time.Second))))
	require.Equal(t, uint64(5), r.State().TotalMessages)
	require.Equal(t, uint64(2), r.State().AlertCount)
	require.Equal(t, 100, r.View().Capacity)
}

func TestReaderIsDetached(t *testing.T) {
	p := fill(t, 22, 23)
	r := snapshot.NewReader(p)

	full := r.Full()
	p.Apply(sensor.Reading{Temperature: 24, Humidity: 50})
	p.Clear()
	require.Equal(t, []float64{22, 23}, temps(full))
	require.Empty(t, r.Full())
}

func TestDescribe(t *testing.T) {
	s := snapshot.NewReader(fill(t, 10, 20, 30, 40)).Describe()

	require.Equal(t, 4, s.Temperature.Count)
	require.Equal(t, 25.0, s.Temperature.Mean)
	require.InDelta(t, math.Sqrt(500.0/3), s.Temperature.Std, 1e-9)
	require.Equal(t, 10.0, s.Temperature.Min)
	require.Equal(t, 17.5, s.Temperature.Q25)
	require.Equal(t, 25.0, s.Temperature.Median)
	require.Equal(t, 32.5, s.Temperature.Q75)
	require.Equal(t, 40.0, s.Temperature.Max)

	require.Equal(t, 50.0, s.Humidity.Mean)
	require.Zero(t, s.Humidity.Std)

	// Temperature 10 and 40 are outside [15, 35]: (80+100)/2 = 90.
	require.Equal(t, 90.0, s.Confidence.Min)
	require.Equal(t, 100.0, s.Confidence.Max)
	require.Equal(t, 95.0, s.Confidence.Mean)
}

func TestDescribeSmall(t *testing.T) {
	require.Equal(t, snapshot.Summary{}, snapshot.Describe(nil))

	s := snapshot.Describe(snapshot.NewReader(fill(t, 21)).Full())
	require.Equal(t, snapshot.Stats{
		Count: 1, Mean: 21, Min: 21, Q25: 21, Median: 21, Q75: 21, Max: 21,
	}, s.Temperature)
}

func TestWriteCSV(t *testing.T) {
	p := fill(t, 22.5, 36)
	p.SetAlertsEnabled(false)
	p.Apply(sensor.Reading{
		Timestamp:   base.Add(time.Minute),
		Temperature: 5,
		Humidity:    50,
	})

	var buf bytes.Buffer
	require.NoError(t, snapshot.WriteCSV(&buf, p.Snapshot().Readings))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		snapshot.Columns,
		{"2024-03-09 14:05:00", "22.5", "50", "Normal", "100", "false", "", "false"},
		{"2024-03-09 14:05:01", "36", "50", "Hot", "90", "true",
			classify.ReasonTemperature, "true"},
		{"2024-03-09 14:06:00", "5", "50", "Cold", "90", "true",
			classify.ReasonTemperature, "false"},
	}, records)
}

func TestExportFilename(t *testing.T) {
	require.Equal(t, "iot_log_20240309_140500.csv", snapshot.ExportFilename(base))
}
