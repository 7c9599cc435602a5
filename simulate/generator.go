// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package simulate publishes synthetic sensor readings, occasionally injecting
// out-of-range values, for local runs and end-to-end tests.
package simulate

import (
	"math"
	"math/rand/v2"
)

// Anomaly names the kind of injected out-of-range reading.
type Anomaly string

const (
	None         Anomaly = ""
	HighTemp     Anomaly = "high_temp"
	LowTemp      Anomaly = "low_temp"
	HighHumidity Anomaly = "high_humidity"
	LowHumidity  Anomaly = "low_humidity"

	DefaultAnomalyRate = 0.1
)

type (
	// Sample is one generated reading.
	Sample struct {
		Temperature float64
		Humidity    float64
		Anomaly     Anomaly
	}

	// Generator produces samples. It is not safe for concurrent use.
	Generator struct {
		rng  *rand.Rand
		rate float64
	}

	band struct{ lo, hi float64 }
)

var (
	tempBounds     = band{15, 35}
	humidityBounds = band{30, 80}

	anomalies = []struct {
		kind        Anomaly
		temperature band
		humidity    band
	}{
		{HighTemp, band{35, 40}, band{60, 70}},
		{LowTemp, band{5, 10}, band{40, 50}},
		{HighHumidity, band{28, 32}, band{85, 95}},
		{LowHumidity, band{22, 28}, band{15, 25}},
	}
)

// NewGenerator creates a generator injecting anomalies with the given
// probability. A nil source is seeded randomly.
func NewGenerator(rate float64, src rand.Source) *Generator {
	if src == nil {
		// #nosec G404
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{
		rng:  rand.New(src),
		rate: min(max(rate, 0), 1),
	}
}

// Next returns the next sample. Normal samples drift around 25 °C and 60 %
// and stay within the normal bands; anomalies are drawn uniformly from one of
// four out-of-range bands.
func (g *Generator) Next() Sample {
	if g.rng.Float64() < g.rate {
		a := anomalies[g.rng.IntN(len(anomalies))]
		return Sample{
			Temperature: round2(g.uniform(a.temperature)),
			Humidity:    round2(g.uniform(a.humidity)),
			Anomaly:     a.kind,
		}
	}

	temp := 25 + g.uniform(band{-5, 5}) + g.uniform(band{-1, 1})
	hum := 60 + g.uniform(band{-15, 15}) + g.uniform(band{-2, 2})
	return Sample{
		Temperature: tempBounds.clamp(round2(temp)),
		Humidity:    humidityBounds.clamp(round2(hum)),
	}
}

func (g *Generator) uniform(b band) float64 {
	return b.lo + g.rng.Float64()*(b.hi-b.lo)
}

func (b band) clamp(v float64) float64 {
	return min(max(v, b.lo), b.hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
