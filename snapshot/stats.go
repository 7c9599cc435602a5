// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package snapshot

import (
	"math"
	"slices"

	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Stats summarizes one column of readings. Std is the sample standard
	// deviation; it is zero for fewer than two values. Quantiles use linear
	// interpolation between closest ranks.
	Stats struct {
		Count  int     `json:"count"`
		Mean   float64 `json:"mean"`
		Std    float64 `json:"std"`
		Min    float64 `json:"min"`
		Q25    float64 `json:"25%"`
		Median float64 `json:"50%"`
		Q75    float64 `json:"75%"`
		Max    float64 `json:"max"`
	}

	// Summary holds Stats for each numeric column.
	Summary struct {
		Temperature Stats `json:"temperature"`
		Humidity    Stats `json:"humidity"`
		Confidence  Stats `json:"confidence"`
	}
)

// Describe summarizes the numeric columns of readings.
func Describe(readings []sensor.Derived) Summary {
	column := func(f func(sensor.Derived) float64) Stats {
		values := make([]float64, len(readings))
		for i, r := range readings {
			values[i] = f(r)
		}
		return describe(values)
	}

	return Summary{
		Temperature: column(func(d sensor.Derived) float64 { return d.Temperature }),
		Humidity:    column(func(d sensor.Derived) float64 { return d.Humidity }),
		Confidence:  column(func(d sensor.Derived) float64 { return d.Confidence }),
	}
}

func describe(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return Stats{
		Count:  n,
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Q25:    quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q75:    quantile(sorted, 0.75),
		Max:    sorted[n-1],
	}
}

// quantile expects sorted, non-empty input.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
