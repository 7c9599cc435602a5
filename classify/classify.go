// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package classify maps raw temperature/humidity pairs to a category, a
// confidence score and an anomaly verdict.
package classify

import (
	"math"
	"math/rand/v2"

	"github.com/cartertinney/envmonitor/sensor"
)

// Anomaly reasons, in priority order.
const (
	ReasonTemperature = "Temperature out of normal range"
	ReasonHumidity    = "Humidity out of normal range"
	ReasonCombination = "High temperature and humidity combination"
)

const (
	minConfidence = 60
	maxConfidence = 100

	// Jitter is the half-width of the uniform perturbation applied to the
	// confidence score.
	Jitter = 5.0
)

// Scorer computes confidence scores. The zero value draws jitter uniformly
// from [-Jitter, Jitter].
type Scorer struct {
	// Jitter, if set, replaces the random perturbation source. It should
	// return values in [-Jitter, Jitter].
	Jitter func() float64
}

// Categorize returns the category for a temperature. Both 20 and 30 are Normal.
func Categorize(temp float64) sensor.Category {
	switch {
	case temp < 20:
		return sensor.Cold
	case temp <= 30:
		return sensor.Normal
	default:
		return sensor.Hot
	}
}

// DetectAnomaly evaluates the anomaly rules in order; the first match wins.
func DetectAnomaly(temp, humidity float64) (bool, string) {
	switch {
	case temp > 35 || temp < 10:
		return true, ReasonTemperature
	case humidity > 85 || humidity < 20:
		return true, ReasonHumidity
	case temp > 30 && humidity > 70:
		return true, ReasonCombination
	default:
		return false, ""
	}
}

// Confidence is the deterministic core of the scorer: the mean of the two
// step terms plus the given jitter, clamped to [60, 100] and rounded to one
// decimal place.
func Confidence(temp, humidity, jitter float64) float64 {
	tempTerm, humTerm := 80.0, 85.0
	if temp >= 15 && temp <= 35 {
		tempTerm = 100
	}
	if humidity >= 30 && humidity <= 80 {
		humTerm = 100
	}

	score := (tempTerm+humTerm)/2 + jitter
	if math.IsNaN(score) {
		score = minConfidence
	}
	score = min(max(score, minConfidence), maxConfidence)
	return math.Round(score*10) / 10
}

// Score returns the confidence for a pair using the scorer's jitter source.
func (s *Scorer) Score(temp, humidity float64) float64 {
	return Confidence(temp, humidity, s.jitter())
}

func (s *Scorer) jitter() float64 {
	if s != nil && s.Jitter != nil {
		return s.Jitter()
	}
	return (rand.Float64()*2 - 1) * Jitter
}

// ScoreConfidence scores a pair with random jitter.
func ScoreConfidence(temp, humidity float64) float64 {
	var s Scorer
	return s.Score(temp, humidity)
}

// Derive classifies a reading. A nil scorer uses random jitter.
func Derive(r sensor.Reading, s *Scorer) sensor.Derived {
	anomaly, reason := DetectAnomaly(r.Temperature, r.Humidity)
	return sensor.Derived{
		Reading:       r,
		Category:      Categorize(r.Temperature),
		Confidence:    s.Score(r.Temperature, r.Humidity),
		Anomaly:       anomaly,
		AnomalyReason: reason,
	}
}
