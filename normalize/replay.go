// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package normalize

import (
	"errors"
	"sync"

	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/sensor"
)

type (
	// Row is one recorded dataset entry.
	Row struct {
		Temperature float64
		Humidity    float64
		Prediction  string
	}

	// Replay emits the rows of a fixed dataset cyclically, one per message,
	// stamped with the wall-clock time of emission.
	Replay struct {
		mu     sync.Mutex
		rows   []Row
		cursor int
	}
)

// ErrEmptyDataset is returned when a replay normalizer is given no rows.
var ErrEmptyDataset = errors.New("replay dataset is empty")

// NewReplay creates a replay normalizer over a copy of rows.
func NewReplay(rows []Row) (*Replay, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return &Replay{rows: append([]Row(nil), rows...)}, nil
}

// Normalize emits the next row for every tick, wrapping to the first row
// after the last. Messages on other channels are malformed and leave the
// cursor in place.
func (n *Replay) Normalize(msg sensor.Message) (sensor.Reading, bool, error) {
	if msg.Channel != sensor.Tick {
		return sensor.Reading{}, false, &MalformedError{
			Channel: msg.Channel,
			Payload: msg.Payload,
			Reason:  "replay accepts only ticks",
		}
	}

	n.mu.Lock()
	row := n.rows[n.cursor]
	n.cursor = (n.cursor + 1) % len(n.rows)
	n.mu.Unlock()

	return sensor.Reading{
		Timestamp:   wallclock.Instance.Now(),
		Temperature: row.Temperature,
		Humidity:    row.Humidity,
		Source:      sensor.Replay,
		Label:       row.Prediction,
	}, true, nil
}

// Rewind moves the cursor back to the first row.
func (n *Replay) Rewind() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cursor = 0
}

// Position returns the index of the next row to be emitted and the dataset
// size.
func (n *Replay) Position() (cursor, total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor, len(n.rows)
}
