// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package replay_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/normalize"
	"github.com/cartertinney/envmonitor/replay"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/stretchr/testify/require"
)

const dataset = `Timestamp,Temperature,Humidity,Prediction
2024-01-01 00:00:00,18.5,40,Cold
2024-01-01 00:00:02, 25 ,55.5,Normal
2024-01-01 00:00:04,33.2,61,Hot
`

func TestParse(t *testing.T) {
	rows, err := replay.Parse(strings.NewReader(dataset))
	require.NoError(t, err)
	require.Equal(t, []normalize.Row{
		{Temperature: 18.5, Humidity: 40, Prediction: "Cold"},
		{Temperature: 25, Humidity: 55.5, Prediction: "Normal"},
		{Temperature: 33.2, Humidity: 61, Prediction: "Hot"},
	}, rows)
}

func TestParseColumnOrder(t *testing.T) {
	rows, err := replay.Parse(strings.NewReader(
		"prediction,humidity,extra,temperature\nHot,70,x,31\n"))
	require.NoError(t, err)
	require.Equal(t, []normalize.Row{
		{Temperature: 31, Humidity: 70, Prediction: "Hot"},
	}, rows)
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":          "",
		"header only":    "temperature,humidity,prediction\n",
		"missing column": "temperature,humidity\n20,50\n",
		"bad value":      "temperature,humidity,prediction\nwarm,50,Normal\n",
		"nan":            "temperature,humidity,prediction\nNaN,50,x\n",
		"infinite":       "temperature,humidity,prediction\n20,+Inf,Normal\n",
		"short row":      "temperature,humidity,prediction\n20\n",
		"bad quoting":    "temperature,humidity,prediction\n\"20,50,Normal\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := replay.Parse(strings.NewReader(input))
			var de *replay.DatasetError
			require.True(t, errors.As(err, &de), "%v", err)
		})
	}

	_, err := replay.Parse(strings.NewReader(""))
	require.ErrorIs(t, err, normalize.ErrEmptyDataset)

	_, err = replay.Parse(strings.NewReader(
		"temperature,humidity,prediction\n20,50,Normal\nx,1,Cold\n"))
	var de *replay.DatasetError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 3, de.Line)

	_, err = replay.Parse(strings.NewReader(
		"temperature,humidity,prediction\n20,50,Normal\n21,51,Normal\nNaN,50,x\n"))
	require.ErrorAs(t, err, &de)
	require.Equal(t, 4, de.Line)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iot.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o600))

	rows, err := replay.Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	_, err = replay.Load(filepath.Join(dir, "missing.csv"))
	var de *replay.DatasetError
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "missing.csv")
}

func TestTicker(t *testing.T) {
	ticker := replay.NewTicker(10*time.Millisecond, nil)
	stream, err := ticker.Connect(context.Background())
	require.NoError(t, err)

	for range 3 {
		select {
		case msg := <-stream.Messages():
			require.Equal(t, sensor.Tick, msg.Channel)
			require.False(t, msg.Received.IsZero())
		case <-time.After(time.Second):
			require.FailNow(t, "no tick")
		}
	}

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	<-stream.Done()
	require.NoError(t, stream.Err())
}

func TestTickerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := replay.NewTicker(0, nil).Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
