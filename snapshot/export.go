// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package snapshot

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cartertinney/envmonitor/sensor"
)

// TimestampLayout is the timestamp format of exported rows.
const TimestampLayout = "2006-01-02 15:04:05"

// Columns of the export table.
var Columns = []string{
	"timestamp",
	"temperature",
	"humidity",
	"prediction",
	"confidence",
	"anomaly_flag",
	"anomaly_reason",
	"alert_triggered",
}

// WriteCSV writes readings as the export table, header first.
func WriteCSV(w io.Writer, readings []sensor.Derived) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, d := range readings {
		if err := cw.Write([]string{
			d.Timestamp.Format(TimestampLayout),
			formatFloat(d.Temperature),
			formatFloat(d.Humidity),
			string(d.Category),
			formatFloat(d.Confidence),
			strconv.FormatBool(d.Anomaly),
			d.AnomalyReason,
			strconv.FormatBool(d.AlertTriggered),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export taken at t.
func ExportFilename(t time.Time) string {
	return "iot_log_" + t.Format("20060102_150405") + ".csv"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
