// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package replay loads recorded datasets and plays them back on a fixed
// interval.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cartertinney/envmonitor/normalize"
)

// DatasetError indicates that a replay dataset could not be loaded. It may
// wrap an underlying error using Go standard error wrapping.
type DatasetError struct {
	Path    string
	Line    int
	message string
	wrapped error
}

func (e *DatasetError) Error() string {
	msg := e.message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.wrapped != nil {
		return fmt.Sprintf("replay dataset %s: %v", msg, e.wrapped)
	}
	return "replay dataset " + msg
}

func (e *DatasetError) Unwrap() error {
	return e.wrapped
}

var required = []string{"temperature", "humidity", "prediction"}

// Load reads a dataset from a CSV file. A missing, unreadable or empty file
// is an error.
func Load(path string) ([]normalize.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DatasetError{
			Path:    path,
			message: "cannot be opened",
			wrapped: err,
		}
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		var de *DatasetError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// Parse reads a dataset in CSV form. The header must name the temperature,
// humidity and prediction columns, in any order and case; other columns are
// ignored.
func Parse(r io.Reader) ([]normalize.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &DatasetError{
			message: "is empty",
			wrapped: normalize.ErrEmptyDataset,
		}
	}
	if err != nil {
		return nil, &DatasetError{message: "has an invalid header", wrapped: err}
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, &DatasetError{
				Line:    1,
				message: fmt.Sprintf("missing column %q", col),
			}
		}
	}

	var rows []normalize.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DatasetError{message: "unreadable", wrapped: err}
		}
		line, _ := reader.FieldPos(0)

		get := func(col string) string {
			if i := columns[col]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		temp, err := normalize.ParseFinite(get("temperature"))
		if err != nil {
			return nil, &DatasetError{Line: line, message: "invalid temperature", wrapped: err}
		}
		hum, err := normalize.ParseFinite(get("humidity"))
		if err != nil {
			return nil, &DatasetError{Line: line, message: "invalid humidity", wrapped: err}
		}

		rows = append(rows, normalize.Row{
			Temperature: temp,
			Humidity:    hum,
			Prediction:  get("prediction"),
		})
	}

	if len(rows) == 0 {
		return nil, &DatasetError{
			message: "has no rows",
			wrapped: normalize.ErrEmptyDataset,
		}
	}
	return rows, nil
}
