// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/cartertinney/envmonitor/sensor"
)

// MalformedError indicates that an inbound message could not be normalized
// and was discarded. Previously held values are unaffected. It may wrap the
// underlying parse error.
type MalformedError struct {
	Channel sensor.Channel
	Payload []byte
	Reason  string
	wrapped error
}

func (e *MalformedError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf(
			"malformed %s payload: %s: %v",
			e.Channel,
			e.Reason,
			e.wrapped,
		)
	}
	return fmt.Sprintf("malformed %s payload: %s", e.Channel, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return e.wrapped
}

// Attrs returns additional error attributes for slog.
func (e *MalformedError) Attrs() []slog.Attr {
	payload := e.Payload
	if len(payload) > 64 {
		payload = payload[:64]
	}
	return []slog.Attr{
		slog.String("channel", string(e.Channel)),
		slog.String("payload", string(payload)),
	}
}
