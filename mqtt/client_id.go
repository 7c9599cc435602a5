// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"strings"

	"github.com/google/uuid"
)

// ClientIDs must be between 1 and 23 UTF-8 encoded bytes in length and only
// contain alphanumeric characters:
// https://docs.oasis-open.org/mqtt/mqtt/v5.0/os/mqtt-v5.0-os.html#_Toc3901059
const maxClientIDLength = 23

const clientIDPrefix = "envmon"

// RandomClientID generates a random valid MQTT client ID. The monitor keeps
// no session state, so a fresh ID per process is fine.
func RandomClientID() string {
	id := clientIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:maxClientIDLength]
}
