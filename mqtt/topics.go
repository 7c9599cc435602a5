// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"strings"

	"github.com/cartertinney/envmonitor/sensor"
)

// Topics names the MQTT topic (or topic filter) carrying each logical
// channel.
type Topics struct {
	Temperature string
	Humidity    string
	Combined    string
}

// DefaultTopics are the topics used by the sensor simulator.
var DefaultTopics = Topics{
	Temperature: "iot/temperature",
	Humidity:    "iot/humidity",
	Combined:    "iot/sensor/data",
}

func (t Topics) routes() []route {
	return []route{
		{t.Temperature, sensor.Temperature},
		{t.Humidity, sensor.Humidity},
		{t.Combined, sensor.Combined},
	}
}

type route struct {
	filter  string
	channel sensor.Channel
}

// channel maps a received topic name to its logical channel. Exact matches
// win over wildcard matches.
func (t Topics) channel(topic string) (sensor.Channel, bool) {
	routes := t.routes()
	for _, r := range routes {
		if r.filter == topic {
			return r.channel, true
		}
	}
	for _, r := range routes {
		if r.filter != "" && IsTopicFilterMatch(r.filter, topic) {
			return r.channel, true
		}
	}
	return "", false
}

// IsTopicFilterMatch checks if a topic name matches a topic filter, honoring
// the + and # wildcards and $share/<group>/ prefixes.
func IsTopicFilterMatch(topicFilter, topicName string) bool {
	if rest, ok := strings.CutPrefix(topicFilter, "$share/"); ok {
		_, filter, found := strings.Cut(rest, "/")
		if !found {
			return false
		}
		topicFilter = filter
	}

	filters := strings.Split(topicFilter, "/")
	names := strings.Split(topicName, "/")

	for i, f := range filters {
		switch {
		case f == "#":
			// Multi-level wildcard must be the last level.
			return i == len(filters)-1
		case i >= len(names):
			return false
		case f != "+" && f != names[i]:
			return false
		}
	}
	return len(filters) == len(names)
}
