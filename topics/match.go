// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package topics provides MQTT topic validation and wildcard matching for
// the subscription registry.
package topics

import "strings"

// Match checks if the topic matches the given filter according to MQTT
// wildcard rules:
//   - '+' matches exactly one topic level.
//   - '#' matches any number of trailing levels and is only valid as the
//     final filter level.
//   - Topic names starting with '$' are only matched by filters that also
//     start with '$'.
//
// Matching is case-sensitive. The topic must not contain wildcards.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	// Wildcards never match the first level of a '$' topic.
	if strings.HasPrefix(topic, "$") {
		if filter[0] != '$' {
			return false
		}
		if filterLevels[0] == "+" || filterLevels[0] == "#" {
			return false
		}
	}

	for i, fLevel := range filterLevels {
		if fLevel == "#" {
			// '#' matches the parent and all children.
			return true
		}

		if i >= len(topicLevels) {
			// Filter is longer than the topic and the extra level is
			// not '#', so it cannot match.
			return false
		}

		if fLevel == "+" {
			continue
		}

		if fLevel != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
