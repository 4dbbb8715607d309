// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package topics_test

import (
	"testing"

	"github.com/rapidreach/speakerlink/topics"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"devices/abc123/rx", "devices/abc123/rx", true},
		{"devices/+/rx", "devices/abc123/rx", true},
		{"devices/+/rx", "devices/other/rx", true},
		{"devices/+/rx", "devices/abc123/rx/extra", false},
		{"devices/+/rx", "devices/rx", false},
		{"devices/#", "devices/abc123/rx", true},
		{"devices/#", "devices/abc123/rx/extra", true},
		{"devices/#", "devices", true},
		{"#", "devices/abc123", true},
		{"#", "anything", true},
		{"+/+", "devices/abc123", true},
		{"+/+", "devices/abc123/rx", false},
		{"$SYS/monitor/Clients", "$SYS/monitor/Clients", true},
		{"$SYS/#", "$SYS/monitor/Clients", true},
		{"#", "$SYS/monitor/Clients", false},
		{"+/monitor/Clients", "$SYS/monitor/Clients", false},
		{"devices/abc123/rx", "devices/abc123/tx", false},
		{"", "devices", false},
		{"devices", "", false},
	}

	for _, tt := range tests {
		if got := topics.Match(tt.filter, tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}
