// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package topics_test

import (
	"testing"

	"github.com/rapidreach/speakerlink/topics"
)

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"devices/abc123/tx", false},
		{"invalid/+", true},
		{"invalid/#", true},
		{"", true},
		{string([]byte{0xFF, 0xFE}), true}, // Invalid UTF-8
		{"null\u0000char", true},
	}

	for _, tt := range tests {
		if err := topics.ValidateTopicName(tt.topic); (err != nil) != tt.wantErr {
			t.Errorf("ValidateTopicName(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"devices/abc123/rx", false},
		{"devices/+/rx", false},
		{"devices/#", false},
		{"#", false},
		{"+", false},
		{"+/+/+", false},
		{"devices/#/rx", true},   // '#' not at the end
		{"devices/ab#", true},    // '#' inside a level
		{"devices/a+b/rx", true}, // '+' inside a level
		{"", true},
		{string([]byte{0xFF, 0xFE}), true},
		{"null\u0000char", true},
	}

	for _, tt := range tests {
		if err := topics.ValidateFilter(tt.filter); (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}
