// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"testing"
)

func TestRegistryAddAndMatch(t *testing.T) {
	r := newRegistry(4)
	noop := func(string, []byte, string) {}

	if _, err := r.add("devices/abc123/rx", 1, noop); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := r.add("devices/#", 0, noop); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if r.match("devices/abc123/rx") == nil {
		t.Error("exact filter should match")
	}
	if r.match("devices/other/anything") == nil {
		t.Error("wildcard filter should match")
	}
	if r.match("other/topic") != nil {
		t.Error("unrelated topic should not match")
	}
}

func TestRegistryExactBeatsWildcard(t *testing.T) {
	r := newRegistry(4)

	var hit string
	if _, err := r.add("devices/#", 0, func(string, []byte, string) { hit = "wildcard" }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.add("devices/abc123/rx", 1, func(string, []byte, string) { hit = "exact" }); err != nil {
		t.Fatal(err)
	}

	h := r.match("devices/abc123/rx")
	if h == nil {
		t.Fatal("no handler matched")
	}
	h("devices/abc123/rx", nil, "")
	if hit != "exact" {
		t.Errorf("expected exact handler, got %s", hit)
	}
}

func TestRegistryFull(t *testing.T) {
	r := newRegistry(2)
	noop := func(string, []byte, string) {}

	for i, filter := range []string{"a", "b"} {
		if _, err := r.add(filter, 0, noop); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}
	if _, err := r.add("c", 0, noop); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("expected ErrRegistryFull, got %v", err)
	}

	// Freeing a slot makes room again.
	if !r.remove("a") {
		t.Fatal("remove failed")
	}
	if _, err := r.add("c", 0, noop); err != nil {
		t.Errorf("add after remove failed: %v", err)
	}
}

func TestRegistryReplaceSameFilter(t *testing.T) {
	r := newRegistry(1)
	noop := func(string, []byte, string) {}

	if _, err := r.add("devices/x/rx", 0, noop); err != nil {
		t.Fatal(err)
	}
	// Same filter re-subscribed: replaced in place, not a second slot.
	if _, err := r.add("devices/x/rx", 1, noop); err != nil {
		t.Errorf("re-add of same filter failed: %v", err)
	}

	subs := r.active()
	if len(subs) != 1 {
		t.Fatalf("expected 1 active subscription, got %d", len(subs))
	}
	if subs[0].qos != 1 {
		t.Errorf("qos not updated: %d", subs[0].qos)
	}
}

func TestRegistryActiveSnapshot(t *testing.T) {
	r := newRegistry(4)
	noop := func(string, []byte, string) {}

	r.add("a", 0, noop)
	r.add("b", 1, noop)
	r.remove("a")

	subs := r.active()
	if len(subs) != 1 || subs[0].filter != "b" {
		t.Errorf("unexpected snapshot: %+v", subs)
	}
}
