// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"testing"

	"github.com/Mossop/localns/internal/names"
)

func TestParseDefaultsPortAndZones(t *testing.T) {
	cfg, err := parse([]byte(`
defaults:
  upstream:
    host: 1.1.1.1
zones:
  example.local:
    authoritative: true
sources:
  file:
    main:
      path: main.yaml
`), "/etc/localns")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 53 {
		t.Errorf("expected default port 53, got %d", cfg.Server.Port)
	}
	if cfg.Defaults.Upstream == nil || cfg.Defaults.Upstream.Host != "1.1.1.1" {
		t.Fatalf("expected defaults.upstream.host = 1.1.1.1, got %+v", cfg.Defaults.Upstream)
	}
	za, ok := cfg.Zones["example.local"]
	if !ok || za.Authoritative == nil || !*za.Authoritative {
		t.Fatalf("expected example.local to be authoritative, got %+v", cfg.Zones)
	}
	if got, want := cfg.ResolvePath("main.yaml"), "/etc/localns/main.yaml"; got != want {
		t.Errorf("ResolvePath(relative) = %q, want %q", got, want)
	}
	if got, want := cfg.ResolvePath("/abs/main.yaml"), "/abs/main.yaml"; got != want {
		t.Errorf("ResolvePath(absolute) = %q, want %q", got, want)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := parse([]byte(`
server:
  port: 53
  bogus: true
`), "/tmp")
	if err == nil {
		t.Fatalf("expected an error for an unknown key")
	}
}

func TestBuildZonesLongestSuffix(t *testing.T) {
	cfg, err := parse([]byte(`
zones:
  example.com:
    ttl: 100
  a.example.com:
    ttl: 50
`), "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	zones, err := cfg.BuildZones()
	if err != nil {
		t.Fatal(err)
	}
	ttl := zones.InheritedTTL(names.MustParse("x.a.example.com."), 300)
	if ttl != 50 {
		t.Errorf("expected the more specific zone's TTL 50, got %d", ttl)
	}
}

func TestDockerConfigRejectsMultipleConnectionModes(t *testing.T) {
	_, err := parse([]byte(`
sources:
  docker:
    d1:
      local: {}
      http: "http://localhost:2375"
`), "/tmp")
	if err == nil {
		t.Fatalf("expected an error when multiple docker connection modes are set")
	}
}
