// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package traefiksrc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mossop/localns/internal/names"
)

func TestHostsFromRuleMultipleHosts(t *testing.T) {
	hosts := HostsFromRule("Host(`a.test`, `b.test`) && PathPrefix(`/x`)")
	if len(hosts) != 2 || hosts[0] != "a.test" || hosts[1] != "b.test" {
		t.Fatalf("unexpected hosts: %v", hosts)
	}
}

func TestHostsFromRuleIgnoresOtherMatchers(t *testing.T) {
	hosts := HostsFromRule("PathPrefix(`/x`) && Headers(`X-Foo`, `bar`)")
	if len(hosts) != 0 {
		t.Fatalf("expected no hosts, got %v", hosts)
	}
}

// scenario 5: Traefik reports a router with rule
// Host(`a.test`, `b.test`) && PathPrefix(`/x`) and the driver is configured
// with url: http://10.9.9.9. Records a.test -> A 10.9.9.9 and
// b.test -> A 10.9.9.9 appear.
func TestRecordsForURLAddressFallback(t *testing.T) {
	d := New("http://10.9.9.9", nil, 0)
	records, err := d.recordsFor([]router{
		{Rule: "Host(`a.test`, `b.test`) && PathPrefix(`/x`)"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	for _, r := range records {
		if r.RData.Kind() != names.KindA || r.RData.String() != "10.9.9.9" {
			t.Errorf("expected A 10.9.9.9, got %+v", r)
		}
	}
}

func TestRecordsForAddressOverride(t *testing.T) {
	addr := "192.168.1.1"
	d := New("http://traefik.local:8080", &addr, 0)
	records, err := d.recordsFor([]router{{Rule: "Host(`svc.test`)"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].RData.String() != "192.168.1.1" {
		t.Fatalf("expected override address, got %+v", records)
	}
}

func TestRecordsForHostnameURLYieldsCNAME(t *testing.T) {
	d := New("http://traefik.internal", nil, 0)
	records, err := d.recordsFor([]router{{Rule: "Host(`svc.test`)"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].RData.Kind() != names.KindCNAME {
		t.Fatalf("expected a CNAME record, got %+v", records)
	}
	if records[0].RData.Target().String() != "traefik.internal." {
		t.Errorf("expected cname target traefik.internal., got %s", records[0].RData.Target())
	}
}

func TestFetchRoutersAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/http/routers" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]router{{Rule: "Host(`a.test`)"}})
	}))
	defer srv.Close()

	d := New(srv.URL, nil, 0)
	routers, err := d.fetchRouters(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routers) != 1 || routers[0].Rule != "Host(`a.test`)" {
		t.Fatalf("unexpected routers: %+v", routers)
	}
}
