// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package dnsserver

import (
	"net/netip"
	"testing"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/resolver"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

type fakeLookup map[string][]names.Record

func (f fakeLookup) Lookup(name names.Name, kinds ...names.Kind) []names.Record {
	return f[name.String()]
}

func aRec(t *testing.T, name, ip string) names.Record {
	t.Helper()
	rdata, err := names.NewA(netip.MustParseAddr(ip))
	if err != nil {
		t.Fatal(err)
	}
	return names.NewNoTTL(names.MustParse(name), rdata)
}

func cnameRec(t *testing.T, name, target string) names.Record {
	t.Helper()
	return names.NewNoTTL(names.MustParse(name), names.NewCNAME(names.MustParse(target)))
}

func newTestServer(lookup fakeLookup, zones *resolver.Zones) *Server {
	return New("127.0.0.1:0", resolver.New(lookup, zones), nil, zap.NewNop().Sugar())
}

func query(qname string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(qname), qtype)
	return m
}

func TestResolveLocalHit(t *testing.T) {
	lookup := fakeLookup{"svc.home.local.": {aRec(t, "svc.home.local.", "172.17.0.5")}}
	s := newTestServer(lookup, resolver.NewZones(nil, resolver.Zone{}))

	r := query("svc.home.local.", dns.TypeA)
	m := new(dns.Msg)
	m.SetReply(r)
	s.resolve(m, r, names.MustParse("svc.home.local."), names.KindA)

	if m.Rcode != dns.RcodeSuccess || len(m.Answer) != 1 {
		t.Fatalf("expected a successful single answer, got rcode=%d answers=%d", m.Rcode, len(m.Answer))
	}
	a, ok := m.Answer[0].(*dns.A)
	if !ok || a.A.String() != "172.17.0.5" {
		t.Errorf("expected A 172.17.0.5, got %+v", m.Answer[0])
	}
}

func TestResolveChasesCNAMEToLocalA(t *testing.T) {
	lookup := fakeLookup{
		"alias.test.":  {cnameRec(t, "alias.test.", "target.test.")},
		"target.test.": {aRec(t, "target.test.", "10.0.0.9")},
	}
	s := newTestServer(lookup, resolver.NewZones(nil, resolver.Zone{}))

	r := query("alias.test.", dns.TypeA)
	m := new(dns.Msg)
	m.SetReply(r)
	s.resolve(m, r, names.MustParse("alias.test."), names.KindA)

	if m.Rcode != dns.RcodeSuccess {
		t.Fatalf("expected success, got rcode=%d", m.Rcode)
	}
	if len(m.Answer) != 2 {
		t.Fatalf("expected a CNAME followed by an A record, got %d answers: %+v", len(m.Answer), m.Answer)
	}
	if _, ok := m.Answer[0].(*dns.CNAME); !ok {
		t.Errorf("expected first answer to be the CNAME, got %+v", m.Answer[0])
	}
	if _, ok := m.Answer[1].(*dns.A); !ok {
		t.Errorf("expected second answer to be the A record, got %+v", m.Answer[1])
	}
}

func TestResolveAuthoritativeNXDomain(t *testing.T) {
	boolTrue := true
	zones := resolver.NewZones([]resolver.Zone{
		{Apex: names.MustParse("example.local."), Authoritative: &boolTrue},
	}, resolver.Zone{})
	s := newTestServer(fakeLookup{}, zones)

	r := query("missing.example.local.", dns.TypeA)
	m := new(dns.Msg)
	m.SetReply(r)
	s.resolve(m, r, names.MustParse("missing.example.local."), names.KindA)

	if m.Rcode != dns.RcodeNameError {
		t.Fatalf("expected NXDOMAIN, got rcode=%d", m.Rcode)
	}
}

func TestResolveServFailWithNoUpstream(t *testing.T) {
	s := newTestServer(fakeLookup{}, resolver.NewZones(nil, resolver.Zone{}))

	r := query("anything.test.", dns.TypeA)
	m := new(dns.Msg)
	m.SetReply(r)
	s.resolve(m, r, names.MustParse("anything.test."), names.KindA)

	if m.Rcode != dns.RcodeServerFailure {
		t.Fatalf("expected SERVFAIL, got rcode=%d", m.Rcode)
	}
}

func TestKindForQtypeRejectsUnsupportedTypes(t *testing.T) {
	if _, ok := kindForQtype(dns.TypeMX); ok {
		t.Fatalf("expected MX to be unsupported")
	}
	if k, ok := kindForQtype(dns.TypeAAAA); !ok || k != names.KindAAAA {
		t.Fatalf("expected AAAA to map to names.KindAAAA")
	}
}
