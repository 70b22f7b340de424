// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package resolver

import (
	"net/netip"
	"testing"

	"github.com/Mossop/localns/internal/names"
)

// fakeLookup is a minimal Lookup for resolver tests.
type fakeLookup map[string][]names.Record

func (f fakeLookup) Lookup(name names.Name, kinds ...names.Kind) []names.Record {
	return f[name.String()]
}

func aRec(t *testing.T, name, ip string, ttl *uint32) names.Record {
	t.Helper()
	rdata, err := names.NewA(netip.MustParseAddr(ip))
	if err != nil {
		t.Fatal(err)
	}
	if ttl == nil {
		return names.NewNoTTL(names.MustParse(name), rdata)
	}
	return names.New(names.MustParse(name), names.TTL(*ttl), rdata)
}

func boolPtr(b bool) *bool    { return &b }
func u32Ptr(u uint32) *uint32 { return &u }

func TestSplitHorizonOverride(t *testing.T) {
	// File source maps api.example.com -> 10.0.0.5; defaults.upstream =
	// 1.1.1.1; no zones authoritative (spec §8 scenario 2).
	lookup := fakeLookup{
		"api.example.com.": {aRec(t, "api.example.com.", "10.0.0.5", nil)},
	}
	upstream := &Upstream{Host: "1.1.1.1", Port: 53, Transport: TransportUDP}
	zones := NewZones(nil, Zone{Upstream: upstream})
	r := New(lookup, zones)

	out := r.Resolve(names.MustParse("api.example.com."), names.KindA)
	if len(out.Records) != 1 || out.Records[0].Record.RData.String() != "10.0.0.5" {
		t.Fatalf("expected local answer for api.example.com., got %+v", out)
	}

	out2 := r.Resolve(names.MustParse("www.example.com."), names.KindA)
	if out2.Forward == nil || out2.Forward.Host != "1.1.1.1" {
		t.Fatalf("expected www.example.com. to be forwarded upstream, got %+v", out2)
	}
}

func TestAuthoritativeZoneReturnsNXDomainWithoutUpstream(t *testing.T) {
	// spec §8 scenario 3.
	lookup := fakeLookup{
		"a.example.local.": {aRec(t, "a.example.local.", "10.1.1.1", nil)},
	}
	zones := NewZones([]Zone{
		{Apex: names.MustParse("example.local."), Authoritative: boolPtr(true)},
	}, Zone{})
	r := New(lookup, zones)

	hit := r.Resolve(names.MustParse("a.example.local."), names.KindA)
	if len(hit.Records) != 1 || hit.Records[0].Record.RData.String() != "10.1.1.1" {
		t.Fatalf("expected local hit for a.example.local., got %+v", hit)
	}

	miss := r.Resolve(names.MustParse("b.example.local."), names.KindA)
	if !miss.NXDomain || miss.Forward != nil {
		t.Fatalf("expected NXDOMAIN without upstream contact for b.example.local., got %+v", miss)
	}
}

func TestServFailWhenNonAuthoritativeWithoutUpstream(t *testing.T) {
	zones := NewZones(nil, Zone{})
	r := New(fakeLookup{}, zones)
	out := r.Resolve(names.MustParse("anything.test."), names.KindA)
	if !out.ServFail {
		t.Fatalf("expected SERVFAIL, got %+v", out)
	}
}

func TestTTLInheritance(t *testing.T) {
	explicit := u32Ptr(77)
	lookup := fakeLookup{
		"explicit.zone.test.": {aRec(t, "explicit.zone.test.", "10.0.0.1", explicit)},
		"implicit.zone.test.": {aRec(t, "implicit.zone.test.", "10.0.0.2", nil)},
	}
	zoneTTL := u32Ptr(120)
	zones := NewZones([]Zone{
		{Apex: names.MustParse("zone.test."), TTL: zoneTTL},
	}, Zone{})
	r := New(lookup, zones)

	out := r.Resolve(names.MustParse("explicit.zone.test."), names.KindA)
	if out.Records[0].TTL != 77 {
		t.Errorf("expected explicit TTL 77 to win, got %d", out.Records[0].TTL)
	}

	out2 := r.Resolve(names.MustParse("implicit.zone.test."), names.KindA)
	if out2.Records[0].TTL != 120 {
		t.Errorf("expected zone-inherited TTL 120, got %d", out2.Records[0].TTL)
	}
}

func TestTTLFallsBackToDefault(t *testing.T) {
	lookup := fakeLookup{
		"x.test.": {aRec(t, "x.test.", "10.0.0.1", nil)},
	}
	zones := NewZones(nil, Zone{})
	r := New(lookup, zones)
	out := r.Resolve(names.MustParse("x.test."), names.KindA)
	if out.Records[0].TTL != DefaultTTL {
		t.Errorf("expected default TTL %d, got %d", DefaultTTL, out.Records[0].TTL)
	}
}

func TestLongestSuffixMatch(t *testing.T) {
	zones := NewZones([]Zone{
		{Apex: names.MustParse("example.com."), TTL: u32Ptr(100)},
		{Apex: names.MustParse("a.example.com."), TTL: u32Ptr(50)},
	}, Zone{})
	got := zones.InheritedTTL(names.MustParse("x.a.example.com."), DefaultTTL)
	if got != 50 {
		t.Errorf("expected the more specific zone's TTL 50, got %d", got)
	}
	got2 := zones.InheritedTTL(names.MustParse("x.b.example.com."), DefaultTTL)
	if got2 != 100 {
		t.Errorf("expected the less specific zone's TTL 100, got %d", got2)
	}
}
