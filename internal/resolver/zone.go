// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resolver implements the zone/upstream resolution policy of spec
// §4.5: longest-suffix zone match with attribute inheritance, and the
// local-first, upstream-fallback query path.
package resolver

import (
	"fmt"
	"sort"

	"github.com/Mossop/localns/internal/names"
)

// Transport is the wire transport used to reach an Upstream. Only UDP is
// supported (spec §3, §9 open question: "source claims UDP only; retain
// that restriction").
type Transport string

// TransportUDP is the only supported upstream transport.
const TransportUDP Transport = "udp"

// Upstream is a single recursive DNS server consulted for names a zone
// does not answer authoritatively.
type Upstream struct {
	Host      string
	Port      uint16
	Transport Transport
}

// Addr renders u as a "host:port" dial address.
func (u Upstream) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// Zone is a configured policy bucket keyed by a name suffix (spec §3). A
// nil pointer field means the attribute is unset on this zone and must be
// inherited from a less specific ancestor.
type Zone struct {
	Apex          names.Name
	TTL           *uint32
	Upstream      *Upstream
	Authoritative *bool
}

func (z Zone) depth() int {
	return z.Apex.Depth()
}

// Zones is the configured forest of zones for one configuration
// generation, including the synthetic root zone.
type Zones struct {
	byDepthDesc []Zone
}

// NewZones builds a Zones collection from zone configuration plus the
// defaults block, which becomes the synthetic root zone's attributes
// (spec §3: "A synthetic root zone carries the defaults block").
func NewZones(zones []Zone, defaults Zone) *Zones {
	defaults.Apex = names.Root
	all := append([]Zone{defaults}, zones...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].depth() > all[j].depth()
	})
	return &Zones{byDepthDesc: all}
}

// candidates returns every zone whose apex is an ancestor of (or equal to)
// qname, most specific first.
func (z *Zones) candidates(qname names.Name) []Zone {
	var out []Zone
	for _, zone := range z.byDepthDesc {
		if qname.IsSubdomainOf(zone.Apex) {
			out = append(out, zone)
		}
	}
	return out
}

// Match returns the zone whose apex is the longest suffix of qname (spec
// §4.5 step 2). The synthetic root zone always matches, so Match never
// fails to find a zone.
func (z *Zones) Match(qname names.Name) Zone {
	c := z.candidates(qname)
	return c[0] // root is always present and always a candidate
}

// InheritedTTL walks from qname's matched zone toward the root and returns
// the first explicitly configured zone TTL, defaulting to fallback if none
// is configured anywhere in the chain (spec §4.5 step 3, §4.5 inheritance
// rule).
func (z *Zones) InheritedTTL(qname names.Name, fallback uint32) uint32 {
	for _, zone := range z.candidates(qname) {
		if zone.TTL != nil {
			return *zone.TTL
		}
	}
	return fallback
}

// InheritedUpstream walks from qname's matched zone toward the root and
// returns the first explicitly configured upstream, or nil if none is
// configured anywhere in the chain.
func (z *Zones) InheritedUpstream(qname names.Name) *Upstream {
	for _, zone := range z.candidates(qname) {
		if zone.Upstream != nil {
			return zone.Upstream
		}
	}
	return nil
}

// InheritedAuthoritative walks from qname's matched zone toward the root
// and returns the first explicitly configured authoritative flag,
// defaulting to false if none is configured anywhere in the chain.
func (z *Zones) InheritedAuthoritative(qname names.Name) bool {
	for _, zone := range z.candidates(qname) {
		if zone.Authoritative != nil {
			return *zone.Authoritative
		}
	}
	return false
}
