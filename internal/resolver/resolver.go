// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package resolver

import (
	"sync/atomic"

	"github.com/Mossop/localns/internal/names"
)

// DefaultTTL is used when neither a record nor any zone in its inheritance
// chain specifies one (spec §4.5 step 3: "an implementation default (e.g.,
// 300s)").
const DefaultTTL uint32 = 300

// Lookup is the subset of Store's read surface the resolver needs. It is
// an interface (rather than a concrete *store.Store) so resolver tests can
// supply a fake without constructing a real store.
type Lookup interface {
	Lookup(name names.Name, kinds ...names.Kind) []names.Record
}

// Outcome is the result of resolving one (qname, qtype) query (spec §4.5).
type Outcome struct {
	// Authoritative is set on every Outcome, local or forwarded, per the
	// owning zone's inherited authoritative flag.
	Authoritative bool

	// Records holds local answers, present when a local record matched
	// (directly or via CNAME).
	Records []ResolvedRecord

	// NXDomain is true when the matched zone is authoritative and no
	// local record exists: no upstream is consulted.
	NXDomain bool

	// Forward is set when the query should be relayed verbatim to this
	// upstream (nil otherwise).
	Forward *Upstream

	// ServFail is true when the zone is non-authoritative but has no
	// configured upstream.
	ServFail bool
}

// ResolvedRecord pairs a record with its effective (already-composed) TTL.
type ResolvedRecord struct {
	Record names.Record
	TTL    uint32
}

// Resolver answers queries against a Lookup and a Zones forest (spec
// §4.5). The zone forest is held behind an atomic pointer, the same
// publish idiom internal/store uses for its merged view, so a config
// reload can swap in a freshly built Zones (spec §1 "atomic hot-reload...
// may add, remove, or reconfigure sources and zones") without the
// resolver ever observing a torn, half-updated forest.
type Resolver struct {
	store Lookup
	zones atomic.Pointer[Zones]
}

// New returns a Resolver for the given store view and zone configuration.
func New(store Lookup, zones *Zones) *Resolver {
	r := &Resolver{store: store}
	r.zones.Store(zones)
	return r
}

// SetZones atomically swaps in a freshly built zone forest, taking effect
// for every query resolved after the call returns (spec §4.6).
func (r *Resolver) SetZones(zones *Zones) {
	r.zones.Store(zones)
}

// Resolve answers (qname, kinds...) per the policy in spec §4.5:
//  1. Local lookup: if any local record matches one of kinds, or only
//     CNAMEs exist, return them.
//  2. Zone match: longest suffix, including the synthetic root.
//  3. TTL: explicit record TTL, else zone-inherited TTL, else DefaultTTL.
//  4. Miss policy: authoritative zone -> NXDOMAIN; else forward upstream if
//     configured; else SERVFAIL.
func (r *Resolver) Resolve(qname names.Name, kinds ...names.Kind) Outcome {
	zones := r.zones.Load()
	authoritative := zones.InheritedAuthoritative(qname)

	local := r.store.Lookup(qname, kinds...)
	if len(local) > 0 {
		out := Outcome{Authoritative: authoritative}
		for _, rec := range local {
			out.Records = append(out.Records, ResolvedRecord{
				Record: rec,
				TTL:    composeTTL(zones, qname, rec),
			})
		}
		return out
	}

	if authoritative {
		return Outcome{Authoritative: authoritative, NXDomain: true}
	}

	if up := zones.InheritedUpstream(qname); up != nil {
		return Outcome{Authoritative: authoritative, Forward: up}
	}

	return Outcome{Authoritative: authoritative, ServFail: true}
}

func composeTTL(zones *Zones, qname names.Name, rec names.Record) uint32 {
	if rec.TTL != nil {
		return uint32(*rec.TTL)
	}
	return zones.InheritedTTL(qname, DefaultTTL)
}
