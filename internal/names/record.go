// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package names

// TTL is an explicit record TTL in seconds. A nil *TTL on a Record means
// "inherit from the zone default at serve time" (spec §3).
type TTL uint32

// Record is a single, value-typed, hashable DNS fact: a name, an optional
// explicit TTL, and its data. Two Records with equal fields are the same
// record for deduplication purposes (spec §3: "duplicate records ... in the
// same snapshot collapse").
type Record struct {
	Name  Name
	TTL   *TTL
	RData RData
}

// New builds a Record with an explicit TTL.
func New(name Name, ttl TTL, rdata RData) Record {
	return Record{Name: name, TTL: &ttl, RData: rdata}
}

// NewNoTTL builds a Record that inherits its TTL from the zone at serve
// time.
func NewNoTTL(name Name, rdata RData) Record {
	return Record{Name: name, RData: rdata}
}

// key is the value used for set membership and deduplication: it captures
// every field relevant to record identity.
type key struct {
	name   Name
	hasTTL bool
	ttl    TTL
	kind   Kind
	value  string
}

// Key returns a comparable value uniquely identifying r for use as a map
// key, e.g. in a set<Record> implementation.
func (r Record) Key() any {
	k := key{name: r.Name, kind: r.RData.Kind(), value: r.RData.String()}
	if r.TTL != nil {
		k.hasTTL = true
		k.ttl = *r.TTL
	}
	return k
}

// Equal reports whether r and o represent the same record tuple.
func (r Record) Equal(o Record) bool {
	return r.Key() == o.Key()
}
