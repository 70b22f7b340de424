// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package names

import (
	"fmt"
	"net/netip"
)

// Kind identifies which variant an RData value holds.
type Kind uint8

const (
	// KindA marks an IPv4 address record.
	KindA Kind = iota
	// KindAAAA marks an IPv6 address record.
	KindAAAA
	// KindCNAME marks a canonical-name alias record.
	KindCNAME
)

// String renders k as its zone-file record type mnemonic.
func (k Kind) String() string {
	switch k {
	case KindA:
		return "A"
	case KindAAAA:
		return "AAAA"
	case KindCNAME:
		return "CNAME"
	default:
		return "UNKNOWN"
	}
}

// RData is a tagged union over the record data kinds LocalNS understands:
// A, AAAA, and CNAME. Other DNS record types are out of scope (spec §3).
// The zero value is invalid; construct with NewA, NewAAAA, or NewCNAME.
type RData struct {
	kind   Kind
	addr   netip.Addr
	target Name
}

// NewA returns an A record data value. addr must be an IPv4 address.
func NewA(addr netip.Addr) (RData, error) {
	if !addr.Is4() {
		return RData{}, fmt.Errorf("names: %s is not an IPv4 address", addr)
	}
	return RData{kind: KindA, addr: addr}, nil
}

// NewAAAA returns an AAAA record data value. addr must be an IPv6 address.
func NewAAAA(addr netip.Addr) (RData, error) {
	if !addr.Is6() || addr.Is4In6() {
		return RData{}, fmt.Errorf("names: %s is not an IPv6 address", addr)
	}
	return RData{kind: KindAAAA, addr: addr}, nil
}

// NewCNAME returns a CNAME record data value pointing at target.
func NewCNAME(target Name) RData {
	return RData{kind: KindCNAME, target: target}
}

// Kind reports which variant r holds.
func (r RData) Kind() Kind { return r.kind }

// Addr returns the address carried by an A or AAAA value. It panics if r is
// not an address kind; callers must check Kind first.
func (r RData) Addr() netip.Addr {
	if r.kind != KindA && r.kind != KindAAAA {
		panic("names: Addr called on non-address RData")
	}
	return r.addr
}

// Target returns the alias target carried by a CNAME value. It panics if r
// is not KindCNAME.
func (r RData) Target() Name {
	if r.kind != KindCNAME {
		panic("names: Target called on non-CNAME RData")
	}
	return r.target
}

// String renders r's value portion only (no name or TTL), e.g. "10.0.0.5"
// or "alias.example.com.".
func (r RData) String() string {
	switch r.kind {
	case KindA, KindAAAA:
		return r.addr.String()
	case KindCNAME:
		return r.target.String()
	default:
		return "<invalid>"
	}
}
