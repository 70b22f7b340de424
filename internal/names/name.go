// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package names implements the case-folded, fully-qualified domain name
// type shared by every record source and the resolver.
package names

import (
	"errors"
	"strings"
)

// ErrRelative is returned when a name is required to be absolute (i.e. to
// carry an implicit or explicit trailing root label) but isn't, and no
// default suffix was supplied to make it one.
var ErrRelative = errors.New("names: relative name without a default suffix")

// Name is an ordered, case-folded sequence of DNS labels. The zero Name is
// the root name (""). All Names held by the record store are absolute;
// Name itself does not track absoluteness because every label sequence
// rooted at the synthetic root label is, by construction, absolute.
//
// Name is comparable and hashable by value: two Names are equal iff their
// label sequences are equal after case-folding, which is exactly DNS name
// equality.
type Name struct {
	labels string // labels joined by "." , lower-cased, no leading/trailing dots
}

// Root is the zero-label name, the apex of the synthetic root zone.
var Root = Name{}

// Parse converts s into an absolute Name. s may be written with or without
// a trailing dot; both forms are accepted and normalized (spec §6: "Names
// may be written without trailing dot; the loader normalizes"). A name
// with an internal dot, such as "example.local", is already a complete
// name by that convention and is normalized directly even without a
// trailing dot. Only a single bare label with no dot at all (e.g. a raw
// DHCP hostname) is genuinely relative: defaultSuffix is appended to it if
// non-empty, else ErrRelative is returned.
func Parse(s string, defaultSuffix string) (Name, error) {
	s = strings.TrimSpace(s)
	explicitlyAbsolute := strings.HasSuffix(s, ".")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Root, nil
	}
	if !explicitlyAbsolute && !strings.Contains(s, ".") {
		if defaultSuffix == "" {
			return Name{}, ErrRelative
		}
		suffix, err := Parse(defaultSuffix, "")
		if err != nil {
			return Name{}, err
		}
		return Name{labels: strings.ToLower(s) + "." + suffix.labels}, nil
	}
	return Name{labels: strings.ToLower(s)}, nil
}

// MustParse is like Parse but panics on error. Intended for literals in
// tests and static configuration defaults.
func MustParse(s string) Name {
	n, err := Parse(s, "")
	if err != nil {
		panic(err)
	}
	return n
}

// Join returns the name formed by prefixing label(s) onto n, e.g.
// Root.Join("com").Join("example").Join("www") == MustParse("www.example.com.").
func (n Name) Join(label string) Name {
	label = strings.ToLower(strings.TrimSuffix(label, "."))
	if n.labels == "" {
		return Name{labels: label}
	}
	return Name{labels: label + "." + n.labels}
}

// String renders n as an absolute, trailing-dot name, e.g. "www.example.com.".
// The root name renders as ".".
func (n Name) String() string {
	return n.labels + "."
}

// IsRoot reports whether n is the zero-label root name.
func (n Name) IsRoot() bool {
	return n.labels == ""
}

// labelSlice returns n's labels from TLD-most to leaf, i.e. reversed
// relative to read order: labelSlice()[0] is the rightmost label.
func (n Name) labelSlice() []string {
	if n.labels == "" {
		return nil
	}
	parts := strings.Split(n.labels, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

// IsSubdomainOf reports whether n is equal to apex or a descendant of apex,
// i.e. whether apex is a suffix of n on a label boundary. Every Name is a
// subdomain of Root.
func (n Name) IsSubdomainOf(apex Name) bool {
	nl, al := n.labelSlice(), apex.labelSlice()
	if len(al) > len(nl) {
		return false
	}
	for i, lbl := range al {
		if nl[i] != lbl {
			return false
		}
	}
	return true
}

// SuffixDepth returns the number of labels apex shares with n, used to rank
// candidate zones by longest-suffix match. Callers should only compare
// depths between apexes that are themselves subdomains of n.
func (n Name) SuffixDepth(apex Name) int {
	return len(apex.labelSlice())
}

// Depth returns the number of labels in n, used to rank zone apexes by
// specificity during longest-suffix matching.
func (n Name) Depth() int {
	return len(n.labelSlice())
}
