// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package store

import "github.com/Mossop/localns/internal/names"

// ChangeKind identifies the variant of a ChangeEvent.
type ChangeKind uint8

const (
	// FullSnapshot is delivered exactly once, to a new subscriber, as the
	// current merged view at subscription time.
	FullSnapshot ChangeKind = iota
	// Added is delivered when a record enters the merged index.
	Added
	// Removed is delivered when a record leaves the merged index.
	Removed
)

// ChangeEvent is a single delta (or, for FullSnapshot, a full dump) in the
// merged index's change stream (spec §4.2).
type ChangeEvent struct {
	Kind    ChangeKind
	Records []names.Record
}
