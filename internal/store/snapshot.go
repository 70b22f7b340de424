// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package store

import "github.com/Mossop/localns/internal/names"

// Snapshot is the complete, generation-numbered contribution of one source.
// It fully replaces that source's prior contribution: a name absent from a
// later snapshot is implicitly deleted (spec §3).
type Snapshot struct {
	Source     SourceId
	Records    []names.Record
	Generation uint64
}

// dedupe returns s.Records with exact-tuple duplicates collapsed, per spec
// §3 ("duplicate records ... in the same snapshot collapse").
func (s Snapshot) dedupe() []names.Record {
	seen := make(map[any]bool, len(s.Records))
	out := make([]names.Record, 0, len(s.Records))
	for _, r := range s.Records {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
