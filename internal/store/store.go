// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Mossop/localns/internal/names"
	"go.uber.org/zap"
)

// mergedView is the immutable, point-in-time union-by-name of every
// source's latest accepted snapshot. Readers obtain one via Store.view and
// never observe a partially-updated map (spec §4.2, §5).
type mergedView struct {
	byName map[names.Name][]names.Record
}

func emptyView() *mergedView {
	return &mergedView{byName: make(map[names.Name][]names.Record)}
}

// clone returns a shallow copy of v's top-level map, suitable for a writer
// to mutate off the hot path before publishing.
func (v *mergedView) clone() *mergedView {
	n := &mergedView{byName: make(map[names.Name][]names.Record, len(v.byName))}
	for k, recs := range v.byName {
		cp := make([]names.Record, len(recs))
		copy(cp, recs)
		n.byName[k] = cp
	}
	return n
}

// add appends r even when another source already contributed an identical
// record, so that remove (which drops one matching copy) leaves the other
// source's copy in place.
func (v *mergedView) add(r names.Record) {
	v.byName[r.Name] = append(v.byName[r.Name], r)
}

func (v *mergedView) remove(r names.Record) {
	recs := v.byName[r.Name]
	for i, existing := range recs {
		if existing.Key() == r.Key() {
			recs = append(recs[:i], recs[i+1:]...)
			break
		}
	}
	if len(recs) == 0 {
		delete(v.byName, r.Name)
	} else {
		v.byName[r.Name] = recs
	}
}

// SnapshotRecorder observes snapshot acceptance decisions for metrics. It is
// an interface, rather than a direct dependency on internal/metrics, because
// internal/metrics imports SourceId from this package and so cannot be
// imported back.
type SnapshotRecorder interface {
	RecordSnapshot(id SourceId, accepted bool)
}

// Store merges per-source snapshots into a single queryable view and fans
// changes out to subscribers. There is exactly one writer — whatever
// goroutine calls Apply/RemoveSource (normally the bus consumer loop) — and
// any number of concurrent readers (spec §4.2, §5).
type Store struct {
	log *zap.SugaredLogger
	rec SnapshotRecorder

	writerMu sync.Mutex // serializes Apply/RemoveSource and subscriber bookkeeping
	last     map[SourceId]Snapshot
	view     atomic.Pointer[mergedView]

	subMu   sync.Mutex
	subs    map[int]chan ChangeEvent
	nextSub int
}

// New returns an empty Store.
func New(log *zap.SugaredLogger) *Store {
	s := &Store{
		log:  log,
		last: make(map[SourceId]Snapshot),
		subs: make(map[int]chan ChangeEvent),
	}
	s.view.Store(emptyView())
	return s
}

// SetRecorder attaches rec to receive snapshot acceptance/rejection events.
// Metrics are entirely optional: a Store with no recorder simply skips
// recording (spec §6.5, ambient observability).
func (s *Store) SetRecorder(rec SnapshotRecorder) {
	s.rec = rec
}

// Apply accepts snapshot iff its generation strictly exceeds the last
// accepted generation from the same source. Acceptance recomputes the
// merged index incrementally — removing records only present in the old
// snapshot, adding records only present in the new one — and publishes the
// result atomically. Invalid snapshots are rejected wholesale: the
// previous snapshot from that source remains in effect (spec §4.2, §7).
func (s *Store) Apply(snap Snapshot) error {
	if err := validate(snap); err != nil {
		s.log.Errorw("rejecting invalid snapshot", "source", snap.Source, "error", err)
		s.recordSnapshot(snap.Source, false)
		return fmt.Errorf("store: invalid snapshot from %s: %w", snap.Source, err)
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	old, hadOld := s.last[snap.Source]
	if hadOld && snap.Generation <= old.Generation {
		s.recordSnapshot(snap.Source, false)
		return fmt.Errorf("store: stale generation %d for %s (last accepted %d)",
			snap.Generation, snap.Source, old.Generation)
	}

	snap.Records = snap.dedupe()
	s.last[snap.Source] = snap

	next := s.view.Load().clone()
	var added, removed []names.Record

	oldKeys := make(map[any]names.Record, len(old.Records))
	for _, r := range old.Records {
		oldKeys[r.Key()] = r
	}
	newKeys := make(map[any]names.Record, len(snap.Records))
	for _, r := range snap.Records {
		newKeys[r.Key()] = r
	}

	for k, r := range oldKeys {
		if _, ok := newKeys[k]; !ok {
			next.remove(r)
			removed = append(removed, r)
		}
	}
	for k, r := range newKeys {
		if _, ok := oldKeys[k]; !ok {
			next.add(r)
			added = append(added, r)
		}
	}

	s.view.Store(next)
	s.publish(added, removed)
	s.recordSnapshot(snap.Source, true)
	return nil
}

func (s *Store) recordSnapshot(id SourceId, accepted bool) {
	if s.rec != nil {
		s.rec.RecordSnapshot(id, accepted)
	}
}

// RemoveSource drops id's contribution entirely, as if it had emitted a
// snapshot with an empty record set (spec §3: "When a source is removed
// from configuration, its snapshot is dropped").
func (s *Store) RemoveSource(id SourceId) {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	old, ok := s.last[id]
	if !ok {
		return
	}
	delete(s.last, id)

	next := s.view.Load().clone()
	for _, r := range old.Records {
		next.remove(r)
	}
	s.view.Store(next)
	s.publish(nil, old.Records)
}

// Lookup returns every record at name whose RData kind is in kinds, plus
// any CNAME records at name regardless of kinds (spec §4.2: "CNAMEs are
// returned regardless of kind (caller resolves chains)").
func (s *Store) Lookup(name names.Name, kinds ...names.Kind) []names.Record {
	view := s.view.Load()
	all := view.byName[name]
	if len(all) == 0 {
		return nil
	}
	want := make(map[names.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := make([]names.Record, 0, len(all))
	for _, r := range all {
		if r.RData.Kind() == names.KindCNAME || want[r.RData.Kind()] {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot returns every record currently in the merged index, regardless
// of source. Used to build a FullSnapshot for new subscribers; the HTTP API
// uses SnapshotExcluding instead.
func (s *Store) Snapshot() []names.Record {
	view := s.view.Load()
	out := make([]names.Record, 0, len(view.byName))
	for _, recs := range view.byName {
		out = append(out, recs...)
	}
	return out
}

// SnapshotExcluding is like Snapshot but omits records contributed by any
// source whose SourceId has one of the given kinds (spec §4.3 remote
// driver: "Records sourced from remotes MUST NOT be re-exported by this
// node's own API").
func (s *Store) SnapshotExcluding(kinds ...Kind) []names.Record {
	exclude := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		exclude[k] = true
	}
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	var out []names.Record
	for id, snap := range s.last {
		if exclude[id.Kind] {
			continue
		}
		out = append(out, snap.Records...)
	}
	return out
}

// Subscribe registers a new change listener and returns its channel plus an
// unsubscribe function. The channel first receives a FullSnapshot of the
// view as of the call, then incremental Added/Removed events. Delivery is
// best-effort: a slow consumer that lets its channel fill will miss deltas,
// but correctness of Lookup/Snapshot is unaffected since those always read
// the live view (spec §4.2).
func (s *Store) Subscribe() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 64)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	full := s.Snapshot()
	select {
	case ch <- ChangeEvent{Kind: FullSnapshot, Records: full}:
	default:
	}

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

func (s *Store) publish(added, removed []names.Record) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		if len(added) > 0 {
			select {
			case ch <- ChangeEvent{Kind: Added, Records: added}:
			default:
				s.log.Warnw("dropping change event to slow subscriber", "kind", "added")
			}
		}
		if len(removed) > 0 {
			select {
			case ch <- ChangeEvent{Kind: Removed, Records: removed}:
			default:
				s.log.Warnw("dropping change event to slow subscriber", "kind", "removed")
			}
		}
	}
}

// validate rejects snapshots with malformed content before they touch the
// merged index (spec §7 "Driver data error").
func validate(snap Snapshot) error {
	for _, r := range snap.Records {
		if r.Name.IsRoot() {
			return fmt.Errorf("record at root name is not allowed: %v", r)
		}
		switch r.RData.Kind() {
		case names.KindA, names.KindAAAA, names.KindCNAME:
		default:
			return fmt.Errorf("record %v has unreachable rdata kind %v", r, r.RData.Kind())
		}
	}
	return nil
}
