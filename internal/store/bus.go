// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package store

import "sync"

// Bus is a multi-producer, single-consumer fan-in of source snapshots. It
// applies per-key coalescing (spec §4.1): a snapshot from source S that
// arrives while an earlier, unconsumed snapshot from S is still pending
// replaces it rather than queuing behind it. This bounds memory under a
// bursty producer and guarantees the store only ever applies the latest
// view from any one source.
//
// Bus has no notion of "closed" as a whole; an individual source's
// contribution ends when its driver calls CloseSource, which is delivered
// to the consumer as an empty, final Snapshot.
type Bus struct {
	mu      sync.Mutex
	pending map[SourceId]Snapshot
	ready   chan struct{} // signalled (non-blocking) whenever pending gains an entry
}

// NewBus returns an empty Bus ready for use.
func NewBus() *Bus {
	return &Bus{
		pending: make(map[SourceId]Snapshot),
		ready:   make(chan struct{}, 1),
	}
}

// Publish submits snapshot for its source, replacing any not-yet-consumed
// snapshot from the same source. Publish never blocks.
func (b *Bus) Publish(snap Snapshot) {
	b.mu.Lock()
	b.pending[snap.Source] = snap
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// CloseSource submits a final, empty snapshot for id, coalescing with any
// snapshot from id still pending. The caller is responsible for choosing a
// generation number higher than any previously emitted for id so the store
// accepts the removal.
func (b *Bus) CloseSource(id SourceId, generation uint64) {
	b.Publish(Snapshot{Source: id, Generation: generation})
}

// Next blocks until at least one snapshot is pending and returns the full
// set of currently-pending snapshots, clearing them from the bus. Cross-
// source ordering is not guaranteed (spec §4.1); callers that need to
// process one source at a time should call Next in a loop and range over
// the result in any consistent order.
func (b *Bus) Next(done <-chan struct{}) (map[SourceId]Snapshot, bool) {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			out := b.pending
			b.pending = make(map[SourceId]Snapshot)
			b.mu.Unlock()
			return out, true
		}
		b.mu.Unlock()

		select {
		case <-b.ready:
			continue
		case <-done:
			return nil, false
		}
	}
}
