// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package sources

import (
	"sync/atomic"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/store"
	"go.uber.org/zap"
)

// Handle is the only way a driver pushes data into the record store. It
// tracks the monotonically increasing generation counter a driver's
// snapshots must carry (spec §3).
type Handle struct {
	id  store.SourceId
	bus *store.Bus
	gen atomic.Uint64
	log *zap.SugaredLogger
}

// newHandle returns a Handle for id, publishing through bus.
func newHandle(id store.SourceId, bus *store.Bus, log *zap.SugaredLogger) *Handle {
	return &Handle{id: id, bus: bus, log: log.Named(id.String())}
}

// ID returns the SourceId this handle publishes for.
func (h *Handle) ID() store.SourceId {
	return h.id
}

// Log returns a logger scoped to this source, for the driver to use.
func (h *Handle) Log() *zap.SugaredLogger {
	return h.log
}

// Emit publishes records as this source's complete, current contribution,
// replacing anything previously emitted (spec §3, §4.1).
func (h *Handle) Emit(records []names.Record) {
	gen := h.gen.Add(1)
	h.bus.Publish(store.Snapshot{Source: h.id, Records: records, Generation: gen})
}

// close publishes a final empty snapshot, used by the supervisor when a
// driver is cancelled or its Start returns.
func (h *Handle) close() {
	gen := h.gen.Add(1)
	h.bus.CloseSource(h.id, gen)
}
