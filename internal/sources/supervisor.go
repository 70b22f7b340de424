// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package sources

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mossop/localns/internal/store"
	"go.uber.org/zap"
)

// shutdownGrace is how long a cancelled driver is given to return from
// Start before the supervisor abandons it (spec §4.3: "A driver that
// blocks more than a small bounded time on shutdown may be abandoned by
// the supervisor").
const shutdownGrace = 5 * time.Second

// startPriority orders driver kinds for best-effort startup sequencing:
// sources that other drivers' own connections might depend on being
// resolvable (file, dhcp) are started before sources that may themselves
// depend on this server's loopback DNS (docker, traefik, remote). This is
// not a barrier — later-priority drivers simply retry via backoff if their
// dependencies aren't ready yet (spec §4.4, §9 "Loopback DNS dependency").
var startPriority = map[store.Kind]int{
	store.KindFile:    0,
	store.KindDHCP:    0,
	store.KindDocker:  1,
	store.KindTraefik: 1,
	store.KindRemote:  1,
}

type running struct {
	cancel context.CancelFunc
	hash   uint64
	done   chan struct{}
}

// RestartRecorder observes a driver's Start returning with an error, the
// point at which the supervisor will relaunch it on the next Apply that
// still names it. Defined as an interface for the same import-cycle reason
// as store.SnapshotRecorder.
type RestartRecorder interface {
	RecordDriverRestart(id store.SourceId)
}

// Supervisor owns the set of running driver goroutines and reconciles it
// against configuration on every reload (spec §4.4).
type Supervisor struct {
	bus *store.Bus
	st  *store.Store
	log *zap.SugaredLogger
	rec RestartRecorder

	mu      sync.Mutex
	running map[store.SourceId]*running
}

// New returns a Supervisor publishing driver snapshots through bus into st.
func New(bus *store.Bus, st *store.Store, log *zap.SugaredLogger) *Supervisor {
	return &Supervisor{
		bus:     bus,
		st:      st,
		log:     log,
		running: make(map[store.SourceId]*running),
	}
}

// SetRecorder attaches rec to receive driver-restart events. Optional;
// ambient observability (spec §6.5).
func (s *Supervisor) SetRecorder(rec RestartRecorder) {
	s.rec = rec
}

// Apply reconciles the running driver set against specs (spec §4.4):
//   - sources with identical id and identical configuration hash keep running
//   - sources removed or whose hash changed are cancelled and dropped from
//     the store
//   - sources added or changed are started fresh with a reset generation
//     counter (a fresh Handle always starts its counter at zero)
func (s *Supervisor) Apply(ctx context.Context, specs []Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[store.SourceId]Spec, len(specs))
	for _, sp := range specs {
		want[sp.ID] = sp
	}

	for id, r := range s.running {
		if _, ok := want[id]; !ok {
			s.stopLocked(id, r)
		}
	}

	sort.SliceStable(specs, func(i, j int) bool {
		return startPriority[specs[i].ID.Kind] < startPriority[specs[j].ID.Kind]
	})

	for _, sp := range specs {
		r, exists := s.running[sp.ID]
		if exists && r.hash == sp.Hash {
			select {
			case <-r.done:
				// Start already returned; relaunch it below.
			default:
				continue // identical config, keep running (spec §4.4)
			}
		}
		if exists {
			s.stopLocked(sp.ID, r)
		}
		s.startLocked(ctx, sp)
	}
}

// Shutdown cancels every running driver and waits for them to exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.running {
		s.stopLocked(id, r)
	}
}

func (s *Supervisor) startLocked(ctx context.Context, sp Spec) {
	driverCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(sp.ID, s.bus, s.log)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer handle.close()
		if err := sp.Driver.Start(driverCtx, handle); err != nil {
			handle.Log().Errorw("driver exited with error", "error", err)
			if s.rec != nil {
				s.rec.RecordDriverRestart(sp.ID)
			}
		}
	}()

	s.running[sp.ID] = &running{cancel: cancel, hash: sp.Hash, done: done}
}

func (s *Supervisor) stopLocked(id store.SourceId, r *running) {
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(shutdownGrace):
		s.log.Warnw("abandoning driver that did not shut down in time", "source", id)
	}
	delete(s.running, id)
	s.st.RemoveSource(id)
}
