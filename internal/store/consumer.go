// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package store

import (
	"context"

	"go.uber.org/zap"
)

// RunConsumer is the store's single writer task: it drains bus and applies
// every pending snapshot to st until ctx is cancelled (spec §5: "one ...
// for the store writer"). Cross-source ordering from a single Next() call
// is arbitrary; generation ordering within one source is preserved because
// the bus never reorders a single source's own snapshots.
func RunConsumer(ctx context.Context, bus *Bus, st *Store, log *zap.SugaredLogger) {
	done := ctx.Done()
	for {
		pending, ok := bus.Next(done)
		if !ok {
			return
		}
		for _, snap := range pending {
			if err := st.Apply(snap); err != nil {
				log.Warnw("snapshot rejected", "source", snap.Source, "error", err)
			}
		}
	}
}
