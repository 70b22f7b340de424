// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sources implements the source supervisor (spec §4.4): spawning,
// restarting, and cancelling driver goroutines from configuration, and the
// shared driver contract each discovery protocol implements (spec §9,
// "Per-source trait/interface").
package sources

import (
	"context"

	"github.com/Mossop/localns/internal/store"
)

// Driver is the contract every source implements (spec §4.3, §9). Start
// runs until ctx is cancelled or an unrecoverable error occurs; it owns its
// own reconnect/backoff loop internally and must emit at least one
// snapshot (possibly empty) through handle before blocking to watch for
// changes. Start must return promptly after ctx is cancelled.
type Driver interface {
	Start(ctx context.Context, handle *Handle) error
}

// Spec pairs a Driver with the content hash of the configuration it was
// built from, used by the Supervisor to decide whether to keep a running
// driver across a config reload (spec §4.4, §9 "Config diffing").
type Spec struct {
	ID     store.SourceId
	Driver Driver
	Hash   uint64
}
