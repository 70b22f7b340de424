// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package sources

import (
	"context"
	"time"
)

// SleepCtx waits for d or until ctx is cancelled, reporting which happened.
// Shared by every driver's backoff and polling loops.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewBackOff is exported for driver subpackages to share the same
// exponential backoff policy (spec §4.3).
func NewBackOff() interface {
	NextBackOff() time.Duration
	Reset()
} {
	return newBackOff()
}
