// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package sources

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newBackOff returns the exponential backoff policy shared by every driver:
// start at 1s, cap at 60s, never give up retrying (spec §4.3: "exponential
// with cap (e.g., start 1s, cap 60s) on any connection error; reset on
// successful snapshot emission"). In backoff/v5 an ExponentialBackOff has
// no elapsed-time limit, so NextBackOff never returns Stop; the driver
// itself decides when to give up.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 60 * time.Second
	return b
}
