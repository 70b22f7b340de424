// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// ContentHash returns a stable fingerprint of v's structural value, used by
// the source supervisor to decide whether a source's configuration changed
// across a reload (spec §4.4, §9 "Config diffing": "identical hashes ⇒
// keep running"). v is marshaled to canonical YAML and hashed with
// xxhash — collisions would only cause an unnecessary driver restart, not
// a correctness issue, so a non-cryptographic hash is sufficient.
func ContentHash(v any) (uint64, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}
