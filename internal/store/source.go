// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package store implements the source snapshot bus and the merged record
// store described in spec §4.1-4.2: a multi-producer, coalescing fan-in of
// per-source snapshots, and a single-writer/many-reader merged index
// published via an atomically-swapped pointer.
package store

import "fmt"

// Kind identifies the discovery protocol a source driver implements.
type Kind string

const (
	KindFile    Kind = "file"
	KindDHCP    Kind = "dhcp"
	KindDocker  Kind = "docker"
	KindTraefik Kind = "traefik"
	KindRemote  Kind = "remote"
)

// SourceId uniquely identifies a configured source within one configuration
// generation. The pair (kind, name) must be unique across the whole config
// (spec §3).
type SourceId struct {
	Kind Kind
	Name string
}

// String renders id as "kind:name", used in log lines and logger names.
func (id SourceId) String() string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Name)
}
