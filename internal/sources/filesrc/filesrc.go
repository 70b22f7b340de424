// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package filesrc implements the file source driver (spec §4.3): a YAML
// mapping of fqdn to an IPv4/IPv6 address or CNAME target, re-read on every
// file modification.
package filesrc

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Driver reads fqdn -> value mappings from a YAML file and re-emits on
// every modification (spec §4.3 "File driver").
type Driver struct {
	// Path is the absolute path to the YAML file, already resolved
	// against the config file's directory by the caller (spec §6).
	Path string
}

// New returns a file Driver for the given absolute path.
func New(path string) *Driver {
	return &Driver{Path: path}
}

// Start implements sources.Driver.
func (d *Driver) Start(ctx context.Context, handle *sources.Handle) error {
	log := handle.Log()
	b := sources.NewBackOff()

	for {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Errorw("creating file watcher failed", "error", err)
			if !sources.SleepCtx(ctx, b.NextBackOff()) {
				return nil
			}
			continue
		}

		dir := filepath.Dir(d.Path)
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			log.Errorw("watching directory failed", "dir", dir, "error", err)
			if !sources.SleepCtx(ctx, b.NextBackOff()) {
				return nil
			}
			continue
		}

		d.reload(log, handle)
		b.Reset()

		if clean := d.watchLoop(ctx, watcher, handle); clean {
			watcher.Close()
			return nil
		}
		watcher.Close()
		if !sources.SleepCtx(ctx, b.NextBackOff()) {
			return nil
		}
	}
}

// watchLoop processes fsnotify events for d.Path until ctx is cancelled
// (returns true) or the watcher itself fails (returns false, triggering a
// reconnect with backoff).
func (d *Driver) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, handle *sources.Handle) bool {
	log := handle.Log()
	for {
		select {
		case <-ctx.Done():
			return true
		case ev, ok := <-watcher.Events:
			if !ok {
				return false
			}
			if filepath.Clean(ev.Name) != filepath.Clean(d.Path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			d.reload(log, handle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return false
			}
			log.Warnw("file watcher error", "error", err)
		}
	}
}

// fileRecord is one entry of the YAML host-record mapping.
type fileRecord struct {
	IPv4  *string `yaml:"ipv4,omitempty"`
	IPv6  *string `yaml:"ipv6,omitempty"`
	CNAME *string `yaml:"cname,omitempty"`
}

func (d *Driver) reload(log *zap.SugaredLogger, handle *sources.Handle) {
	data, err := os.ReadFile(d.Path)
	if os.IsNotExist(err) {
		log.Warnw("host records file does not exist, emitting empty snapshot", "path", d.Path)
		handle.Emit(nil)
		return
	}
	if err != nil {
		log.Errorw("reading host records file failed, keeping previous snapshot", "path", d.Path, "error", err)
		return
	}

	records, err := ParseRecords(data)
	if err != nil {
		log.Errorw("parsing host records file failed, keeping previous snapshot", "path", d.Path, "error", err)
		return
	}
	handle.Emit(records)
}

// ParseRecords decodes a YAML fqdn -> (ipv4|ipv6|cname) mapping into
// Records. Unknown keys, an invalid fqdn, or an entry with no usable value
// fail the whole file, with the offending fqdn named in the error.
func ParseRecords(data []byte) ([]names.Record, error) {
	var raw map[string]fileRecord
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var records []names.Record
	for fqdn, rec := range raw {
		name, err := names.Parse(fqdn, "")
		if err != nil {
			return nil, fmt.Errorf("invalid fqdn %q: %w", fqdn, err)
		}
		r, err := toRecord(name, rec)
		if err != nil {
			return nil, fmt.Errorf("invalid record for %q: %w", fqdn, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func toRecord(name names.Name, rec fileRecord) (names.Record, error) {
	switch {
	case rec.IPv4 != nil:
		addr, err := netip.ParseAddr(*rec.IPv4)
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid ipv4 %q: %w", *rec.IPv4, err)
		}
		rdata, err := names.NewA(addr)
		if err != nil {
			return names.Record{}, err
		}
		return names.NewNoTTL(name, rdata), nil
	case rec.IPv6 != nil:
		addr, err := netip.ParseAddr(*rec.IPv6)
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid ipv6 %q: %w", *rec.IPv6, err)
		}
		rdata, err := names.NewAAAA(addr)
		if err != nil {
			return names.Record{}, err
		}
		return names.NewNoTTL(name, rdata), nil
	case rec.CNAME != nil:
		target, err := names.Parse(*rec.CNAME, "")
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid cname target %q: %w", *rec.CNAME, err)
		}
		return names.NewNoTTL(name, names.NewCNAME(target)), nil
	default:
		return names.Record{}, fmt.Errorf("record has none of ipv4, ipv6, cname set")
	}
}
