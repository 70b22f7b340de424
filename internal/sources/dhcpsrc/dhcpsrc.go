// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dhcpsrc implements the DHCP source driver (spec §4.3): parsing a
// dnsmasq leases file and emitting an A or AAAA record per leased hostname.
package dhcpsrc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"github.com/fsnotify/fsnotify"
	"github.com/insomniacslk/dhcp/iana"
	"go.uber.org/zap"
)

// Driver watches a dnsmasq leases file and emits an A (or, for an IPv6
// lease, AAAA) record per entry as hostname + "." + Zone (spec §4.3 "DHCP
// driver").
type Driver struct {
	// Path is the absolute leases file path, already resolved against
	// the config file's directory by the caller.
	Path string
	// Zone is appended to each lease's hostname to build its FQDN.
	Zone string
}

// New returns a DHCP Driver reading leases from path and minting names
// under zone.
func New(path, zone string) *Driver {
	return &Driver{Path: path, Zone: zone}
}

// Start implements sources.Driver.
func (d *Driver) Start(ctx context.Context, handle *sources.Handle) error {
	log := handle.Log()
	b := sources.NewBackOff()

	for {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Errorw("creating leases file watcher failed", "error", err)
			if !sources.SleepCtx(ctx, b.NextBackOff()) {
				return nil
			}
			continue
		}

		dir := filepath.Dir(d.Path)
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			log.Errorw("watching leases directory failed", "dir", dir, "error", err)
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
			log.Warnw("leases file watcher error", "error", err)
		}
	}
}

func (d *Driver) reload(log *zap.SugaredLogger, handle *sources.Handle) {
	data, err := os.ReadFile(d.Path)
	if os.IsNotExist(err) {
		log.Warnw("leases file does not exist, emitting empty snapshot", "path", d.Path)
		handle.Emit(nil)
		return
	}
	if err != nil {
		log.Errorw("reading leases file failed, keeping previous snapshot", "path", d.Path, "error", err)
		return
	}

	records, err := ParseLeases(data, d.Zone)
	if err != nil {
		log.Errorw("parsing leases file failed, keeping previous snapshot", "path", d.Path, "error", err)
		return
	}
	handle.Emit(records)
}

// ParseLeases parses a dnsmasq leases file (space-separated: expiry mac ip
// hostname client-id, one per line; lines with a "*" hostname are skipped)
// and returns one record per usable lease, named hostname+"."+zone: A for
// an IPv4 address, AAAA for an IPv6 one (spec §4.3 "DHCP driver").
func ParseLeases(data []byte, zone string) ([]names.Record, error) {
	zoneName, err := names.Parse(zone, "")
	if err != nil {
		return nil, fmt.Errorf("invalid zone %q: %w", zone, err)
	}

	var records []names.Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d", lineNo, len(fields))
		}
		hostname := fields[3]
		if hostname == "*" {
			continue
		}
		ip, err := netip.ParseAddr(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid ip %q: %w", lineNo, fields[2], err)
		}
		if len(fields) >= 5 {
			logClientID(fields[4])
		}

		name := zoneName.Join(hostname)
		var rdata names.RData
		if ip.Is4() {
			rdata, err = names.NewA(ip)
		} else {
			rdata, err = names.NewAAAA(ip)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, names.NewNoTTL(name, rdata))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// logClientID reads the first byte of the option-61 style client-id field
// (a colon-separated hex string) as an IANA hardware type. It returns zero
// for "*", an empty field, or an unparsable first byte. ParseLeases calls
// it for each lease but neither logs nor otherwise uses the result.
func logClientID(raw string) iana.HWType {
	if raw == "*" || raw == "" {
		return iana.HWType(0)
	}
	parts := strings.SplitN(raw, ":", 2)
	v, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return iana.HWType(0)
	}
	return iana.HWType(v)
}
