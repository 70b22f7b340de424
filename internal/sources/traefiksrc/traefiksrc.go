// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package traefiksrc implements the Traefik source driver (spec §4.3):
// polling the Traefik HTTP API for routers and publishing one record per
// Host() rule hostname.
package traefiksrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"time"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"go.uber.org/zap"
)

// defaultInterval is the poll period when none is configured (spec §4.3
// "Traefik driver": "fixed interval (default 30s)").
const defaultInterval = 30 * time.Second

// httpTimeout bounds each poll request (spec §5: "traefik polls ... bound
// their HTTP call (e.g., 10s)").
const httpTimeout = 10 * time.Second

// hostRuleArgs matches the argument list of a Host(...) matcher; other
// matchers (PathPrefix, Headers, ...) are ignored (spec §4.3).
var hostRuleArgs = regexp.MustCompile("Host\\(([^)]*)\\)")

// backtickString matches one backtick-quoted string inside a Host(...)
// argument list.
var backtickString = regexp.MustCompile("`([^`]*)`")

// router is the subset of a Traefik API router object this driver needs.
type router struct {
	Rule string `json:"rule"`
}

// recordTarget is the single target every matched hostname resolves to for
// one poll (spec §4.3 "Traefik driver" target precedence).
type recordTarget struct {
	kind  names.Kind
	rdata names.RData
	cname names.Name
}

// Driver polls the Traefik HTTP API on a fixed interval and translates
// Host() rules into records (spec §4.3 "Traefik driver").
type Driver struct {
	// BaseURL is the Traefik API base, e.g. "http://10.9.9.9".
	BaseURL string
	// Address, if set, overrides the record target for every matched
	// hostname (spec §4.3: "configured address override if present").
	Address *string
	// Interval is the poll period; zero means defaultInterval.
	Interval time.Duration

	client *http.Client
}

// New returns a Traefik Driver.
func New(baseURL string, address *string, interval time.Duration) *Driver {
	return &Driver{BaseURL: baseURL, Address: address, Interval: interval, client: &http.Client{Timeout: httpTimeout}}
}

// Start implements sources.Driver.
func (d *Driver) Start(ctx context.Context, handle *sources.Handle) error {
	log := handle.Log()
	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	d.poll(ctx, log, handle)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			d.poll(ctx, log, handle)
		}
	}
}

func (d *Driver) poll(ctx context.Context, log *zap.SugaredLogger, handle *sources.Handle) {
	routers, err := d.fetchRouters(ctx)
	if err != nil {
		log.Warnw("polling traefik api failed, keeping previous snapshot", "error", err)
		return
	}

	records, err := d.recordsFor(routers)
	if err != nil {
		log.Errorw("translating traefik routers failed, keeping previous snapshot", "error", err)
		return
	}
	handle.Emit(records)
}

func (d *Driver) fetchRouters(ctx context.Context) ([]router, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/http/routers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("traefik api returned %s", resp.Status)
	}

	var routers []router
	if err := json.NewDecoder(resp.Body).Decode(&routers); err != nil {
		return nil, fmt.Errorf("decoding traefik api response: %w", err)
	}
	return routers, nil
}

// recordsFor translates Traefik routers into Records following the target
// precedence of spec §4.3 "Traefik driver": explicit address override, else
// the IP parsed from BaseURL, else BaseURL's hostname as a CNAME target.
func (d *Driver) recordsFor(routers []router) ([]names.Record, error) {
	target, err := d.resolveTarget()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var records []names.Record
	for _, r := range routers {
		for _, host := range HostsFromRule(r.Rule) {
			if seen[host] {
				continue
			}
			seen[host] = true

			name, err := names.Parse(host, "")
			if err != nil {
				continue
			}
			if target.kind == names.KindCNAME {
				records = append(records, names.NewNoTTL(name, names.NewCNAME(target.cname)))
			} else {
				records = append(records, names.NewNoTTL(name, target.rdata))
			}
		}
	}
	return records, nil
}

// resolveTarget picks the record target and its kind once per poll, since
// it does not depend on the router set.
func (d *Driver) resolveTarget() (recordTarget, error) {
	if d.Address != nil {
		addr, err := netip.ParseAddr(*d.Address)
		if err != nil {
			return recordTarget{}, fmt.Errorf("invalid address override %q: %w", *d.Address, err)
		}
		return addrTarget(addr)
	}

	host, err := urlHost(d.BaseURL)
	if err != nil {
		return recordTarget{}, err
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addrTarget(addr)
	}

	name, err := names.Parse(host, "")
	if err != nil {
		return recordTarget{}, fmt.Errorf("invalid url hostname %q: %w", host, err)
	}
	return recordTarget{kind: names.KindCNAME, cname: name}, nil
}

func addrTarget(addr netip.Addr) (recordTarget, error) {
	if addr.Is4() {
		rdata, err := names.NewA(addr)
		return recordTarget{kind: names.KindA, rdata: rdata}, err
	}
	rdata, err := names.NewAAAA(addr)
	return recordTarget{kind: names.KindAAAA, rdata: rdata}, err
}

// urlHost extracts the host (no port) from a URL string.
func urlHost(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	return u.Hostname(), nil
}

// HostsFromRule extracts the hostnames listed in every Host(...) matcher of
// a Traefik rule string, ignoring all other matchers (spec §4.3 "Traefik
// driver": "Rule parsing accepts backtick-quoted string lists and ignores
// other matchers").
func HostsFromRule(rule string) []string {
	var hosts []string
	for _, m := range hostRuleArgs.FindAllStringSubmatch(rule, -1) {
		for _, s := range backtickString.FindAllStringSubmatch(m[1], -1) {
			hosts = append(hosts, s[1])
		}
	}
	return hosts
}
