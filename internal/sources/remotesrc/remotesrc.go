// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package remotesrc implements the remote source driver (spec §4.3): polling
// another LocalNS instance's HTTP API and re-emitting its records verbatim.
package remotesrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"go.uber.org/zap"
)

// defaultInterval is the poll period when none is configured.
const defaultInterval = 30 * time.Second

// httpTimeout bounds each poll request (spec §5).
const httpTimeout = 10 * time.Second

// wireRecord mirrors the JSON shape served by internal/api's GET /records
// (spec §6.1): {name, ttl, rdata: {A|AAAA|CNAME: value}}.
type wireRecord struct {
	Name  string          `json:"name"`
	TTL   *uint32         `json:"ttl"`
	RData json.RawMessage `json:"rdata"`
}

type wireRData struct {
	A     *string `json:"A,omitempty"`
	AAAA  *string `json:"AAAA,omitempty"`
	CNAME *string `json:"CNAME,omitempty"`
}

// Driver polls GET {URL}/records on another LocalNS instance and re-emits
// its records verbatim (spec §4.3 "Remote driver").
type Driver struct {
	URL      string
	Interval time.Duration

	client *http.Client
}

// New returns a remote Driver polling baseURL.
func New(baseURL string, interval time.Duration) *Driver {
	return &Driver{URL: strings.TrimSuffix(baseURL, "/"), Interval: interval, client: &http.Client{Timeout: httpTimeout}}
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
	records, err := d.fetch(ctx)
	if err != nil {
		log.Warnw("polling remote records failed, keeping previous snapshot", "url", d.URL, "error", err)
		return
	}
	handle.Emit(records)
}

func (d *Driver) fetch(ctx context.Context) ([]names.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL+"/records", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote returned %s", resp.Status)
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding remote records: %w", err)
	}

	records := make([]names.Record, 0, len(wire))
	for _, w := range wire {
		r, err := toRecord(w)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", w.Name, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func toRecord(w wireRecord) (names.Record, error) {
	name, err := names.Parse(w.Name, "")
	if err != nil {
		return names.Record{}, fmt.Errorf("invalid name %q: %w", w.Name, err)
	}

	var rd wireRData
	if err := json.Unmarshal(w.RData, &rd); err != nil {
		return names.Record{}, fmt.Errorf("invalid rdata: %w", err)
	}

	var rdata names.RData
	switch {
	case rd.A != nil:
		addr, err := netip.ParseAddr(*rd.A)
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid A value %q: %w", *rd.A, err)
		}
		rdata, err = names.NewA(addr)
		if err != nil {
			return names.Record{}, err
		}
	case rd.AAAA != nil:
		addr, err := netip.ParseAddr(*rd.AAAA)
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid AAAA value %q: %w", *rd.AAAA, err)
		}
		rdata, err = names.NewAAAA(addr)
		if err != nil {
			return names.Record{}, err
		}
	case rd.CNAME != nil:
		target, err := names.Parse(*rd.CNAME, "")
		if err != nil {
			return names.Record{}, fmt.Errorf("invalid CNAME value %q: %w", *rd.CNAME, err)
		}
		rdata = names.NewCNAME(target)
	default:
		return names.Record{}, fmt.Errorf("rdata has none of A, AAAA, CNAME set")
	}

	if w.TTL == nil {
		return names.NewNoTTL(name, rdata), nil
	}
	return names.New(name, names.TTL(*w.TTL), rdata), nil
}
