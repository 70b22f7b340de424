// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package api implements the optional HTTP API (spec §6.3): GET /records,
// plus the ambient /healthz and /metrics endpoints (spec §10).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// wireRData is the JSON shape of one record's data, exactly one field set
// (spec §6.1: "rdata: {A|AAAA|CNAME: value}").
type wireRData struct {
	A     string `json:"A,omitempty"`
	AAAA  string `json:"AAAA,omitempty"`
	CNAME string `json:"CNAME,omitempty"`
}

// wireRecord is the JSON shape of one served record (spec §6.1).
type wireRecord struct {
	Name  string    `json:"name"`
	TTL   *uint32   `json:"ttl"`
	RData wireRData `json:"rdata"`
}

// Server exposes the HTTP API described in spec §6.3.
type Server struct {
	addr  string
	store *store.Store
	log   *zap.SugaredLogger
	reg   prometheus.Gatherer

	ready atomic.Bool
	srv   *http.Server
}

// New returns a Server serving st's records on addr. reg, if non-nil, is
// exposed at GET /metrics.
func New(addr string, st *store.Store, reg prometheus.Gatherer, log *zap.SugaredLogger) *Server {
	s := &Server{addr: addr, store: st, log: log, reg: reg}

	r := mux.NewRouter()
	r.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// SetReady marks the API ready, making /healthz return 200 (spec §10:
// "200 OK once the supervisor has completed its first reconciliation
// pass").
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.log.Infow("starting http api", "addr", s.addr)
		errs <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errs:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleRecords serves GET /records (spec §6.1). Remote-sourced records are
// excluded per spec §4.3 "Remote driver".
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records := s.store.SnapshotExcluding(store.KindRemote)

	wire := make([]wireRecord, 0, len(records))
	for _, rec := range records {
		wr, err := toWireRecord(rec)
		if err != nil {
			s.log.Warnw("skipping unrepresentable record in api response", "name", rec.Name.String(), "error", err)
			continue
		}
		wire = append(wire, wr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wire); err != nil {
		s.log.Warnw("writing /records response failed", "error", err)
	}
}

func toWireRecord(rec names.Record) (wireRecord, error) {
	w := wireRecord{Name: rec.Name.String()}
	if rec.TTL != nil {
		ttl := uint32(*rec.TTL)
		w.TTL = &ttl
	}
	switch rec.RData.Kind() {
	case names.KindA:
		w.RData.A = rec.RData.String()
	case names.KindAAAA:
		w.RData.AAAA = rec.RData.String()
	case names.KindCNAME:
		w.RData.CNAME = rec.RData.String()
	default:
		return wireRecord{}, fmt.Errorf("unsupported rdata kind: %s", rec.RData.Kind())
	}
	return w, nil
}
