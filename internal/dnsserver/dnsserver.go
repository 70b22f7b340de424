// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dnsserver wires the zone/upstream resolver to UDP and TCP DNS
// listeners (spec §6.2), answering each query per the per-zone resolution
// policy of spec §4.5 rather than a single hardcoded zone.
package dnsserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Mossop/localns/internal/metrics"
	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/resolver"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// upstreamTimeout bounds each forwarded query (spec §5: "upstream queries
// have a bounded timeout (e.g., 5s)").
const upstreamTimeout = 5 * time.Second

// maxChainDepth bounds CNAME chasing to guard against a configuration loop
// (spec §4.5 step 1: "If only CNAME records exist, return the CNAME(s); the
// responder will chase locally and then upstream").
const maxChainDepth = 8

// Server answers DNS queries over UDP and TCP using a resolver.Resolver
// (spec §6.2).
type Server struct {
	addr     string
	resolver *resolver.Resolver
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger

	udp *dns.Server
	tcp *dns.Server
}

// New returns a Server listening on addr (host:port) for both UDP and TCP.
func New(addr string, res *resolver.Resolver, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{addr: addr, resolver: res, metrics: m, log: log}
	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleQuery)
	s.udp = &dns.Server{Addr: addr, Net: "udp", Handler: mux}
	s.tcp = &dns.Server{Addr: addr, Net: "tcp", Handler: mux}
	return s
}

// Run starts both listeners and blocks until ctx is cancelled, shutting
// both down gracefully (spec §10 "Graceful shutdown", grounded on the
// teacher's listenAndServe + shutdown-channel pattern).
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 2)
	go func() {
		s.log.Infow("starting dns listener", "net", "udp", "addr", s.addr)
		errs <- s.udp.ListenAndServe()
	}()
	go func() {
		s.log.Infow("starting dns listener", "net", "tcp", "addr", s.addr)
		errs <- s.tcp.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		if e := s.udp.ShutdownContext(shutdownCtx); e != nil {
			err = e
		}
		if e := s.tcp.ShutdownContext(shutdownCtx); e != nil {
			err = e
		}
		return err
	case err := <-errs:
		return fmt.Errorf("dns listener exited: %w", err)
	}
}

func (s *Server) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	defer func() {
		if err := w.WriteMsg(m); err != nil {
			s.log.Warnw("writing dns response failed", "error", err)
		}
	}()

	if len(r.Question) != 1 {
		m.Rcode = dns.RcodeFormatError
		return
	}
	q := r.Question[0]

	kind, ok := kindForQtype(q.Qtype)
	if !ok {
		m.Rcode = dns.RcodeNotImplemented
		return
	}

	qname, err := names.Parse(q.Name, "")
	if err != nil {
		m.Rcode = dns.RcodeFormatError
		return
	}

	s.resolve(m, r, qname, kind)
}

// resolve implements the responder side of spec §4.5: it follows a local
// CNAME chain until an answer of the requested kind, an NXDOMAIN, or an
// upstream forward is reached.
func (s *Server) resolve(m, orig *dns.Msg, qname names.Name, kind names.Kind) {
	current := qname
	visited := make(map[names.Name]bool, maxChainDepth)

	for depth := 0; depth < maxChainDepth; depth++ {
		if visited[current] {
			m.Rcode = dns.RcodeServerFailure
			s.metrics.RecordServFail()
			return
		}
		visited[current] = true

		outcome := s.resolver.Resolve(current, kind)

		if len(outcome.Records) > 0 {
			m.Authoritative = outcome.Authoritative
			next, hasDirect := appendAnswers(m, current, outcome.Records, kind)
			if next != nil && !hasDirect {
				current = *next
				continue
			}
			m.Rcode = dns.RcodeSuccess
			s.metrics.RecordLocal()
			return
		}

		if outcome.NXDomain {
			m.Authoritative = outcome.Authoritative
			m.Rcode = dns.RcodeNameError
			s.metrics.RecordNXDomain()
			return
		}

		if outcome.Forward != nil {
			s.forward(m, orig, outcome.Forward)
			return
		}

		m.Rcode = dns.RcodeServerFailure
		s.metrics.RecordServFail()
		return
	}

	s.log.Warnw("abandoning cname chain, too deep", "qname", qname.String())
	m.Rcode = dns.RcodeServerFailure
	s.metrics.RecordServFail()
}

// appendAnswers builds an RR for each resolved record at owner and appends
// it to m.Answer. It returns the CNAME target to chase next, if any, and
// whether a record of the originally requested kind was already answered
// (in which case the caller should stop, not chase the CNAME further).
func appendAnswers(m *dns.Msg, owner names.Name, records []resolver.ResolvedRecord, kind names.Kind) (*names.Name, bool) {
	var next *names.Name
	hasDirect := false
	for _, rec := range records {
		rr, err := buildRR(owner, rec)
		if err != nil {
			continue
		}
		m.Answer = append(m.Answer, rr)
		if rec.Record.RData.Kind() == kind {
			hasDirect = true
		}
		if rec.Record.RData.Kind() == names.KindCNAME {
			target := rec.Record.RData.Target()
			next = &target
		}
	}
	return next, hasDirect
}

func (s *Server) forward(m, orig *dns.Msg, up *resolver.Upstream) {
	client := &dns.Client{Net: "udp", Timeout: upstreamTimeout}
	resp, _, err := client.Exchange(orig, up.Addr())
	if err != nil {
		s.log.Warnw("upstream query failed", "upstream", up.Addr(), "error", err)
		m.Rcode = dns.RcodeServerFailure
		s.metrics.RecordServFail()
		return
	}
	resp.Id = m.Id
	*m = *resp
	s.metrics.RecordForwarded()
}

func buildRR(owner names.Name, rec resolver.ResolvedRecord) (dns.RR, error) {
	hdr := dns.RR_Header{Name: owner.String(), Class: dns.ClassINET, Ttl: rec.TTL}
	switch rec.Record.RData.Kind() {
	case names.KindA:
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: net.IP(rec.Record.RData.Addr().AsSlice())}, nil
	case names.KindAAAA:
		hdr.Rrtype = dns.TypeAAAA
		return &dns.AAAA{Hdr: hdr, AAAA: net.IP(rec.Record.RData.Addr().AsSlice())}, nil
	case names.KindCNAME:
		hdr.Rrtype = dns.TypeCNAME
		return &dns.CNAME{Hdr: hdr, Target: rec.Record.RData.Target().String()}, nil
	default:
		return nil, fmt.Errorf("dnsserver: unsupported rdata kind %v", rec.Record.RData.Kind())
	}
}

// kindForQtype maps the DNS wire query types LocalNS understands onto
// names.Kind; any other qtype is not implemented (spec §3: "A, AAAA, and
// CNAME. Other DNS record types are out of scope").
func kindForQtype(qtype uint16) (names.Kind, bool) {
	switch qtype {
	case dns.TypeA:
		return names.KindA, true
	case dns.TypeAAAA:
		return names.KindAAAA, true
	default:
		return 0, false
	}
}
