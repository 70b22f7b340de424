// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package dockersrc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"github.com/Mossop/localns/internal/store"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/network"
	"go.uber.org/zap"
)

// fakeDockerClient is an in-memory apiClient stand-in: enough of
// *client.Client's surface to drive listAndEmit and watchEvents without a
// live daemon (spec §8 scenarios 1 and 7).
type fakeDockerClient struct {
	containers []container.Summary
	networks   map[string]network.Inspect
	msgs       chan events.Message
	errs       chan error
	closed     bool
}

func (f *fakeDockerClient) ContainerList(_ context.Context, _ container.ListOptions) ([]container.Summary, error) {
	out := make([]container.Summary, len(f.containers))
	copy(out, f.containers)
	return out, nil
}

func (f *fakeDockerClient) NetworkInspect(_ context.Context, networkID string, _ network.InspectOptions) (network.Inspect, error) {
	info, ok := f.networks[networkID]
	if !ok {
		return network.Inspect{}, fmt.Errorf("no such network %q", networkID)
	}
	return info, nil
}

func (f *fakeDockerClient) Events(_ context.Context, _ events.ListOptions) (<-chan events.Message, <-chan error) {
	return f.msgs, f.errs
}

func (f *fakeDockerClient) Close() error {
	f.closed = true
	return nil
}

func mkContainer(id, hostname, netName, ip string) container.Summary {
	return container.Summary{
		ID:     id,
		Labels: map[string]string{labelHostname: hostname},
		NetworkSettings: &container.NetworkSettingsSummary{
			Networks: map[string]*network.EndpointSettings{
				netName: {IPAddress: ip},
			},
		},
	}
}

// newTestStore wires a bus + store + running consumer, the same composition
// cmd/localns builds, so a driver started through a Supervisor can be
// observed via st.Lookup.
func newTestStore(ctx context.Context, log *zap.SugaredLogger) (*store.Bus, *store.Store) {
	bus := store.NewBus()
	st := store.New(log)
	go store.RunConsumer(ctx, bus, st, log)
	return bus, st
}

func waitForRecord(t *testing.T, st *store.Store, name string) {
	t.Helper()
	// The reconnect path in TestReconnectRelistsAfterDaemonOutage sleeps
	// through the driver's initial 1s backoff before relisting, so this
	// must comfortably exceed that.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if recs := st.Lookup(names.MustParse(name)); len(recs) > 0 {
			return
		}
		select {
		case <-ticker.C:
		case <-deadline:
			t.Fatalf("timed out waiting for record %q", name)
		}
	}
}

// TestListAndEmitPublishesHostnameLabel exercises the localns.hostname
// label path end to end through a real Supervisor + Store, against a fake
// Docker client (spec §8 scenario 1: explicit-network/auto-driver address
// selection feeding a published record).
func TestListAndEmitPublishesHostnameLabel(t *testing.T) {
	cli := &fakeDockerClient{
		containers: []container.Summary{
			mkContainer("c1", "svc.home.local", "bridge", "10.0.0.9"),
			{ID: "c2"}, // no localns.hostname label: must be skipped
		},
		networks: map[string]network.Inspect{"bridge": {Driver: "host"}},
		msgs:     make(chan events.Message),
		errs:     make(chan error, 1),
	}
	d := &Driver{}
	d.newClient = func() (apiClient, error) { return cli, nil }

	log := zap.NewNop().Sugar()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus, st := newTestStore(ctx, log)

	sup := sources.New(bus, st, log)
	sup.Apply(ctx, []sources.Spec{{ID: store.SourceId{Kind: store.KindDocker, Name: "test"}, Driver: d, Hash: 1}})
	defer sup.Shutdown()

	waitForRecord(t, st, "svc.home.local.")

	if got, want := len(st.Snapshot()), 1; got != want {
		t.Fatalf("expected exactly 1 published record, got %d", got)
	}
}

// TestReconnectRelistsAfterDaemonOutage covers spec §8 scenario 7: "kill
// daemon, records still reflect previously known containers; restart
// daemon with a new container, within one reconnect cycle records
// converge". The event stream erroring out stands in for killing the
// daemon; d.newClient being called again (returning a client with an
// updated container list) stands in for the daemon restart.
func TestReconnectRelistsAfterDaemonOutage(t *testing.T) {
	before := &fakeDockerClient{
		containers: []container.Summary{mkContainer("c1", "old.home.local", "bridge", "10.0.0.1")},
		networks:   map[string]network.Inspect{"bridge": {Driver: "host"}},
		msgs:       make(chan events.Message),
		errs:       make(chan error, 1),
	}
	after := &fakeDockerClient{
		containers: []container.Summary{
			mkContainer("c1", "old.home.local", "bridge", "10.0.0.1"),
			mkContainer("c2", "new.home.local", "bridge", "10.0.0.2"),
		},
		networks: map[string]network.Inspect{"bridge": {Driver: "host"}},
		msgs:     make(chan events.Message),
		errs:     make(chan error, 1),
	}

	clients := []*fakeDockerClient{before, after}
	calls := 0
	d := &Driver{}
	d.newClient = func() (apiClient, error) {
		c := clients[calls]
		if calls < len(clients)-1 {
			calls++
		}
		return c, nil
	}

	log := zap.NewNop().Sugar()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus, st := newTestStore(ctx, log)

	sup := sources.New(bus, st, log)
	sup.Apply(ctx, []sources.Spec{{ID: store.SourceId{Kind: store.KindDocker, Name: "test"}, Driver: d, Hash: 1}})
	defer sup.Shutdown()

	waitForRecord(t, st, "old.home.local.")

	before.errs <- fmt.Errorf("daemon connection lost")

	if recs := st.Lookup(names.MustParse("old.home.local.")); len(recs) == 0 {
		t.Fatalf("expected old.home.local. to remain known during the outage")
	}

	waitForRecord(t, st, "new.home.local.")
}

func TestQualifiesForAutoDriver(t *testing.T) {
	cases := []struct {
		driver string
		labels map[string]string
		want   bool
	}{
		{"host", nil, true},
		{"macvlan", nil, true},
		{"ipvlan", nil, true},
		{"bridge", nil, false},
		{"bridge", map[string]string{"localns.exposed": "true"}, true},
		{"bridge", map[string]string{"localns.exposed": "false"}, false},
	}
	for _, c := range cases {
		if got := qualifiesForAuto(c.driver, c.labels); got != c.want {
			t.Errorf("qualifiesForAuto(%q, %v) = %v, want %v", c.driver, c.labels, got, c.want)
		}
	}
}

func TestAddrFromEndpointPrefersIPv4(t *testing.T) {
	ep := &network.EndpointSettings{IPAddress: "172.17.0.5", GlobalIPv6Address: "fd00::5"}
	addr, err := addrFromEndpoint(ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.String() != "172.17.0.5" {
		t.Errorf("expected 172.17.0.5, got %s", addr)
	}
}

func TestAddrFromEndpointFallsBackToIPv6(t *testing.T) {
	ep := &network.EndpointSettings{GlobalIPv6Address: "fd00::5"}
	addr, err := addrFromEndpoint(ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.String() != "fd00::5" {
		t.Errorf("expected fd00::5, got %s", addr)
	}
}

func TestAddrFromEndpointNoAddressIsError(t *testing.T) {
	if _, err := addrFromEndpoint(&network.EndpointSettings{}); err == nil {
		t.Fatalf("expected an error for an endpoint with no address")
	}
}
