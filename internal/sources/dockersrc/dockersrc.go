// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dockersrc implements the Docker source driver (spec §4.3):
// discovering containers labeled for DNS publication and tracking them
// through the daemon's event stream.
package dockersrc

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/Mossop/localns/internal/config"
	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/sources"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// labelHostname names the container label whose value is the FQDN to
// publish for that container (spec §4.3 "Docker driver").
const labelHostname = "localns.hostname"

// labelNetwork pins IP selection to one named network, bypassing the
// driver/label heuristic below.
const labelNetwork = "localns.network"

// labelExposed, set on a network object, opts that network into automatic
// selection alongside host/macvlan/ipvlan networks.
const labelExposed = "localns.exposed"

// autoDrivers are network drivers eligible for automatic IP selection
// without an explicit localns.network label or localns.exposed label.
var autoDrivers = map[string]bool{
	"host":    true,
	"macvlan": true,
	"ipvlan":  true,
}

// apiClient is the subset of *client.Client (github.com/docker/docker/client)
// this driver depends on. It exists so tests can exercise listAndEmit and
// watchEvents against a fake Docker daemon (spec §8 scenarios 1 and 7)
// without a live one.
type apiClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Close() error
}

// Driver connects to a Docker daemon, lists running containers at startup,
// and reacts to the container event stream thereafter (spec §4.3 "Docker
// driver").
type Driver struct {
	Opts []client.Opt

	// newClient constructs the daemon connection; overridden in tests to
	// inject a fake apiClient instead of dialing a real daemon.
	newClient func() (apiClient, error)
}

// NewLocal returns a Driver using the platform-default Docker socket.
func NewLocal() *Driver {
	return newDriver([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()})
}

// NewHTTP returns a Driver connecting to a plain-HTTP Docker daemon.
func NewHTTP(host string) *Driver {
	return newDriver([]client.Opt{client.WithHost(host), client.WithAPIVersionNegotiation()})
}

// NewPipe returns a Driver connecting over a Unix domain socket.
func NewPipe(path string) *Driver {
	return newDriver([]client.Opt{client.WithHost("unix://" + path), client.WithAPIVersionNegotiation()})
}

// NewTLS returns a Driver connecting over mutual TLS, per spec §6.6. File
// paths in tlsCfg are resolved against cfg's directory if relative (spec §6).
func NewTLS(cfg *config.Config, tlsCfg config.DockerTLSConfig) *Driver {
	return newDriver([]client.Opt{
		client.WithHost(tlsCfg.Address),
		client.WithTLSClientConfig(
			cfg.ResolvePath(tlsCfg.CA),
			cfg.ResolvePath(tlsCfg.Certificate),
			cfg.ResolvePath(tlsCfg.PrivateKey),
		),
		client.WithAPIVersionNegotiation(),
	})
}

func newDriver(opts []client.Opt) *Driver {
	d := &Driver{Opts: opts}
	d.newClient = func() (apiClient, error) {
		return client.NewClientWithOpts(d.Opts...)
	}
	return d
}

// Start implements sources.Driver.
func (d *Driver) Start(ctx context.Context, handle *sources.Handle) error {
	log := handle.Log()
	b := sources.NewBackOff()

	for {
		cli, err := d.newClient()
		if err != nil {
			log.Errorw("creating docker client failed", "error", err)
			if !sources.SleepCtx(ctx, b.NextBackOff()) {
				return nil
			}
			continue
		}

		if err := d.listAndEmit(ctx, cli, log, handle); err != nil {
			cli.Close()
			log.Errorw("listing containers failed", "error", err)
			if !sources.SleepCtx(ctx, b.NextBackOff()) {
				return nil
			}
			continue
		}
		b.Reset()

		clean := d.watchEvents(ctx, cli, log, handle)
		cli.Close()
		if clean {
			return nil
		}
		if !sources.SleepCtx(ctx, b.NextBackOff()) {
			return nil
		}
	}
}

// watchEvents subscribes to the container event stream and re-lists on
// every relevant event, returning true if ctx was cancelled cleanly and
// false if the event stream itself failed (triggering a reconnect with a
// fresh full list, per spec §4.3 "On daemon disconnect ... re-list on
// reconnect (not incremental recovery)").
func (d *Driver) watchEvents(ctx context.Context, cli apiClient, log *zap.SugaredLogger, handle *sources.Handle) bool {
	f := filters.NewArgs(filters.Arg("type", string(events.ContainerEventType)))
	msgs, errs := cli.Events(ctx, events.ListOptions{Filters: f})

	for {
		select {
		case <-ctx.Done():
			return true
		case err, ok := <-errs:
			if !ok {
				return false
			}
			if err != nil {
				log.Warnw("docker event stream error", "error", err)
				return false
			}
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			switch msg.Action {
			case "start", "die", "destroy", "network-connect", "network-disconnect":
				if err := d.listAndEmit(ctx, cli, log, handle); err != nil {
					log.Errorw("re-listing containers after event failed, keeping previous snapshot", "error", err)
				}
			}
		}
	}
}

func (d *Driver) listAndEmit(ctx context.Context, cli apiClient, log *zap.SugaredLogger, handle *sources.Handle) error {
	containers, err := cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return fmt.Errorf("container list: %w", err)
	}

	var records []names.Record
	for _, c := range containers {
		hostname, ok := c.Labels[labelHostname]
		if !ok {
			continue
		}
		name, err := names.Parse(hostname, "")
		if err != nil {
			log.Warnw("skipping container with invalid hostname label", "container", c.ID, "hostname", hostname, "error", err)
			continue
		}

		addr, err := selectAddress(ctx, cli, c, log)
		if err != nil {
			log.Warnw("skipping container, no usable address", "container", c.ID, "hostname", hostname, "error", err)
			continue
		}

		var rdata names.RData
		if addr.Is4() {
			rdata, err = names.NewA(addr)
		} else {
			rdata, err = names.NewAAAA(addr)
		}
		if err != nil {
			log.Warnw("skipping container, address conversion failed", "container", c.ID, "error", err)
			continue
		}
		records = append(records, names.NewNoTTL(name, rdata))
	}

	handle.Emit(records)
	return nil
}

// selectAddress implements the IP selection rule of spec §4.3 "Docker
// driver": an explicit localns.network label pins the network; otherwise
// exactly one network must qualify via driver type or the localns.exposed
// network label.
func selectAddress(ctx context.Context, cli apiClient, c container.Summary, log *zap.SugaredLogger) (netip.Addr, error) {
	if pinned, ok := c.Labels[labelNetwork]; ok {
		ep, ok := c.NetworkSettings.Networks[pinned]
		if !ok {
			return netip.Addr{}, fmt.Errorf("localns.network=%q does not match any attached network", pinned)
		}
		return addrFromEndpoint(ep)
	}

	var candidates []*network.EndpointSettings
	for netName, ep := range c.NetworkSettings.Networks {
		qualifies, err := networkQualifies(ctx, cli, netName, log)
		if err != nil {
			continue
		}
		if qualifies {
			candidates = append(candidates, ep)
		}
	}

	if len(candidates) != 1 {
		return netip.Addr{}, fmt.Errorf("%d qualifying networks, expected exactly 1", len(candidates))
	}
	return addrFromEndpoint(candidates[0])
}

func networkQualifies(ctx context.Context, cli apiClient, netName string, log *zap.SugaredLogger) (bool, error) {
	info, err := cli.NetworkInspect(ctx, netName, network.InspectOptions{})
	if err != nil {
		log.Warnw("inspecting network failed", "network", netName, "error", err)
		return false, err
	}
	return qualifiesForAuto(info.Driver, info.Labels), nil
}

// qualifiesForAuto decides whether a network is eligible for automatic IP
// selection per spec §4.3 rule 2: driver in {host, macvlan, ipvlan}, or the
// network carries label localns.exposed=true.
func qualifiesForAuto(driver string, labels map[string]string) bool {
	if autoDrivers[driver] {
		return true
	}
	return labels[labelExposed] == "true"
}

func addrFromEndpoint(ep *network.EndpointSettings) (netip.Addr, error) {
	if ep.IPAddress != "" {
		if addr, err := netip.ParseAddr(ep.IPAddress); err == nil {
			return addr, nil
		}
	}
	if ep.GlobalIPv6Address != "" {
		if addr, err := netip.ParseAddr(ep.GlobalIPv6Address); err == nil {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("endpoint has no usable address")
}
