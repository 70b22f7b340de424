// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"time"

	"github.com/Mossop/localns/internal/config"
	"github.com/Mossop/localns/internal/sources"
	"github.com/Mossop/localns/internal/sources/dhcpsrc"
	"github.com/Mossop/localns/internal/sources/dockersrc"
	"github.com/Mossop/localns/internal/sources/filesrc"
	"github.com/Mossop/localns/internal/sources/remotesrc"
	"github.com/Mossop/localns/internal/sources/traefiksrc"
	"github.com/Mossop/localns/internal/store"
)

// defaultInterval is used by the Traefik and remote pollers when a config
// block doesn't name one (spec §4.3).
const defaultInterval = 30 * time.Second

// buildSpecs translates cfg's source configuration into the []sources.Spec
// the Supervisor reconciles against (spec §4.4, §4.6). This lives in
// cmd/localns rather than internal/sources because internal/sources is
// imported by every driver subpackage below it and so cannot import them
// back.
func buildSpecs(cfg *config.Config) ([]sources.Spec, error) {
	var specs []sources.Spec

	for name, fc := range cfg.Sources.File {
		hash, err := config.ContentHash(fc)
		if err != nil {
			return nil, fmt.Errorf("sources.file.%s: %w", name, err)
		}
		specs = append(specs, sources.Spec{
			ID:     store.SourceId{Kind: store.KindFile, Name: name},
			Driver: filesrc.New(cfg.ResolvePath(fc.Path)),
			Hash:   hash,
		})
	}

	for name, dc := range cfg.Sources.DHCP {
		hash, err := config.ContentHash(dc)
		if err != nil {
			return nil, fmt.Errorf("sources.dhcp.%s: %w", name, err)
		}
		specs = append(specs, sources.Spec{
			ID:     store.SourceId{Kind: store.KindDHCP, Name: name},
			Driver: dhcpsrc.New(cfg.ResolvePath(dc.Path), dc.Zone),
			Hash:   hash,
		})
	}

	for name, dc := range cfg.Sources.Docker {
		hash, err := config.ContentHash(dc)
		if err != nil {
			return nil, fmt.Errorf("sources.docker.%s: %w", name, err)
		}
		driver, err := dockerDriver(cfg, dc)
		if err != nil {
			return nil, fmt.Errorf("sources.docker.%s: %w", name, err)
		}
		specs = append(specs, sources.Spec{
			ID:     store.SourceId{Kind: store.KindDocker, Name: name},
			Driver: driver,
			Hash:   hash,
		})
	}

	for name, tc := range cfg.Sources.Traefik {
		hash, err := config.ContentHash(tc)
		if err != nil {
			return nil, fmt.Errorf("sources.traefik.%s: %w", name, err)
		}
		specs = append(specs, sources.Spec{
			ID:     store.SourceId{Kind: store.KindTraefik, Name: name},
			Driver: traefiksrc.New(tc.URL, tc.Address, intervalOrDefault(tc.Interval)),
			Hash:   hash,
		})
	}

	for name, rc := range cfg.Sources.Remote {
		hash, err := config.ContentHash(rc)
		if err != nil {
			return nil, fmt.Errorf("sources.remote.%s: %w", name, err)
		}
		specs = append(specs, sources.Spec{
			ID:     store.SourceId{Kind: store.KindRemote, Name: name},
			Driver: remotesrc.New(rc.URL, intervalOrDefault(rc.Interval)),
			Hash:   hash,
		})
	}

	return specs, nil
}

// dockerDriver picks the dockersrc constructor matching whichever one of
// Local/HTTP/Pipe/TLS is set (spec §4.3, §6); Local is assumed if none are
// (config.Config.validate already rejects more than one being set).
func dockerDriver(cfg *config.Config, dc config.DockerConfig) (*dockersrc.Driver, error) {
	switch {
	case dc.HTTP != nil:
		return dockersrc.NewHTTP(*dc.HTTP), nil
	case dc.Pipe != nil:
		return dockersrc.NewPipe(*dc.Pipe), nil
	case dc.TLS != nil:
		return dockersrc.NewTLS(cfg, *dc.TLS), nil
	default:
		return dockersrc.NewLocal(), nil
	}
}

func intervalOrDefault(seconds *uint32) time.Duration {
	if seconds == nil {
		return defaultInterval
	}
	return time.Duration(*seconds) * time.Second
}
