// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"

	"github.com/Mossop/localns/internal/names"
	"github.com/Mossop/localns/internal/resolver"
)

// BuildZones converts the parsed zones and defaults block into a
// resolver.Zones forest (spec §3, §4.5).
func (c *Config) BuildZones() (*resolver.Zones, error) {
	defaults, err := zoneAttrsToZone(names.Root, c.Defaults)
	if err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	zones := make([]resolver.Zone, 0, len(c.Zones))
	for rawName, attrs := range c.Zones {
		apex, err := names.Parse(rawName, "")
		if err != nil {
			return nil, fmt.Errorf("config: zones.%s: %w", rawName, err)
		}
		z, err := zoneAttrsToZone(apex, attrs)
		if err != nil {
			return nil, fmt.Errorf("config: zones.%s: %w", rawName, err)
		}
		zones = append(zones, z)
	}

	return resolver.NewZones(zones, defaults), nil
}

func zoneAttrsToZone(apex names.Name, attrs ZoneAttrs) (resolver.Zone, error) {
	z := resolver.Zone{Apex: apex, TTL: attrs.TTL, Authoritative: attrs.Authoritative}
	if attrs.Upstream != nil {
		if attrs.Upstream.Host == "" {
			return resolver.Zone{}, fmt.Errorf("upstream.host must not be empty")
		}
		port := attrs.Upstream.Port
		if port == 0 {
			port = 53
		}
		z.Upstream = &resolver.Upstream{
			Host:      attrs.Upstream.Host,
			Port:      port,
			Transport: resolver.TransportUDP,
		}
	}
	return z, nil
}
