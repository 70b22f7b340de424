// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config implements the YAML configuration model, file loader, and
// debounced file watcher described in spec §4.6.
package config

import "fmt"

// Config is the fully-parsed, normalized contents of one configuration
// generation (spec §4.6).
type Config struct {
	Server   ServerConfig
	API      *APIConfig
	Defaults ZoneAttrs
	Zones    map[string]ZoneAttrs
	Sources  SourcesConfig

	// dir is the directory containing the config file, used to resolve
	// relative paths in source configuration (spec §6).
	dir string
}

// ServerConfig configures the DNS listeners.
type ServerConfig struct {
	Port uint16 `yaml:"port"`
}

// APIConfig enables the optional HTTP API.
type APIConfig struct {
	Address string `yaml:"address"`
}

// ZoneAttrs holds the inheritable attributes of a zone or the defaults
// block (spec §3). A nil pointer means unset, to be inherited.
type ZoneAttrs struct {
	Upstream      *UpstreamConfig `yaml:"upstream,omitempty"`
	TTL           *uint32         `yaml:"ttl,omitempty"`
	Authoritative *bool           `yaml:"authoritative,omitempty"`
}

// UpstreamConfig names a recursive resolver to forward to.
type UpstreamConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// SourcesConfig groups source driver configuration by kind (spec §4.6).
type SourcesConfig struct {
	File    map[string]FileConfig    `yaml:"file,omitempty"`
	DHCP    map[string]DHCPConfig    `yaml:"dhcp,omitempty"`
	Docker  map[string]DockerConfig  `yaml:"docker,omitempty"`
	Traefik map[string]TraefikConfig `yaml:"traefik,omitempty"`
	Remote  map[string]RemoteConfig  `yaml:"remote,omitempty"`
}

// FileConfig configures the file source driver (spec §4.3).
type FileConfig struct {
	Path string `yaml:"path"`
}

// DHCPConfig configures the dnsmasq-leases source driver (spec §4.3).
type DHCPConfig struct {
	Path string `yaml:"path"`
	Zone string `yaml:"zone"`
}

// DockerConfig configures the Docker source driver (spec §4.3, §6).
// Exactly one of Local, HTTP, Pipe, TLS should be set; Local is assumed if
// none are.
type DockerConfig struct {
	Local *struct{}       `yaml:"local,omitempty"`
	HTTP  *string         `yaml:"http,omitempty"`
	Pipe  *string         `yaml:"pipe,omitempty"`
	TLS   *DockerTLSConfig `yaml:"tls,omitempty"`
}

// DockerTLSConfig configures mutual-TLS access to a Docker daemon.
type DockerTLSConfig struct {
	Address     string `yaml:"address"`
	PrivateKey  string `yaml:"private_key"`
	Certificate string `yaml:"certificate"`
	CA          string `yaml:"ca"`
}

// TraefikConfig configures the Traefik API poller (spec §4.3).
type TraefikConfig struct {
	URL      string  `yaml:"url"`
	Address  *string `yaml:"address,omitempty"`
	Interval *uint32 `yaml:"interval_seconds,omitempty"`
}

// RemoteConfig configures the peer-LocalNS poller (spec §4.3).
type RemoteConfig struct {
	URL      string  `yaml:"url"`
	Interval *uint32 `yaml:"interval_seconds,omitempty"`
}

// Dir returns the directory containing the config file, for resolving
// relative paths in source configuration (spec §6).
func (c *Config) Dir() string {
	return c.dir
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 53
	}
}

func (c *Config) validate() error {
	for name, sc := range c.Sources.Docker {
		count := 0
		if sc.Local != nil {
			count++
		}
		if sc.HTTP != nil {
			count++
		}
		if sc.Pipe != nil {
			count++
		}
		if sc.TLS != nil {
			count++
		}
		if count > 1 {
			return fmt.Errorf("sources.docker.%s: at most one of local, http, pipe, tls may be set", name)
		}
	}
	return nil
}
