// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package logging configures the zap logger used throughout LocalNS,
// including a RUST_LOG-style per-target level filter (spec §6.5, ambient).
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvVar is the environment variable carrying the per-target level filter,
// e.g. "supervisor=debug,dnsserver=warn" (spec §6.1 "--log-filter /
// RUST_LOG-equivalent env var").
const EnvVar = "LOCALNS_LOG"

// levelFilterCore wraps a base core and applies a per-logger-name minimum
// level, falling back to defaultLevel for names with no explicit entry. The
// decision is made in Check using the entry's LoggerName (set by
// `.Named(...)`), since Enabled alone never sees which name is logging.
type levelFilterCore struct {
	zapcore.Core
	levels       map[string]zapcore.Level
	defaultLevel zapcore.Level
}

func (c *levelFilterCore) levelFor(name string) zapcore.Level {
	for {
		if lvl, ok := c.levels[name]; ok {
			return lvl
		}
		i := strings.LastIndex(name, ".")
		if i < 0 {
			return c.defaultLevel
		}
		name = name[:i]
	}
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), levels: c.levels, defaultLevel: c.defaultLevel}
}

func (c *levelFilterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < c.levelFor(ent.LoggerName) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

// New builds a production-style zap logger (JSON encoding, ISO8601 time)
// whose effective level for each `.Named(...)` scope is controlled by
// filter, a comma-separated "target=level" list (spec §6.1, §6.5). An empty
// filter uses defaultLevel for every target.
func New(filter string, defaultLevel zapcore.Level) (*zap.Logger, error) {
	levels, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(cfg)

	base := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapcore.DebugLevel)
	core := &levelFilterCore{Core: base, levels: levels, defaultLevel: defaultLevel}
	return zap.New(core, zap.AddCaller()), nil
}

// ParseFilter parses a "target=level,target=level" filter string (the
// format of EnvVar) into a name -> level map. An empty string parses to an
// empty map.
func ParseFilter(filter string) (map[string]zapcore.Level, error) {
	levels := make(map[string]zapcore.Level)
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return levels, nil
	}
	for _, entry := range strings.Split(filter, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("logging: invalid filter entry %q, want target=level", entry)
		}
		lvl, err := zapcore.ParseLevel(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("logging: invalid level in %q: %w", entry, err)
		}
		levels[strings.TrimSpace(parts[0])] = lvl
	}
	return levels, nil
}
