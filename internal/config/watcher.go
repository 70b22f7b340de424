// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce is the editor-save-burst coalescing window (spec §4.6: "a
// debounce (e.g., 500ms) to coalesce editor-save bursts").
const debounce = 500 * time.Millisecond

// Watcher watches a config file for changes and emits freshly parsed
// Config values, debounced. Parse failures are logged and do not emit —
// the previous Config stays in effect in the caller (spec §4.6, §7).
type Watcher struct {
	path string
	log  *zap.SugaredLogger
}

// NewWatcher returns a Watcher for the config file at path.
func NewWatcher(path string, log *zap.SugaredLogger) *Watcher {
	return &Watcher{path: path, log: log}
}

// Run starts watching and sends each successfully (re)parsed Config on the
// returned channel until ctx is cancelled, at which point the channel is
// closed. The initial Config (as of Run's call) is not sent; callers
// should Load it themselves before calling Run.
func (w *Watcher) Run(ctx context.Context) (<-chan *Config, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the containing directory, not w.path itself: editors that save
	// atomically (write-temp + rename) replace the inode, which would
	// silently orphan a watch on the old path (same reasoning as
	// filesrc/dhcpsrc). Events are filtered to w.path below.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan *Config)
	go func() {
		defer fw.Close()
		defer close(out)

		var timer *time.Timer
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(debounce)
				}
				timerC = timer.C
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warnw("config watcher error", "error", err)
			case <-timerC:
				timerC = nil
				cfg, err := Load(w.path)
				if err != nil {
					w.log.Errorw("config reload failed, keeping previous config", "error", err)
					continue
				}
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
