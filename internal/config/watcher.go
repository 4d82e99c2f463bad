// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// Watcher hot-reloads the config file when it changes on disk.
// Editors typically emit several writes per save, so events are
// debounced before the reload fires.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	onChange func(*Config)
}

// NewWatcher creates a watcher for the given config file path.
// onChange is called with the freshly loaded config after each change;
// a reload that fails validation is logged and skipped.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: atomic saves replace the file
	// by rename and the watch on the old inode would be lost.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		watcher:  fw,
		onChange: onChange,
	}, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("CONFIG_WATCH_ERROR | error=%v", err)

		case <-fire:
			cfg, err := LoadFromPath(w.path)
			if err != nil {
				log.Printf("CONFIG_RELOAD_FAILED | path=%s error=%v", w.path, err)
				continue
			}
			log.Printf("CONFIG_RELOADED | path=%s", w.path)
			w.onChange(cfg)
		}
	}
}
