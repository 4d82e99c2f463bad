// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigrun-web.
//
// Supports TOML configuration with sensible defaults and environment
// variable overrides.
//
// Configuration file locations (in order of precedence):
//   - path passed on the command line (-config)
//   - ~/.rigrun-web/config.toml
//   - Built-in defaults
//
// A Watcher built on fsnotify hot-reloads the file at runtime so
// provider defaults can change without restarting the server.
package config
