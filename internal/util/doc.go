// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for rigrun-web.
//
// This package contains the small helpers shared across the
// application:
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//
// # Usage
//
//	// Write files atomically to prevent partial-file states
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Truncate long strings safely for display
//	title := util.TruncateRunes(firstUserMessage, 40)
package util
