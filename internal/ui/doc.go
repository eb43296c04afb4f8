// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for inspecting synchronization:
//  1. [LogListView] : Browse recent sync log entries with a status header
//  2. [SyncView] : Monitor real-time progress while a sync pass runs
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the Engine, providing non-blocking status reporting during sync passes.
//
// Keyboard navigation uses vim-style bindings (j/k, r, s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
