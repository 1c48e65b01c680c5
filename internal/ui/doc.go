// Package ui renders the terminal interface for shellyprov.
//
// It provides the interactive device picker (a bubbletea multi-select
// list), per-device step progress rendering, confirmation and password
// prompts, and the final batch summary box. All styling goes through the
// shared lipgloss palette in styles.go; commands never construct styles
// inline.
package ui
