// Package ui provides terminal output components shared by the CLI and the
// dashboard.
//
// # Components Overview
//
//	Spinner     - Animated line shown while an action runs
//	Sparkline   - Throughput history drawn with block characters
//	Tables      - Bubbles tables for the dashboard and plain CLI output
//	Formatters  - Rates, byte counts and ages via go-humanize
//
// # Color Scheme
//
// Semantic colors use ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Successful actions
//	ColorError     (red)    - Failures
//	ColorWarning   (yellow) - Warnings, stale data
//	ColorInfo      (cyan)   - Informational status lines
//	ColorMuted     (gray)   - Secondary text, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color).
package ui
