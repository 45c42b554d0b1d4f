// Package util provides common utility functions used across the codebase.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// QuoteIfNeeded quotes s only when it contains characters a POSIX shell
// would interpret. Plain words pass through untouched, which keeps encoded
// PowerShell command lines readable by cmd.exe on Windows SSH targets.
func QuoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) == -1 {
		return s
	}
	return ShellQuote(s)
}

// JoinCommand renders program and args as a single shell command line.
func JoinCommand(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, QuoteIfNeeded(program))
	for _, a := range args {
		parts = append(parts, QuoteIfNeeded(a))
	}
	return strings.Join(parts, " ")
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	switch r {
	case '-', '_', '.', '/', ':', '=', '+', ',', '@', '%':
		return false
	}
	return true
}
