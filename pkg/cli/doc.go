// Package cli provides shared helpers for the callisto commands:
// typed command errors, signal handling, and output formatting.
package cli
