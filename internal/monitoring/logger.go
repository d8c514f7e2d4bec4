// Package monitoring holds the engine's package-level diagnostic logging
// hooks so numeric kernels never take a logger dependency directly.
package monitoring

import "log"

// Logf is the diagnostic logger used across the engine. It defaults to
// log.Printf; tests and embedding applications may replace or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Verbose gates per-sample and per-segment trace output from the numeric
// loops. Off by default; enabling it on large blocks is expensive.
var Verbose = false

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Tracef logs only when Verbose is set.
func Tracef(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
