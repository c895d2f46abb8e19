// Package monitoring holds the diagnostic logging hook shared by the tracker,
// the stores and the CLI.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. Messages are conventionally
// prefixed with a bracketed component tag, e.g. "[tracking] ...". It defaults
// to log.Printf; binaries install a structured backend with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
