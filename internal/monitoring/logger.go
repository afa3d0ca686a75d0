// Package monitoring holds the diagnostic logger shared by the bandit engine.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute engine output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with "[component] ". The
// returned func resolves Logf at call time, so a later SetLogger still applies.
func Prefixed(component string) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("[%s] ", component)
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
