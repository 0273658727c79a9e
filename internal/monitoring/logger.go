package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var verbose atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables Debugf output.
func SetVerbose(on bool) { verbose.Store(on) }

// Verbose reports whether Debugf output is enabled.
func Verbose() bool { return verbose.Load() }

// Debugf logs through Logf only when verbose logging is on. Per-tick and
// per-sample diagnostics go here so the hot path stays quiet by default.
func Debugf(format string, v ...interface{}) {
	if verbose.Load() {
		Logf(format, v...)
	}
}

// Once returns a logger that emits each distinct key at most once. It is
// used for soft warnings such as pool exhaustion that would otherwise
// repeat on every frame.
func Once() func(key interface{}, format string, v ...interface{}) {
	var seen syncMap
	return func(key interface{}, format string, v ...interface{}) {
		if seen.add(key) {
			Logf(format, v...)
		}
	}
}
