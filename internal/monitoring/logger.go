// Package monitoring carries the process-wide log hook shared by the
// estimator service and the runners, and a count-based progress reporter.
package monitoring

import "log"

// Logf receives service-level log lines. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger redirects Logf. nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
