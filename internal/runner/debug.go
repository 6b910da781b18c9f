package runner

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the runner package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[runner] ", ops)
	diagLogger = newLogger("[runner] ", diag)
	traceLogger = newLogger("[runner] ", trace)
}

// SetLogLevel routes the streams enabled by a debug level to w: level 0 is
// ops only, 1 adds diag, 2 and above add trace.
func SetLogLevel(level int, w io.Writer) {
	var diag, trace io.Writer
	if level >= 1 {
		diag = w
	}
	if level >= 2 {
		trace = w
	}
	SetLogWriters(w, diag, trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (entries that fell back to identity, setup failures).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-frame progress).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (estimated poses).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
