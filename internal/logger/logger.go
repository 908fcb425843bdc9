// Package logger provides leveled logging for contextd. Debug and info
// messages are printed to stderr only when verbose mode is enabled via
// the --verbose flag; warnings and errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Defaults to os.Stderr.
// Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// emit writes one tagged line, optionally gated on verbose mode. The
// read lock covers both the gate check and the write so SetOutput is
// safe mid-stream.
func emit(tag, format string, gated bool, args []any) {
	mu.RLock()
	defer mu.RUnlock()
	if gated && !verbose {
		return
	}
	fmt.Fprintf(output, tag+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	emit("[DEBUG] ", format, true, args)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	emit("[INFO] ", format, true, args)
}

// Section prints a section header if verbose mode is enabled.
func Section(format string, args ...any) {
	emit("\n=== ", format+" ===", true, args)
}

// Warn prints a warning message regardless of verbose mode.
func Warn(format string, args ...any) {
	emit("[WARN] ", format, false, args)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	emit("[ERROR] ", format, false, args)
}
