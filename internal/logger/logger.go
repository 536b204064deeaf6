// Package logger writes leveled, line-oriented log records to stderr.
// Debug and Info records are only written in verbose mode; Warn and Error
// are always written.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects log records. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug logs msg followed by key=value pairs taken from kv.
func Debug(msg string, kv ...any) {
	write("DEBUG", true, msg, kv)
}

func Info(msg string, kv ...any) {
	write("INFO", true, msg, kv)
}

func Warn(msg string, kv ...any) {
	write("WARN", false, msg, kv)
}

func Error(msg string, kv ...any) {
	write("ERROR", false, msg, kv)
}

func write(level string, gated bool, msg string, kv []any) {
	mu.Lock()
	defer mu.Unlock()
	if gated && !verbose {
		return
	}
	fmt.Fprintf(output, "[%s] %s%s\n", level, msg, formatPairs(kv))
}

func formatPairs(kv []any) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fmt.Fprintf(&b, " %s=<missing>", key)
			break
		}
		value := fmt.Sprint(kv[i+1])
		if strings.ContainsAny(value, " \t\"=") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}
