// Package zlog is a small package-level logger used by the symbol-recovery
// pipeline to record progress and recoverable failures as it runs. Entries
// are kept in a bounded ring buffer so a fatal error handler can always
// print a short tail of recent activity, mirroring a crash report.
package zlog

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission is consulted before an entry is recorded. Logging proceeds only
// when AllowLogging returns true.
type Permission interface {
	AllowLogging() bool
}

// Allow is a Permission that always allows logging.
var Allow = allow{}

type allow struct{}

func (allow) AllowLogging() bool { return true }

type entry struct {
	tag    string
	detail string
}

// Logger is a bounded ring buffer of log entries.
type Logger struct {
	mu      sync.Mutex
	entries []entry
	limit   int
}

// NewLogger creates a Logger that retains at most limit entries, discarding
// the oldest entry once the limit is exceeded.
func NewLogger(limit int) *Logger {
	return &Logger{limit: limit}
}

// Log records a log entry tagged with tag. detail is formatted depending on
// its type: errors and fmt.Stringer values use their own string
// representation; anything else is formatted with the %v verb.
func (l *Logger) Log(perm Permission, tag string, detail any) {
	if !perm.AllowLogging() {
		return
	}
	l.append(tag, formatDetail(detail))
}

// Logf records a log entry tagged with tag, formatting detail with the
// given format string and arguments.
func (l *Logger) Logf(perm Permission, tag string, format string, args ...any) {
	if !perm.AllowLogging() {
		return
	}
	l.append(tag, fmt.Sprintf(format, args...))
}

func (l *Logger) append(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{tag: tag, detail: detail})
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
}

func formatDetail(detail any) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Write writes every retained entry to w, one per line, as "tag: detail".
func (l *Logger) Write(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		fmt.Fprintf(w, "%s: %s\n", e.tag, e.detail)
	}
}

// Tail writes the last n retained entries to w. Asking for more entries
// than are retained is not an error; Tail simply writes what it has.
func (l *Logger) Tail(w io.Writer, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 0 {
		n = 0
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	for _, e := range l.entries[start:] {
		fmt.Fprintf(w, "%s: %s\n", e.tag, e.detail)
	}
}

// Clear discards all retained entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// String returns every retained entry joined the way Write would print
// them, without requiring an io.Writer at the call site.
func (l *Logger) String() string {
	var b strings.Builder
	l.Write(&b)
	return b.String()
}
