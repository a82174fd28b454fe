// Package audit records every decision a purge run makes as timestamped
// lines, either to a file or to a stream. The log is a product artifact,
// the record a user keeps of what was deleted and why, and is distinct
// from the operational slog output on stderr.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/imapurge/imapurge/internal/mailbox"
)

// Log appends one timestamped line per state transition, decision, and
// summary. Lines are written in execution order; durability is whatever the
// underlying sink provides.
type Log struct {
	Clock func() time.Time

	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// NewLog returns a Log writing to w. A nil w means standard output.
func NewLog(w io.Writer) *Log {
	if w == nil {
		w = os.Stdout
	}
	return &Log{Clock: time.Now, w: w}
}

// Open returns a Log appending to the file at path, creating it with 0600 if
// needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- user-chosen audit destination
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &Log{Clock: time.Now, w: f, f: f}, nil
}

// Close flushes and closes a file-backed log. It is a no-op for stream sinks.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	l.f = nil
	return nil
}

// line writes one timestamped entry. Write failures are not propagated; the
// audit trail is best-effort against a failing sink mid-run.
func (l *Log) line(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	clock := l.Clock
	if clock == nil {
		clock = time.Now
	}
	_, _ = fmt.Fprintf(l.w, "%s  %s\n", clock().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// Start records the run parameters before any server contact.
func (l *Log) Start(host, mbox string, r mailbox.Range, maxDelete int, commit bool) {
	mode := "MARK-ONLY"
	if commit {
		mode = "COMMIT"
	}
	l.line("run start: host=%s mailbox=%s range=%s..%s max-delete=%d mode=%s",
		host, mbox,
		r.After.Format(mailbox.DateFormat), r.Before.Format(mailbox.DateFormat),
		maxDelete, mode)
}

// Searched records a completed search: the full match count and the page
// actually returned.
func (l *Log) Searched(total, page int) {
	l.line("search matched %d messages, processing page of %d", total, page)
}

// NoMatches records an empty search result.
func (l *Log) NoMatches() {
	l.line("no emails found in range")
}

// Confirmed records an affirmative interactive answer.
func (l *Log) Confirmed(what string) {
	l.line("confirmed: %s", what)
}

// Cancelled records an interactive decline. The run stops cleanly after this.
func (l *Log) Cancelled(reason string) {
	l.line("cancelled: %s", reason)
}

// Deleted records one successful deletion mark.
func (l *Log) Deleted(n int, sum mailbox.Summary) {
	l.line("deleted %d: from=%s subject=%q sent=%s",
		n, sum.From, sum.Subject, sum.Date.Format(mailbox.DateFormat))
}

// ItemError records a per-message failure at the given page position.
func (l *Log) ItemError(pos int, err error) {
	l.line("error at message %d: %v", pos, err)
}

// PageRollover records a page-cap continuation (not a failure).
func (l *Log) PageRollover(page int) {
	l.line("page cap reached, reconnecting for page %d", page)
}

// Recovery records an error-driven session reset attempt.
func (l *Log) Recovery(restart, maxRestarts int, cooldown time.Duration) {
	l.line("error threshold exceeded, recovery %d/%d: cooling down %s", restart, maxRestarts, cooldown)
}

// RecoveryFailed records one unsuccessful reset attempt.
func (l *Log) RecoveryFailed(err error) {
	l.line("recovery failed: %v", err)
}

// Committed records a successful expunge.
func (l *Log) Committed(expunged int) {
	l.line("expunged %d messages", expunged)
}

// MarkedOnly records the end of a run that marked but did not expunge.
func (l *Log) MarkedOnly(n int) {
	l.line("mark-only run: %d messages left marked, not expunged", n)
}

// Fatal records a terminal failure before the process exits.
func (l *Log) Fatal(err error) {
	l.line("fatal: %v", err)
}

// Summary records the final counters.
func (l *Log) Summary(read, deleted, errors, restarts, pages int) {
	l.line("summary: read=%d deleted=%d errors=%d restarts=%d pages=%d",
		read, deleted, errors, restarts, pages)
}
