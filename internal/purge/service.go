// Package purge implements the bounded, resumable deletion loop: paginate a
// date-range search around the server's result cap, mark matches for
// deletion up to a budget, absorb per-item failures, and recover the session
// when failures pile up.
package purge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/imapurge/imapurge/internal/audit"
	"github.com/imapurge/imapurge/internal/mailbox"
	"github.com/imapurge/imapurge/internal/rate"
)

const (
	// DefaultPageCap is the fixed result-set limit one search returns.
	DefaultPageCap = 1000
	// DefaultMaxErrors is how many per-item failures one recovery window
	// absorbs before the session is reset.
	DefaultMaxErrors = 5
	// DefaultMaxRestarts bounds error-driven session resets per run.
	DefaultMaxRestarts = 3
	// DefaultCooldown separates session teardown from the reconnect during
	// recovery.
	DefaultCooldown = 10 * time.Second
)

// ErrCancelled reports an interactive decline; nothing was marked.
var ErrCancelled = errors.New("run cancelled")

// ErrRecoveryExhausted reports that the restart budget was spent without
// regaining a usable session.
var ErrRecoveryExhausted = errors.New("recovery attempts exhausted")

// Confirmer asks the interactive questions guarding a destructive run.
type Confirmer interface {
	Ask(question string) (bool, error)
}

// Spec is one run's parameters. Host and Mailbox only describe the target
// for the audit trail; the session provider already knows where to connect.
type Spec struct {
	Range     mailbox.Range
	MaxDelete int
	Commit    bool
	Confirm   bool
	Host      string
	Mailbox   string
}

// Report is the final account of one run.
type Report struct {
	Read      int       `json:"read"`
	Deleted   int       `json:"deleted"`
	Errors    int       `json:"errors"`
	Restarts  int       `json:"restarts"`
	Pages     int       `json:"pages"`
	Expunged  int       `json:"expunged"`
	Committed bool      `json:"committed"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Service drives purge runs. Collaborators are exported for wiring; policy
// fields default to the documented constants via NewService.
type Service struct {
	Provider mailbox.Provider
	Limiter  rate.Limiter
	Audit    *audit.Log
	Confirm  Confirmer
	Logger   *slog.Logger
	Clock    func() time.Time
	Pause    func(ctx context.Context, d time.Duration) error

	PageCap     int
	MaxErrors   int
	MaxRestarts int
	Cooldown    time.Duration
	// ResetErrorsOnRecovery makes the error threshold apply per recovery
	// window instead of cumulatively across the run.
	ResetErrorsOnRecovery bool
}

// NewService constructs a Service with the documented policy defaults.
func NewService(provider mailbox.Provider, limiter rate.Limiter, auditLog *audit.Log, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	if auditLog == nil {
		auditLog = audit.NewLog(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Provider:              provider,
		Limiter:               limiter,
		Audit:                 auditLog,
		Logger:                logger,
		Clock:                 time.Now,
		Pause:                 rate.Sleep,
		PageCap:               DefaultPageCap,
		MaxErrors:             DefaultMaxErrors,
		MaxRestarts:           DefaultMaxRestarts,
		Cooldown:              DefaultCooldown,
		ResetErrorsOnRecovery: true,
	}
}

// Run executes one purge: confirm, search, delete up to the budget, recover
// as needed, then commit or report. The returned Report is valid on every
// path, including failures.
func (s *Service) Run(ctx context.Context, spec Spec) (Report, error) {
	rep := Report{Started: s.Clock()}

	if spec.MaxDelete < 1 {
		err := fmt.Errorf("max-delete must be at least 1, got %d", spec.MaxDelete)
		s.Audit.Fatal(err)
		return s.finish(rep, RunState{}), err
	}
	if err := spec.Range.Validate(s.Clock()); err != nil {
		err = fmt.Errorf("date range: %w", err)
		s.Audit.Fatal(err)
		return s.finish(rep, RunState{}), err
	}

	s.Audit.Start(spec.Host, spec.Mailbox, spec.Range, spec.MaxDelete, spec.Commit)
	s.Logger.InfoContext(ctx, "starting purge run",
		"host", spec.Host, "mailbox", spec.Mailbox,
		"after", spec.Range.After.Format(mailbox.DateFormat),
		"before", spec.Range.Before.Format(mailbox.DateFormat),
		"max_delete", spec.MaxDelete, "commit", spec.Commit)

	if spec.Confirm {
		ok, err := s.ask(fmt.Sprintf("Delete up to %d messages sent %s..%s?",
			spec.MaxDelete,
			spec.Range.After.Format(mailbox.DateFormat),
			spec.Range.Before.Format(mailbox.DateFormat)))
		if err != nil {
			s.Audit.Fatal(err)
			return s.finish(rep, RunState{}), err
		}
		if !ok {
			s.Audit.Cancelled("declined at run start")
			return s.finish(rep, RunState{}), ErrCancelled
		}
		s.Audit.Confirmed("run start")
	}

	if err := s.wait(ctx, "open"); err != nil {
		s.Audit.Fatal(err)
		return s.finish(rep, RunState{}), err
	}
	sess, err := s.Provider.Open(ctx)
	if err != nil {
		err = fmt.Errorf("open session: %w", err)
		s.Audit.Fatal(err)
		return s.finish(rep, RunState{}), err
	}
	defer func() {
		if sess == nil {
			return
		}
		if cerr := sess.Close(ctx); cerr != nil {
			s.Logger.WarnContext(ctx, "session close failed", "error", cerr)
		}
	}()

	page, err := s.search(ctx, sess, spec.Range)
	if err != nil {
		s.Audit.Fatal(err)
		return s.finish(rep, RunState{}), err
	}
	if page.Total == 0 {
		s.Audit.NoMatches()
		s.Logger.InfoContext(ctx, "no messages matched", "mailbox", spec.Mailbox)
		return s.finish(rep, RunState{}), nil
	}
	s.Audit.Searched(page.Total, len(page.Messages))

	// The bulk gate fires once, on the initial search only: the result
	// reached a full page but the budget would not bound it anyway.
	if spec.Confirm && page.Total >= s.PageCap && page.Total < spec.MaxDelete {
		ok, askErr := s.ask(fmt.Sprintf("Search matched %d messages; delete them all?", page.Total))
		if askErr != nil {
			s.Audit.Fatal(askErr)
			return s.finish(rep, RunState{}), askErr
		}
		if !ok {
			s.Audit.Cancelled(fmt.Sprintf("declined bulk deletion of %d messages", page.Total))
			return s.finish(rep, RunState{}), ErrCancelled
		}
		s.Audit.Confirmed(fmt.Sprintf("bulk deletion of %d messages", page.Total))
	}

	l := &loop{
		svc:   s,
		spec:  spec,
		sess:  sess,
		page:  page,
		state: RunState{Phase: PhaseFetching, Pos: 1},
	}
	for l.state.Phase != PhaseDone && l.fatal == nil {
		if err := ctx.Err(); err != nil {
			l.fatal = err
			break
		}
		l.step(ctx)
	}
	sess = l.sess

	if l.fatal != nil {
		s.Audit.Fatal(l.fatal)
		s.Audit.Summary(l.state.Read, l.state.Deleted, l.state.Errors, l.state.Restarts, l.state.Pages)
		s.Logger.ErrorContext(ctx, "run aborted", "error", l.fatal,
			"read", l.state.Read, "deleted", l.state.Deleted)
		return s.finish(rep, l.state), l.fatal
	}

	if spec.Commit {
		if err := s.wait(ctx, "expunge"); err != nil {
			s.Audit.Fatal(err)
			s.Audit.Summary(l.state.Read, l.state.Deleted, l.state.Errors, l.state.Restarts, l.state.Pages)
			return s.finish(rep, l.state), err
		}
		expunged, err := sess.Expunge(ctx)
		if err != nil {
			// Marks already applied stay on the server for a manual expunge.
			err = fmt.Errorf("commit expunge: %w", err)
			s.Audit.Fatal(err)
			s.Audit.Summary(l.state.Read, l.state.Deleted, l.state.Errors, l.state.Restarts, l.state.Pages)
			return s.finish(rep, l.state), err
		}
		rep.Expunged = expunged
		rep.Committed = true
		s.Audit.Committed(expunged)
	} else {
		s.Audit.MarkedOnly(l.state.Deleted)
	}
	s.Audit.Summary(l.state.Read, l.state.Deleted, l.state.Errors, l.state.Restarts, l.state.Pages)

	rep = s.finish(rep, l.state)
	s.Logger.InfoContext(ctx, "run complete",
		"read", rep.Read, "deleted", rep.Deleted, "errors", rep.Errors,
		"restarts", rep.Restarts, "pages", rep.Pages,
		"expunged", rep.Expunged, "committed", rep.Committed)
	return rep, nil
}

func (s *Service) finish(rep Report, state RunState) Report {
	rep.Read = state.Read
	rep.Deleted = state.Deleted
	rep.Errors = state.Errors
	rep.Restarts = state.Restarts
	rep.Pages = state.Pages
	rep.Finished = s.Clock()
	return rep
}

func (s *Service) ask(question string) (bool, error) {
	if s.Confirm == nil {
		return false, errors.New("confirmation required but no prompter wired")
	}
	ok, err := s.Confirm.Ask(question)
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}

func (s *Service) wait(ctx context.Context, op string) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit before %s: %w", op, err)
	}
	return nil
}

func (s *Service) search(ctx context.Context, sess mailbox.Session, r mailbox.Range) (mailbox.SearchResult, error) {
	if err := s.wait(ctx, "search"); err != nil {
		return mailbox.SearchResult{}, err
	}
	res, err := sess.Search(ctx, r, s.PageCap)
	if err != nil {
		return mailbox.SearchResult{}, fmt.Errorf("search mailbox: %w", err)
	}
	return res, nil
}

// loop carries the data that flows between phases: the live session, the
// current page, the threaded RunState, and the headers fetched for the
// position about to be deleted.
type loop struct {
	svc  *Service
	spec Spec

	sess mailbox.Session
	page mailbox.SearchResult

	state   RunState
	pending mailbox.Summary
	fatal   error
}

// step executes exactly one transition of the state machine.
func (l *loop) step(ctx context.Context) {
	switch l.state.Phase {
	case PhaseFetching:
		l.fetch(ctx)
	case PhaseDeleting:
		l.delete(ctx)
	case PhaseErrorHandling:
		l.handleError()
	case PhaseRecovering:
		l.recover(ctx)
	case PhaseDone:
	}
}

// fetch reads headers for the current position, or decides how the loop ends
// when the page is exhausted: a full page rolls over to a fresh search, a
// short page means the range is drained.
func (l *loop) fetch(ctx context.Context) {
	if l.state.Pos > len(l.page.Messages) {
		if len(l.page.Messages) == l.svc.PageCap {
			l.rollover(ctx)
			return
		}
		l.state.Phase = PhaseDone
		return
	}
	ref := l.page.Messages[l.state.Pos-1]
	l.state.Read++
	if err := l.svc.wait(ctx, "fetch"); err != nil {
		l.fatal = err
		return
	}
	sum, err := l.sess.Headers(ctx, ref)
	if err != nil {
		l.itemError(err)
		return
	}
	l.pending = sum
	l.state.Phase = PhaseDeleting
}

// delete marks the fetched message. The budget check runs on mark success,
// before any end-of-page handling, so a budget reached on a page's last item
// never triggers another search.
func (l *loop) delete(ctx context.Context) {
	ref := l.page.Messages[l.state.Pos-1]
	if err := l.svc.wait(ctx, "mark"); err != nil {
		l.fatal = err
		return
	}
	if err := l.sess.MarkDeleted(ctx, ref); err != nil {
		l.itemError(err)
		return
	}
	l.state.Deleted++
	l.svc.Audit.Deleted(l.state.Deleted, l.pending)
	if l.state.Deleted >= l.spec.MaxDelete {
		l.state.Phase = PhaseDone
		return
	}
	l.state.Pos++
	l.state.Phase = PhaseFetching
}

func (l *loop) itemError(err error) {
	l.state.Errors++
	l.svc.Audit.ItemError(l.state.Pos, err)
	l.svc.Logger.Warn("item failed",
		"position", l.state.Pos, "errors", l.state.Errors, "error", err)
	l.state.Phase = PhaseErrorHandling
}

// handleError skips past a failed item while the error budget holds, and
// escalates to recovery once it is exceeded.
func (l *loop) handleError() {
	if l.state.Errors > l.svc.MaxErrors {
		l.state.Phase = PhaseRecovering
		return
	}
	l.state.Pos++
	l.state.Phase = PhaseFetching
}

// recover replaces the session after the error threshold was crossed. A
// failed attempt consumes a restart and leaves the loop in PhaseRecovering;
// spending the whole restart budget is fatal.
func (l *loop) recover(ctx context.Context) {
	if l.state.Restarts >= l.svc.MaxRestarts {
		l.fatal = ErrRecoveryExhausted
		return
	}
	l.state.Restarts++
	l.svc.Audit.Recovery(l.state.Restarts, l.svc.MaxRestarts, l.svc.Cooldown)
	l.svc.Logger.Warn("recovering session",
		"restart", l.state.Restarts, "max_restarts", l.svc.MaxRestarts)
	if err := l.reset(ctx, l.svc.Cooldown); err != nil {
		l.svc.Audit.RecoveryFailed(err)
		l.svc.Logger.Warn("recovery failed", "restart", l.state.Restarts, "error", err)
		return
	}
	if l.svc.ResetErrorsOnRecovery {
		l.state.Errors = 0
	}
	l.state.Pos = 1
	l.state.Phase = PhaseFetching
}

// rollover continues past the page cap: same range, fresh session, fresh
// search. It is a normal continuation and never consumes the restart budget,
// but a failure here is fatal because searches are not retried.
func (l *loop) rollover(ctx context.Context) {
	l.state.Pages++
	l.svc.Audit.PageRollover(l.state.Pages + 1)
	l.svc.Logger.InfoContext(ctx, "page cap reached, continuing",
		"page", l.state.Pages+1, "deleted", l.state.Deleted)
	if err := l.reset(ctx, 0); err != nil {
		l.fatal = err
		return
	}
	l.state.Pos = 1
}

// reset is the hard session hand-off: tear down, optionally cool down, open
// a replacement, re-run the identical search. At most one session is ever
// live; the old one is gone before the new one is dialed.
func (l *loop) reset(ctx context.Context, cooldown time.Duration) error {
	if l.sess != nil {
		if err := l.sess.Close(ctx); err != nil {
			l.svc.Logger.WarnContext(ctx, "session close during reset", "error", err)
		}
		l.sess = nil
	}
	if cooldown > 0 {
		if err := l.svc.Pause(ctx, cooldown); err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
	}
	if err := l.svc.wait(ctx, "open"); err != nil {
		return err
	}
	sess, err := l.svc.Provider.Open(ctx)
	if err != nil {
		return fmt.Errorf("reopen session: %w", err)
	}
	l.sess = sess
	page, err := l.svc.search(ctx, sess, l.spec.Range)
	if err != nil {
		return err
	}
	l.page = page
	l.svc.Audit.Searched(page.Total, len(page.Messages))
	return nil
}
