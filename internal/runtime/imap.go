// Package runtime adapts the real world to the narrow interfaces the core
// consumes: an IMAP-backed session provider and the default logger.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/imapurge/imapurge/internal/config"
	"github.com/imapurge/imapurge/internal/mailbox"
)

// IMAPProvider opens authenticated, mailbox-selected sessions against one
// IMAP server. It implements mailbox.Provider.
type IMAPProvider struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	TLS      bool
	StartTLS bool
	Logger   *slog.Logger
}

// NewIMAPProvider builds a provider from the loaded configuration and the
// resolved password.
func NewIMAPProvider(cfg *config.Config, password string, logger *slog.Logger) *IMAPProvider {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &IMAPProvider{
		Addr:     cfg.Addr(),
		Username: cfg.Auth.Username,
		Password: password,
		Mailbox:  cfg.Mailbox,
		TLS:      cfg.Server.TLS,
		StartTLS: cfg.Server.StartTLS,
		Logger:   logger.WithGroup("imap").With("server", cfg.Server.Host),
	}
}

// Open dials, authenticates, and selects the configured mailbox.
func (p *IMAPProvider) Open(ctx context.Context) (mailbox.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
	var (
		c   *imapclient.Client
		err error
	)
	switch {
	case p.TLS:
		c, err = imapclient.DialTLS(p.Addr, opts)
	case p.StartTLS:
		c, err = imapclient.DialStartTLS(p.Addr, opts)
	default:
		c, err = imapclient.DialInsecure(p.Addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.Addr, err)
	}
	if err := c.Login(p.Username, p.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("login as %s: %w", p.Username, err)
	}
	sel, err := c.Select(p.Mailbox, nil).Wait()
	if err != nil {
		_ = c.Logout().Wait()
		return nil, fmt.Errorf("select mailbox %s: %w", p.Mailbox, err)
	}
	if !c.Caps().Has(imap.CapUIDPlus) {
		p.Logger.DebugContext(ctx, "server lacks UIDPLUS, using plain expunge")
	}
	p.Logger.InfoContext(ctx, "mailbox selected",
		"mailbox", p.Mailbox, "mailbox.messages", sel.NumMessages)
	return &imapSession{c: c, logger: p.Logger}, nil
}

type imapSession struct {
	c      *imapclient.Client
	logger *slog.Logger
}

// searchCriteria maps a Range onto the protocol's date-granular sent-date
// terms. SENTBEFORE excludes the named day, so the bound is the day after
// Before's date; SENTSINCE includes it. Marked messages are excluded so a
// re-search after a session reset never returns already-processed mail.
func searchCriteria(r mailbox.Range) *imap.SearchCriteria {
	return &imap.SearchCriteria{
		SentSince:  truncateToDay(r.After),
		SentBefore: truncateToDay(r.Before).AddDate(0, 0, 1),
		NotFlag:    []imap.Flag{imap.FlagDeleted},
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// windowUIDs converts the full UID list into a page of refs, reporting the
// untruncated match count.
func windowUIDs(uids []imap.UID, limit int) mailbox.SearchResult {
	res := mailbox.SearchResult{Total: len(uids)}
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	res.Messages = make([]mailbox.MessageRef, 0, len(uids))
	for _, uid := range uids {
		res.Messages = append(res.Messages, mailbox.MessageRef(uid))
	}
	return res
}

func (s *imapSession) Search(ctx context.Context, r mailbox.Range, limit int) (mailbox.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return mailbox.SearchResult{}, err
	}
	data, err := s.c.UIDSearch(searchCriteria(r), nil).Wait()
	if err != nil {
		return mailbox.SearchResult{}, fmt.Errorf("search %s..%s: %w",
			r.After.Format(mailbox.DateFormat), r.Before.Format(mailbox.DateFormat), err)
	}
	res := windowUIDs(data.AllUIDs(), limit)
	s.logger.DebugContext(ctx, "search complete",
		"event", "search", "matches", res.Total, "page", len(res.Messages))
	return res, nil
}

func (s *imapSession) Headers(ctx context.Context, ref mailbox.MessageRef) (mailbox.Summary, error) {
	if err := ctx.Err(); err != nil {
		return mailbox.Summary{}, err
	}
	uidSet := imap.UIDSetNum(imap.UID(ref))
	msgs, err := s.c.Fetch(uidSet, &imap.FetchOptions{Envelope: true, UID: true}).Collect()
	if err != nil {
		return mailbox.Summary{}, fmt.Errorf("fetch headers for uid %d: %w", ref, err)
	}
	if len(msgs) == 0 || msgs[0].Envelope == nil {
		return mailbox.Summary{}, fmt.Errorf("fetch headers for uid %d: no envelope returned", ref)
	}
	env := msgs[0].Envelope
	sum := mailbox.Summary{Subject: env.Subject, Date: env.Date}
	if len(env.From) > 0 {
		sum.From = env.From[0].Addr()
	}
	return sum, nil
}

func (s *imapSession) MarkDeleted(ctx context.Context, ref mailbox.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uidSet := imap.UIDSetNum(imap.UID(ref))
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := s.c.Store(uidSet, flags, nil).Close(); err != nil {
		return fmt.Errorf("mark uid %d deleted: %w", ref, err)
	}
	s.logger.DebugContext(ctx, "marked deleted", "event", "store", "mail.uid", uint32(ref))
	return nil
}

func (s *imapSession) Expunge(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	seqNums, err := s.c.Expunge().Collect()
	if err != nil {
		return 0, fmt.Errorf("expunge: %w", err)
	}
	s.logger.InfoContext(ctx, "expunged", "event", "expunge", "count", len(seqNums))
	return len(seqNums), nil
}

func (s *imapSession) Close(ctx context.Context) error {
	if err := s.c.Logout().Wait(); err != nil {
		_ = s.c.Close()
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.DebugContext(ctx, "session closed", "event", "logout")
	return nil
}

var _ mailbox.Provider = (*IMAPProvider)(nil)
var _ mailbox.Session = (*imapSession)(nil)
