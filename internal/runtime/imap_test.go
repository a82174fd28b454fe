package runtime

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/imapurge/imapurge/internal/config"
	"github.com/imapurge/imapurge/internal/mailbox"
)

func TestSearchCriteriaDateMapping(t *testing.T) {
	r := mailbox.Range{
		After:  time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		Before: time.Date(2024, time.June, 1, 23, 59, 59, 0, time.UTC),
	}
	crit := searchCriteria(r)

	wantSince := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !crit.SentSince.Equal(wantSince) {
		t.Fatalf("SentSince = %v, want %v", crit.SentSince, wantSince)
	}
	// SENTBEFORE excludes the named day, so covering all of June 1 means
	// bounding at June 2.
	wantBefore := time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC)
	if !crit.SentBefore.Equal(wantBefore) {
		t.Fatalf("SentBefore = %v, want %v", crit.SentBefore, wantBefore)
	}
}

func TestSearchCriteriaExcludesMarkedMessages(t *testing.T) {
	crit := searchCriteria(mailbox.Range{
		After:  time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		Before: time.Date(2024, time.June, 1, 23, 59, 59, 0, time.UTC),
	})
	if len(crit.NotFlag) != 1 || crit.NotFlag[0] != imap.FlagDeleted {
		t.Fatalf("NotFlag = %v, want [\\Deleted]", crit.NotFlag)
	}
}

func TestWindowUIDs(t *testing.T) {
	uids := []imap.UID{11, 12, 13, 14, 15}

	tests := []struct {
		name      string
		limit     int
		wantTotal int
		wantPage  int
	}{
		{name: "under limit", limit: 10, wantTotal: 5, wantPage: 5},
		{name: "exact limit", limit: 5, wantTotal: 5, wantPage: 5},
		{name: "over limit truncates page", limit: 3, wantTotal: 5, wantPage: 3},
		{name: "zero limit means unbounded", limit: 0, wantTotal: 5, wantPage: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := windowUIDs(uids, tc.limit)
			if res.Total != tc.wantTotal {
				t.Fatalf("Total = %d, want %d", res.Total, tc.wantTotal)
			}
			if len(res.Messages) != tc.wantPage {
				t.Fatalf("page = %d refs, want %d", len(res.Messages), tc.wantPage)
			}
			for i, ref := range res.Messages {
				if uint32(ref) != uint32(uids[i]) {
					t.Fatalf("ref %d = %d, want %d (server order preserved)", i, ref, uids[i])
				}
			}
		})
	}
}

func TestNewIMAPProviderFromConfig(t *testing.T) {
	cfg := &config.Config{
		Server:  config.Server{Host: "imap.example.com", Port: 993, TLS: true},
		Auth:    config.Auth{Username: "alice"},
		Mailbox: "Archive",
	}
	p := NewIMAPProvider(cfg, "s3cret", nil)

	if p.Addr != "imap.example.com:993" {
		t.Fatalf("Addr = %q", p.Addr)
	}
	if p.Username != "alice" || p.Password != "s3cret" {
		t.Fatalf("credentials = %q/%q", p.Username, p.Password)
	}
	if p.Mailbox != "Archive" {
		t.Fatalf("Mailbox = %q", p.Mailbox)
	}
	if !p.TLS || p.StartTLS {
		t.Fatalf("tls flags = %v/%v", p.TLS, p.StartTLS)
	}
	if p.Logger == nil {
		t.Fatal("Logger not defaulted")
	}
}
