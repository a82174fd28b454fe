package main

import (
	"testing"
	"time"

	"github.com/imapurge/imapurge/internal/config"
)

func TestParseDates(t *testing.T) {
	tests := []struct {
		name       string
		before     string
		after      string
		wantBefore time.Time
		wantAfter  time.Time
		wantErr    bool
	}{
		{
			name:       "before normalized to end of day",
			before:     "2024-06-01",
			after:      "2024-01-15",
			wantBefore: time.Date(2024, time.June, 1, 23, 59, 59, 0, time.UTC),
			wantAfter:  time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "after defaults to one year earlier",
			before:     "2024-06-01",
			wantBefore: time.Date(2024, time.June, 1, 23, 59, 59, 0, time.UTC),
			wantAfter:  time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "before required", wantErr: true},
		{name: "unparseable before", before: "06/01/2024", wantErr: true},
		{name: "unparseable after", before: "2024-06-01", after: "yesterday", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rng, err := parseDates(tc.before, tc.after)
			if tc.wantErr {
				if err == nil {
					t.Fatal("parseDates() = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDates() = %v", err)
			}
			if !rng.Before.Equal(tc.wantBefore) {
				t.Fatalf("before = %v, want %v", rng.Before, tc.wantBefore)
			}
			if !rng.After.Equal(tc.wantAfter) {
				t.Fatalf("after = %v, want %v", rng.After, tc.wantAfter)
			}
		})
	}
}

func TestHistoryPathPrefersFlag(t *testing.T) {
	fileCfg := &config.Config{History: config.History{Path: "/var/lib/imapurge/runs.db"}}

	if got := historyPath(purgeConfig{historyDB: "/tmp/override.db"}, fileCfg); got != "/tmp/override.db" {
		t.Fatalf("historyPath() = %q, want the flag value", got)
	}
	if got := historyPath(purgeConfig{}, fileCfg); got != "/var/lib/imapurge/runs.db" {
		t.Fatalf("historyPath() = %q, want the config value", got)
	}
	if got := historyPath(purgeConfig{}, &config.Config{}); got != "" {
		t.Fatalf("historyPath() = %q, want empty when unconfigured", got)
	}
}
