package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: imap.example.com
  port: 143
  tls: false
  starttls: true
auth:
  username: alice
  password: secret
mailbox: Archive
history:
  path: /var/lib/imapurge/history.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Server.Host != "imap.example.com" || cfg.Server.Port != 143 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Server.TLS || !cfg.Server.StartTLS {
		t.Fatalf("tls flags = %+v", cfg.Server)
	}
	if cfg.Auth.Username != "alice" || cfg.Auth.Password != "secret" {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if cfg.Mailbox != "Archive" {
		t.Fatalf("mailbox = %q", cfg.Mailbox)
	}
	if cfg.History.Path != "/var/lib/imapurge/history.db" {
		t.Fatalf("history = %+v", cfg.History)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: imap.example.com
auth:
  username: alice
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Server.Port != 993 {
		t.Fatalf("default port = %d, want 993", cfg.Server.Port)
	}
	if !cfg.Server.TLS {
		t.Fatal("default tls = false, want true")
	}
	if cfg.Mailbox != "INBOX" {
		t.Fatalf("default mailbox = %q, want INBOX", cfg.Mailbox)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() on a missing file = nil, want error")
	}
}

func TestLoadUnparseableFileFails(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() on broken yaml = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "complete",
			cfg: Config{
				Server: Server{Host: "imap.example.com", Port: 993},
				Auth:   Auth{Username: "alice"},
			},
		},
		{
			name:    "missing host",
			cfg:     Config{Server: Server{Port: 993}, Auth: Auth{Username: "alice"}},
			wantErr: true,
		},
		{
			name:    "missing username",
			cfg:     Config{Server: Server{Host: "h", Port: 993}},
			wantErr: true,
		},
		{
			name:    "port out of range",
			cfg:     Config{Server: Server{Host: "h", Port: 70000}, Auth: Auth{Username: "a"}},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Server: Server{Host: "imap.example.com", Port: 143}}
	if got, want := cfg.Addr(), "imap.example.com:143"; got != want {
		t.Fatalf("Addr() = %q, want %q", got, want)
	}
}
