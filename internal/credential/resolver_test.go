package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestKey(t *testing.T) {
	if got, want := Key("alice", "imap.example.com"), "alice@imap.example.com"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		keyringPW  string
		keyringErr error
		promptPW   string
		promptErr  error
		want       string
		wantSource string
		wantErr    bool
	}{
		{
			name:       "environment wins",
			env:        "env-secret",
			keyringPW:  "ring-secret",
			want:       "env-secret",
			wantSource: "environment",
		},
		{
			name:       "keyring when no env",
			keyringPW:  "ring-secret",
			want:       "ring-secret",
			wantSource: "keyring",
		},
		{
			name:       "prompt when keyring misses",
			keyringErr: errors.New("not found"),
			promptPW:   "typed-secret",
			want:       "typed-secret",
			wantSource: "prompt",
		},
		{
			name:       "prompt failure is terminal",
			keyringErr: errors.New("not found"),
			promptErr:  errors.New("stdin is not a terminal"),
			wantErr:    true,
		},
		{
			name:       "empty prompt answer is an error",
			keyringErr: errors.New("not found"),
			promptPW:   "",
			wantErr:    true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var promptedLabel string
			r := &Resolver{
				Getenv: func(k string) string {
					if k != EnvPassword {
						t.Fatalf("Getenv(%q), want %q", k, EnvPassword)
					}
					return tc.env
				},
				KeyringGet: func(key string) (string, error) {
					if key != "alice@imap.example.com" {
						t.Fatalf("KeyringGet(%q), want alice@imap.example.com", key)
					}
					return tc.keyringPW, tc.keyringErr
				},
				Prompt: func(label string) (string, error) {
					promptedLabel = label
					return tc.promptPW, tc.promptErr
				},
			}
			got, source, err := r.Resolve("alice", "imap.example.com")
			if tc.wantErr {
				if err == nil {
					t.Fatal("Resolve() = nil error, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() = %v", err)
			}
			if got != tc.want || source != tc.wantSource {
				t.Fatalf("Resolve() = (%q, %q), want (%q, %q)", got, source, tc.want, tc.wantSource)
			}
			if tc.wantSource == "prompt" && promptedLabel == "" {
				t.Fatal("prompt label was empty")
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := &Store{
		Dir:      t.TempDir(),
		Backends: []keyring.BackendType{keyring.FileBackend},
	}
	key := Key("bob", "mail.example.org")

	if err := s.Set(key, "hunter2"); err != nil {
		t.Fatalf("Set() = %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("Get() = %q, want %q", got, "hunter2")
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := s.Get(key); err == nil {
		t.Fatal("Get() after Delete() = nil error, want error")
	}
}
