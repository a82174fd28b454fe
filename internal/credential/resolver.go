package credential

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// EnvPassword is the environment variable consulted before the keyring.
const EnvPassword = "IMAPURGE_PASSWORD"

// Resolver walks the password sources in order: environment variable, OS
// keyring, interactive prompt. All lookups are injectable for tests.
type Resolver struct {
	Getenv     func(string) string
	KeyringGet func(key string) (string, error)
	Prompt     func(label string) (string, error)
}

// NewResolver returns a Resolver backed by the real environment, keyring,
// and terminal.
func NewResolver() *Resolver {
	store := &Store{}
	return &Resolver{
		Getenv:     os.Getenv,
		KeyringGet: store.Get,
		Prompt:     TerminalPrompt,
	}
}

// Resolve returns the password for username on host plus the source it came
// from ("environment", "keyring", or "prompt").
func (r *Resolver) Resolve(username, host string) (password, source string, err error) {
	if pw := r.Getenv(EnvPassword); pw != "" {
		return pw, "environment", nil
	}
	key := Key(username, host)
	if pw, getErr := r.KeyringGet(key); getErr == nil && pw != "" {
		return pw, "keyring", nil
	}
	pw, promptErr := r.Prompt(fmt.Sprintf("Password for %s", key))
	if promptErr != nil {
		return "", "", fmt.Errorf("no password for %s: set %s or store one in the keyring: %w",
			key, EnvPassword, promptErr)
	}
	if pw == "" {
		return "", "", fmt.Errorf("no password for %s: empty answer at prompt", key)
	}
	return pw, "prompt", nil
}

// TerminalPrompt reads a password without echo from the controlling
// terminal. It fails when stdin is not a terminal so non-interactive runs
// error out instead of hanging.
func TerminalPrompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
