// Package credential resolves the mailbox password when the configuration
// file does not carry one: environment first, then the OS keyring, then an
// interactive terminal prompt.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "imapurge"

// Store wraps the OS keyring for mailbox passwords. The zero value uses the
// platform default backend chain; Dir and Backends narrow it for tests.
type Store struct {
	Dir      string
	Backends []keyring.BackendType
}

func (s *Store) open() (keyring.Keyring, error) {
	backends := s.Backends
	if backends == nil {
		backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}
	dir := s.Dir
	if dir == "" {
		dir = "~/.config/imapurge/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          backends,
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Key names the keyring entry for one account on one server.
func Key(username, host string) string {
	return username + "@" + host
}

// Get retrieves a stored password.
func (s *Store) Get(key string) (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a password under key.
func (s *Store) Set(key, value string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a stored password.
func (s *Store) Delete(key string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
