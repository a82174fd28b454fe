// Package config loads the session-configuration file: everything the
// session provider needs to reach one mailbox on one server.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Server identifies the IMAP endpoint.
type Server struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	StartTLS bool   `mapstructure:"starttls" yaml:"starttls"`
}

// Auth carries the login credentials. Password may be empty; resolution then
// falls through to the environment, the OS keyring, and finally a terminal
// prompt.
type Auth struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// History configures the local run-history database.
type History struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the full session-configuration file.
type Config struct {
	Server  Server  `mapstructure:"server" yaml:"server"`
	Auth    Auth    `mapstructure:"auth" yaml:"auth"`
	Mailbox string  `mapstructure:"mailbox" yaml:"mailbox"`
	History History `mapstructure:"history" yaml:"history"`
}

// DefaultPath returns ~/.config/imapurge/config.yaml, or a working-directory
// fallback when the home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "imapurge.yaml")
	}
	return filepath.Join(home, ".config", "imapurge", "config.yaml")
}

func defaults() *Config {
	return &Config{
		Server:  Server{Port: 993, TLS: true},
		Mailbox: "INBOX",
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("server.port", 993)
	v.SetDefault("server.tls", true)
	v.SetDefault("server.starttls", false)
	v.SetDefault("mailbox", "INBOX")
	return v
}

// Load reads the configuration at path. A missing or unparseable file is an
// error; callers that can fall back to defaults use LoadDefault.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault reads DefaultPath() if it exists and returns built-in defaults
// otherwise. Only an unparseable file is an error.
func LoadDefault() (*Config, error) {
	path := DefaultPath()
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &pathErr) || errors.As(err, &notFound) {
			return defaults(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports whether the configuration can open a session.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Auth.Username == "" {
		return errors.New("auth.username is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Addr returns the dialable host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
