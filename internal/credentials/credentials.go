// Package credentials resolves the storage provider's secret key.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"mcs-go/internal/config"
)

// DefaultEnvVar holds the secret key when the credentials type is "env".
const DefaultEnvVar = "MCS_SECRET_KEY"

// ErrNoSecret is returned when a source has no secret key to offer.
var ErrNoSecret = errors.New("no secret key configured")

// Source yields the provider secret key.
type Source interface {
	SecretKey() (string, error)
}

// InlineSource returns a secret stored directly in the config file.
type InlineSource struct {
	secret string
}

func NewInlineSource(secret string) *InlineSource {
	return &InlineSource{secret: secret}
}

func (s *InlineSource) SecretKey() (string, error) {
	if s.secret == "" {
		return "", ErrNoSecret
	}
	return s.secret, nil
}

// EnvSource reads the secret from an environment variable on every call.
type EnvSource struct {
	name string
}

func NewEnvSource(name string) *EnvSource {
	if name == "" {
		name = DefaultEnvVar
	}
	return &EnvSource{name: name}
}

func (s *EnvSource) SecretKey() (string, error) {
	v := strings.TrimSpace(os.Getenv(s.name))
	if v == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoSecret, s.name)
	}
	return v, nil
}

// PassphraseFunc supplies the passphrase that unlocks an age-sealed secret.
// It is only called when the secret is actually needed.
type PassphraseFunc func() (string, error)

// AgeSource opens an AgeStore lazily with a passphrase.
type AgeSource struct {
	store      *AgeStore
	passphrase PassphraseFunc
}

func (s *AgeSource) SecretKey() (string, error) {
	if s.passphrase == nil {
		return "", fmt.Errorf("%s is sealed and no passphrase is available", s.store.path)
	}
	pass, err := s.passphrase()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return s.store.Open(pass)
}

// NewSourceFromConfig creates a Source based on the credentials config type.
func NewSourceFromConfig(cfg config.CredentialsConfig, passphrase PassphraseFunc) (Source, error) {
	switch cfg.Type {
	case "inline":
		return NewInlineSource(cfg.SecretKey), nil
	case "env", "":
		return NewEnvSource(cfg.EnvVar), nil
	case "age":
		if cfg.AgeFile == "" {
			return nil, fmt.Errorf("age credentials require age_file to be set")
		}
		return &AgeSource{store: NewAgeStore(cfg.AgeFile), passphrase: passphrase}, nil
	default:
		return nil, fmt.Errorf("unknown credentials type: %q", cfg.Type)
	}
}

// Compile-time checks
var (
	_ Source = (*InlineSource)(nil)
	_ Source = (*EnvSource)(nil)
	_ Source = (*AgeSource)(nil)
)
