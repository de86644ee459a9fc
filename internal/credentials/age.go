package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// AgeStore keeps a secret key in a file encrypted with age's scrypt
// passphrase recipient. The file is ASCII armored so it can be inspected
// and copied around safely.
type AgeStore struct {
	path string
}

func NewAgeStore(path string) *AgeStore {
	return &AgeStore{path: path}
}

// Seal encrypts secret with passphrase and replaces the file contents.
func (s *AgeStore) Seal(passphrase, secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, secret); err != nil {
		return fmt.Errorf("writing encrypted secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted secret: %w", err)
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("finalizing armor: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating secret directory: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing secret file: %w", err)
	}
	return nil
}

// Open decrypts the secret with passphrase.
func (s *AgeStore) Open(passphrase string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoSecret, s.path)
		}
		return "", fmt.Errorf("reading secret file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt identity: %w", err)
	}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(data)), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	secret, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// IsSealed reports whether the secret file exists.
func (s *AgeStore) IsSealed() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
