package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// secretEntropyBytes is 512 bits of key material before encoding.
const secretEntropyBytes = 64

// SecretStore yields the single process-wide signing secret, creating it on
// first use. Implementations must never overwrite an existing secret.
type SecretStore interface {
	Obtain(ctx context.Context) ([]byte, error)
}

// GenerateSecret returns fresh key material as unpadded base64url text.
func GenerateSecret() ([]byte, error) {
	raw := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(raw)))
	base64.RawURLEncoding.Encode(out, raw)
	return out, nil
}

// FileSecretStore keeps the secret in a single owner-only file.
type FileSecretStore struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	secret []byte
}

// NewFileSecretStore returns a store backed by the file at path.
func NewFileSecretStore(path string, logger *zap.Logger) *FileSecretStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSecretStore{path: path, logger: logger}
}

// Obtain loads the persisted secret, or creates it when no file exists yet.
// A concurrent creator that wins the race is honoured: its value is reloaded.
func (s *FileSecretStore) Obtain(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret != nil {
		return s.secret, nil
	}

	secret, err := s.load()
	if errors.Is(err, fs.ErrNotExist) {
		secret, err = s.create()
		if errors.Is(err, fs.ErrExist) {
			s.logger.Info("signing secret created concurrently; reloading", zap.String("path", s.path))
			secret, err = s.load()
		}
	}
	if err != nil {
		return nil, err
	}

	s.secret = secret
	return secret, nil
}

func (s *FileSecretStore) load() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrSecretUnavailable, s.path, err)
	}
	secret := bytes.TrimSpace(raw)
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrSecretUnavailable, s.path)
	}
	return secret, nil
}

// create writes the secret to a temp file and hard-links it into place, so the
// final path either does not exist or holds a complete value.
func (s *FileSecretStore) create() ([]byte, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file in %s: %v", ErrSecretUnavailable, dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(secret); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: write secret: %v", ErrSecretUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: sync secret: %v", ErrSecretUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close secret: %v", ErrSecretUnavailable, err)
	}

	if err := os.Link(tmpName, s.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: install %s: %v", ErrSecretUnavailable, s.path, err)
	}

	if err := os.Chmod(s.path, 0o600); err != nil {
		s.logger.Warn("unable to restrict signing secret permissions", zap.String("path", s.path), zap.Error(err))
	}

	s.logger.Info("generated new signing secret", zap.String("path", s.path))
	return secret, nil
}
