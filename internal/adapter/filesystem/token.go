package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/port"
)

const tokenFileName = ".token"

// TokenFile stores the session token in a private file
type TokenFile struct {
	path string
}

// Ensure TokenFile implements port.TokenStore
var _ port.TokenStore = (*TokenFile)(nil)

// NewTokenFile creates a token store inside dataDir
func NewTokenFile(dataDir string) *TokenFile {
	return &TokenFile{path: filepath.Join(dataDir, tokenFileName)}
}

// Path returns the token file location
func (t *TokenFile) Path() string {
	return t.path
}

// SaveToken writes the token with owner-only permissions
func (t *TokenFile) SaveToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("%w: failed to create data dir: %w", domain.ErrFilesystem, err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0600); err != nil {
		return fmt.Errorf("%w: failed to write token: %w", domain.ErrFilesystem, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to store token: %w", domain.ErrFilesystem, err)
	}
	return nil
}

// LoadToken returns the stored token or domain.ErrNotLoggedIn
func (t *TokenFile) LoadToken() (string, error) {
	b, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return "", domain.ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token: %w", domain.ErrFilesystem, err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", domain.ErrNotLoggedIn
	}
	return token, nil
}

// ClearToken removes the stored token
func (t *TokenFile) ClearToken() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to clear token: %w", domain.ErrFilesystem, err)
	}
	return nil
}
