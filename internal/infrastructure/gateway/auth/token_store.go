// Package auth holds credentials for the record service and produces valid
// bearer tokens on demand.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const tokenFileName = "tokens.json"

// expirySkew treats tokens expiring within this window as already expired so
// a request never carries a token that dies in flight
const expirySkew = 30 * time.Second

// Tokens is an access/refresh pair with the access token's absolute expiry
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsExpired reports whether the access token is unusable, applying the skew
func (t Tokens) IsExpired(now time.Time) bool {
	return !now.Add(expirySkew).Before(t.ExpiresAt)
}

// TokenStore persists tokens as a mode-0600 file under the application home
type TokenStore struct {
	fs   afero.Fs
	path string
}

func NewTokenStore(fs afero.Fs, homeDir string) *TokenStore {
	return &TokenStore{fs: fs, path: filepath.Join(homeDir, tokenFileName)}
}

// Save overwrites any stored tokens
func (s *TokenStore) Save(tokens Tokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("prepare token directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("write tokens: %w", err)
	}
	return nil
}

// Load returns the stored tokens, or nil when none were ever saved
func (s *TokenStore) Load() (*Tokens, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tokens: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	return &tokens, nil
}

// Clear removes stored tokens; clearing an empty store is not an error
func (s *TokenStore) Clear() error {
	err := s.fs.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tokens: %w", err)
	}
	return nil
}
