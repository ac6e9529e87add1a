package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
)

const accessTokenKey = "accessToken"

// refreshedTokenTTL applies when the refresh response carries no expiry of
// its own
const refreshedTokenTTL = time.Hour

// Provider implements output.TokenProvider. Valid access tokens are served
// from an in-memory cache keyed by their own TTL; on a miss the store is
// consulted and, if the stored token expired, the refresh endpoint is called
// with the refresh token. A failed refresh surfaces as ErrAuthExpired.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	store      *TokenStore
	cache      *gocache.Cache
	now        func() time.Time

	// one refresh at a time; concurrent callers wait and hit the cache
	refreshMu sync.Mutex
}

func NewProvider(baseURL string, timeout time.Duration, store *TokenStore) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		store:      store,
		cache:      gocache.New(gocache.NoExpiration, time.Minute),
		now:        time.Now,
	}
}

// ValidAccessToken returns a bearer token valid right now
func (p *Provider) ValidAccessToken(ctx context.Context) (string, error) {
	if token, ok := p.cache.Get(accessTokenKey); ok {
		return token.(string), nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if token, ok := p.cache.Get(accessTokenKey); ok {
		return token.(string), nil
	}

	tokens, err := p.store.Load()
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", fmt.Errorf("%w: not logged in", output.ErrAuthExpired)
	}

	if !tokens.IsExpired(p.now()) {
		p.cacheToken(*tokens)
		return tokens.AccessToken, nil
	}

	refreshed, err := p.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	if err := p.store.Save(*refreshed); err != nil {
		app.GetLogger().Warn("persist refreshed tokens: %v", err)
	}
	p.cacheToken(*refreshed)
	return refreshed.AccessToken, nil
}

// Login exchanges credentials for a token pair and stores it
func (p *Provider) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return err
	}

	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return &output.DecodingError{Err: err}
	}

	tokens := Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := p.store.Save(tokens); err != nil {
		return err
	}
	p.cacheToken(tokens)
	app.GetLogger().Info("logged in as %s", email)
	return nil
}

// Logout discards stored credentials
func (p *Provider) Logout() error {
	p.cache.Delete(accessTokenKey)
	return p.store.Clear()
}

// refresh trades the refresh token for a new pair. Any failure means the
// session is over and the user must log in again.
func (p *Provider) refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/refresh", nil)
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	body, err := p.do(req)
	if err != nil {
		app.GetLogger().Warn("token refresh failed: %v", err)
		return nil, fmt.Errorf("%w: refresh rejected", output.ErrAuthExpired)
	}

	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &output.DecodingError{Err: err}
	}

	app.GetLogger().Debug("access token refreshed")
	return &Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.now().Add(refreshedTokenTTL),
	}, nil
}

func (p *Provider) cacheToken(tokens Tokens) {
	ttl := tokens.ExpiresAt.Sub(p.now()) - expirySkew
	if ttl <= 0 {
		return
	}
	p.cache.Set(accessTokenKey, tokens.AccessToken, ttl)
}

func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return nil, &output.NetworkError{StatusCode: resp.StatusCode, Body: apiErr.Message}
		}
		return nil, &output.NetworkError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
