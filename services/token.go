package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tripplanner/models"
)

// tokenExpiryBuffer is how long before the provider's expiry a token is
// considered stale.
const tokenExpiryBuffer = 300 * time.Second

// TokenSource hands out bearer tokens for the booking provider.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

type TokenConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	MaxRetries   int
	BaseDelay    time.Duration

	// Now and Sleep default to the wall clock; tests replace them.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// TokenManager performs the OAuth2 client_credentials exchange and caches the
// result. Refreshes are serialized so concurrent sessions trigger one exchange.
type TokenManager struct {
	cfg TokenConfig

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenManager(cfg TokenConfig) *TokenManager {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &TokenManager{cfg: cfg}
}

// Token returns the cached token while it is fresh, otherwise exchanges the
// credentials. Any failure is reported as ErrAuthUnavailable.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.cfg.Now().Before(m.expiresAt.Add(-tokenExpiryBuffer)) {
		return m.token, nil
	}

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		token, ttl, wait, err := m.exchange(ctx)
		if err == nil {
			m.token = token
			m.expiresAt = m.cfg.Now().Add(ttl)
			return token, nil
		}
		lastErr = err
		if wait < 0 {
			break
		}
		if attempt == m.cfg.MaxRetries-1 {
			break
		}
		if wait == 0 {
			wait = m.cfg.BaseDelay * time.Duration(1<<attempt)
		}
		log.Printf("⚠️  Amadeus token attempt %d/%d failed: %v — retrying in %s", attempt+1, m.cfg.MaxRetries, err, wait)
		if err := m.cfg.Sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	return "", fmt.Errorf("%w: %v", models.ErrAuthUnavailable, lastErr)
}

// Invalidate drops the cached token so the next call performs an exchange.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// exchange performs a single credential exchange. wait tells the caller how
// to retry: negative means do not retry, zero means use exponential backoff,
// positive is the provider's own hint.
func (m *TokenManager) exchange(ctx context.Context) (token string, ttl, wait time.Duration, err error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/v1/security/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, -1, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, -1, ctx.Err()
		}
		return "", 0, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", 0, retryAfter(resp.Header.Get("Retry-After"), m.cfg.Now()),
			fmt.Errorf("token request rate limited (%d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", 0, 0, fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return "", 0, -1, fmt.Errorf("token request rejected (%d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, -1, fmt.Errorf("failed to parse token response: %v", err)
	}
	if result.AccessToken == "" {
		return "", 0, -1, fmt.Errorf("token response has no access_token")
	}
	return result.AccessToken, time.Duration(result.ExpiresIn) * time.Second, 0, nil
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date. Zero means the header is absent or unusable.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
