// Package client is the Go session client for the portal's authentication
// API. It holds the token pair, refreshes the access token before it
// expires, and retries a request exactly once after an unexpected 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/traceveil/forensics-portal/internal/domain"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// refreshSkew is how long before expiry the access token is renewed, so
// in-flight requests never carry a token about to lapse.
const refreshSkew = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore

	mu       sync.RWMutex
	session  *Session
	remember bool

	refreshGroup singleflight.Group
}

func New(baseURL string, store TokenStore) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
	}

	// Pick up a remembered session from a previous run.
	if store != nil {
		if s, err := store.Load(); err == nil && s != nil {
			c.session = s
			c.remember = true
		}
	}

	return c
}

// Login authenticates and starts a session. With remember set, the session
// is persisted through the token store and survives process restarts;
// without it, the session lives in memory only.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*domain.UserInfo, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.postJSON(ctx, "/auth/login", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var auth domain.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	c.setSession(&Session{
		Token:        auth.Token,
		RefreshToken: auth.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second),
		User:         auth.User,
	}, remember)

	return auth.User, nil
}

// Logout drops the session locally.
func (c *Client) Logout() {
	c.clearAuth()
}

// User returns the cached profile from login, if any.
func (c *Client) User() *domain.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	return c.session.User
}

// Me fetches the current profile from the server.
func (c *Client) Me(ctx context.Context) (*domain.UserInfo, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out struct {
		User *domain.UserInfo `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return out.User, nil
}

// Do sends an authenticated request. The access token is refreshed ahead of
// expiry; if the server still answers 401 the pair is refreshed and the
// request retried once. A failed refresh ends the session.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.ensureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	token, err = c.refreshSession(ctx)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, token, body)
}

// ensureValidToken returns a usable access token, refreshing proactively
// when the cached one is at or near expiry.
func (c *Client) ensureValidToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		return "", ErrNotAuthenticated
	}
	if time.Until(s.ExpiresAt) > refreshSkew {
		return s.Token, nil
	}
	return c.refreshSession(ctx)
}

// refreshSession rotates the pair. Concurrent callers share one refresh
// round trip; everyone gets the same new token or the same error.
func (c *Client) refreshSession(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		c.mu.RLock()
		s := c.session
		c.mu.RUnlock()
		if s == nil {
			return "", ErrNotAuthenticated
		}

		resp, err := c.postJSON(ctx, "/auth/refresh", map[string]string{"refreshToken": s.RefreshToken})
		if err != nil {
			// A refresh that never completed is treated the same as a
			// rejected one: the session state is no longer trustworthy.
			c.clearAuth()
			return "", fmt.Errorf("session expired: %w", ErrNotAuthenticated)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// The refresh token is dead; the session cannot continue.
			c.clearAuth()
			return "", fmt.Errorf("session expired: %w", ErrNotAuthenticated)
		}

		var pair domain.TokenPairResponse
		if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
			c.clearAuth()
			return "", fmt.Errorf("decode refresh response: %w", err)
		}

		c.mu.Lock()
		remember := c.remember
		user := (*domain.UserInfo)(nil)
		if c.session != nil {
			user = c.session.User
		}
		c.session = &Session{
			Token:        pair.Token,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second),
			User:         user,
		}
		snapshot := *c.session
		c.mu.Unlock()

		if remember && c.store != nil {
			if err := c.store.Save(&snapshot); err != nil {
				return snapshot.Token, nil // session works, persistence is best effort
			}
		}
		return snapshot.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) setSession(s *Session, remember bool) {
	c.mu.Lock()
	c.session = s
	c.remember = remember
	c.mu.Unlock()

	if remember && c.store != nil {
		_ = c.store.Save(s)
	}
}

func (c *Client) clearAuth() {
	c.mu.Lock()
	c.session = nil
	c.remember = false
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Clear()
	}
}

func (c *Client) send(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.http.Do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("api error (%d)", resp.StatusCode)
}
