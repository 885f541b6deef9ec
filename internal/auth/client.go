package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"safeskin/internal/domain"
	"safeskin/internal/httpx"
)

// ErrInvalidCredentials is returned for a rejected email/password pair.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Provider error codes meaning the user abandoned a federated sign-in.
// These are benign: the caller gets a nil user and no error.
const (
	codePopupClosed    = "popup_closed_by_user"
	codePopupCancelled = "cancelled_popup_request"

	codeInvalidCredentials = "invalid_credentials"
)

// Client talks to the external identity provider and owns the local session
// state: the current user, the persisted token and the auth-state listeners.
type Client struct {
	baseURL  string
	apiKey   string
	credPath string

	mu        sync.Mutex
	listeners map[int]func(*domain.User)
	nextID    int
	current   *domain.User
	token     string
}

func NewClient(baseURL, apiKey, credentialsPath string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		credPath:  credentialsPath,
		listeners: map[int]func(*domain.User){},
	}
}

// OnAuthStateChanged registers a listener invoked on every auth-state
// transition (sign-in, sign-out, restore). The returned function removes the
// listener again.
func (c *Client) OnAuthStateChanged(fn func(*domain.User)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// CurrentUser returns the user of the active session, or nil.
func (c *Client) CurrentUser() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Client) notify(user *domain.User, token string) {
	c.mu.Lock()
	c.current = user
	c.token = token
	fns := make([]func(*domain.User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

type providerUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IDToken     string `json:"id_token"`
}

type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*providerUser, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", fmt.Errorf("identity provider: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var perr providerError
		_ = json.Unmarshal(raw, &perr)
		return nil, perr.Error.Code, fmt.Errorf("identity provider: status %d: %s", resp.StatusCode, perr.Error.Message)
	}

	var user providerUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, "", fmt.Errorf("identity provider: decode response: %w", err)
	}
	return &user, "", nil
}

func (c *Client) completeSignIn(user *providerUser) (*domain.User, error) {
	u := &domain.User{UID: user.UID, Email: user.Email, DisplayName: user.DisplayName}
	if err := c.saveCredentials(u, user.IDToken); err != nil {
		return nil, err
	}
	c.notify(u, user.IDToken)
	return u, nil
}

// SignUp registers a new email/password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	user, _, err := c.post(ctx, "/v1/signup", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return c.completeSignIn(user)
}

// SignIn authenticates an existing email/password account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	user, code, err := c.post(ctx, "/v1/signin", map[string]string{"email": email, "password": password})
	if err != nil {
		if code == codeInvalidCredentials {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return c.completeSignIn(user)
}

// SignInWithProvider runs the provider's federated sign-in flow. A sign-in
// the user cancelled or closed is not an error: the result is (nil, nil) and
// no session is established.
func (c *Client) SignInWithProvider(ctx context.Context, provider string) (*domain.User, error) {
	user, code, err := c.post(ctx, "/v1/signin/idp", map[string]string{"provider": provider})
	if err != nil {
		if code == codePopupClosed || code == codePopupCancelled {
			return nil, nil
		}
		return nil, err
	}
	return c.completeSignIn(user)
}

// SignOut ends the provider session and always clears the local one, even
// when the provider call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	var reqErr error
	if token != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/signout", nil)
		if err == nil {
			req.Header.Set("apikey", c.apiKey)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := httpx.Client().Do(req)
			if err != nil {
				reqErr = fmt.Errorf("identity provider: %w", err)
			} else {
				resp.Body.Close()
			}
		}
	}

	c.clearCredentials()
	c.notify(nil, "")
	return reqErr
}

// Restore revalidates persisted credentials and pushes the first auth-state
// notification: the restored user, or nil when no valid session exists. A
// session the provider no longer accepts is discarded.
func (c *Client) Restore(ctx context.Context) error {
	user, token, ok := c.loadCredentials()
	if !ok {
		c.notify(nil, "")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/user", nil)
	if err != nil {
		c.notify(nil, "")
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpx.Client().Do(req)
	if err != nil {
		c.notify(nil, "")
		return fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.clearCredentials()
		c.notify(nil, "")
		return nil
	}

	var fresh providerUser
	if err := json.NewDecoder(resp.Body).Decode(&fresh); err == nil && fresh.UID != "" {
		user = &domain.User{UID: fresh.UID, Email: fresh.Email, DisplayName: fresh.DisplayName}
	}
	c.notify(user, token)
	return nil
}

type storedCredentials struct {
	IDToken string      `json:"id_token"`
	User    domain.User `json:"user"`
}

func (c *Client) saveCredentials(user *domain.User, token string) error {
	if c.credPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.credPath), 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.Marshal(storedCredentials{IDToken: token, User: *user})
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.credPath, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (c *Client) loadCredentials() (*domain.User, string, bool) {
	if c.credPath == "" {
		return nil, "", false
	}
	data, err := os.ReadFile(c.credPath)
	if err != nil {
		return nil, "", false
	}
	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil || creds.IDToken == "" {
		return nil, "", false
	}
	user := creds.User
	return &user, creds.IDToken, true
}

func (c *Client) clearCredentials() {
	if c.credPath != "" {
		os.Remove(c.credPath)
	}
}
