// Package appwrite talks to the remote backend-as-a-service over REST. It
// implements both gateway ports: accounts and sessions through the account
// API, invoice documents through the database API. Only the semantic
// contract matters to callers; wire details stay in this package.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoicely/internal/gateway"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	Endpoint     string // e.g. https://cloud.appwrite.io/v1
	ProjectID    string
	APIKey       string // server key, used for document operations
	DatabaseID   string
	CollectionID string
	Timeout      time.Duration
}

type Client struct {
	http *http.Client
	cfg  Config
}

// Interface conformance
var (
	_ gateway.InvoiceGateway  = (*Client)(nil)
	_ gateway.IdentityGateway = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("missing endpoint")
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("missing project id")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}, nil
}

type sessionDoc struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Secret string `json:"secret"`
	Expire string `json:"expire"`
}

type accountDoc struct {
	ID    string `json:"$id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (c *Client) CreateAccount(ctx context.Context, email, password, name string) (gateway.Session, error) {
	body := map[string]string{
		"userId":   "unique()",
		"email":    email,
		"password": password,
		"name":     name,
	}
	var acct accountDoc
	if err := c.do(ctx, http.MethodPost, "/account", "", body, &acct); err != nil {
		return gateway.Session{}, fmt.Errorf("create account: %w", err)
	}
	// The account API logs the new user in with a separate call.
	return c.Login(ctx, email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (gateway.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var doc sessionDoc
	if err := c.do(ctx, http.MethodPost, "/account/sessions/email", "", body, &doc); err != nil {
		return gateway.Session{}, fmt.Errorf("login: %w", err)
	}
	return toSession(doc), nil
}

func (c *Client) CurrentUser(ctx context.Context, token string) (gateway.Identity, error) {
	var acct accountDoc
	if err := c.do(ctx, http.MethodGet, "/account", token, nil, &acct); err != nil {
		return gateway.Identity{}, fmt.Errorf("current user: %w", err)
	}
	return gateway.Identity{ID: acct.ID, Email: acct.Email, Name: acct.Name}, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodDelete, "/account/sessions/current", token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) IssueToken(ctx context.Context, token string) (string, error) {
	var out struct {
		JWT string `json:"jwt"`
	}
	if err := c.do(ctx, http.MethodPost, "/account/jwts", token, nil, &out); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return out.JWT, nil
}

// do performs one API call. session, when set, authenticates as that user;
// otherwise the server API key is sent so document operations work without
// a browser session.
func (c *Client) do(ctx context.Context, method, path, session string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.Endpoint, "/")+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	if session != "" {
		req.Header.Set("X-Appwrite-Session", session)
	} else if c.cfg.APIKey != "" {
		req.Header.Set("X-Appwrite-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError maps the remote rejection onto the gateway sentinels the rest of
// the application distinguishes.
func apiError(resp *http.Response) error {
	var envelope struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = gateway.ErrUnauthorized
	case http.StatusNotFound:
		kind = gateway.ErrNotFound
	case http.StatusConflict:
		kind = gateway.ErrConflict
	default:
		if envelope.Message == "" {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, envelope.Message)
	}
	if envelope.Message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, envelope.Message)
}

func toSession(doc sessionDoc) gateway.Session {
	token := doc.Secret
	if token == "" {
		token = doc.ID
	}
	expires, err := time.Parse(time.RFC3339, doc.Expire)
	if err != nil {
		expires = time.Now().Add(24 * time.Hour)
	}
	return gateway.Session{Token: token, UserID: doc.UserID, ExpiresAt: expires}
}
