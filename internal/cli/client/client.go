// Package client is the thin HTTP client the terminal commands use to talk
// to the envmgrd API. It decodes the response envelope and maps HTTP
// status codes onto the clierr sentinels so commands can branch with
// errors.Is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/envmgr/envmgr/internal/clierr"
)

// DefaultAPIURL is used when no apiUrl has been configured.
const DefaultAPIURL = "http://localhost:8080"

// Client talks to one envmgrd server with one bearer token. When a
// refresh token is attached via WithRefresh, an expired access token is
// rotated transparently and the request retried once.
type Client struct {
	baseURL  string
	token    string
	refresh  string
	onTokens func(Tokens) error
	http     *http.Client
}

// New creates a Client. token may be empty for unauthenticated calls.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithRefresh attaches a refresh token for transparent session rotation.
// persist, if non-nil, is called with every rotated token pair so the
// caller can store it.
func (c *Client) WithRefresh(refreshToken string, persist func(Tokens) error) *Client {
	c.refresh = refreshToken
	c.onTokens = persist
	return c
}

// envelope mirrors the server's response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Org is an organization the user belongs to.
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// Project is a project visible to the user.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// Environment is a deployment target within a project.
type Environment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Variable is one key/value entry; Value is masked in listings.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Tokens is the response to login and refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ImportResult reports which keys a dotenv import applied.
type ImportResult struct {
	Applied []string `json:"applied"`
	Count   int      `json:"count"`
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*Tokens, error) {
	var out Tokens
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": email, "password": password, "client": "envmgr-cli",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new token pair. The spent
// token is revoked server-side.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var out Tokens
	err := c.do(ctx, http.MethodPost, refreshPath,
		map[string]string{"refreshToken": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the refresh token server-side. Local state removal is
// the caller's job.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout",
		map[string]string{"refreshToken": refreshToken}, nil)
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orgs lists the organizations the user belongs to.
func (c *Client) Orgs(ctx context.Context) ([]Org, error) {
	var out []Org
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Projects lists the projects visible to the user in an organization.
func (c *Client) Projects(ctx context.Context, orgID string) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs/"+orgID+"/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Environments lists a project's environments.
func (c *Client) Environments(ctx context.Context, projectID string) ([]Environment, error) {
	var out []Environment
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/environments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEnvironment creates an environment in a project.
func (c *Client) CreateEnvironment(ctx context.Context, projectID, name string) (*Environment, error) {
	var out Environment
	err := c.do(ctx, http.MethodPost, "/api/v1/projects/"+projectID+"/environments",
		map[string]string{"name": name}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Variables lists an environment's variables with masked values.
func (c *Client) Variables(ctx context.Context, envID string) ([]Variable, error) {
	var out []Variable
	if err := c.do(ctx, http.MethodGet, "/api/v1/environments/"+envID+"/variables", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertVariable creates or overwrites one variable.
func (c *Client) UpsertVariable(ctx context.Context, envID, key, value string) (*Variable, error) {
	var out Variable
	err := c.do(ctx, http.MethodPut, "/api/v1/environments/"+envID+"/variables/"+key,
		map[string]string{"value": value}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns the environment as a plaintext dotenv document.
func (c *Client) Export(ctx context.Context, envID string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Import merges a dotenv document into the environment. Keys absent from
// the document are left untouched.
func (c *Client) Import(ctx context.Context, envID, content string) (*ImportResult, error) {
	var out ImportResult
	err := c.do(ctx, http.MethodPost, "/api/v1/environments/"+envID+"/variables/import",
		map[string]string{"content": content}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks plain reachability of the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// refreshPath is exempt from the rotate-and-retry path below.
const refreshPath = "/api/v1/auth/refresh"

// do issues one request and decodes the envelope. Transport failures map
// to ErrUnreachable; auth and visibility failures map to their sentinels.
// A 401 with a refresh token attached rotates the session and retries the
// request once before giving up.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	res, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusUnauthorized && c.refresh != "" && path != refreshPath {
		if rerr := c.rotateSession(ctx); rerr == nil {
			res.Body.Close()
			res, err = c.send(ctx, method, path, payload)
			if err != nil {
				return err
			}
		}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%s): %w", res.Status, err)
	}

	if res.StatusCode >= 400 || !env.Success {
		return statusError(res.StatusCode, env.Message)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", clierr.ErrUnreachable, c.baseURL, err)
	}
	return res, nil
}

// rotateSession swaps the attached refresh token for a fresh token pair
// and hands the pair to the persist callback.
func (c *Client) rotateSession(ctx context.Context) error {
	t, err := c.Refresh(ctx, c.refresh)
	if err != nil {
		return err
	}
	c.token = t.AccessToken
	c.refresh = t.RefreshToken
	if c.onTokens != nil {
		return c.onTokens(*t)
	}
	return nil
}

func statusError(status int, message string) error {
	var base error
	switch status {
	case http.StatusUnauthorized:
		base = clierr.ErrUnauthorized
	case http.StatusForbidden:
		base = clierr.ErrForbidden
	case http.StatusNotFound:
		base = clierr.ErrNotFound
	default:
		base = fmt.Errorf("server returned %d", status)
	}
	if message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}
