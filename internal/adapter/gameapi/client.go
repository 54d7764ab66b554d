package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/port"
)

// Client talks to the launcher backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *zap.Logger
}

// Ensure Client implements port.GameAPI
var _ port.GameAPI = (*Client)(nil)

// ClientConfig contains client configuration
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration // per request (default: 30s)
	RequestsPerSecond float64       // 0 disables throttling
	UserAgent         string
	HTTPClient        *http.Client // overrides Timeout when set
}

// NewClient creates a new backend client
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: server url: %v", domain.ErrInvalidInput, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: server url %q must be an absolute http(s) url", domain.ErrInvalidInput, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    base,
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// BaseURL returns the server root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login authenticates a player
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(loginRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	var session domain.Session
	if err := c.doJSON(ctx, "login", http.MethodPost, loginPath, "", body, &session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, fmt.Errorf("login: %w: response carried no token", domain.ErrAuthFailed)
	}

	c.logger.Debug("logged in", zap.String("username", session.Username), zap.String("player_id", session.PlayerID))
	return &session, nil
}

// RefreshToken exchanges token for a fresh session
func (c *Client) RefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}

	var session domain.Session
	if err := c.doJSON(ctx, "refresh token", http.MethodPost, refreshPath, token, nil, &session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, fmt.Errorf("refresh token: %w: response carried no token", domain.ErrAuthFailed)
	}
	return &session, nil
}

// LatestVersion fetches metadata of the newest game build
func (c *Client) LatestVersion(ctx context.Context) (*domain.GameVersion, error) {
	var v domain.GameVersion
	if err := c.doJSON(ctx, "check version", http.MethodGet, versionPath, "", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DownloadURL resolves the archive URL for v. An empty download_url falls
// back to the versioned download endpoint; a relative one is resolved
// against the server.
func (c *Client) DownloadURL(v *domain.GameVersion) (string, error) {
	if v == nil || v.Version == "" {
		return "", fmt.Errorf("%w: version is required", domain.ErrInvalidInput)
	}

	if v.DownloadURL == "" {
		u := c.baseURL.JoinPath(downloadPath)
		u.RawQuery = url.Values{"version": {v.Version}}.Encode()
		return u.String(), nil
	}

	ref, err := url.Parse(v.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("%w: download url: %v", domain.ErrInvalidInput, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	root := *c.baseURL
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
	}
	return root.ResolveReference(ref).String(), nil
}

// doJSON sends a request and decodes a 2xx JSON response into out
func (c *Client) doJSON(ctx context.Context, op, method, path, token string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, wrapTransportErr(ctx, err))
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, wrapTransportErr(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		c.logger.Debug("backend rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRespBodySize)).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func wrapTransportErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(domain.ErrCanceled, ctxErr)
	}
	return errors.Join(domain.ErrNetwork, err)
}
