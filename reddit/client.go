// Package reddit is the comment stream source and moderation actuator: OAuth
// script-app authentication, listing fetches, report/remove calls, and the
// moderation log.
package reddit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/internal/httpclient"
)

const (
	defaultAuthURL = "https://www.reddit.com"
	defaultAPIURL  = "https://oauth.reddit.com"
)

// Client is an authenticated reddit API client for a script app acting as a
// moderator account.
type Client struct {
	cfg     config.RedditConfig
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	// overridable for tests
	authURL string
	apiURL  string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a reddit client. No network traffic happens until the
// first call.
func NewClient(cfg config.RedditConfig, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    httpclient.NewWithOptions(timeout, httpclient.Options{AllowLocal: true}),
		limiter: limiter,
		logger:  logger,
		authURL: defaultAuthURL,
		apiURL:  defaultAPIURL,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// ensureToken fetches or refreshes the OAuth token (password grant).
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", errors.Wrap(err, "malformed token response")
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return "", errors.Newf("authentication rejected: %s", tok.Error)
	}

	c.token = tok.AccessToken
	// refresh a minute early
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	c.logger.Debugw("Obtained reddit token", "expires_in", tok.ExpiresIn)
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// do runs one authenticated API call under the rate limiter. A 401 triggers
// exactly one re-auth retry. A 429 surfaces as a typed rate-limit error.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait interrupted")
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}

		var body io.Reader
		if form != nil && method != http.MethodGet {
			body = strings.NewReader(form.Encode())
		}

		endpoint := c.apiURL + path
		if form != nil && method == http.MethodGet {
			endpoint += "?" + form.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "request failed")
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response")
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			c.invalidateToken()
			continue
		case resp.StatusCode == http.StatusTooManyRequests:
			wait, _ := time.ParseDuration(resp.Header.Get("X-Ratelimit-Reset") + "s")
			return nil, &errors.RateLimitError{Model: "reddit", RetryAfter: wait}
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.WithStack(errors.ErrNotFound)
		case resp.StatusCode != http.StatusOK:
			return nil, errors.Newf("reddit API %s returned status %d: %s", path, resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}
	return nil, errors.New("authentication retry exhausted")
}
