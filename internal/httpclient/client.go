// Package httpclient provides the shared outbound HTTP client for modsieve.
//
// Every upstream the pipeline talks to (the comment stream, ML scorers, LLM
// backends, notification webhooks) goes through a Client with a bounded
// timeout, a redirect cap, and an http/https scheme allowlist. Local scorers
// (e.g. a detoxify server on localhost) opt in via AllowLocal.
package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modsieve/modsieve/errors"
)

const defaultMaxRedirects = 5

// Client wraps http.Client with URL validation and a hard timeout.
type Client struct {
	*http.Client
	allowLocal   bool
	maxRedirects int
}

// Options customizes client behavior.
type Options struct {
	AllowLocal   bool // permit localhost/127.0.0.1 targets (local inference servers)
	MaxRedirects int  // 0 = default (5)
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	return NewWithOptions(timeout, Options{})
}

// NewWithOptions creates a client with custom options.
func NewWithOptions(timeout time.Duration, opts Options) *Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}

	c := &Client{
		Client:       &http.Client{Timeout: timeout},
		allowLocal:   opts.AllowLocal,
		maxRedirects: maxRedirects,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return c
}

// Do validates the request URL and then delegates to the embedded client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Newf("scheme %q not allowed", scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if !c.allowLocal && isLocalhost(hostname) {
		return errors.Newf("localhost target %q blocked (set AllowLocal for local scorers)", hostname)
	}

	return nil
}

func isLocalhost(hostname string) bool {
	h := strings.ToLower(hostname)
	return h == "localhost" || h == "127.0.0.1" || h == "::1" || strings.HasSuffix(h, ".localhost")
}
