// Package arbiter sends escalated items to an LLM for the final
// report-or-benign call, with a fallback model chain, per-model cooldowns,
// and rate-limit-aware retries.
package arbiter

import (
	"context"
	"net"
	"strings"
	"syscall"

	"github.com/modsieve/modsieve/errors"
)

// Request is a single completion request to a backend.
type Request struct {
	System      string
	User        string
	Temperature *float64
	MaxTokens   *int
}

// Usage holds token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a backend completion result.
type Response struct {
	Content string
	Usage   Usage
}

// Backend is one LLM provider. Implementations return a typed
// *errors.RateLimitError on 429s so the arbiter can distinguish short waits
// from daily-quota exhaustion.
type Backend interface {
	Name() string
	// Complete runs one completion against the backend-local model name
	// (without the backend prefix)
	Complete(ctx context.Context, model string, req Request) (*Response, error)
	Available() bool
}

// Registry resolves prefixed model specs ("gemini/gemini-2.0-flash",
// "openrouter/openai/gpt-4o-mini") onto their backends.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds a registry over the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// Resolve splits a model spec into its backend and backend-local model name.
// The part before the first slash selects the backend; the rest, which may
// itself contain slashes, is the model.
func (r *Registry) Resolve(spec string) (Backend, string, error) {
	idx := strings.Index(spec, "/")
	if idx <= 0 || idx == len(spec)-1 {
		return nil, "", errors.Newf("malformed model spec %q: want backend/model", spec)
	}

	name, model := spec[:idx], spec[idx+1:]
	b, ok := r.backends[name]
	if !ok {
		return nil, "", errors.Newf("unknown backend %q in model spec %q", name, spec)
	}
	if !b.Available() {
		return nil, "", errors.Wrapf(errors.ErrModelUnavailable, "backend %q has no credentials", name)
	}
	return b, model, nil
}

// isRetryableError reports whether an error is transient network trouble
// worth retrying on the same model.
func isRetryableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	if opErr, ok := err.(*net.OpError); ok {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	}
	for _, s := range networkErrors {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
