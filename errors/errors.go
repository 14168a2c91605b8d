// Package errors provides error handling for modsieve.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, error wrapping, and structured details, plus the sentinel errors
// and typed rate-limit error used across the moderation pipeline.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	var rle *errors.RateLimitError
//	if errors.As(err, &rle) {
//	    wait := rle.RetryAfter
//	}
package errors

import (
	"fmt"
	"time"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors for use with errors.Is() across the pipeline.
var (
	// ErrNotFound indicates the requested item no longer exists upstream
	ErrNotFound = New("not found")

	// ErrRateLimited indicates an upstream service refused the call due to rate limits
	ErrRateLimited = New("rate limited")

	// ErrQuotaExhausted indicates the daily quota for a model is fully spent
	ErrQuotaExhausted = New("quota exhausted")

	// ErrModelUnavailable indicates every model in the arbiter chain is exhausted
	ErrModelUnavailable = New("no model available")

	// ErrInvalidConfig indicates the configuration failed validation at startup
	ErrInvalidConfig = New("invalid configuration")
)

// RateLimitError carries a structured retry-after duration extracted from an
// upstream rate-limit response. RetryAfter of zero means the provider gave no
// usable wait time and the caller should fall back to its own backoff.
type RateLimitError struct {
	Model      string
	RetryAfter time.Duration
	Daily      bool // provider signalled the per-day quota is exhausted
	Cause      error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited on %s, retry after %s", e.Model, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited on %s", e.Model)
}

func (e *RateLimitError) Unwrap() error {
	if e.Daily {
		return ErrQuotaExhausted
	}
	if e.Cause != nil {
		return e.Cause
	}
	return ErrRateLimited
}

// NewRateLimitError builds a typed rate-limit error for the given model.
func NewRateLimitError(model string, retryAfter time.Duration, daily bool, cause error) *RateLimitError {
	return &RateLimitError{Model: model, RetryAfter: retryAfter, Daily: daily, Cause: cause}
}

// IsRateLimit reports whether err is or wraps a rate-limit condition.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	return As(err, &rle) || Is(err, ErrRateLimited) || Is(err, ErrQuotaExhausted)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
