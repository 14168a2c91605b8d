package arbiter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationTokenRe matches Go-style duration strings embedded in provider
// error text ("retry in 2m5s", "24h0m0s").
var durationTokenRe = regexp.MustCompile(`\b(?:\d+(?:\.\d+)?h)?(?:\d+(?:\.\d+)?m)?(?:\d+(?:\.\d+)?s)\b|\b\d+(?:\.\d+)?[hm]\b`)

// retryDelayRe extracts the structured retryDelay field some providers embed
// in 429 error payloads.
var retryDelayRe = regexp.MustCompile(`"retryDelay"\s*:\s*"([^"]+)"`)

// parseRetryAfterHeader parses a Retry-After header: delta-seconds or an
// HTTP date.
func parseRetryAfterHeader(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := time.Parse(time.RFC1123, v); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// parseRetryAfterBody digs a wait hint out of a 429 response body: the
// structured retryDelay field first, then any duration-looking token in the
// error text.
func parseRetryAfterBody(body string) (time.Duration, bool) {
	if m := retryDelayRe.FindStringSubmatch(body); m != nil {
		if d, err := time.ParseDuration(m[1]); err == nil && d >= 0 {
			return d, true
		}
	}

	// Restrict the text scan to the error message so timestamps elsewhere in
	// the payload do not look like durations
	text := body
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Error.Message != "" {
		text = envelope.Error.Message
	}

	if tok := durationTokenRe.FindString(text); tok != "" {
		if d, err := time.ParseDuration(tok); err == nil && d >= 0 {
			return d, true
		}
	}
	return 0, false
}

// isDailyQuota reports whether a 429 payload indicates daily-quota
// exhaustion rather than a short-term rate limit.
func isDailyQuota(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"per day", "perday", "daily", "quota exceeded", "free_tier_requests"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
