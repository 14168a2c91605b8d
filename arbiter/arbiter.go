package arbiter

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
)

// highSignalScore marks prefilter scores loud enough that silently dropping
// the item on chain exhaustion deserves a warning.
const highSignalScore = 0.9

// Decision is the arbiter's answer for one item.
type Decision struct {
	Verdict Verdict
	Reason  string
	// Model is the model spec that produced the verdict; empty when the
	// whole chain was exhausted
	Model string
	// Fallback is true when a non-primary model answered
	Fallback bool
}

type cooldown struct {
	until time.Time
	daily bool
	setAt time.Time
}

// Arbiter walks the configured model chain until one model answers. Models
// that rate-limit with a long wait go on cooldown and are skipped until it
// expires; every cooldown clears when the UTC date rolls over.
type Arbiter struct {
	registry   *Registry
	chain      []string
	cfg        config.ArbiterConfig
	guidelines string
	limiter    *rate.Limiter
	tracker    *UsageTracker
	logger     *zap.SugaredLogger

	mu         sync.Mutex
	cooldowns  map[string]cooldown
	dailyCalls int
	callDate   string // UTC day the counter belongs to

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an arbiter. The guidelines file becomes the system prompt
// verbatim and is required.
func New(cfg config.ArbiterConfig, registry *Registry, tracker *UsageTracker, logger *zap.SugaredLogger) (*Arbiter, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	raw, err := os.ReadFile(cfg.GuidelinesPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read guidelines file %s", cfg.GuidelinesPath)
	}
	guidelines := strings.TrimSpace(string(raw))
	if guidelines == "" {
		return nil, errors.Newf("guidelines file %s is empty", cfg.GuidelinesPath)
	}

	chain := make([]string, 0, len(cfg.Fallbacks)+1)
	for _, spec := range append([]string{cfg.Model}, cfg.Fallbacks...) {
		if spec == "" || slices.Contains(chain, spec) {
			continue
		}
		chain = append(chain, spec)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Arbiter{
		registry:   registry,
		chain:      chain,
		cfg:        cfg,
		guidelines: guidelines,
		limiter:    limiter,
		tracker:    tracker,
		logger:     logger,
		cooldowns:  make(map[string]cooldown),
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

// Decide judges one escalated item. On chain exhaustion it returns a BENIGN
// decision alongside ErrModelUnavailable so the caller can both proceed and
// know no model actually looked at the item.
func (a *Arbiter) Decide(ctx context.Context, item Item) (*Decision, error) {
	prompt := buildUserPrompt(item, a.cfg.ParentMaxChars)

	for i, spec := range a.chain {
		if a.onCooldown(spec) {
			a.logger.Debugw("Skipping model on cooldown", "model", spec)
			continue
		}

		backend, model, err := a.registry.Resolve(spec)
		if err != nil {
			a.logger.Debugw("Model unavailable", "model", spec, "error", err)
			continue
		}

		dec, err := a.tryModel(ctx, spec, backend, model, prompt, item)
		if err == nil {
			dec.Fallback = i > 0
			if dec.Fallback {
				a.logger.Infow("Fallback model answered", "model", spec, "primary", a.chain[0])
			}
			return dec, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "arbiter cancelled")
		}
		a.logger.Warnw("Model failed, trying next in chain", "model", spec, "error", err)
	}

	if item.TopScore >= highSignalScore {
		a.logger.Warnw("Arbiter chain exhausted on high-signal item",
			"item_id", item.ID,
			"top_score", item.TopScore,
			"trigger", item.Trigger,
		)
	}
	return &Decision{
		Verdict: VerdictBenign,
		Reason:  "all arbiter models unavailable",
	}, errors.WithStack(errors.ErrModelUnavailable)
}

// tryModel runs one model with bounded same-model retries. Short rate-limit
// waits sleep and retry; long waits and daily quotas put the model on
// cooldown and fail over.
func (a *Arbiter) tryModel(ctx context.Context, spec string, backend Backend, model, prompt string, item Item) (*Decision, error) {
	shortWaitMax := time.Duration(a.cfg.ShortWaitSeconds) * time.Second
	maxRetries := a.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "rate limiter wait interrupted")
			}
		}

		reqTime := a.now()
		calls := a.bumpDailyCalls()
		resp, err := backend.Complete(ctx, model, Request{
			System:      a.guidelines,
			User:        prompt,
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
		})
		if err == nil {
			a.clearCooldown(spec)
			a.trackCall(item.ID, spec, backend.Name(), reqTime, &resp.Usage, nil)

			verdict, reason := parseVerdict(resp.Content)
			a.logger.Debugw("Arbiter verdict",
				"item_id", item.ID,
				"model", spec,
				"verdict", verdict,
				"tokens", resp.Usage.TotalTokens,
				"daily_calls", calls,
			)
			return &Decision{Verdict: verdict, Reason: reason, Model: spec}, nil
		}

		lastErr = err
		a.trackCall(item.ID, spec, backend.Name(), reqTime, nil, err)

		var rle *errors.RateLimitError
		if errors.As(err, &rle) {
			wait := rle.RetryAfter
			if wait <= 0 {
				wait = time.Duration(attempt+1) * 5 * time.Second
			}

			if rle.Daily {
				a.setDailyCooldown(spec, wait)
				return nil, err
			}
			if wait <= shortWaitMax && attempt < maxRetries {
				a.logger.Debugw("Short rate-limit wait, retrying same model",
					"model", spec, "wait", wait, "attempt", attempt+1)
				if err := a.sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			a.setCooldown(spec, wait)
			return nil, err
		}

		if isRetryableError(err) && attempt < maxRetries {
			delay := time.Duration(attempt+1) * time.Second
			a.logger.Debugw("Retryable error, backing off", "model", spec, "delay", delay)
			if err := a.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, err
	}
	return nil, lastErr
}

// onCooldown checks and lazily expires a model's cooldown.
func (a *Arbiter) onCooldown(spec string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.cooldowns[spec]
	if !ok {
		return false
	}

	now := a.now()
	// Every cooldown clears when the UTC date rolls over: daily quotas reset
	// then, and per-minute limits from yesterday are long stale
	y1, m1, d1 := c.setAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		delete(a.cooldowns, spec)
		return false
	}
	if now.After(c.until) {
		delete(a.cooldowns, spec)
		return false
	}
	return true
}

func (a *Arbiter) setCooldown(spec string, wait time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.cooldowns[spec] = cooldown{until: now.Add(wait), setAt: now}
	a.logger.Infow("Model placed on cooldown", "model", spec, "until", now.Add(wait))
}

// setDailyCooldown holds the model for at least an hour; the UTC rollover
// check can release it earlier.
func (a *Arbiter) setDailyCooldown(spec string, wait time.Duration) {
	if wait < time.Hour {
		wait = time.Hour
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.cooldowns[spec] = cooldown{until: now.Add(wait), daily: true, setAt: now}
	a.logger.Warnw("Model daily quota exhausted, on cooldown", "model", spec, "until", now.Add(wait))
}

// bumpDailyCalls counts LLM requests per UTC day, resetting with the date.
func (a *Arbiter) bumpDailyCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	day := a.now().UTC().Format("2006-01-02")
	if day != a.callDate {
		a.callDate = day
		a.dailyCalls = 0
	}
	a.dailyCalls++
	return a.dailyCalls
}

// DailyCalls returns how many LLM requests have gone out this UTC day.
func (a *Arbiter) DailyCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().UTC().Format("2006-01-02") != a.callDate {
		return 0
	}
	return a.dailyCalls
}

func (a *Arbiter) clearCooldown(spec string) {
	a.mu.Lock()
	delete(a.cooldowns, spec)
	a.mu.Unlock()
}

func (a *Arbiter) trackCall(itemID, spec, backendName string, reqTime time.Time, usage *Usage, callErr error) {
	if a.tracker == nil {
		return
	}

	respTime := a.now()
	rec := &UsageRecord{
		OperationType:     "arbiter",
		ItemID:            itemID,
		ModelName:         spec,
		Backend:           backendName,
		RequestTimestamp:  reqTime,
		ResponseTimestamp: &respTime,
		Success:           callErr == nil,
	}
	if usage != nil {
		tokens := usage.TotalTokens
		rec.TokensUsed = &tokens
	}
	if callErr != nil {
		msg := callErr.Error()
		rec.ErrorMessage = &msg
	}

	if err := a.tracker.Track(rec); err != nil {
		a.logger.Warnw("Failed to track usage", "error", err, "model", spec)
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sleep interrupted")
	case <-timer.C:
		return nil
	}
}
