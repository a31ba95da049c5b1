package scraper

import (
	"context"
	"time"

	"github.com/m3rciful/appleidbot/core/logger"
	"log/slog"
)

// OrchestratorConfig tunes the fetch-and-parse retry cycle. The jittered
// delays are part of the anti-blocking contract, not an optimization; zero
// values restore the defaults the inbox site tolerates.
type OrchestratorConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	PreFetchDelayMin time.Duration
	PreFetchDelayMax time.Duration
	PreParseDelayMin time.Duration
	PreParseDelayMax time.Duration
	RetryBackoffMin  time.Duration
	RetryBackoffMax  time.Duration

	// configured distinguishes an explicit all-zero config (tests) from a
	// zero value that should pick up defaults.
	configured bool
}

// DefaultOrchestratorConfig mirrors the delay ranges of the original bot.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxRetries:       2,
		PreFetchDelayMin: 500 * time.Millisecond,
		PreFetchDelayMax: 2500 * time.Millisecond,
		PreParseDelayMin: 300 * time.Millisecond,
		PreParseDelayMax: 1200 * time.Millisecond,
		RetryBackoffMin:  5 * time.Second,
		RetryBackoffMax:  15 * time.Second,
		configured:       true,
	}
}

// Explicit marks the config as fully specified so zero delays stay zero.
func (c OrchestratorConfig) Explicit() OrchestratorConfig {
	c.configured = true
	return c
}

// ProgressFunc receives a notice before each inter-retry wait: the attempt
// number just finished, the total attempt budget, and the wait duration.
type ProgressFunc func(attempt, total int, wait time.Duration)

// Orchestrator drives the bounded fetch-and-parse retry loop. An empty result
// is a normal outcome; only unexpected failures return an error.
type Orchestrator struct {
	fetcher   Fetcher
	extractor *Extractor
	cfg       OrchestratorConfig
}

// NewOrchestrator wires a fetcher and extractor under the given config.
func NewOrchestrator(fetcher Fetcher, extractor *Extractor, cfg OrchestratorConfig) *Orchestrator {
	if !cfg.configured {
		cfg = DefaultOrchestratorConfig()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Orchestrator{fetcher: fetcher, extractor: extractor, cfg: cfg}
}

// FetchVerificationMessages retries the fetch-and-parse cycle until one
// attempt yields messages or the attempt budget is spent. Fetch-level
// failures count as empty attempts; an unexpected error aborts the loop and
// is returned alongside whatever was accumulated (possibly nothing).
func (o *Orchestrator) FetchVerificationMessages(ctx context.Context, phone string, notify ProgressFunc) ([]string, error) {
	digits := PhoneDigits(phone)
	total := o.cfg.MaxRetries + 1

	for attempt := 1; attempt <= total; attempt++ {
		messages, err := o.attempt(ctx, digits, attempt)
		if err != nil {
			logger.Error(ctx, "scrape", "scrape.abort",
				slog.String("status", "fail"),
				slog.Int("attempt", attempt),
				slog.String("err", err.Error()),
			)
			return nil, err
		}
		if len(messages) > 0 {
			logger.Info(ctx, "scrape", "scrape.found",
				slog.String("status", "ok"),
				slog.Int("attempt", attempt),
				slog.Int("matches", len(messages)),
			)
			return messages, nil
		}
		if attempt < total {
			wait := uniformDuration(o.cfg.RetryBackoffMin, o.cfg.RetryBackoffMax)
			if notify != nil {
				notify(attempt, total, wait)
			}
			logger.Debug(ctx, "scrape", "scrape.retry",
				slog.String("status", "retry"),
				slog.Int("attempt", attempt),
				slog.Int("attempts", total),
				slog.Int64("wait_ms", wait.Milliseconds()),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	logger.Info(ctx, "scrape", "scrape.exhausted",
		slog.String("status", "ok"),
		slog.Int("attempts", total),
		slog.Int("matches", 0),
	)
	return nil, nil
}

// attempt performs one jittered fetch-and-parse cycle. Transport failures
// yield an empty result; only context errors propagate.
func (o *Orchestrator) attempt(ctx context.Context, digits string, attempt int) ([]string, error) {
	if err := sleepCtx(ctx, uniformDuration(o.cfg.PreFetchDelayMin, o.cfg.PreFetchDelayMax)); err != nil {
		return nil, err
	}

	page, err := o.fetcher.FetchPage(ctx, digits)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn(ctx, "scrape", "scrape.fetch_failed",
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.Int("phone_digits", len(digits)),
			slog.String("err", err.Error()),
		)
		return nil, nil
	}

	// The page renders message rows asynchronously; a short settle delay
	// keeps the request pattern humane.
	if err := sleepCtx(ctx, uniformDuration(o.cfg.PreParseDelayMin, o.cfg.PreParseDelayMax)); err != nil {
		return nil, err
	}

	return o.extractor.Extract(page), nil
}

// sleepCtx waits for d or until the context ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
