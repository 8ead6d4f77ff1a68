package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults for the retry policy: three attempts in total, waiting 2s then 4s.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 2 * time.Second
)

// Outcome is the result of a single attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeTerminal  Outcome = "terminal"
)

// Attempt records one try against the provider. Attempts live only as long
// as the request that produced them.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	Err       error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is a bounded linear-backoff retry policy. The zero value uses the
// defaults above; Sleep, Now and DelayFunc exist so tests can run without
// real waiting.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	DelayFunc  func(attempt int) time.Duration
	Sleep      SleepFunc
	Now        func() time.Time
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// MaxAttempts returns the total number of attempts, first try included.
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the wait after the given failed attempt: attempt × BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if p.DelayFunc != nil {
		return p.DelayFunc(attempt)
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return time.Duration(attempt) * base
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d unless ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out. It returns every attempt made and, on failure, a
// classified *Error.
func (p Policy) Run(ctx context.Context, op func(ctx context.Context, attempt int) error) ([]Attempt, error) {
	maxAttempts := p.MaxAttempts()
	attempts := make([]Attempt, 0, maxAttempts)
	var last *Error

	for n := 1; n <= maxAttempts; n++ {
		start := p.now()
		err := op(ctx, n)
		a := Attempt{Number: n, StartedAt: start, Duration: p.now().Sub(start)}

		if err == nil {
			a.Outcome = OutcomeSuccess
			attempts = append(attempts, a)
			return attempts, nil
		}

		classified := Classify(err)
		a.Err = classified
		if !classified.Kind.Retryable() {
			a.Outcome = OutcomeTerminal
			attempts = append(attempts, a)
			classified.Attempts = len(attempts)
			log.Warn().
				Err(err).
				Int("attempt", n).
				Str("kind", classified.Kind.String()).
				Msg("Generation failed with non-retryable error")
			return attempts, classified
		}

		a.Outcome = OutcomeRetryable
		attempts = append(attempts, a)
		last = classified

		if n == maxAttempts {
			break
		}
		delay := p.Delay(n)
		log.Warn().
			Err(err).
			Int("attempt", n).
			Int("maxAttempts", maxAttempts).
			Dur("backoff", delay).
			Msg("Generation attempt failed, retrying")
		if err := p.sleep(ctx, delay); err != nil {
			return attempts, &Error{
				Kind:     KindCanceled,
				Message:  "request canceled while waiting to retry",
				Attempts: len(attempts),
				Err:      err,
			}
		}
	}

	return attempts, &Error{
		Kind:       KindExhausted,
		StatusCode: last.StatusCode,
		Message:    "attempts exhausted: " + last.Message,
		Attempts:   len(attempts),
		Err:        last,
	}
}
