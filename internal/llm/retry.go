package llm

import (
	"context"
	"errors"
	"time"

	"factcheck-backend/internal/shared/telemetry"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// Retry bounds each call with CallTimeout and retries rate-limit failures with
// exponential backoff. Other failures return immediately.
type Retry struct {
	Base        Completer
	Name        string
	Attempts    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps base. A nil base stays nil.
func WithRetry(base Completer, name string, attempts int, callTimeout time.Duration) Completer {
	if base == nil {
		return nil
	}
	return &Retry{Base: base, Name: name, Attempts: attempts, CallTimeout: callTimeout}
}

func (r *Retry) Complete(ctx context.Context, req Request) (string, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = defaultRetryBaseDelay
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := r.once(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) || attempt == attempts {
			break
		}
		telemetry.Warn("model.retry", map[string]any{
			"backend": r.Name,
			"attempt": attempt,
			"delay":   delay.String(),
		})
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return "", lastErr
}

func (r *Retry) once(ctx context.Context, req Request) (string, error) {
	if r.CallTimeout <= 0 {
		return r.Base.Complete(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.CallTimeout)
	defer cancel()
	return r.Base.Complete(callCtx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
