package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttle holds calls to a backend under a shared token bucket so a burst of
// fan-out requests does not trip the provider's own rate limit.
type Throttle struct {
	Base    Completer
	Limiter *rate.Limiter
}

// WithThrottle wraps base with rps requests per second and a burst of the
// same size. Non-positive rps disables throttling.
func WithThrottle(base Completer, rps float64) Completer {
	if base == nil || rps <= 0 {
		return base
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Throttle{Base: base, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttle) Complete(ctx context.Context, req Request) (string, error) {
	if err := t.Limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: throttle: %v", ErrTransport, err)
	}
	return t.Base.Complete(ctx, req)
}
