package catalog

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound catalog calls to the configured requests-per-second
// budget. Every HTTP call across all callers consumes one token from the
// shared bucket. Burst capacity equals the rate, so an idle client may send
// one second's worth of calls back to back before settling into the steady
// rate.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds the process-wide pacer from the catalog config.
func NewPacer(cfg *Config) *Pacer {
	rps := cfg.RPSLimit
	if rps <= 0 {
		rps = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), rps)}
}

// Acquire blocks until one request token is available or ctx is done.
func (p *Pacer) Acquire(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
