package catalog

import (
	"context"
	"testing"
	"time"
)

func TestPacer_BurstThenThrottle(t *testing.T) {
	p := NewPacer(&Config{RPSLimit: 100})

	// The burst allowance should drain without measurable delay.
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Acquire(t.Context()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("burst drain took %v, expected near-instant", elapsed)
	}

	// 20 more tokens at 100/s must take at least ~200ms.
	start = time.Now()
	for i := 0; i < 20; i++ {
		if err := p.Acquire(t.Context()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("20 throttled acquires took %v, want >= 150ms", elapsed)
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(&Config{RPSLimit: 1})

	if err := p.Acquire(t.Context()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	if err := p.Acquire(ctx); err == nil {
		t.Error("Acquire() should fail when the context expires before a token is available")
	}
}

func TestPacer_NonPositiveRate(t *testing.T) {
	for _, rps := range []int{0, -5} {
		p := NewPacer(&Config{RPSLimit: rps})
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		if err := p.Acquire(ctx); err != nil {
			t.Errorf("RPSLimit=%d: Acquire() error = %v, want fallback rate to admit", rps, err)
		}
		cancel()
	}
}
