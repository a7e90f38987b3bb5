package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitZeroDelayIsImmediate(t *testing.T) {
	p := NewPacer(zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx, 1, 0); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait(delay=0) took %v, want no pacing", elapsed)
	}
}

func TestWaitSpacesRequests(t *testing.T) {
	p := NewPacer(zerolog.Nop())
	ctx := context.Background()

	// First call consumes the initial token, the next two each wait ~50ms.
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx, 1, 50); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three Wait(delay=50ms) calls took %v, want >= ~100ms", elapsed)
	}
}

func TestWaitIsPerIndexer(t *testing.T) {
	p := NewPacer(zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for id := int64(1); id <= 5; id++ {
		if err := p.Wait(ctx, id, 30000); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("first calls across indexers took %v, want immediate", elapsed)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	p := NewPacer(zerolog.Nop())

	// Burn the initial token so the next call must wait out the interval.
	if err := p.Wait(context.Background(), 1, 30000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx, 1, 30000); err == nil {
		t.Error("Wait() error = nil, want context deadline")
	}
}

func TestForgetResetsPacing(t *testing.T) {
	p := NewPacer(zerolog.Nop())
	ctx := context.Background()

	if err := p.Wait(ctx, 1, 30000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	p.Forget(1)

	// A fresh limiter grants its first token immediately.
	start := time.Now()
	if err := p.Wait(ctx, 1, 30000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() after Forget took %v, want immediate", elapsed)
	}
}
