package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	l := NewLimiter(20, 2)

	for i := 0; i < 2; i++ {
		if !l.Allow(1) {
			t.Fatalf("expected request %d to fit in the burst", i)
		}
	}
	if l.Allow(1) {
		t.Fatal("expected the limiter to refuse once the burst is spent")
	}

	time.Sleep(80 * time.Millisecond)
	if !l.Allow(1) {
		t.Fatal("expected a token after the refill interval")
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 500; i++ {
		if !l.Allow(1) {
			t.Fatalf("expected unlimited limiter to admit request %d", i)
		}
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewLimiter(0.5, 1)
	l.Allow(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, 1)
	if err == nil {
		t.Fatal("expected Wait to give up before the next token at 0.5/s")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation error %v", err)
	}
}
