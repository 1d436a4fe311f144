package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/leofalp/duet/providers/ai"
)

// ========== NewRateLimitMiddleware tests ==========

// TestRateLimitMiddleware_AllowsWithinBudget verifies that calls inside the
// bucket capacity pass through without blocking.
func TestRateLimitMiddleware_AllowsWithinBudget(t *testing.T) {
	limiter := rate.NewLimiter(rate.Inf, 1)

	callCount := 0
	send := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
		callCount++
		return &ai.ChatResponse{Content: "ok", FinishReason: "stop"}, nil
	}

	mw := NewRateLimitMiddleware(limiter)
	chain := mw.Send(send)

	for i := 0; i < 3; i++ {
		if _, err := chain(context.Background(), ai.ChatRequest{}); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}

	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

// TestRateLimitMiddleware_BlocksWhenExhausted verifies that an empty bucket
// delays the call until a token is refilled.
func TestRateLimitMiddleware_BlocksWhenExhausted(t *testing.T) {
	// 50 tokens/s with burst 1: second call must wait ~20ms.
	limiter := rate.NewLimiter(rate.Limit(50), 1)

	send := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Content: "ok", FinishReason: "stop"}, nil
	}

	mw := NewRateLimitMiddleware(limiter)
	chain := mw.Send(send)

	if _, err := chain(context.Background(), ai.ChatRequest{}); err != nil {
		t.Fatalf("first call: unexpected error: %v", err)
	}

	start := time.Now()
	if _, err := chain(context.Background(), ai.ChatRequest{}); err != nil {
		t.Fatalf("second call: unexpected error: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected second call to block for a refill, elapsed %v", elapsed)
	}
}

// TestRateLimitMiddleware_ContextCancellation verifies that a cancelled context
// aborts the wait instead of blocking forever.
func TestRateLimitMiddleware_ContextCancellation(t *testing.T) {
	// Zero refill rate: once the single burst token is spent, Wait never returns.
	limiter := rate.NewLimiter(0, 1)
	limiter.Allow() // drain the burst token

	send := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
		t.Fatal("send must not be reached when the limiter blocks")
		return nil, nil
	}

	mw := NewRateLimitMiddleware(limiter)
	chain := mw.Send(send)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := chain(ctx, ai.ChatRequest{})
	if err == nil {
		t.Fatal("expected error from cancelled wait, got nil")
	}
}

// TestRateLimitMiddleware_StreamAdmission verifies that stream requests consume
// a token before the stream is opened.
func TestRateLimitMiddleware_StreamAdmission(t *testing.T) {
	limiter := rate.NewLimiter(0, 1)

	streamFunc := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewSingleEventStream(&ai.ChatResponse{Content: "ok", FinishReason: "stop"}), nil
	}

	mw := NewRateLimitMiddleware(limiter)
	if mw.Stream == nil {
		t.Fatal("expected non-nil Stream field")
	}
	chain := mw.Stream(streamFunc)

	// First call consumes the burst token.
	if _, err := chain(context.Background(), ai.ChatRequest{}); err != nil {
		t.Fatalf("first stream: unexpected error: %v", err)
	}

	// Second call finds an empty bucket with zero refill and must fail fast
	// once the context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := chain(ctx, ai.ChatRequest{})
	if err == nil {
		t.Fatal("expected error from exhausted limiter, got nil")
	}

	if errors.Is(err, context.Canceled) {
		t.Errorf("expected a limiter wait error, got bare context.Canceled: %v", err)
	}
}
