package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/leofalp/duet/core/client"
	"github.com/leofalp/duet/providers/ai"
)

// NewRateLimitMiddleware creates a MiddlewareConfig that throttles outgoing
// provider calls with a token-bucket limiter. Each send or stream request
// consumes one token; when the bucket is empty the call blocks in
// limiter.Wait until a token becomes available or the context is cancelled.
//
// A single limiter can be shared across multiple clients to enforce a global
// budget, or each client can get its own to enforce per-provider limits.
// The limiter parameter must not be nil.
func NewRateLimitMiddleware(limiter *rate.Limiter) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   buildSendRateLimit(limiter),
		Stream: buildStreamRateLimit(limiter),
	}
}

// buildSendRateLimit constructs the send middleware that waits on the limiter.
func buildSendRateLimit(limiter *rate.Limiter) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}

			return next(ctx, request)
		}
	}
}

// buildStreamRateLimit constructs the stream middleware that waits on the
// limiter before opening the stream. Individual chunks are not throttled —
// the limit applies to request admission, not to delivery.
func buildStreamRateLimit(limiter *rate.Limiter) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}

			return next(ctx, request)
		}
	}
}
