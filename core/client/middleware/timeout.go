package middleware

import (
	"context"
	"time"

	"github.com/leofalp/duet/core/client"
	"github.com/leofalp/duet/providers/ai"
)

// NewTimeoutMiddleware creates a MiddlewareConfig that bounds provider calls
// in time.
//
// For send requests the implementation wraps the context with
// context.WithTimeout and defers cancel() — the context is automatically
// canceled once the provider returns or the deadline expires.
//
// Streaming requests get no overall deadline: a long generation is expected
// to stream for longer than any single-call budget. Instead the same timeout
// is applied between chunks as an idle watchdog — if no event arrives from
// the provider within the timeout, the request context is cancelled, which
// aborts the underlying SSE read and surfaces a context error through the
// iterator. The watchdog resets on every event, so an actively streaming
// response is never interrupted.
//
// If the caller supplies a context that already has a shorter deadline, that
// shorter deadline wins as per normal context semantics.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   buildSendTimeout(timeout),
		Stream: buildStreamIdleTimeout(timeout),
	}
}

// buildSendTimeout constructs the send middleware that adds a deadline.
func buildSendTimeout(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

// buildStreamIdleTimeout constructs the stream middleware that arms an
// inter-chunk watchdog and wraps the resulting ChatStream so the watchdog is
// reset on every event and disarmed when the stream ends.
func buildStreamIdleTimeout(timeout time.Duration) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithCancel(ctx)

			// The watchdog covers the initial connection as well: if the
			// provider never delivers a first byte, the context is cancelled
			// after one timeout period.
			watchdog := time.AfterFunc(timeout, cancel)

			stream, err := next(ctx, request)
			if err != nil {
				// Pre-stream error — disarm and cancel immediately.
				watchdog.Stop()
				cancel()
				return nil, err
			}

			wrapped := wrapStreamWithWatchdog(stream, watchdog, timeout, cancel)
			return wrapped, nil
		}
	}
}

// wrapStreamWithWatchdog returns a new ChatStream whose iterator resets the
// watchdog on each event and calls cancel once the stream finishes (done
// event), errors, or the caller breaks out of the loop.
func wrapStreamWithWatchdog(stream *ai.ChatStream, watchdog *time.Timer, timeout time.Duration, cancel context.CancelFunc) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer func() {
			watchdog.Stop()
			cancel()
		}()

		for event, err := range stream.Iter() {
			watchdog.Reset(timeout)

			if !yield(event, err) {
				// The caller broke out of the range loop early.
				return
			}

			if err != nil {
				return
			}

			if event.Type == ai.StreamEventDone {
				return
			}
		}
	}

	return ai.NewChatStream(iteratorFunc)
}
