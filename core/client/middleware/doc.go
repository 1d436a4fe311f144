// Package middleware provides built-in middleware implementations for the duet
// client. Each middleware is constructed via a New* function that returns a
// [client.MiddlewareConfig] ready to be passed to [client.New].
//
// # Available Middleware
//
//   - [NewRetryMiddleware]: Retries failed provider calls with exponential backoff
//     and jitter. Useful for transient HTTP 429 / 5xx errors. For streams only the
//     opening is retried: once delivery has started, a replay could duplicate output.
//
//   - [NewTimeoutMiddleware]: Adds a per-request deadline to synchronous calls and
//     an inter-chunk idle watchdog to streaming calls.
//
//   - [NewLoggingMiddleware]: Emits structured slog log entries before and after
//     every provider call, with three verbosity levels (Minimal, Standard, Verbose).
//
//   - [NewRateLimitMiddleware]: Throttles request admission with a shared
//     token-bucket limiter from golang.org/x/time/rate.
//
// # Usage
//
//	import (
//	    "log/slog"
//	    "time"
//
//	    "github.com/leofalp/duet/core/client"
//	    "github.com/leofalp/duet/core/client/middleware"
//	)
//
//	c, err := client.New(provider,
//	    middleware.NewTimeoutMiddleware(30*time.Second),
//	    middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 2}),
//	    middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	)
//
// Middlewares execute outermost-first: the first entry passed to client.New is
// the outermost wrapper, meaning it runs first on the way in and last on the
// way out. In the example above, a request travels:
//
//	Timeout (first — outermost) → Retry → Logging → Provider
//
// and the response travels back in reverse:
//
//	Provider → Logging → Retry → Timeout (last — outermost)
package middleware
