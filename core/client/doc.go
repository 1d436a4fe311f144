// Package client pairs a single upstream provider with a middleware chain and
// exposes the two call shapes the orchestrator needs: a synchronous Send and a
// streaming Stream. Middlewares (retry, timeout, logging, rate limiting) wrap
// both shapes; see the middleware subpackage for the standard set.
//
// Middlewares are applied outermost-first: the first entry in the slice passed
// to [New] is the first to see an incoming request. Streaming entries are
// optional — a middleware with a nil Stream field is skipped on the stream
// chain (retry, for example, cannot transparently replay a half-consumed
// stream and only participates in the send chain).
package client
