// Package orchestrator is the decision core of duet: given one request it
// selects which providers to invoke, executes the calls concurrently with the
// client layer's retry and timeout policies, merges the outputs, enforces the
// response cache and per-identity quota, and reports call statistics.
//
// Two delivery modes are exposed. [Orchestrator.Handle] blocks until all
// selected providers finish and returns one merged [Result]. Streaming via
// [Orchestrator.HandleStreaming] returns a live [merge.Stream] of
// provider-tagged deltas; it never consults the cache so the first token is
// delivered as soon as any provider produces one.
package orchestrator
