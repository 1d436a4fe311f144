// Package ai defines the shared, provider-agnostic types and interfaces used
// by the two upstream text-generation providers (OpenAI and Anthropic). Each
// provider's conversion layer maps these types to its own wire format, keeping
// the orchestration code decoupled from provider-specific details.
//
// The two central interfaces are [Provider] for synchronous chat completions
// and [StreamProvider] for SSE-based streaming responses. Request data flows
// through [ChatRequest] and responses are returned as [ChatResponse].
// For real-time streaming, [ChatStream] and [StreamEvent] carry incremental
// deltas to the caller.
package ai
