// Package anthropic implements [ai.Provider] and [ai.StreamProvider] for
// Anthropic's Messages API. Requests authenticate via the x-api-key header
// (not a Bearer token) and pin the wire format with anthropic-version.
// Configuration comes from ANTHROPIC_API_KEY and ANTHROPIC_API_BASE_URL,
// overridable via the With* chain methods.
package anthropic
