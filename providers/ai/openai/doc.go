// Package openai implements [ai.Provider] and [ai.StreamProvider] for the
// OpenAI Chat Completions API, including SSE streaming with usage reporting
// in the final chunk. Configuration comes from OPENAI_API_KEY and
// OPENAI_API_BASE_URL, overridable via the With* chain methods.
package openai
