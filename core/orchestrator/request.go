package orchestrator

import (
	"strings"

	"github.com/leofalp/duet/core/prompt"
	"github.com/leofalp/duet/providers/ai"
)

// Preference selects the execution plan. The zero value is Auto, which
// behaves like Hybrid.
type Preference int

const (
	// PreferenceAuto lets the orchestrator decide; currently identical to
	// PreferenceHybrid.
	PreferenceAuto Preference = iota

	// PreferenceOpenAI invokes only the OpenAI client.
	PreferenceOpenAI

	// PreferenceAnthropic invokes only the Anthropic client.
	PreferenceAnthropic

	// PreferenceHybrid invokes both clients concurrently and merges.
	PreferenceHybrid
)

// String returns the stable wire name of the preference.
func (p Preference) String() string {
	switch p {
	case PreferenceOpenAI:
		return "openai"
	case PreferenceAnthropic:
		return "anthropic"
	case PreferenceHybrid:
		return "hybrid"
	default:
		return "auto"
	}
}

// ParsePreference maps a wire name to a Preference. Unknown and empty values
// fall back to Auto.
func ParsePreference(value string) Preference {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "openai":
		return PreferenceOpenAI
	case "anthropic":
		return PreferenceAnthropic
	case "hybrid":
		return PreferenceHybrid
	default:
		return PreferenceAuto
	}
}

// Validation bounds. Temperature follows the providers' shared [0,2] range;
// MaxTokensLimit is the largest output budget either provider accepts.
const (
	TemperatureMin = 0.0
	TemperatureMax = 2.0
	MaxTokensLimit = 16_384
)

// Request is one orchestration request. Transport-level validation happens
// upstream, but [Request.Validate] re-checks defensively: a malformed request
// must never reach a provider.
type Request struct {
	Prompt         string                `json:"prompt"`
	Documents      []prompt.Document     `json:"documents,omitempty"`
	Preference     Preference            `json:"preference,omitempty"`
	Temperature    float32               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens"`
	Tools          []ai.ToolDescription  `json:"tools,omitempty"`
	Identity       string                `json:"identity"`
	ConversationID string                `json:"conversation_id,omitempty"`
}

// Validate rejects requests that must not reach a provider. It returns a
// *ValidationError naming the offending field.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}

	if r.Temperature < TemperatureMin || r.Temperature > TemperatureMax {
		return &ValidationError{Field: "temperature", Reason: "must be within [0, 2]"}
	}

	if r.MaxTokens < 1 || r.MaxTokens > MaxTokensLimit {
		return &ValidationError{Field: "max_tokens", Reason: "must be within [1, 16384]"}
	}

	if strings.TrimSpace(r.Identity) == "" {
		return &ValidationError{Field: "identity", Reason: "must not be empty"}
	}

	return nil
}
