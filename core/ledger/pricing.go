package ledger

import "github.com/leofalp/duet/providers/ai"

// ProviderPricing holds a provider's USD rates per million tokens.
type ProviderPricing struct {
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// DefaultPricing maps provider names to their flagship-model list prices.
// Prices are in USD per million tokens and are deliberately coarse: the
// ledger's cost column is an operational estimate, not a billing system.
var DefaultPricing = map[string]ProviderPricing{
	"openai":    {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00},
	"anthropic": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
}

// CostOf estimates the USD cost of the given usage at the provider's rates.
// Unknown providers cost zero.
func CostOf(provider string, usage ai.Usage) float64 {
	pricing, ok := DefaultPricing[provider]
	if !ok {
		return 0
	}

	input := float64(usage.PromptTokens) / 1_000_000 * pricing.InputCostPerMillion
	output := float64(usage.CompletionTokens) / 1_000_000 * pricing.OutputCostPerMillion
	return input + output
}
