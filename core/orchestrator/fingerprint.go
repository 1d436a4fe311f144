package orchestrator

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/leofalp/duet/core/prompt"
)

// fingerprintKey is the canonical subset of a request that determines cache
// equality. Identity is deliberately absent: two identities issuing the same
// prompt and parameters share one cached result.
type fingerprintKey struct {
	Prompt      string            `json:"prompt"`
	Documents   []prompt.Document `json:"documents,omitempty"`
	Temperature float32           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Preference  string            `json:"preference"`
}

// fingerprint computes the deterministic cache key for a request.
func fingerprint(req Request) string {
	key := fingerprintKey{
		Prompt:      req.Prompt,
		Documents:   req.Documents,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Preference:  req.Preference.String(),
	}

	hash := sha256.New()
	data, _ := json.Marshal(key)
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
