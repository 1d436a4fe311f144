package ai

import (
	"encoding/json"
	"fmt"

	"github.com/leofalp/duet/internal/jsonschema"
)

// DescribeTool builds a [ToolDescription] whose parameter schema is
// generated from the input type I via reflection, honoring json and
// jsonschema struct tags. Callers that already hold a schema document can
// populate ToolDescription.Parameters directly instead.
func DescribeTool[I any](name, description string) (ToolDescription, error) {
	schema, err := jsonschema.FromType[I]()
	if err != nil {
		return ToolDescription{}, fmt.Errorf("generating schema for tool %q: %w", name, err)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return ToolDescription{}, fmt.Errorf("encoding schema for tool %q: %w", name, err)
	}

	return ToolDescription{
		Name:        name,
		Description: description,
		Parameters:  raw,
	}, nil
}
