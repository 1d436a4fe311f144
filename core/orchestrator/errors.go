package orchestrator

import (
	"errors"
	"fmt"
)

// ErrAllProvidersFailed is returned when every provider in the execution plan
// failed. Per-provider errors are attached via wrapping.
var ErrAllProvidersFailed = errors.New("orchestrator: all selected providers failed")

// ValidationError describes a request field that failed defensive validation.
// No provider is invoked and no usage is recorded for such requests.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("orchestrator: invalid request: %s %s", e.Field, e.Reason)
}

// ProviderUnavailableError marks one provider's call as failed after the
// client layer exhausted its retries. In hybrid mode it is non-fatal as long
// as the sibling provider succeeds.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("orchestrator: provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}
