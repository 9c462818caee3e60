package ai

import "fmt"

// ProviderError wraps a failed call to the embedding or generative provider.
// Callers may retry; persisted state is never touched by a failed call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gemini %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
