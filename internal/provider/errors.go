package provider

import (
	"fmt"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/resilience"
)

// ConfigurationError means a provider cannot be constructed at all, usually
// because its credentials are missing. It is detected once, at adapter
// construction, and is fatal for that provider until the process restarts
// with fixed config. It is the only error class that aborts a whole request
// instead of becoming a per-model failure outcome.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s not configured: %s", e.Provider, e.Reason)
}

// UnsupportedModelError means the caller asked for a model identifier outside
// the known set. Fatal for that single request only.
type UnsupportedModelError struct {
	Model model.ModelType
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q", e.Model)
}

// ProviderError means the provider's call failed at the transport or HTTP
// level (non-2xx, timeout, network error). Retryable in principle; this
// pipeline surfaces it as a per-model failure instead of retrying.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: provider call failed with status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: provider call failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry could plausibly succeed.
func (e *ProviderError) Retryable() bool {
	if e.Status > 0 {
		return resilience.IsTransientHTTPStatus(e.Status)
	}
	return resilience.IsTransient(e.Err)
}

// MalformedResponseError means the provider's call succeeded at the transport
// level but the payload lacked the expected shape (e.g. no choices).
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}
