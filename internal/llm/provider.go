// Package llm holds the two outbound LLM provider clients. Both
// implement Generator, so the pipeline selects a backend by looking up
// a closed Provider value; adding a backend means adding one
// implementation, not new branches.
package llm

import "fmt"

type Provider string

const (
	ProviderDigitalOcean Provider = "Digital Ocean"
	ProviderOllama       Provider = "Ollama"
)

// ParseProvider validates a provider name from the transport boundary.
// Unrecognized values are rejected rather than silently defaulted, so
// traffic and API keys never reach the wrong backend.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderDigitalOcean:
		return ProviderDigitalOcean, nil
	case ProviderOllama:
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown provider %q (supported: %q, %q)", s, ProviderDigitalOcean, ProviderOllama)
	}
}

// DefaultTitle is returned whenever title generation fails.
const DefaultTitle = "Untitled Chat"
