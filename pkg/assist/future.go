package assist

import (
	"context"
	"encoding/json"
	"fmt"

	"imgharvest/pkg/config"
	"imgharvest/pkg/secrets"
)

// Result is the eventual outcome of an asynchronous Extract
type Result struct {
	Value json.RawMessage
	Err   error
}

// Go runs a.Extract in its own goroutine. The channel receives exactly one
// Result and is then closed.
func Go(ctx context.Context, a Assistant, rawHTML, schema string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		value, err := a.Extract(ctx, rawHTML, schema)
		ch <- Result{Value: value, Err: err}
	}()
	return ch
}

// KeySource returns a stored secret by name
type KeySource interface {
	Get(name string) (string, error)
}

// FromSecrets builds an LLMAssistant whose API key comes from keys
func FromSecrets(keys KeySource, cfg config.AssistConfig, opts ...Option) (*LLMAssistant, error) {
	apiKey, err := keys.Get(secrets.AssistAPIKey)
	if err != nil {
		return nil, fmt.Errorf("no assist API key configured (run 'imgharvest assist set-key' or set ANTHROPIC_API_KEY): %w", err)
	}
	return NewLLMAssistant(apiKey, cfg, opts...)
}
