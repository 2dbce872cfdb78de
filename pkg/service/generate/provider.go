package generate

import (
	"context"
)

// Prompt is the fully rendered provider input for one generation.
type Prompt struct {
	System string
	User   string
}

// Sampling holds the fixed sampling parameters sent with every provider
// call. They are policy constants, not per-request inputs.
type Sampling struct {
	MaxTokens        int
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// Provider is the text-generation backend. Implementations must return
// errors that IsModelAccessError can classify so the service can decide
// whether a fallback model is worth trying.
type Provider interface {
	Complete(ctx context.Context, model string, prompt Prompt, sampling Sampling) (string, error)
}
