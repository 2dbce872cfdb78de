package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the OpenAI chat completion API. The client is
// constructed once at process start and reused across requests.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Complete(ctx context.Context, model string, prompt Prompt, sampling Sampling) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		MaxTokens:        sampling.MaxTokens,
		Temperature:      sampling.Temperature,
		TopP:             sampling.TopP,
		FrequencyPenalty: sampling.FrequencyPenalty,
		PresencePenalty:  sampling.PresencePenalty,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): empty response", model)
	}

	return resp.Choices[0].Message.Content, nil
}

// IsModelAccessError reports whether err means the model itself is
// unavailable to this API key (quota, missing model, capability rejection),
// as opposed to a transient transport or content failure. Only access
// failures justify retrying on the fallback model.
func IsModelAccessError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.HTTPStatusCode == http.StatusForbidden {
		return true
	}

	if code, ok := apiErr.Code.(string); ok && code == "model_not_found" {
		return true
	}

	return apiErr.Type == "invalid_request_error"
}
