package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider is the hosted fallback for when no local model is
// reachable. It does not stream; the relay simulates incremental delivery
// for non-streaming providers.
type OpenAIProvider struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIProvider returns nil-safe configuration errors at call time, not
// construction time, so a missing key only disables this backend.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT3_5Turbo
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{Model: p.model}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return completion.Choices[0].Message.Content, nil
}
