package llm

import (
	"context"

	"github.com/openai/openai-go"
)

// OpenAI implements Responder via the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
}

// NewOpenAI creates an OpenAI responder. An empty model defaults to
// gpt-4o-mini. The system prompt is optional.
func NewOpenAI(client *openai.Client, model, system string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: client, model: model, system: system}
}

// Respond sends a single-turn chat completion request.
func (o *OpenAI) Respond(ctx context.Context, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if o.system != "" {
		messages = append(messages, openai.SystemMessage(o.system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", &ServiceError{Service: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Service: "openai", Err: errEmptyCompletion}
	}
	return resp.Choices[0].Message.Content, nil
}
