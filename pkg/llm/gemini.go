package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

var errEmptyCompletion = errors.New("empty completion")

// Gemini implements Responder via the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini responder. An empty model defaults to
// gemini-2.0-flash.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}
}

// Respond sends a single-turn generate request.
func (g *Gemini) Respond(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}, nil)
	if err != nil {
		return "", &ServiceError{Service: "gemini", Err: err}
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ServiceError{Service: "gemini", Err: errEmptyCompletion}
	}
	return sb.String(), nil
}
