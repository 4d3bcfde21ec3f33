// OpenAI endpoint adapter using the go-openai library.
package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// OpenAI implements Endpoint for the OpenAI Chat Completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI creates a new OpenAI endpoint.
func NewOpenAI(apiKey, model string, maxTokens uint32, temperature float32) *OpenAI {
	return &OpenAI{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAI) Name() string {
	return "openai"
}

// Invoke sends a chat completion request.
func (p *OpenAI) Invoke(ctx context.Context, messages []model.Message, toolSchemas []tools.Schema) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	if len(toolSchemas) > 0 {
		req.Tools = toOpenAITools(toolSchemas)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, p.classify(err)
	}

	out := Response{
		Usage: &model.TokenUsage{
			PromptTokens:     uint32(resp.Usage.PromptTokens),
			CompletionTokens: uint32(resp.Usage.CompletionTokens),
			TotalTokens:      uint32(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0].Message
		out.Text = choice.Content
		if len(choice.ToolCalls) > 0 {
			tc := choice.ToolCalls[0]
			out.ToolCall = &ToolCallRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			}
		}
	}
	return out, nil
}

// classify maps go-openai errors onto the endpoint error taxonomy.
func (p *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		classified := classifyStatus(p.Name(), apiErr.HTTPStatusCode, apiErr.Message, err)
		if rl, ok := classified.(*RateLimitError); ok {
			// go-openai does not expose Retry-After; use a short default.
			rl.RetryAfter = 2 * time.Second
		}
		return classified
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}

func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
	}
	return result
}

func toOpenAITools(schemas []tools.Schema) []openai.Tool {
	result := make([]openai.Tool, len(schemas))
	for i, s := range schemas {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAI implements Endpoint
var _ Endpoint = (*OpenAI)(nil)
