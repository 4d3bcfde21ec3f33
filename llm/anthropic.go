// Anthropic endpoint adapter using the official anthropic-sdk-go.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// Anthropic implements Endpoint for the Anthropic Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic creates a new Anthropic endpoint.
func NewAnthropic(apiKey, model string, maxTokens uint32, temperature float32) *Anthropic {
	return &Anthropic{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Invoke sends a messages request.
func (p *Anthropic) Invoke(ctx context.Context, messages []model.Message, toolSchemas []tools.Schema) (Response, error) {
	anthropicMessages, systemPrompt := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(toolSchemas) > 0 {
		params.Tools = toAnthropicTools(toolSchemas)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, p.classify(err)
	}

	var out Response
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			if out.ToolCall == nil {
				inputJSON, _ := json.Marshal(variant.Input)
				out.ToolCall = &ToolCallRequest{
					ID:        variant.ID,
					Name:      variant.Name,
					Arguments: inputJSON,
				}
			}
		}
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		out.Usage = &model.TokenUsage{
			PromptTokens:     uint32(message.Usage.InputTokens),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}
	return out, nil
}

// classify maps SDK errors onto the endpoint error taxonomy.
func (p *Anthropic) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(p.Name(), apiErr.StatusCode, apiErr.Error(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}

// toAnthropicMessages converts messages to Anthropic format. The system
// message is extracted and returned separately; tool results become
// tool_result blocks on a user message.
func toAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemPrompt = msg.Content
		case model.RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case model.RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case model.RoleTool:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

func toAnthropicTools(schemas []tools.Schema) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		properties, _ := s.Parameters["properties"].(map[string]any)
		var required []string
		switch req := s.Parameters["required"].(type) {
		case []string:
			required = req
		case []any:
			for _, r := range req {
				if name, ok := r.(string); ok {
					required = append(required, name)
				}
			}
		}

		toolParam := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify Anthropic implements Endpoint
var _ Endpoint = (*Anthropic)(nil)
