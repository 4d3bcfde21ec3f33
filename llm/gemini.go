// Google Gemini endpoint adapter using the official google.golang.org/genai SDK.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/mkallio/loom/model"
	"github.com/mkallio/loom/tools"
)

// Gemini implements Endpoint for the Google Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // client initialization error, reported on first use
}

// NewGemini creates a new Gemini endpoint.
// If client initialization fails, the error is returned on first Invoke.
func NewGemini(apiKey, model string, maxTokens uint32, temperature float32) *Gemini {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &Gemini{
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("initialize Gemini client: %w", err),
		}
	}

	return &Gemini{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *Gemini) Name() string {
	return "gemini"
}

// Invoke sends a generate-content request.
func (p *Gemini) Invoke(ctx context.Context, messages []model.Message, toolSchemas []tools.Schema) (Response, error) {
	if p.initErr != nil {
		return Response{}, &EndpointError{Provider: p.Name(), Message: p.initErr.Error(), Cause: p.initErr}
	}

	contents, systemInstruction := toGeminiContents(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	if len(toolSchemas) > 0 {
		config.Tools = toGeminiTools(toolSchemas)
	}

	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return Response{}, p.classify(err)
	}

	out := Response{Text: response.Text()}
	for _, fc := range response.FunctionCalls() {
		args, _ := json.Marshal(fc.Args)
		out.ToolCall = &ToolCallRequest{ID: fc.ID, Name: fc.Name, Arguments: args}
		break
	}

	if response.UsageMetadata != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
			CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// classify maps genai errors onto the endpoint error taxonomy.
func (p *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(p.Name(), apiErr.Code, apiErr.Message, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}

// toGeminiContents converts messages to Gemini format. Gemini expects
// tool results as user-role function responses.
func toGeminiContents(messages []model.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemInstruction = msg.Content
		case model.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		case model.RoleTool:
			var result map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			})
		}
	}

	return contents, systemInstruction
}

func toGeminiTools(schemas []tools.Schema) []*genai.Tool {
	var declarations []*genai.FunctionDeclaration
	for _, s := range schemas {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toGeminiSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema converts a JSON Schema parameter object to Gemini format.
func toGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}

	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	} else if req, ok := params["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}

	if properties, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(properties))
		for name, raw := range properties {
			prop := &genai.Schema{Type: genai.TypeString}
			if pm, ok := raw.(map[string]any); ok {
				if t, ok := pm["type"].(string); ok {
					prop.Type = mapGeminiType(t)
				}
				if d, ok := pm["description"].(string); ok {
					prop.Description = d
				}
			}
			schema.Properties[name] = prop
		}
	}

	return schema
}

func mapGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify Gemini implements Endpoint
var _ Endpoint = (*Gemini)(nil)
