package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/binarymuse/ouroboros/internal/backoff"
	"github.com/binarymuse/ouroboros/internal/config"
	"github.com/binarymuse/ouroboros/internal/models"
)

// OpenAIProvider talks to a local OpenAI-compatible chat completions
// endpoint over HTTP, streaming responses and retrying transient stream-open
// failures with exponential backoff.
type OpenAIProvider struct {
	client  *openai.Client
	retries int
	policy  backoff.BackoffPolicy
}

// NewOpenAIProvider builds a provider from the Model configuration section.
func NewOpenAIProvider(cfg config.ModelConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		retries: retries,
		policy:  backoff.DefaultPolicy(),
	}
}

// Complete opens a streaming chat completion, enabling usage capture, and
// consumes it until the stream's terminal event, accumulating text and
// tool-call fragments. Opening the stream is retried with exponential
// backoff up to the configured MaxRetries; errors encountered once the
// stream is open are not retried and are returned directly so the Session
// Driver can return MaxTurnsOrError.
func (p *OpenAIProvider) Complete(ctx context.Context, model string, history []models.Message, tools []ToolSchema, onDelta TextDeltaFunc) (CompletionResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(history),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	result, err := backoff.RetryWithBackoff(ctx, p.policy, p.retries, func(attempt int) (*openai.ChatCompletionStream, error) {
		return p.client.CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("open completion stream: %w", err)
	}

	return consumeStream(result.Value, onDelta)
}

func consumeStream(stream *openai.ChatCompletionStream, onDelta TextDeltaFunc) (CompletionResult, error) {
	defer stream.Close()

	var text string
	toolCalls := make(map[int]*models.ToolCall)
	var usage Usage

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CompletionResult{}, fmt.Errorf("stream recv: %w", err)
		}

		if chunk.Usage != nil {
			usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				Reported:         true,
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text += delta.Content
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			entry, ok := toolCalls[index]
			if !ok {
				entry = &models.ToolCall{}
				toolCalls[index] = entry
			}
			if tc.ID != "" {
				entry.ID = tc.ID
			}
			if tc.Function.Name != "" {
				entry.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				entry.Arguments = append(entry.Arguments, []byte(tc.Function.Arguments)...)
			}
		}
	}

	ordered := make([]models.ToolCall, 0, len(toolCalls))
	for i := 0; i < len(toolCalls); i++ {
		if tc, ok := toolCalls[i]; ok {
			ordered = append(ordered, *tc)
		}
	}

	return CompletionResult{Text: text, ToolCalls: ordered, Usage: usage}, nil
}

func toOpenAIMessages(history []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case models.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, oaiMsg)
		case models.RoleTool:
			if msg.ToolResult != nil {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    msg.ToolResult.Content,
					ToolCallID: msg.ToolResult.ToolCallID,
				})
			}
		}
	}
	return out
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		params := tool.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		}
	}
	return out
}
