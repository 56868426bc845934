package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"support-chatbot-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	client      *goopenai.Client
	model       string
	temperature float64
}

// Ensure Provider implements ReasoningEngine
var _ llm.ReasoningEngine = (*Provider)(nil)

func NewProvider(apiKey, baseURL, model string, temperature float64) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &Provider{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

func (p *Provider) request(history []llm.Message, options []llm.Option) goopenai.ChatCompletionRequest {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: p.temperature}, options...)

	req := goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    toMessages(history),
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

func (p *Provider) Complete(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, options ...llm.Option) (*llm.Completion, error) {
	req := p.request(history, options)
	if len(tools) > 0 {
		req.Tools = toTools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &llm.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.ChunkStream, error) {
	req := p.request(history, options)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	return &chunkStream{stream: stream}, nil
}

type chunkStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *chunkStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", llm.ErrGenerationInterrupted, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

func toMessages(history []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msg := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toTools(defs []llm.ToolDefinition) []goopenai.Tool {
	out := make([]goopenai.Tool, len(defs))
	for i, d := range defs {
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out
}
