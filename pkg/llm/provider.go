package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrGenerationInterrupted marks a stream that failed after it started producing text.
var ErrGenerationInterrupted = errors.New("generation interrupted")

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string     // set on RoleTool messages
	ToolCalls  []ToolCall // set on assistant messages that requested tools
}

// ToolCall is a structured request from the model to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolDefinition describes a tool using a JSON schema for its parameters.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Completion is the result of a non-streaming call: either text or tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

func (c *Completion) WantsTool() bool {
	return c != nil && len(c.ToolCalls) > 0
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func Apply(defaults Options, opts ...Option) Options {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// ChunkStream yields text deltas. Recv returns io.EOF when generation completes.
// Close must be called once the consumer is done, including on early exit.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// ReasoningEngine defines the contract for any LLM backend
type ReasoningEngine interface {
	// Complete makes one non-streaming call with the given tools available.
	Complete(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (*Completion, error)

	// Stream opens a streaming generation. An error here means nothing was produced.
	Stream(ctx context.Context, history []Message, options ...Option) (ChunkStream, error)
}
