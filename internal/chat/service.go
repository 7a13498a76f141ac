// Package chat simulates a tool-calling chat completion and runs the calls it
// requests.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/logger"
	"github.com/edibez/mcplab/internal/metrics"
	"github.com/edibez/mcplab/internal/settings"
	"github.com/edibez/mcplab/internal/tools"
)

const (
	Model            = "deepseek-chat"
	AssistantMessage = "I'll help you with that. Let me use the appropriate tools to find the information you need."
	completionTokens = 100
)

var ErrEmptyPrompt = errors.New("prompt is required")

// ToolToggle is a tool as shown to the user, with its on/off switch.
type ToolToggle struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// Request is one chat turn.
type Request struct {
	Prompt          string       `json:"prompt"`
	Tools           []ToolToggle `json:"tools,omitempty"`
	UseGlobalMemory bool         `json:"useGlobalMemory"`
	SessionID       string       `json:"sessionId,omitempty"`
}

// Disabled returns the tools switched off for this request. Tools the
// request does not mention stay enabled.
func (r Request) Disabled() map[string]bool {
	out := make(map[string]bool)
	for _, t := range r.Tools {
		if !t.Active {
			out[t.Name] = true
		}
	}
	return out
}

// Executor runs a single tool call.
type Executor interface {
	Execute(ctx context.Context, call ai.ToolCall) (tools.Result, error)
}

// MemoryContexter serializes the global memory into a prompt prefix.
type MemoryContexter interface {
	Context(ctx context.Context) (string, error)
}

// Answerer turns tool results into the final answer.
type Answerer interface {
	Synthesize(ctx context.Context, query string, results []tools.Result, st *settings.Settings) string
}

// Service classifies prompts and executes the resulting tool calls.
type Service struct {
	exec    Executor
	memory  MemoryContexter
	answers Answerer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a chat service. mem and answers may be nil.
func NewService(exec Executor, mem MemoryContexter, answers Answerer, log *zap.Logger) *Service {
	return &Service{
		exec:    exec,
		memory:  mem,
		answers: answers,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// WithMetrics counts classified intents on m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Classify resolves the memory context when requested and classifies the
// prompt. A memory read failure degrades to an empty context.
func (s *Service) Classify(ctx context.Context, req Request) (ai.Classification, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return ai.Classification{}, ErrEmptyPrompt
	}

	opts := ai.ClassifyOptions{UseGlobalMemory: req.UseGlobalMemory}
	if req.UseGlobalMemory && s.memory != nil {
		memCtx, err := s.memory.Context(ctx)
		if err != nil {
			s.logger.Warn("read global memory failed", zap.Error(err))
		}
		opts.MemoryContext = memCtx
	}

	cls := ai.ClassifyDetailed(req.Prompt, opts)
	if s.metrics != nil {
		s.metrics.ObserveIntents(cls.Intents)
	}
	s.logger.Debug("prompt classified",
		zap.Strings("intents", cls.Intents),
		zap.Int("tool_calls", len(cls.Calls)),
	)
	return cls, nil
}

// Complete returns the simulated chat completion requesting the tool calls
// the prompt warrants.
func (s *Service) Complete(ctx context.Context, req Request) (openai.ChatCompletionResponse, error) {
	cls, err := s.Classify(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return s.completion(req.Prompt, cls.Calls)
}

func (s *Service) completion(prompt string, calls []ai.ToolCall) (openai.ChatCompletionResponse, error) {
	toolCalls, err := ToOpenAI(calls)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	now := s.now()
	promptTokens := utf8.RuneCountInString(prompt)
	return openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + strconv.FormatInt(now.UnixMilli(), 10),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   Model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   AssistantMessage,
				ToolCalls: toolCalls,
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// ToOpenAI renders tool calls in the chat completion wire format, with the
// arguments as a JSON string.
func ToOpenAI(calls []ai.ToolCall) ([]openai.ToolCall, error) {
	out := make([]openai.ToolCall, 0, len(calls))
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			return nil, err
		}
		out = append(out, openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: string(args),
			},
		})
	}
	return out, nil
}

// FromOpenAI parses tool calls of a chat completion back into ToolCalls.
func FromOpenAI(calls []openai.ToolCall) ([]ai.ToolCall, error) {
	out := make([]ai.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := map[string]interface{}{}
		if c.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
				return nil, err
			}
		}
		out = append(out, ai.ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: args})
	}
	return out, nil
}
