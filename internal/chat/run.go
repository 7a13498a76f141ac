package chat

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/settings"
	"github.com/edibez/mcplab/internal/synth"
	"github.com/edibez/mcplab/internal/tools"
)

// EventType names the events of a step-by-step run.
type EventType string

const (
	EventCompletion    EventType = "completion"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventAnswer        EventType = "answer"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// Step is one event of a run, in the order a client should render it.
type Step struct {
	Type       EventType                      `json:"type"`
	Index      int                            `json:"index,omitempty"`
	Total      int                            `json:"total,omitempty"`
	Completion *openai.ChatCompletionResponse `json:"completion,omitempty"`
	Call       *ai.ToolCall                   `json:"call,omitempty"`
	Result     *tools.Result                  `json:"result,omitempty"`
	Answer     string                         `json:"answer,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

// Run classifies the prompt, emits the simulated completion, then executes
// each tool call in order and finishes with the synthesized answer. Tool
// failures are reported in their step and do not stop the run; an emit
// error or a cancelled ctx does.
func (s *Service) Run(ctx context.Context, req Request, st *settings.Settings, emit func(Step) error) ([]tools.Result, error) {
	cls, err := s.Classify(ctx, req)
	if err != nil {
		return nil, err
	}
	completion, err := s.completion(req.Prompt, cls.Calls)
	if err != nil {
		return nil, err
	}

	total := len(cls.Calls)
	if err := emit(Step{Type: EventCompletion, Total: total, Completion: &completion}); err != nil {
		return nil, err
	}

	disabled := req.Disabled()
	results := make([]tools.Result, 0, total)
	for i := range cls.Calls {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		call := cls.Calls[i]

		if err := emit(Step{Type: EventStepStarted, Index: i + 1, Total: total, Call: &call}); err != nil {
			return results, err
		}

		var res tools.Result
		if disabled[call.Name] {
			res = tools.DisabledResult(call)
		} else {
			res, err = s.exec.Execute(ctx, call)
			if err != nil {
				s.logger.Info("tool step failed", zap.String("tool", call.Name), zap.Error(err))
			}
		}
		results = append(results, res)

		if err := emit(Step{Type: EventStepCompleted, Index: i + 1, Total: total, Call: &call, Result: &res}); err != nil {
			return results, err
		}
	}

	answer := synth.Compose(req.Prompt, results)
	if s.answers != nil {
		answer = s.answers.Synthesize(ctx, req.Prompt, results, st)
	}
	if err := emit(Step{Type: EventAnswer, Answer: answer}); err != nil {
		return results, err
	}
	return results, nil
}
