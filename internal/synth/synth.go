// Package synth turns tool results into a final answer.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/logger"
	"github.com/edibez/mcplab/internal/settings"
	"github.com/edibez/mcplab/internal/tools"
)

const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"

	NoAnswer = "No clear answer could be synthesized from the tool results."

	refineTimeout = 20 * time.Second
)

const systemPrompt = `You write the final answer of a tool-calling assistant.
Use only the facts in the tool results. Keep every number unchanged.
Answer in a few plain sentences.`

// Synthesizer composes answers from tool results and, when live mode is on,
// lets the session's LLM provider reword them.
type Synthesizer struct {
	live     bool
	baseURLs map[string]string
	models   map[string]string
	logger   *zap.Logger
}

// New creates a synthesizer. With live false answers are template only.
func New(live bool, log *zap.Logger) *Synthesizer {
	return &Synthesizer{
		live: live,
		baseURLs: map[string]string{
			settings.ProviderDeepSeek: DeepSeekBaseURL,
		},
		models: map[string]string{
			settings.ProviderDeepSeek: DeepSeekModel,
			settings.ProviderOpenAI:   openai.GPT4oMini,
		},
		logger: logger.OrNop(log),
	}
}

// WithBaseURL points provider at another OpenAI compatible endpoint.
func (s *Synthesizer) WithBaseURL(provider, baseURL string) *Synthesizer {
	s.baseURLs[provider] = baseURL
	return s
}

// Synthesize returns the answer to query. st may be nil; refinement only
// happens in live mode for settings with a key for their provider.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []tools.Result, st *settings.Settings) string {
	draft := Compose(query, results)
	if !s.live || st == nil || st.ActiveKey() == "" || draft == NoAnswer {
		return draft
	}

	refined, err := s.refine(ctx, query, draft, st)
	if err != nil {
		s.logger.Warn("answer refinement failed, using template answer",
			zap.String("provider", st.Provider),
			zap.Error(err),
		)
		return draft
	}
	return refined
}

func (s *Synthesizer) refine(ctx context.Context, query, draft string, st *settings.Settings) (string, error) {
	cfg := openai.DefaultConfig(st.ActiveKey())
	if base, ok := s.baseURLs[st.Provider]; ok {
		cfg.BaseURL = base
	}
	client := openai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(ctx, refineTimeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.models[st.Provider],
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Question: %s\n\nTool results:\n%s", query, draft)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", st.Provider, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s completion: empty response", st.Provider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Compose builds the template answer. Computed results (staking, prices,
// calculations) lead, catalog and memory facts follow, and search results are
// used only when nothing else succeeded.
func Compose(query string, results []tools.Result) string {
	var computed, facts, searches []string
	for _, r := range results {
		if r.Status != tools.StatusOK || r.Summary == "" {
			continue
		}
		switch r.Tool {
		case ai.ToolCryptoPrice, ai.ToolCalculator:
			computed = append(computed, r.Summary)
		case ai.ToolSearch:
			searches = append(searches, r.Summary)
		default:
			facts = append(facts, r.Summary)
		}
	}

	parts := append(computed, facts...)
	if len(parts) == 0 {
		parts = dedupe(searches)
	}
	if len(parts) == 0 {
		return NoAnswer
	}

	answer := strings.Join(parts, "\n\n")
	if query != "" && len(parts) > 1 {
		answer = fmt.Sprintf("Here is what I found for %q:\n\n%s", query, answer)
	}
	return answer
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
