package ai

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tool names understood by the dispatcher.
const (
	ToolSearch       = "search"
	ToolPersonas     = "iog-personas"
	ToolProducts     = "iog-products"
	ToolExecutives   = "iog-executives"
	ToolCalculator   = "calculator"
	ToolCryptoPrice  = "crypto-price"
	ToolGlobalMemory = "global-memory-access"
)

// FallbackSearchQuery is the query of the generic search call.
const FallbackSearchQuery = "Search for general information"

var toolNames = []string{
	ToolSearch,
	ToolPersonas,
	ToolProducts,
	ToolExecutives,
	ToolCalculator,
	ToolCryptoPrice,
	ToolGlobalMemory,
}

// ToolNames returns every tool name in display order.
func ToolNames() []string {
	out := make([]string, len(toolNames))
	copy(out, toolNames)
	return out
}

// IsTool reports whether name belongs to the tool enumeration.
func IsTool(name string) bool {
	for _, n := range toolNames {
		if n == name {
			return true
		}
	}
	return false
}

// ToolCall is a single tool invocation decided by the classifier.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Query returns the "query" argument, or "" if absent.
func (c ToolCall) Query() string {
	q, _ := c.Arguments["query"].(string)
	return q
}

// ClassifyOptions carries the request-scoped switches of a classification.
type ClassifyOptions struct {
	UseGlobalMemory bool
	// MemoryContext is the serialized memory block prepended to the prompt
	// for matching when UseGlobalMemory is set.
	MemoryContext string
}

// Classification is the outcome of Classify together with the names of the
// intents that fired, in emission order.
type Classification struct {
	Intents []string
	Calls   []ToolCall
}

type callTemplate struct {
	tool  string
	query string // empty forwards the user's prompt
}

type intent struct {
	name     string
	keywords []string
	extra    func(lower string) bool
	calls    []callTemplate
}

func (i intent) matches(lower string) bool {
	if containsAny(lower, i.keywords...) {
		return true
	}
	return i.extra != nil && i.extra(lower)
}

var (
	arithmeticPattern = regexp.MustCompile(`[0-9]\s*[+\-*/]\s*[0-9]`)
	digitPattern      = regexp.MustCompile(`[0-9]`)
)

// Evaluated independently and in this order.
var intents = []intent{
	{
		name:     "persona",
		keywords: []string{"persona", "user"},
		calls: []callTemplate{
			{ToolSearch, "IOG personas information"},
			{ToolPersonas, "Find information about IOG personas"},
		},
	},
	{
		name:     "product",
		keywords: []string{"product", "realfi", "lace", "midnight"},
		calls: []callTemplate{
			{ToolSearch, "IOG products information"},
			{ToolProducts, "Find information about IOG products"},
		},
	},
	{
		name: "executive",
		keywords: []string{
			"executive", "leadership", "ceo", "founder",
			"charles", "hoskinson", "leader", "management",
		},
		calls: []callTemplate{
			{ToolSearch, "IOG executives information"},
			{ToolExecutives, "Find information about IOG executives"},
		},
	},
	{
		name: "calculation",
		keywords: []string{
			"calculate", "sum", "add", "multiply", "divide",
			"subtract", "how many", "count",
		},
		extra: arithmeticPattern.MatchString,
		calls: []callTemplate{{tool: ToolCalculator}},
	},
	{
		name: "crypto",
		keywords: []string{
			"crypto", "price", "staking", "ada", "cardano", "bitcoin",
			"ethereum", "token", "coin", "apy",
		},
		extra: func(lower string) bool {
			return strings.Contains(lower, "stake") && digitPattern.MatchString(lower)
		},
		calls: []callTemplate{{tool: ToolCryptoPrice}},
	},
}

var generalInfoWords = []string{"what", "find", "search"}

// Classify maps a prompt to the ordered tool calls a model would request.
// It never fails: a prompt that matches nothing yields one fallback search.
func Classify(prompt string, opts ClassifyOptions) []ToolCall {
	return ClassifyDetailed(prompt, opts).Calls
}

// ClassifyDetailed is Classify that also reports which intents fired.
func ClassifyDetailed(prompt string, opts ClassifyOptions) Classification {
	var result Classification

	text := prompt
	if opts.UseGlobalMemory {
		text = opts.MemoryContext + prompt
		result.Intents = append(result.Intents, "memory")
		result.Calls = append(result.Calls, newToolCall(ToolGlobalMemory, prompt))
	}
	lower := strings.ToLower(text)

	matched := false
	for _, in := range intents {
		if !in.matches(lower) {
			continue
		}
		matched = true
		result.Intents = append(result.Intents, in.name)
		for _, tmpl := range in.calls {
			query := tmpl.query
			if query == "" {
				query = prompt
			}
			result.Calls = append(result.Calls, newToolCall(tmpl.tool, query))
		}
	}

	if !matched || containsAny(lower, generalInfoWords...) {
		result.Intents = append(result.Intents, "general")
		result.Calls = append(result.Calls, newToolCall(ToolSearch, FallbackSearchQuery))
	}

	return result
}

func newToolCall(name, query string) ToolCall {
	return ToolCall{
		ID:        NewCallID(),
		Name:      name,
		Arguments: map[string]interface{}{"query": query},
	}
}

// NewCallID returns a fresh "call_" identifier with a 12 character
// alphanumeric random suffix.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
