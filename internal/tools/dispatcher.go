package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/catalog"
	"github.com/edibez/mcplab/internal/logger"
	"github.com/edibez/mcplab/internal/memory"
	"github.com/edibez/mcplab/internal/metrics"
	"github.com/edibez/mcplab/internal/price"
)

// ErrUnavailable is returned when the backend of a tool is not configured.
var ErrUnavailable = errors.New("tool backend not configured")

// Status is the outcome of one tool execution.
type Status string

const (
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusDisabled Status = "disabled"
)

// Result is what a tool produced for a call.
type Result struct {
	ToolCallID string      `json:"toolCallId"`
	Tool       string      `json:"tool"`
	Status     Status      `json:"status"`
	Summary    string      `json:"summary"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// PriceProvider is the part of the price client the crypto tool needs.
type PriceProvider interface {
	Quote(ctx context.Context, coinID, currency string) (*price.Quote, error)
	Search(ctx context.Context, query string) ([]price.Coin, error)
	CalculateStaking(ctx context.Context, amount, years, apy float64, coinID, currency string) (*price.StakingResult, error)
}

// MemoryReader lists the global memory.
type MemoryReader interface {
	List(ctx context.Context) ([]memory.Entry, error)
}

// CoinTracker is told about every coin a prompt asks for.
type CoinTracker interface {
	OnCoinRequested(ctx context.Context, coinID string)
}

// CountData is the calculator output for counting questions.
type CountData struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total,omitempty"`
}

// CalculationData is the calculator output for arithmetic.
type CalculationData struct {
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
}

// SearchData is the search tool output.
type SearchData struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// ProductData is the product tool output. Details is the product document
// when a single product was requested and one exists.
type ProductData struct {
	Products map[string]string `json:"products"`
	Details  string            `json:"details,omitempty"`
}

// CryptoData is the crypto-price tool output; exactly one of Quote, Coins
// and Staking is set, matching Params.Action.
type CryptoData struct {
	Params  ai.ExtractedParams   `json:"params"`
	Quote   *price.Quote         `json:"quote,omitempty"`
	Coins   []price.Coin         `json:"coins,omitempty"`
	Staking *price.StakingResult `json:"staking,omitempty"`
}

// Dispatcher executes classified tool calls against the catalog, the price
// provider and the global memory.
type Dispatcher struct {
	registry *Registry
	catalog  *catalog.Catalog
	prices   PriceProvider
	memory   MemoryReader
	tracker  CoinTracker
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. prices and mem may be nil, in which
// case their tools fail with ErrUnavailable.
func NewDispatcher(reg *Registry, cat *catalog.Catalog, prices PriceProvider, mem MemoryReader, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		catalog:  cat,
		prices:   prices,
		memory:   mem,
		logger:   logger.OrNop(log),
	}
}

// WithMetrics records every execution on m.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithTracker reports requested coins to t.
func (d *Dispatcher) WithTracker(t CoinTracker) *Dispatcher {
	d.tracker = t
	return d
}

// Registry returns the tool definitions the dispatcher validates against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// DisabledResult is the result of a call whose tool was switched off.
func DisabledResult(call ai.ToolCall) Result {
	return Result{
		ToolCallID: call.ID,
		Tool:       call.Name,
		Status:     StatusDisabled,
		Summary:    fmt.Sprintf("Tool %s is disabled for this request.", call.Name),
	}
}

// Execute runs call. The returned Result is always filled in; on failure its
// Status is StatusError and the error is also returned.
func (d *Dispatcher) Execute(ctx context.Context, call ai.ToolCall) (Result, error) {
	start := time.Now()
	res := Result{ToolCallID: call.ID, Tool: call.Name}

	summary, data, err := d.run(ctx, call)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		res.Summary = summary
		if res.Summary == "" {
			res.Summary = "Error: " + err.Error()
		}
		d.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
	} else {
		res.Status = StatusOK
		res.Summary = summary
		res.Data = data
	}

	if d.metrics != nil {
		d.metrics.ObserveTool(call.Name, string(res.Status), time.Since(start))
	}
	return res, err
}

func (d *Dispatcher) run(ctx context.Context, call ai.ToolCall) (string, interface{}, error) {
	if err := d.registry.Validate(call.Name, call.Arguments); err != nil {
		return "", nil, err
	}

	switch call.Name {
	case ai.ToolCalculator:
		return d.calculator(call)
	case ai.ToolSearch:
		return search(call.Query())
	case ai.ToolPersonas:
		return d.personas(call)
	case ai.ToolProducts:
		return d.products(call)
	case ai.ToolExecutives:
		return d.executives(call)
	case ai.ToolCryptoPrice:
		return d.cryptoPrice(ctx, call)
	case ai.ToolGlobalMemory:
		return d.globalMemory(ctx)
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}

var countWords = []string{"how many", "count", "number of"}

func isCountQuery(lower string) bool {
	for _, w := range countWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func mentionsAny(lower string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func (d *Dispatcher) calculator(call ai.ToolCall) (string, interface{}, error) {
	if expr := stringArg(call.Arguments, "expression"); expr != "" {
		return calculate(expr)
	}

	query := call.Query()
	if isCountQuery(strings.ToLower(query)) {
		return d.count(strings.ToLower(query))
	}

	expr, ok := FindExpression(query)
	if !ok {
		return "Unable to calculate: " + query, nil, fmt.Errorf("%w: %q", ErrBadExpression, query)
	}
	return calculate(expr)
}

func calculate(expr string) (string, interface{}, error) {
	v, err := Evaluate(expr)
	if err != nil {
		return "Unable to calculate: " + expr, nil, err
	}
	return fmt.Sprintf("%s = %s", expr, FormatNumber(v)), CalculationData{Expression: expr, Value: v}, nil
}

// count answers counting questions from the catalog. A question that names
// no dataset counts all of them.
func (d *Dispatcher) count(lower string) (string, interface{}, error) {
	personas := mentionsAny(lower, "persona", "user", "people")
	products := mentionsAny(lower, "product", "portfolio")
	executives := mentionsAny(lower, "executive", "leader")
	if !personas && !products && !executives {
		personas, products, executives = true, true, true
	}

	data := CountData{Counts: map[string]int{}}
	var lines []string
	if personas {
		n := len(d.catalog.Personas())
		data.Counts["personas"] = n
		lines = append(lines, fmt.Sprintf("IOG has %d different personas.", n))
	}
	if products {
		n := len(d.catalog.Products())
		data.Counts["products"] = n
		lines = append(lines, fmt.Sprintf("IOG has %d products in its portfolio.", n))
	}
	if executives {
		n := len(d.catalog.Executives())
		data.Counts["executives"] = n
		lines = append(lines, fmt.Sprintf("IOG has %d key executives in its leadership team.", n))
	}

	if len(data.Counts) > 1 {
		for _, n := range data.Counts {
			data.Total += n
		}
		lines = append(lines, fmt.Sprintf("In total, that is %d entries combined.", data.Total))
	}
	return strings.Join(lines, " "), data, nil
}

var searchAnswers = map[string]string{
	"MCP":            "Model Context Protocol - A standard for LLM interactions with tools",
	"context window": "The amount of text a language model can process at once",
	"LLM tools":      "External functions that language models can use to extend capabilities",
	"":               "Search results for: Model Context Protocol and its applications",
}

func search(query string) (string, interface{}, error) {
	answer, ok := searchAnswers[query]
	if !ok {
		answer = "Search results for: " + query
	}
	return answer, SearchData{Query: query, Answer: answer}, nil
}

func (d *Dispatcher) personas(call ai.ToolCall) (string, interface{}, error) {
	all := d.catalog.Personas()

	if name := stringArg(call.Arguments, "name"); name != "" && !strings.EqualFold(name, "all") {
		key, desc, err := d.catalog.Persona(name)
		if err != nil {
			return fmt.Sprintf("Persona '%s' not found", name), nil, err
		}
		return describe(key, desc), map[string]string{key: desc}, nil
	}

	lower := strings.ToLower(call.Query())
	if isCountQuery(lower) {
		return fmt.Sprintf("IOG has %d different personas: %s.", len(all), upperNames(all)), all, nil
	}
	if key, ok := d.catalog.MatchPersona(lower); ok {
		return describe(key, all[key]), map[string]string{key: all[key]}, nil
	}
	return "Available IOG personas: " + describeAll(all), all, nil
}

func (d *Dispatcher) products(call ai.ToolCall) (string, interface{}, error) {
	all := d.catalog.Products()
	detailed, _ := call.Arguments["detailed"].(bool)

	if name := stringArg(call.Arguments, "name"); name != "" && !strings.EqualFold(name, "all") {
		key, desc, err := d.catalog.Product(name)
		if err != nil {
			return fmt.Sprintf("Product '%s' not found", name), nil, err
		}
		data := ProductData{Products: map[string]string{key: desc}}
		if detailed {
			data.Details = d.productDetails(key)
		}
		return describe(key, desc), data, nil
	}

	lower := strings.ToLower(call.Query())
	if key, ok := d.catalog.MatchProduct(lower); ok {
		data := ProductData{
			Products: map[string]string{key: all[key]},
			Details:  d.productDetails(key),
		}
		return describe(key, all[key]), data, nil
	}
	if isCountQuery(lower) {
		return fmt.Sprintf("IOG has %d main products in its portfolio: %s.", len(all), upperNames(all)),
			ProductData{Products: all}, nil
	}
	return "IOG product portfolio: " + describeAll(all), ProductData{Products: all}, nil
}

// productDetails returns the product document, or "" when there is none.
func (d *Dispatcher) productDetails(name string) string {
	details, err := d.catalog.ProductDetails(name)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			d.logger.Warn("read product details failed", zap.String("product", name), zap.Error(err))
		}
		return ""
	}
	return details
}

func (d *Dispatcher) executives(call ai.ToolCall) (string, interface{}, error) {
	all := d.catalog.Executives()

	lookup := call.Query()
	if name := stringArg(call.Arguments, "name"); name != "" && !strings.EqualFold(name, "all") {
		if _, ok := all[name]; ok {
			return describeExecutive(all[name]), map[string]catalog.Executive{name: all[name]}, nil
		}
		id, ok := d.catalog.MatchExecutive(name)
		if !ok {
			return fmt.Sprintf("Executive '%s' not found", name), nil,
				fmt.Errorf("executive %q: %w", name, catalog.ErrNotFound)
		}
		return describeExecutive(all[id]), map[string]catalog.Executive{id: all[id]}, nil
	}

	lower := strings.ToLower(lookup)
	if id, ok := d.catalog.MatchExecutive(lower); ok {
		return describeExecutive(all[id]), map[string]catalog.Executive{id: all[id]}, nil
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%s)", all[id].Name, all[id].Position))
	}

	if isCountQuery(lower) {
		return fmt.Sprintf("IOG has %d key executives in its leadership team: %s.", len(all), strings.Join(parts, ", ")), all, nil
	}
	return "IOG leadership team: " + strings.Join(parts, ", ") + ".", all, nil
}

func (d *Dispatcher) cryptoPrice(ctx context.Context, call ai.ToolCall) (string, interface{}, error) {
	if d.prices == nil {
		return "", nil, fmt.Errorf("%s: %w", call.Name, ErrUnavailable)
	}

	var params ai.ExtractedParams
	if _, explicit := call.Arguments["action"]; explicit {
		params = explicitCryptoParams(call.Arguments)
	} else {
		params = ai.ExtractCryptoParams(call.Query())
	}
	data := CryptoData{Params: params}

	if d.tracker != nil && params.Action != ai.ActionSearch {
		d.tracker.OnCoinRequested(ctx, params.CoinID)
	}

	switch params.Action {
	case ai.ActionSearch:
		query := params.Query
		if query == "" {
			query = call.Query()
		}
		coins, err := d.prices.Search(ctx, query)
		if err != nil {
			return "", nil, err
		}
		data.Coins = coins
		return fmt.Sprintf("Found %d coins matching %q.", len(coins), query), data, nil

	case ai.ActionCalculateStaking:
		st, err := d.prices.CalculateStaking(ctx, params.Amount, params.Years, params.APY, params.CoinID, params.Currency)
		if err != nil {
			return "", nil, err
		}
		data.Staking = st
		return fmt.Sprintf(
			"Staking %s %s for %s years at %s%% APY grows to %.2f tokens worth %s, earning %.2f tokens (%s).",
			FormatNumber(st.InitialTokens), st.CoinID, FormatNumber(st.Years), FormatNumber(st.APY),
			st.FutureTokens, FormatCurrency(st.FutureValue, st.Currency),
			st.TokensEarned, FormatCurrency(st.ValueEarned, st.Currency),
		), data, nil

	default:
		q, err := d.prices.Quote(ctx, params.CoinID, params.Currency)
		if err != nil {
			return "", nil, err
		}
		data.Quote = q
		return fmt.Sprintf("%s (%s) is trading at %s, %+.2f%% in 24h.",
			q.Name, strings.ToUpper(q.Symbol), FormatCurrency(q.Price, q.Currency), q.PriceChange24h,
		), data, nil
	}
}

// explicitCryptoParams builds parameters from structured arguments, falling
// back to the usual defaults for anything not given.
func explicitCryptoParams(args map[string]interface{}) ai.ExtractedParams {
	params := ai.ExtractedParams{
		Action:   ai.Action(stringArg(args, "action")),
		CoinID:   ai.DefaultCoinID,
		Currency: ai.DefaultCurrency,
		Query:    stringArg(args, "query"),
	}
	if v := stringArg(args, "coinId"); v != "" {
		params.CoinID = v
	}
	if v := stringArg(args, "currency"); v != "" {
		params.Currency = v
	}
	if params.Action == ai.ActionCalculateStaking {
		params.Amount = numberArg(args, "amount", ai.DefaultStakeAmount)
		params.Years = numberArg(args, "years", ai.DefaultStakeYears)
		params.APY = numberArg(args, "apy", ai.DefaultStakeAPY)
	}
	return params
}

func numberArg(args map[string]interface{}, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func (d *Dispatcher) globalMemory(ctx context.Context) (string, interface{}, error) {
	if d.memory == nil {
		return "", nil, fmt.Errorf("%s: %w", ai.ToolGlobalMemory, ErrUnavailable)
	}
	entries, err := d.memory.List(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "Global memory is empty.", entries, nil
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Key+": "+e.Value)
	}
	return "Global memory: " + strings.Join(parts, "; ") + ".", entries, nil
}

func describe(name, desc string) string {
	return strings.ToUpper(name) + ": " + desc
}

func describeAll(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, describe(k, m[k]))
	}
	return strings.Join(parts, " ")
}

func describeExecutive(e catalog.Executive) string {
	return fmt.Sprintf("%s - %s: %s", e.Name, e.Position, e.Bio)
}

func upperNames(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
