package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/catalog"
	"github.com/edibez/mcplab/internal/memory"
	"github.com/edibez/mcplab/internal/metrics"
	"github.com/edibez/mcplab/internal/price"
)

type mockPrices struct {
	mock.Mock
}

func (m *mockPrices) Quote(ctx context.Context, coinID, currency string) (*price.Quote, error) {
	args := m.Called(ctx, coinID, currency)
	if q := args.Get(0); q != nil {
		return q.(*price.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrices) Search(ctx context.Context, query string) ([]price.Coin, error) {
	args := m.Called(ctx, query)
	if c := args.Get(0); c != nil {
		return c.([]price.Coin), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrices) CalculateStaking(ctx context.Context, amount, years, apy float64, coinID, currency string) (*price.StakingResult, error) {
	args := m.Called(ctx, amount, years, apy, coinID, currency)
	if r := args.Get(0); r != nil {
		return r.(*price.StakingResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeMemory struct {
	entries []memory.Entry
	err     error
}

func (f fakeMemory) List(context.Context) ([]memory.Entry, error) { return f.entries, f.err }

type recordingTracker struct {
	coins []string
}

func (r *recordingTracker) OnCoinRequested(_ context.Context, coinID string) {
	r.coins = append(r.coins, coinID)
}

func newDispatcher(t *testing.T, prices PriceProvider, mem MemoryReader) *Dispatcher {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	cat, err := catalog.Load(t.TempDir())
	require.NoError(t, err)
	return NewDispatcher(reg, cat, prices, mem, zaptest.NewLogger(t))
}

func call(name string, args map[string]interface{}) ai.ToolCall {
	return ai.ToolCall{ID: "call_abcdef123456", Name: name, Arguments: args}
}

func TestDispatcher_CalculatorArithmetic(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolCalculator, map[string]interface{}{"query": "Calculate 125 * 36"}))

	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "call_abcdef123456", res.ToolCallID)
	assert.Equal(t, "125 * 36 = 4500", res.Summary)
	assert.Equal(t, CalculationData{Expression: "125 * 36", Value: 4500}, res.Data)
}

func TestDispatcher_CalculatorExpressionArgument(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolCalculator, map[string]interface{}{"expression": "(2 + 3) * 4"}))

	require.NoError(t, err)
	assert.Equal(t, "(2 + 3) * 4 = 20", res.Summary)
}

func TestDispatcher_CalculatorCounts(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	tests := []struct {
		query string
		want  CountData
	}{
		{"How many personas are there?", CountData{Counts: map[string]int{"personas": 8}}},
		{"count the products", CountData{Counts: map[string]int{"products": 3}}},
		{"how many users and products?", CountData{Counts: map[string]int{"personas": 8, "products": 3}, Total: 11}},
		{"how many are there?", CountData{Counts: map[string]int{"personas": 8, "products": 3, "executives": 3}, Total: 14}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := d.Execute(context.Background(), call(ai.ToolCalculator, map[string]interface{}{"query": tt.query}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Data)
		})
	}
}

func TestDispatcher_CalculatorWithoutExpression(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolCalculator, map[string]interface{}{"query": "add some numbers"}))

	assert.ErrorIs(t, err, ErrBadExpression)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "Unable to calculate: add some numbers", res.Summary)
}

func TestDispatcher_Search(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	tests := map[string]string{
		"MCP":                      "Model Context Protocol - A standard for LLM interactions with tools",
		"context window":           "The amount of text a language model can process at once",
		"IOG personas information": "Search results for: IOG personas information",
		ai.FallbackSearchQuery:     "Search results for: Search for general information",
		"":                         "Search results for: Model Context Protocol and its applications",
		"LLM tools":                "External functions that language models can use to extend capabilities",
	}
	for query, want := range tests {
		res, err := d.Execute(context.Background(), call(ai.ToolSearch, map[string]interface{}{"query": query}))
		require.NoError(t, err)
		assert.Equal(t, want, res.Summary, query)
	}
}

func TestDispatcher_SearchRequiresQuery(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolSearch, map[string]interface{}{}))

	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Equal(t, StatusError, res.Status)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	_, err := d.Execute(context.Background(), call("weather", nil))

	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatcher_Personas(t *testing.T) {
	d := newDispatcher(t, nil, nil)
	ctx := context.Background()

	res, err := d.Execute(ctx, call(ai.ToolPersonas, map[string]interface{}{"query": "Find information about IOG personas"}))
	require.NoError(t, err)
	assert.Len(t, res.Data, 8)

	res, err = d.Execute(ctx, call(ai.ToolPersonas, map[string]interface{}{"query": "tell me about the builder"}))
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)
	assert.Contains(t, res.Summary, "BUILDER")

	res, err = d.Execute(ctx, call(ai.ToolPersonas, map[string]interface{}{"name": "Crypto Zero"}))
	require.NoError(t, err)
	assert.Contains(t, res.Data, "crypto zero")

	_, err = d.Execute(ctx, call(ai.ToolPersonas, map[string]interface{}{"name": "nobody"}))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDispatcher_ProductsWithDetails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "products"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products", "Lace.md"), []byte("# Lace"), 0o644))
	reg, err := NewRegistry()
	require.NoError(t, err)
	cat, err := catalog.Load(dir)
	require.NoError(t, err)
	d := NewDispatcher(reg, cat, nil, nil, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolProducts, map[string]interface{}{"query": "what is lace?"}))
	require.NoError(t, err)
	data := res.Data.(ProductData)
	assert.Equal(t, "# Lace", data.Details)
	assert.Len(t, data.Products, 1)

	res, err = d.Execute(context.Background(), call(ai.ToolProducts, map[string]interface{}{"name": "midnight", "detailed": true}))
	require.NoError(t, err)
	assert.Empty(t, res.Data.(ProductData).Details)

	res, err = d.Execute(context.Background(), call(ai.ToolProducts, map[string]interface{}{"query": "Find information about IOG products"}))
	require.NoError(t, err)
	assert.Len(t, res.Data.(ProductData).Products, 3)
}

func TestDispatcher_Executives(t *testing.T) {
	d := newDispatcher(t, nil, nil)
	ctx := context.Background()

	res, err := d.Execute(ctx, call(ai.ToolExecutives, map[string]interface{}{"query": "who is the president?"}))
	require.NoError(t, err)
	assert.Contains(t, res.Data, "tamara_haasen")

	res, err = d.Execute(ctx, call(ai.ToolExecutives, map[string]interface{}{"name": "Charles Hoskinson"}))
	require.NoError(t, err)
	assert.Contains(t, res.Data, "charles_hoskinson")
	assert.Contains(t, res.Summary, "Founder and CEO")

	res, err = d.Execute(ctx, call(ai.ToolExecutives, map[string]interface{}{"query": "Find information about IOG executives"}))
	require.NoError(t, err)
	assert.Len(t, res.Data, 3)
}

func TestDispatcher_CryptoPriceQuote(t *testing.T) {
	prices := &mockPrices{}
	prices.On("Quote", mock.Anything, "bitcoin", "eur").
		Return(&price.Quote{Name: "Bitcoin", Symbol: "bit", Currency: "eur", Price: 55000.5, PriceChange24h: 1.5}, nil)
	tracker := &recordingTracker{}
	d := newDispatcher(t, prices, nil).WithTracker(tracker)

	res, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{"query": "price of bitcoin in eur"}))

	require.NoError(t, err)
	assert.Equal(t, "Bitcoin (BIT) is trading at €55000.50, +1.50% in 24h.", res.Summary)
	assert.Equal(t, []string{"bitcoin"}, tracker.coins)
	prices.AssertExpectations(t)
}

func TestDispatcher_CryptoPriceStaking(t *testing.T) {
	prices := &mockPrices{}
	prices.On("CalculateStaking", mock.Anything, 1000.0, 3.0, 7.0, "cardano", "usd").
		Return(price.ProjectStaking(1000, 3, 7, 0.5, "cardano", "usd"), nil)
	d := newDispatcher(t, prices, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{"query": "stake 1,000 ADA for 3 years at 7% apy"}))

	require.NoError(t, err)
	data := res.Data.(CryptoData)
	assert.Equal(t, ai.ActionCalculateStaking, data.Params.Action)
	assert.InDelta(t, 1225.043, data.Staking.FutureTokens, 1e-3)
	assert.Contains(t, res.Summary, "Staking 1000 cardano for 3 years at 7% APY")
	prices.AssertExpectations(t)
}

func TestDispatcher_CryptoPriceExplicitArguments(t *testing.T) {
	prices := &mockPrices{}
	prices.On("CalculateStaking", mock.Anything, 500.0, 1.0, 5.0, "polkadot", "gbp").
		Return(price.ProjectStaking(500, 1, 5, 4, "polkadot", "gbp"), nil)
	d := newDispatcher(t, prices, nil)

	_, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{
		"action":   "calculateStaking",
		"coinId":   "polkadot",
		"currency": "gbp",
		"amount":   500.0,
	}))

	require.NoError(t, err)
	prices.AssertExpectations(t)
}

func TestDispatcher_CryptoPriceRejectsUnknownCoin(t *testing.T) {
	d := newDispatcher(t, &mockPrices{}, nil)

	_, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{
		"action": "getPrice",
		"coinId": "dogecoin",
	}))

	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDispatcher_CryptoPriceSearch(t *testing.T) {
	prices := &mockPrices{}
	prices.On("Search", mock.Anything, "find solana").
		Return([]price.Coin{{ID: "solana", Name: "Solana", Symbol: "SOL"}}, nil)
	d := newDispatcher(t, prices, nil)

	res, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{"query": "find solana"}))

	require.NoError(t, err)
	assert.Equal(t, `Found 1 coins matching "find solana".`, res.Summary)
}

func TestDispatcher_CryptoPriceUpstreamFailure(t *testing.T) {
	prices := &mockPrices{}
	prices.On("Quote", mock.Anything, "cardano", "usd").Return(nil, price.ErrNoPriceData)
	m := metrics.New()
	d := newDispatcher(t, prices, nil).WithMetrics(m)

	res, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{"query": "ada price"}))

	assert.ErrorIs(t, err, price.ErrNoPriceData)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(ai.ToolCryptoPrice, "error")))
}

func TestDispatcher_CryptoPriceWithoutProvider(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	_, err := d.Execute(context.Background(), call(ai.ToolCryptoPrice, map[string]interface{}{"query": "ada price"}))

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDispatcher_GlobalMemory(t *testing.T) {
	mem := fakeMemory{entries: []memory.Entry{
		{Key: "favorite_coin", Value: "ada", UpdatedAt: time.Now()},
		{Key: "name", Value: "Sam"},
	}}
	d := newDispatcher(t, nil, mem)

	res, err := d.Execute(context.Background(), call(ai.ToolGlobalMemory, map[string]interface{}{"query": "what do you remember?"}))

	require.NoError(t, err)
	assert.Equal(t, "Global memory: favorite_coin: ada; name: Sam.", res.Summary)

	d = newDispatcher(t, nil, fakeMemory{err: errors.New("disk full")})
	res, err = d.Execute(context.Background(), call(ai.ToolGlobalMemory, map[string]interface{}{"query": "x"}))
	require.Error(t, err)
	assert.Equal(t, "Error: disk full", res.Summary)
}

func TestDisabledResult(t *testing.T) {
	res := DisabledResult(call(ai.ToolCalculator, nil))

	assert.Equal(t, StatusDisabled, res.Status)
	assert.Equal(t, "Tool calculator is disabled for this request.", res.Summary)
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$1234.50", FormatCurrency(1234.5, "usd"))
	assert.Equal(t, "¥150", FormatCurrency(149.6, "JPY"))
	assert.Equal(t, "Ξ0.25", FormatCurrency(0.25, "eth"))
	assert.Equal(t, "3.00", FormatCurrency(3, "chf"))
}
