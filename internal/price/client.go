package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/logger"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	CacheKeyPrefix = "mcplab:price:"
	searchLimit    = 10
)

// ErrNoPriceData is returned when the provider has no price for a coin.
var ErrNoPriceData = errors.New("price data not available")

// Client for the CoinGecko public API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	redis      *redis.Client
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewClient creates a new CoinGecko client. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: zap.NewNop(),
	}
}

// WithCache stores price responses in Redis for ttl.
func (c *Client) WithCache(rdb *redis.Client, ttl time.Duration) *Client {
	c.redis = rdb
	c.cacheTTL = ttl
	return c
}

// WithLogger sets the logger used for cache failures.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.logger = logger.OrNop(l)
	return c
}

// Prices maps coin id -> field -> value, where field is a currency code or
// "<currency>_24h_change".
type Prices map[string]map[string]float64

// Coin is a search hit.
type Coin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb,omitempty"`
}

// Quote is a single coin price in one currency.
type Quote struct {
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	Currency       string   `json:"currency"`
	Price          float64  `json:"price"`
	PriceChange24h float64  `json:"price_change_24h"`
	MarketCap      *float64 `json:"market_cap"`
}

// GetPrice fetches prices for coinID in the given currencies, serving from
// the cache when possible.
func (c *Client) GetPrice(ctx context.Context, coinID string, currencies []string) (Prices, error) {
	if len(currencies) == 0 {
		currencies = []string{"usd"}
	}
	key := cacheKey(coinID, currencies)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached Prices
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	return c.fetchPrice(ctx, coinID, currencies)
}

// Refresh fetches prices bypassing the cache and stores the result.
func (c *Client) Refresh(ctx context.Context, coinID string, currencies []string) (Prices, error) {
	return c.fetchPrice(ctx, coinID, currencies)
}

func (c *Client) fetchPrice(ctx context.Context, coinID string, currencies []string) (Prices, error) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", strings.Join(currencies, ","))
	params.Set("include_24hr_change", "true")

	var prices Prices
	if err := c.get(ctx, "/simple/price", params, &prices); err != nil {
		return nil, fmt.Errorf("fetch price for %s: %w", coinID, err)
	}

	if c.redis != nil {
		key := cacheKey(coinID, currencies)
		data, _ := json.Marshal(prices)
		if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
			c.logger.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return prices, nil
}

// Quote returns the price of coinID in currency with a display name.
func (c *Client) Quote(ctx context.Context, coinID, currency string) (*Quote, error) {
	prices, err := c.GetPrice(ctx, coinID, []string{currency})
	if err != nil {
		return nil, err
	}
	fields, ok := prices[coinID]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoPriceData, coinID)
	}
	value, ok := fields[currency]
	if !ok {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoPriceData, coinID, currency)
	}

	return &Quote{
		Name:           displayName(coinID),
		Symbol:         symbolOf(coinID),
		Currency:       currency,
		Price:          value,
		PriceChange24h: fields[currency+"_24h_change"],
	}, nil
}

// Search finds coins by name or symbol, returning at most 10 hits.
func (c *Client) Search(ctx context.Context, query string) ([]Coin, error) {
	params := url.Values{}
	params.Set("query", query)

	var result struct {
		Coins []Coin `json:"coins"`
	}
	if err := c.get(ctx, "/search", params, &result); err != nil {
		return nil, fmt.Errorf("search coins: %w", err)
	}

	if len(result.Coins) > searchLimit {
		result.Coins = result.Coins[:searchLimit]
	}
	return result.Coins, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CoinGecko returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cacheKey(coinID string, currencies []string) string {
	return CacheKeyPrefix + coinID + ":" + strings.Join(currencies, ",")
}

func displayName(coinID string) string {
	if coinID == "" {
		return ""
	}
	return strings.ToUpper(coinID[:1]) + coinID[1:]
}

func symbolOf(coinID string) string {
	if len(coinID) > 3 {
		return coinID[:3]
	}
	return coinID
}
