package price

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/logger"
)

const (
	RequestedCoinsKey = "mcplab:price:requested" // Hash: coin -> last_access_ts
	StaleThreshold    = 24 * time.Hour
	DefaultSchedule   = "@every 5m"
)

// Warmer keeps the price cache hot for the default coins and for any coin
// requested within StaleThreshold.
type Warmer struct {
	client     *Client
	redis      *redis.Client
	defaults   []string
	currencies []string
	logger     *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
	now  func() time.Time
}

// NewWarmer creates a warmer for the given default coins and currencies.
func NewWarmer(client *Client, rdb *redis.Client, defaults, currencies []string, log *zap.Logger) *Warmer {
	return &Warmer{
		client:     client,
		redis:      rdb,
		defaults:   defaults,
		currencies: currencies,
		logger:     logger.OrNop(log),
		now:        time.Now,
	}
}

// OnCoinRequested records an access to coinID.
func (w *Warmer) OnCoinRequested(ctx context.Context, coinID string) {
	ts := w.now().Unix()
	if err := w.redis.HSet(ctx, RequestedCoinsKey, coinID, ts).Err(); err != nil {
		w.logger.Warn("record coin access failed", zap.String("coin", coinID), zap.Error(err))
	}
}

// Coins returns the coins the next refresh will fetch: defaults first, then
// requested coins that are not stale.
func (w *Warmer) Coins(ctx context.Context) ([]string, error) {
	requested, err := w.redis.HGetAll(ctx, RequestedCoinsKey).Result()
	if err != nil {
		return nil, err
	}

	threshold := w.now().Add(-StaleThreshold).Unix()
	seen := make(map[string]bool)
	coins := make([]string, 0, len(w.defaults)+len(requested))
	for _, c := range w.defaults {
		if !seen[c] {
			coins = append(coins, c)
			seen[c] = true
		}
	}

	for coin, lastAccessStr := range requested {
		lastAccess, _ := strconv.ParseInt(lastAccessStr, 10, 64)
		if lastAccess < threshold {
			if err := w.redis.HDel(ctx, RequestedCoinsKey, coin).Err(); err != nil {
				w.logger.Warn("drop stale coin failed", zap.String("coin", coin), zap.Error(err))
				continue
			}
			w.logger.Debug("dropped stale coin", zap.String("coin", coin))
			continue
		}
		if !seen[coin] {
			coins = append(coins, coin)
			seen[coin] = true
		}
	}
	return coins, nil
}

// Refresh re-fetches every tracked coin. Failures are logged and skipped;
// the number of coins refreshed is returned.
func (w *Warmer) Refresh(ctx context.Context) (int, error) {
	coins, err := w.Coins(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, coin := range coins {
		if _, err := w.client.Refresh(ctx, coin, w.currencies); err != nil {
			w.logger.Warn("price refresh failed", zap.String("coin", coin), zap.Error(err))
			continue
		}
		refreshed++
	}
	w.logger.Info("price cache refreshed", zap.Int("coins", refreshed), zap.Int("tracked", len(coins)))
	return refreshed, nil
}

// Start schedules Refresh on a cron schedule such as "@every 5m".
func (w *Warmer) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := w.Refresh(ctx); err != nil {
			w.logger.Error("scheduled price refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	w.mu.Lock()
	w.cron = c
	w.mu.Unlock()

	c.Start()
	w.logger.Info("price warmer started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
