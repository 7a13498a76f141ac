package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/ai"
	"github.com/edibez/mcplab/internal/catalog"
	"github.com/edibez/mcplab/internal/chat"
	"github.com/edibez/mcplab/internal/config"
	"github.com/edibez/mcplab/internal/memory"
	"github.com/edibez/mcplab/internal/metrics"
	"github.com/edibez/mcplab/internal/price"
	"github.com/edibez/mcplab/internal/ratelimit"
	"github.com/edibez/mcplab/internal/settings"
	"github.com/edibez/mcplab/internal/sqlite"
	"github.com/edibez/mcplab/internal/synth"
	"github.com/edibez/mcplab/internal/tools"
	"github.com/edibez/mcplab/pkg/types"
)

const sessionHeader = "X-Session-ID"

type server struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *sql.DB
	redis      *redis.Client
	catalog    *catalog.Catalog
	memory     *memory.Store
	settings   *settings.Store
	prices     *price.Client
	warmer     *price.Warmer
	dispatcher *tools.Dispatcher
	synth      *synth.Synthesizer
	chat       *chat.Service
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

// newServer opens the stores and wires every component. Redis being down is
// not fatal: the price cache falls through and rate limiting fails open.
func newServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*server, error) {
	s := &server{
		cfg:    cfg,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := s.redis.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		s.redis.Close()
		return nil, err
	}
	s.db = db

	if s.memory, err = memory.NewStore(db); err != nil {
		s.Close()
		return nil, err
	}
	if s.settings, err = settings.NewStore(db); err != nil {
		s.Close()
		return nil, err
	}
	if s.catalog, err = catalog.Load(cfg.Data.Dir); err != nil {
		s.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	registry, err := tools.NewRegistry()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.metrics = metrics.New()
	s.prices = price.NewClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.APIKey).
		WithCache(s.redis, cfg.CoinGecko.CacheTTL).
		WithLogger(log)
	s.warmer = price.NewWarmer(s.prices, s.redis, ai.CoinIDs(), []string{ai.DefaultCurrency}, log)
	s.dispatcher = tools.NewDispatcher(registry, s.catalog, s.prices, s.memory, log).
		WithMetrics(s.metrics).
		WithTracker(s.warmer)
	s.synth = synth.New(cfg.LLM.Live, log)
	s.chat = chat.NewService(s.dispatcher, s.memory, s.synth, log).WithMetrics(s.metrics)
	s.limiter = ratelimit.NewLimiter(s.redis, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	return s, nil
}

// Close stops the warmer and releases the stores.
func (s *server) Close() {
	if s.warmer != nil {
		s.warmer.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/settings", s.handleSaveSettings)
		api.GET("/settings/status", s.handleSettingsStatus)

		api.POST("/chat", s.rateLimit(), s.handleChat)
		api.GET("/chat/stream", s.rateLimit(), s.handleChatStream)
		api.POST("/synthesize", s.handleSynthesize)

		api.GET("/personas", s.handlePersonas)
		api.GET("/products", s.handleProducts)
		api.GET("/products/:name", s.handleProductDetails)
		api.GET("/executives", s.handleExecutives)

		api.GET("/global-memory", s.handleListMemory)
		api.POST("/global-memory", s.handlePutMemory)
		api.DELETE("/global-memory/:key", s.handleDeleteMemory)

		api.POST("/crypto-price", s.rateLimit(), s.handleCryptoPrice)
		api.GET("/function-schema", s.handleFunctionSchema)
		api.GET("/usage", s.handleUsage)
	}

	mcp := r.Group("/mcp")
	{
		mcp.GET("/tools", s.handleListTools)
		mcp.POST("/execute", s.rateLimit(), s.handleExecute)
	}

	return r
}

// sessionID reads the caller's session from the header or the query string.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	return c.Query("session_id")
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, types.ErrorResponse{Error: msg})
}

// Handlers

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": time.Now().Unix()})
}

func (s *server) handleSaveSettings(c *gin.Context) {
	var req types.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(c)
	}

	saved, err := s.settings.Save(c.Request.Context(), settings.Settings{
		SessionID:   req.SessionID,
		Provider:    req.Provider,
		DeepSeekKey: req.DeepseekKey,
		OpenAIKey:   req.OpenaiKey,
	})
	switch {
	case errors.Is(err, settings.ErrInvalidProvider):
		errorJSON(c, http.StatusBadRequest, "Invalid provider")
		return
	case errors.Is(err, settings.ErrMissingKey):
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("save settings failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	c.Header(sessionHeader, saved.SessionID)
	c.JSON(http.StatusOK, types.SettingsResponse{
		Message:   "Settings saved successfully",
		SessionID: saved.SessionID,
	})
}

func (s *server) handleSettingsStatus(c *gin.Context) {
	st, err := s.settings.Resolve(c.Request.Context(), sessionID(c))
	if err != nil {
		s.logger.Error("load settings failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, st.Status())
}

// requireProvider resolves the session settings and rejects the request when
// the active provider has no key. It reports whether the request may go on.
func (s *server) requireProvider(c *gin.Context, session string) (*settings.Settings, bool) {
	st, err := s.settings.Resolve(c.Request.Context(), session)
	if err != nil {
		s.logger.Error("load settings failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to load settings")
		return nil, false
	}
	if err := st.Validate(); err != nil {
		name := "DeepSeek"
		if st.Provider == settings.ProviderOpenAI {
			name = "OpenAI"
		}
		errorJSON(c, http.StatusBadRequest, name+" API key not set. Please configure your settings.")
		return nil, false
	}
	return st, true
}

func (s *server) handleChat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		errorJSON(c, http.StatusBadRequest, chat.ErrEmptyPrompt.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(c)
	}
	if _, ok := s.requireProvider(c, req.SessionID); !ok {
		return
	}

	resp, err := s.chat.Complete(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("chat completion failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) handleChatStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.chat.Serve(c.Request.Context(), conn, sessionID(c), s.settings.Resolve)
}

func (s *server) handleSynthesize(c *gin.Context) {
	var req types.SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "query is required")
		return
	}
	ctx := c.Request.Context()

	results := make([]tools.Result, 0, len(req.ToolResults)+1)
	hasMemory := false
	for _, tr := range req.ToolResults {
		summary := tr.Summary
		if summary == "" {
			summary = tr.Result
		}
		status := tools.Status(tr.Status)
		if status == "" {
			status = tools.StatusOK
		}
		hasMemory = hasMemory || tr.Tool == ai.ToolGlobalMemory
		results = append(results, tools.Result{
			ToolCallID: tr.ToolCallID,
			Tool:       tr.Tool,
			Status:     status,
			Summary:    summary,
			Data:       tr.Data,
		})
	}

	if req.UseGlobalMemory && !hasMemory {
		res, err := s.dispatcher.Execute(ctx, ai.ToolCall{
			ID:        ai.NewCallID(),
			Name:      ai.ToolGlobalMemory,
			Arguments: map[string]interface{}{"query": req.Query},
		})
		if err == nil {
			results = append(results, res)
		}
	}

	session := req.SessionID
	if session == "" {
		session = sessionID(c)
	}
	st, err := s.settings.Resolve(ctx, session)
	if err != nil {
		s.logger.Warn("load settings failed, answering from templates", zap.Error(err))
		st = nil
	}

	c.JSON(http.StatusOK, types.SynthesizeResponse{
		Answer: s.synth.Synthesize(ctx, req.Query, results, st),
	})
}

func (s *server) handlePersonas(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Personas())
}

func (s *server) handleProducts(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Products())
}

func (s *server) handleProductDetails(c *gin.Context) {
	name := strings.ToLower(c.Param("name"))
	content, err := s.catalog.ProductDetails(name)
	if errors.Is(err, catalog.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("Product '%s' not found", name))
		return
	}
	if err != nil {
		s.logger.Error("read product details failed", zap.String("product", name), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to read product details")
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "content": content})
}

func (s *server) handleExecutives(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Executives())
}

func (s *server) handleListMemory(c *gin.Context) {
	entries, err := s.memory.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list memory failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to read global memory")
		return
	}
	if entries == nil {
		entries = []memory.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) handlePutMemory(c *gin.Context) {
	var req types.MemoryEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "key and value are required")
		return
	}
	err := s.memory.Put(c.Request.Context(), req.Key, req.Value)
	if errors.Is(err, memory.ErrEmptyKey) {
		errorJSON(c, http.StatusBadRequest, "key and value are required")
		return
	}
	if err != nil {
		s.logger.Error("store memory failed", zap.String("key", req.Key), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to store memory")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": req.Key, "value": req.Value})
}

func (s *server) handleDeleteMemory(c *gin.Context) {
	key := c.Param("key")
	err := s.memory.Delete(c.Request.Context(), key)
	if errors.Is(err, memory.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("Memory '%s' not found", key))
		return
	}
	if err != nil {
		s.logger.Error("delete memory failed", zap.String("key", key), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Failed to delete memory")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) handleCryptoPrice(c *gin.Context) {
	var req types.CryptoPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.CryptoPriceResponse{Error: "invalid request body"})
		return
	}

	args := map[string]interface{}{}
	if req.Query != "" {
		args["query"] = req.Query
	}
	switch ai.Action(req.Action) {
	case ai.ActionGetPrice, ai.ActionSearch, ai.ActionCalculateStaking:
		args["action"] = req.Action
		if req.CoinID != "" {
			args["coinId"] = req.CoinID
		}
		if req.Currency != "" {
			args["currency"] = req.Currency
		}
		for key, v := range map[string]*float64{"amount": req.Amount, "years": req.Years, "apy": req.APY} {
			if v != nil {
				args[key] = *v
			}
		}
	case "":
		if req.Query == "" {
			c.JSON(http.StatusBadRequest, types.CryptoPriceResponse{Error: "action or query is required"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, types.CryptoPriceResponse{Error: "Unknown action: " + req.Action})
		return
	}

	res, err := s.dispatcher.Execute(c.Request.Context(), ai.ToolCall{
		ID:        ai.NewCallID(),
		Name:      ai.ToolCryptoPrice,
		Arguments: args,
	})
	switch {
	case errors.Is(err, tools.ErrInvalidArguments):
		c.JSON(http.StatusBadRequest, types.CryptoPriceResponse{Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, types.CryptoPriceResponse{Error: err.Error()})
		return
	}

	data, _ := res.Data.(tools.CryptoData)
	out := gin.H{"success": true, "action": data.Params.Action, "summary": res.Summary}
	switch {
	case data.Quote != nil:
		out["priceData"] = data.Quote
	case data.Staking != nil:
		out["stakingResults"] = data.Staking
	default:
		out["coins"] = data.Coins
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) handleFunctionSchema(c *gin.Context) {
	c.JSON(http.StatusOK, s.dispatcher.Registry().OpenAITools())
}

func (s *server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.dispatcher.Registry().Map()})
}

func (s *server) handleExecute(c *gin.Context) {
	var req types.MCPExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tool == "" {
		errorJSON(c, http.StatusBadRequest, "Tool name is required")
		return
	}
	if !ai.IsTool(req.Tool) {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", req.Tool))
		return
	}
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}

	res, err := s.dispatcher.Execute(c.Request.Context(), ai.ToolCall{
		ID:        ai.NewCallID(),
		Name:      req.Tool,
		Arguments: req.Params,
	})
	switch {
	case errors.Is(err, tools.ErrInvalidArguments):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error(), "result": res})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
	}
}

func (s *server) handleUsage(c *gin.Context) {
	key := s.clientKey(c)
	count, err := s.limiter.GetUsage(c.Request.Context(), key)
	if err != nil {
		s.logger.Warn("read usage failed", zap.Error(err))
		errorJSON(c, http.StatusServiceUnavailable, "usage tracking unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client":    key,
		"hit_count": count,
		"limit":     s.limiter.Limit(),
		"window":    s.limiter.Window().String(),
	})
}
