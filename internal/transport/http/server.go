package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pilotfish/internal/engine"
	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// signalSchema validates manual signal injections before they reach the
// controller. The controller re-validates; this just gives operators a
// useful 400 instead of a BLOCKED outcome on malformed payloads.
const signalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["symbol", "side", "price"],
  "additionalProperties": false,
  "properties": {
    "symbol": {"type": "string", "minLength": 1},
    "side": {"enum": ["BUY", "SELL"]},
    "price": {"type": "number", "exclusiveMinimum": 0},
    "reason": {"type": "string"}
  }
}`

// Server is the read-mostly operational API: health, audit records, order
// history, throttle state, a manual signal trigger and the kill switch.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr       string
	Store      store.Store
	Controller *engine.Controller
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Controller == nil {
		return nil, errors.New("http server requires store and controller")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9910"
	}
	schema, err := jsonschema.CompileString("signal.schema.json", signalSchema)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "killed": cfg.Controller.Killed()})
	})

	h := &handlers{store: cfg.Store, controller: cfg.Controller, signalSchema: schema}
	api := router.Group("/api")
	api.GET("/outcomes", h.listOutcomes)
	api.GET("/orders", h.listOrders)
	api.GET("/throttle/:symbol", h.throttleState)
	api.POST("/signal", h.injectSignal)
	api.POST("/kill", h.engageKill)
	api.DELETE("/kill", h.releaseKill)

	return &Server{addr: cfg.Addr, router: router}, nil
}

func (s *Server) Addr() string { return s.addr }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	store        store.Store
	controller   *engine.Controller
	signalSchema *jsonschema.Schema
}

func (h *handlers) listOutcomes(c *gin.Context) {
	uow, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = uow.Rollback() }()
	rows, err := uow.Outcomes().ListRecent(c.Request.Context(), limitParam(c, 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": rows})
}

func (h *handlers) listOrders(c *gin.Context) {
	uow, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = uow.Rollback() }()
	rows, err := uow.Orders().ListRecent(c.Request.Context(), limitParam(c, 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}

func (h *handlers) throttleState(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	strategyKey := c.DefaultQuery("strategy", "rsi-ma")
	side := strings.ToUpper(c.DefaultQuery("side", "BUY"))

	uow, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = uow.Rollback() }()
	rec, err := uow.Throttles().Get(c.Request.Context(), symbol, strategyKey, side)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no throttle record"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type signalRequest struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

// injectSignal runs one controller cycle for an operator-supplied decision.
// The cycle result comes back in the response; a blocked outcome is still
// HTTP 200 because the request itself was fine.
func (h *handlers) injectSignal(c *gin.Context) {
	var doc any
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.signalSchema.Validate(doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body := doc.(map[string]any)
	req := signalRequest{
		Symbol: body["symbol"].(string),
		Side:   body["side"].(string),
		Price:  body["price"].(float64),
	}
	if r, ok := body["reason"].(string); ok {
		req.Reason = r
	}

	out := h.controller.RunCycle(c.Request.Context(), engine.Decision{
		Symbol: strings.ToUpper(req.Symbol),
		Side:   exchange.Side(req.Side),
		Price:  req.Price,
		Reason: req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{
		"status":         out.Status,
		"reason":         out.Reason,
		"correlation_id": out.CorrelationID,
		"message":        out.Message,
	})
}

func (h *handlers) engageKill(c *gin.Context) {
	h.controller.EngageKill()
	logger.Warnf("kill switch engaged via http")
	c.JSON(http.StatusOK, gin.H{"killed": true})
}

func (h *handlers) releaseKill(c *gin.Context) {
	h.controller.ReleaseKill()
	logger.Infof("kill switch released via http")
	c.JSON(http.StatusOK, gin.H{"killed": false})
}

func limitParam(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d dur=%s", method, path, c.Writer.Status(), time.Since(start))
	}
}
