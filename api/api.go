package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"forexstream/internal/hub"
	"forexstream/internal/model"
	"forexstream/internal/service"
)

// This file is the entry point of the API package: the handler struct,
// its dependencies and the route table. Request handlers, middleware
// and validation live in their own files.

const (
	DefaultTimeout      = 30 * time.Second
	DefaultTimeframe    = "1h"
	ServiceVersion      = "1.0.0"
	ServiceName         = "forex-stream-service"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// ForexService is the facade surface consumed by the REST layer.
type ForexService interface {
	GetPrice(symbol string) (model.Tick, error)
	GetAllPrices() map[string]model.Tick
	GetOHLC(symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error)
	GetPriceHistory(symbol string, minutes int) []model.Tick
	GetTechnicalIndicators(symbol string, timeframe model.Timeframe) (model.Indicators, error)
	GetChartData(symbol string, timeframe model.Timeframe, limit int, includeMA bool) (service.ChartData, error)
	AddAlert(guildID, userID, channelID int64, symbol string, condition model.AlertCondition, targetPrice float64) (model.Alert, error)
	RemoveAlert(id int64) bool
	GetUserAlerts(userID int64) []model.Alert
	SourceState() string
}

// SubscriberHub is the push-channel surface consumed by the REST layer.
type SubscriberHub interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
	Stats() hub.Stats
}

// APIHandler handles HTTP requests using the Gin framework.
type APIHandler struct {
	forex     ForexService
	hub       SubscriberHub
	validator *Validator
	logger    *slog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(forex ForexService, subscribers SubscriberHub, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		forex:     forex,
		hub:       subscribers,
		validator: GetValidator(),
		logger:    logger,
	}
}

// StartServer starts the HTTP server.
func (h *APIHandler) StartServer(port int) error {
	router := h.SetupRoutes()
	return router.Run(":" + strconv.Itoa(port))
}

// SetupRoutes configures all API routes.
func (h *APIHandler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	forex := router.Group("/forex")
	{
		forex.GET("/price/:symbol", h.GetPrice)
		forex.GET("/prices", h.GetAllPrices)
		forex.GET("/ohlc/:symbol", h.GetOHLC)
		forex.GET("/history/:symbol", h.GetPriceHistory)
		forex.GET("/indicators/:symbol", h.GetIndicators)
		forex.GET("/chart/:symbol", h.GetChartData)

		forex.POST("/alerts", h.CreateAlert)
		forex.GET("/alerts/user/:user_id", h.GetUserAlerts)
		forex.DELETE("/alerts/:alert_id", h.DeleteAlert)
	}

	router.GET("/ws", h.ServeWS)
	router.GET("/health", h.HealthCheck)

	return router
}
