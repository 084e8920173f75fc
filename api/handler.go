package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"forexstream/internal/model"
	"forexstream/internal/service"
)

// PriceResponse is the wire form of a quote.
type PriceResponse struct {
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Mid        float64   `json:"mid"`
	Spread     float64   `json:"spread"`
	SpreadPips float64   `json:"spread_pips"`
	Timestamp  time.Time `json:"timestamp"`
}

func newPriceResponse(tick model.Tick) PriceResponse {
	return PriceResponse{
		Symbol:     strings.ToUpper(tick.Symbol),
		Bid:        tick.Bid,
		Ask:        tick.Ask,
		Mid:        tick.Mid,
		Spread:     tick.Spread(),
		SpreadPips: tick.SpreadPips(),
		Timestamp:  tick.Timestamp,
	}
}

// AllPricesResponse lists every tracked symbol's latest quote.
type AllPricesResponse struct {
	Prices    []PriceResponse `json:"prices"`
	Count     int             `json:"count"`
	Timestamp time.Time       `json:"timestamp"`
}

// OHLCResponse is the wire form of a closed candle.
type OHLCResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      float64         `json:"open"`
	High      float64         `json:"high"`
	Low       float64         `json:"low"`
	Close     float64         `json:"close"`
	IsBullish bool            `json:"is_bullish"`
}

// IndicatorsResponse augments the snapshot with its derived
// classifications.
type IndicatorsResponse struct {
	model.Indicators
	TrendDirection string `json:"trend_direction"`
	RSISignal      string `json:"rsi_signal"`
}

// CreateAlertRequest is the payload of POST /forex/alerts.
type CreateAlertRequest struct {
	GuildID     int64   `json:"guild_id" binding:"required"`
	UserID      int64   `json:"user_id" binding:"required"`
	ChannelID   int64   `json:"channel_id" binding:"required"`
	Symbol      string  `json:"symbol" binding:"required"`
	Condition   string  `json:"condition" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required,gt=0"`
}

// AlertResponse is the wire form of an alert.
type AlertResponse struct {
	ID          int64                `json:"id"`
	GuildID     int64                `json:"guild_id"`
	UserID      int64                `json:"user_id"`
	ChannelID   int64                `json:"channel_id"`
	Symbol      string               `json:"symbol"`
	Condition   model.AlertCondition `json:"condition"`
	TargetPrice float64              `json:"target_price"`
	CreatedAt   time.Time            `json:"created_at"`
	IsActive    bool                 `json:"is_active"`
}

func newAlertResponse(a model.Alert) AlertResponse {
	return AlertResponse{
		ID:          a.ID,
		GuildID:     a.GuildID,
		UserID:      a.UserID,
		ChannelID:   a.ChannelID,
		Symbol:      strings.ToUpper(a.Symbol),
		Condition:   a.Condition,
		TargetPrice: a.TargetPrice,
		CreatedAt:   a.CreatedAt,
		IsActive:    a.Active,
	}
}

// GetPrice handles GET /forex/price/:symbol.
func (h *APIHandler) GetPrice(c *gin.Context) {
	symbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	tick, err := h.forex.GetPrice(symbol)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPriceResponse(tick))
}

// GetAllPrices handles GET /forex/prices.
func (h *APIHandler) GetAllPrices(c *gin.Context) {
	prices := h.forex.GetAllPrices()

	response := AllPricesResponse{
		Prices:    make([]PriceResponse, 0, len(prices)),
		Count:     len(prices),
		Timestamp: time.Now().UTC(),
	}
	for _, tick := range prices {
		response.Prices = append(response.Prices, newPriceResponse(tick))
	}

	c.JSON(http.StatusOK, response)
}

// GetOHLC handles GET /forex/ohlc/:symbol.
func (h *APIHandler) GetOHLC(c *gin.Context) {
	symbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	timeframe, err := h.validator.ValidateTimeframe(c.Query("timeframe"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	limit, err := h.validator.ValidateLimit(c.Query("limit"), 100)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	candles, err := h.forex.GetOHLC(symbol, timeframe, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if len(candles) == 0 {
		h.handleError(c, service.ErrSymbolNotFound, http.StatusNotFound, "No OHLC data for symbol: "+symbol)
		return
	}

	response := make([]OHLCResponse, 0, len(candles))
	for _, candle := range candles {
		response = append(response, OHLCResponse{
			Symbol:    strings.ToUpper(candle.Symbol),
			Timeframe: candle.Timeframe,
			Timestamp: candle.Timestamp,
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			IsBullish: candle.IsBullish(),
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetPriceHistory handles GET /forex/history/:symbol.
func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	symbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	minutes, err := h.validator.ValidateMinutes(c.Query("minutes"), 60)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	history := h.forex.GetPriceHistory(symbol, minutes)

	response := AllPricesResponse{
		Prices:    make([]PriceResponse, 0, len(history)),
		Count:     len(history),
		Timestamp: time.Now().UTC(),
	}
	for _, tick := range history {
		response.Prices = append(response.Prices, newPriceResponse(tick))
	}

	c.JSON(http.StatusOK, response)
}

// GetIndicators handles GET /forex/indicators/:symbol.
func (h *APIHandler) GetIndicators(c *gin.Context) {
	symbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	timeframe, err := h.validator.ValidateTimeframe(c.Query("timeframe"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	indicators, err := h.forex.GetTechnicalIndicators(symbol, timeframe)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, IndicatorsResponse{
		Indicators:     indicators,
		TrendDirection: indicators.TrendDirection(),
		RSISignal:      indicators.RSISignal(),
	})
}

// GetChartData handles GET /forex/chart/:symbol. It returns the data
// the external chart renderer consumes, not an image.
func (h *APIHandler) GetChartData(c *gin.Context) {
	symbol, err := h.validator.ValidateSymbol(c.Param("symbol"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	timeframe, err := h.validator.ValidateTimeframe(c.Query("timeframe"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	limit, err := h.validator.ValidateLimit(c.Query("limit"), 50)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	includeMA := c.DefaultQuery("show_ma", "true") != "false"

	data, err := h.forex.GetChartData(symbol, timeframe, limit, includeMA)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

// CreateAlert handles POST /forex/alerts.
func (h *APIHandler) CreateAlert(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleValidationError(c, err)
		return
	}

	symbol, err := h.validator.ValidateSymbol(req.Symbol)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	condition, err := h.validator.ValidateCondition(req.Condition)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	alert, err := h.forex.AddAlert(req.GuildID, req.UserID, req.ChannelID, symbol, condition, req.TargetPrice)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAlertResponse(alert))
}

// GetUserAlerts handles GET /forex/alerts/user/:user_id.
func (h *APIHandler) GetUserAlerts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		h.handleValidationError(c, errors.New("user_id must be a valid number"))
		return
	}

	alerts := h.forex.GetUserAlerts(userID)

	response := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		response = append(response, newAlertResponse(a))
	}

	c.JSON(http.StatusOK, response)
}

// DeleteAlert handles DELETE /forex/alerts/:alert_id.
func (h *APIHandler) DeleteAlert(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Param("alert_id"), 10, 64)
	if err != nil {
		h.handleValidationError(c, errors.New("alert_id must be a valid number"))
		return
	}

	if !h.forex.RemoveAlert(alertID) {
		h.handleError(c, errors.New("alert not found"), http.StatusNotFound, "Alert not found: "+c.Param("alert_id"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "alert_id": alertID})
}

// ServeWS handles GET /ws, upgrading to the subscriber push channel.
func (h *APIHandler) ServeWS(c *gin.Context) {
	h.hub.HandleConnection(c.Writer, c.Request)
}

// HealthCheck handles GET /health.
func (h *APIHandler) HealthCheck(c *gin.Context) {
	stats := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"service":     ServiceName,
		"version":     ServiceVersion,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"upstream":    h.forex.SourceState(),
		"subscribers": stats.Clients,
	})
}

// handleError logs the error and sends the HTTP response.
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID, exists := c.Get(RequestIDContextKey)
	requestIDStr := "unknown"
	if exists {
		if id, ok := requestID.(string); ok {
			requestIDStr = id
		}
	}

	h.logger.Error("API error",
		slog.String("request_id", requestIDStr),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
		slog.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestIDStr,
	})
}

// handleValidationError handles request validation failures.
func (h *APIHandler) handleValidationError(c *gin.Context, err error) {
	h.handleError(c, err, http.StatusBadRequest, err.Error())
}

// handleServiceError maps facade errors onto HTTP status codes.
func (h *APIHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSymbolNotFound), errors.Is(err, service.ErrInsufficientData):
		h.handleError(c, err, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTimeframe), errors.Is(err, service.ErrInvalidCondition):
		h.handleError(c, err, http.StatusBadRequest, err.Error())
	default:
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
	}
}
