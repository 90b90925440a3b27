package gateway

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradegate/signal-gateway/internal/terminal"
	"github.com/tradegate/signal-gateway/internal/types"
	"github.com/tradegate/signal-gateway/pkg/response"
)

// GinHandlers contains HTTP handlers for the signed trading endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// keyID reads the authenticated credential id set by the HMAC middleware.
func keyID(c *gin.Context) string {
	return c.GetString("keyID")
}

// SubmitSignalHandler handles POST /signal: the idempotency-keyed risk-based
// execution pipeline.
func (h *GinHandlers) SubmitSignalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sig types.Signal
		if err := c.ShouldBindJSON(&sig); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.ExecuteSignal(c.Request.Context(), keyID(c), &sig)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, result)
	}
}

// orderRequest is the direct-order wire shape.
type orderRequest struct {
	Symbol      string          `json:"symbol"`
	Side        types.Side      `json:"side"`
	Type        types.OrderType `json:"type"`
	Volume      float64         `json:"volume"`
	Price       *float64        `json:"price,omitempty"`
	SL          *float64        `json:"sl,omitempty"`
	TP          *float64        `json:"tp,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	MagicNumber int             `json:"magic_number,omitempty"`
}

// PlaceOrderHandler handles POST /order: direct placement with explicit
// volume, bypassing risk sizing and the idempotency ledger.
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PlaceOrder(c.Request.Context(), terminal.OrderRequest{
			Symbol:  req.Symbol,
			Side:    req.Side,
			Type:    req.Type,
			Volume:  req.Volume,
			Price:   req.Price,
			SL:      req.SL,
			TP:      req.TP,
			Comment: req.Comment,
			Magic:   req.MagicNumber,
		})
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, result)
	}
}

// GetPositionsHandler handles GET /positions with an optional symbol filter.
func (h *GinHandlers) GetPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, err := h.service.Positions(c.Request.Context(), c.Query("symbol"))
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, gin.H{"positions": positions, "count": len(positions)})
	}
}

type modifyRequest struct {
	Ticket int64    `json:"ticket" binding:"required"`
	SL     *float64 `json:"sl,omitempty"`
	TP     *float64 `json:"tp,omitempty"`
}

// ModifyPositionHandler handles POST /modify.
func (h *GinHandlers) ModifyPositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req modifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if err := h.service.ModifyPosition(c.Request.Context(), req.Ticket, req.SL, req.TP); err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, gin.H{"ticket": req.Ticket, "modified": true})
	}
}

type closeRequest struct {
	Ticket int64    `json:"ticket" binding:"required"`
	Volume *float64 `json:"volume,omitempty"`
}

// ClosePositionHandler handles POST /close for full or partial closes.
func (h *GinHandlers) ClosePositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req closeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if err := h.service.ClosePosition(c.Request.Context(), req.Ticket, req.Volume); err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, gin.H{"ticket": req.Ticket, "closed": true})
	}
}

// GetAccountHandler handles GET /account.
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := h.service.Account(c.Request.Context())
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, acct)
	}
}

// GetSymbolHandler handles GET /symbols, with an optional symbol selector.
// Without one it lists everything the terminal knows.
func (h *GinHandlers) GetSymbolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Query("symbol")
		if symbol == "" {
			symbols, err := h.service.Symbols(c.Request.Context())
			if err != nil {
				response.FromError(c, err)
				return
			}
			response.OK(c, gin.H{"symbols": symbols, "count": len(symbols)})
			return
		}
		info, err := h.service.SymbolInfo(c.Request.Context(), symbol)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, info)
	}
}

// GetSignalHandler handles GET /signals/:signal_id for the audit trail.
func (h *GinHandlers) GetSignalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.service.GetSignal(c.Param("signal_id"))
		if err != nil {
			response.FromError(c, err)
			return
		}
		if rec == nil {
			response.NotFound(c, "Signal not found")
			return
		}
		response.OK(c, rec)
	}
}

// HealthHandler handles GET /health.
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := h.service.Healthy()
		status := "healthy"
		code := 200
		if !healthy {
			status = "degraded"
			code = 503
		}
		c.JSON(code, gin.H{
			"status":             status,
			"terminal_connected": healthy,
			"timestamp":          time.Now().UTC(),
		})
	}
}
