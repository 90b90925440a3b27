// Package terminal defines the trading-terminal collaborator the gateway
// places orders through, and a mock implementation used in development and
// tests. The production binding lives behind the Driver interface.
package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/tradegate/signal-gateway/internal/types"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrRejected      = errors.New("order rejected")
	ErrUnavailable   = errors.New("terminal unavailable")
	ErrNoPosition    = errors.New("position not found")
)

// Tick is the current quote for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// AccountInfo is the terminal's account summary.
type AccountInfo struct {
	Login      int64     `json:"login"`
	Server     string    `json:"server"`
	Balance    float64   `json:"balance"`
	Equity     float64   `json:"equity"`
	Margin     float64   `json:"margin"`
	FreeMargin float64   `json:"free_margin"`
	Currency   string    `json:"currency"`
	Leverage   int       `json:"leverage"`
	Profit     float64   `json:"profit"`
	Company    string    `json:"company"`
	ServerTime time.Time `json:"server_time"`
}

// OrderRequest is a fully resolved order: volume and absolute prices, no
// risk semantics left.
type OrderRequest struct {
	Symbol  string
	Side    types.Side
	Type    types.OrderType
	Volume  float64
	Price   *float64
	SL      *float64
	TP      *float64
	Comment string
	Magic   int
}

// OrderResult is the terminal's acknowledgement of a placed order.
type OrderResult struct {
	OrderID       int64
	PositionID    int64
	ExecutedPrice float64
	ServerTime    time.Time
}

// Position is an open position as reported by the terminal.
type Position struct {
	Ticket       int64      `json:"ticket"`
	Symbol       string     `json:"symbol"`
	Side         types.Side `json:"type"`
	Volume       float64    `json:"volume"`
	PriceOpen    float64    `json:"price_open"`
	PriceCurrent float64    `json:"price_current"`
	SL           float64    `json:"sl"`
	TP           float64    `json:"tp"`
	Profit       float64    `json:"profit"`
	Comment      string     `json:"comment"`
	Magic        int        `json:"magic"`
	OpenedAt     time.Time  `json:"time"`
}

// Driver is the trading-terminal binding. All calls accept a context; the
// coordinator bounds them with its execution timeout.
type Driver interface {
	SymbolInfo(ctx context.Context, symbol string) (*types.SymbolInfo, error)
	Symbols(ctx context.Context) ([]types.SymbolInfo, error)
	Tick(ctx context.Context, symbol string) (*Tick, error)
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	Positions(ctx context.Context, symbol string) ([]Position, error)
	ModifyPosition(ctx context.Context, ticket int64, sl, tp *float64) error
	ClosePosition(ctx context.Context, ticket int64, volume *float64) error
	Connected() bool
}
