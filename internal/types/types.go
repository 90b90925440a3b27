package types

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType identifies how an order is priced.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// RiskSpec describes how much of the account a signal is allowed to risk.
// Percent is a percentage of balance; FixedAmount, when set, overrides it.
// MaxRiskPerTrade caps the final risk amount; zero means the default cap.
type RiskSpec struct {
	Percent         float64  `json:"percent"`
	FixedAmount     *float64 `json:"fixed_amount,omitempty"`
	MaxRiskPerTrade float64  `json:"max_risk_per_trade,omitempty"`
}

// StopLossSpec places the stop either a pip distance from entry or at an
// absolute price. At most one of the two is used; Pips wins when both are set.
type StopLossSpec struct {
	Pips  *float64 `json:"pips,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// TakeProfitSpec mirrors StopLossSpec and additionally supports deriving the
// target from the stop distance via a risk/reward ratio.
type TakeProfitSpec struct {
	Pips            *float64 `json:"pips,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	RiskRewardRatio *float64 `json:"risk_reward_ratio,omitempty"`
}

// Signal is a single trading instruction from the calling automation.
type Signal struct {
	Strategy       string         `json:"strategy"`
	Symbol         string         `json:"symbol"`
	Side           Side           `json:"side"`
	Type           OrderType      `json:"type"`
	Risk           RiskSpec       `json:"risk"`
	SL             StopLossSpec   `json:"sl"`
	TP             TakeProfitSpec `json:"tp"`
	Price          *float64       `json:"price,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	MagicNumber    int            `json:"magic_number,omitempty"`
}

// Validate rejects signals that must never reach the execution pipeline.
// Anything failing here is a request that was never admitted, so it is
// checked before any reservation or other side effect.
func (s *Signal) Validate() error {
	if s.Symbol == "" {
		return NewError(KindValidation, "symbol is required")
	}
	if s.Side != SideBuy && s.Side != SideSell {
		return NewError(KindValidation, "side must be buy or sell")
	}
	switch s.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
	case "":
		return NewError(KindValidation, "order type is required")
	default:
		return NewError(KindValidation, "unknown order type")
	}
	if s.Risk.FixedAmount == nil {
		if s.Risk.Percent <= 0 || s.Risk.Percent > 100 {
			return NewError(KindInvalidRisk, "risk percent must be in (0, 100]")
		}
	} else if *s.Risk.FixedAmount <= 0 {
		return NewError(KindInvalidRisk, "fixed risk amount must be positive")
	}
	if s.SL.Pips == nil && s.SL.Price == nil {
		return NewError(KindInvalidRisk, "stop-loss is required to size a risk-based order")
	}
	if s.SL.Pips != nil && *s.SL.Pips <= 0 {
		return NewError(KindInvalidRisk, "stop-loss pips must be positive")
	}
	if s.TP.Pips != nil && *s.TP.Pips <= 0 {
		return NewError(KindValidation, "take-profit pips must be positive")
	}
	if s.SL.Price != nil && *s.SL.Price <= 0 {
		return NewError(KindValidation, "stop-loss price must be positive")
	}
	if s.TP.Price != nil && *s.TP.Price <= 0 {
		return NewError(KindValidation, "take-profit price must be positive")
	}
	return nil
}

// SymbolInfo is the terminal's view of a tradable symbol. It is fetched fresh
// for every execution; the terminal may change any of these between calls.
type SymbolInfo struct {
	Name         string  `json:"name"`
	Digits       int     `json:"digits"`
	Point        float64 `json:"point"`
	TickValue    float64 `json:"tick_value"`
	ContractSize float64 `json:"contract_size"`
	MinLot       float64 `json:"min_lot"`
	MaxLot       float64 `json:"max_lot"`
	LotStep      float64 `json:"lot_step"`
	Spread       int     `json:"spread"`
	TradeAllowed bool    `json:"is_trade_allowed"`
}

// ExecutionResult is the outcome of a successfully placed order.
type ExecutionResult struct {
	OrderID       int64     `json:"order_id"`
	PositionID    int64     `json:"position_id"`
	ExecutedPrice float64   `json:"executed_price"`
	LotSize       float64   `json:"lot_size"`
	SL            *float64  `json:"sl,omitempty"`
	TP            *float64  `json:"tp,omitempty"`
	ServerTime    time.Time `json:"server_time"`
}
