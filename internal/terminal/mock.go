package terminal

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradegate/signal-gateway/internal/types"
)

// Mock simulates a trading terminal: a fixed symbol set, a drifting quote per
// symbol, and in-memory positions. Latency, when set, is applied to order
// placement to exercise the coordinator's timeout handling.
type Mock struct {
	mu sync.Mutex

	symbols   map[string]types.SymbolInfo
	prices    map[string]float64
	positions map[int64]*Position
	account   AccountInfo
	ticket    int64
	connected bool

	// Latency delays PlaceOrder; zero keeps tests fast.
	Latency time.Duration
}

// NewMock creates a mock terminal with the default symbol set and a 10k USD
// demo account.
func NewMock() *Mock {
	m := &Mock{
		symbols:   make(map[string]types.SymbolInfo),
		prices:    make(map[string]float64),
		positions: make(map[int64]*Position),
		ticket:    1000000,
		connected: true,
		account: AccountInfo{
			Login:    1234567,
			Server:   "Mock-Server",
			Balance:  10000.0,
			Equity:   10000.0,
			Currency: "USD",
			Leverage: 100,
			Company:  "Mock Broker",
		},
	}

	defaults := []struct {
		name   string
		digits int
		point  float64
		price  float64
	}{
		{"EURUSD", 5, 0.00001, 1.10000},
		{"GBPUSD", 5, 0.00001, 1.27000},
		{"USDJPY", 3, 0.001, 148.500},
		{"AUDUSD", 5, 0.00001, 0.65000},
		{"USDCAD", 5, 0.00001, 1.36000},
	}
	for _, d := range defaults {
		m.symbols[d.name] = types.SymbolInfo{
			Name:         d.name,
			Digits:       d.digits,
			Point:        d.point,
			TickValue:    1.0,
			ContractSize: 100000,
			MinLot:       0.01,
			MaxLot:       100.0,
			LotStep:      0.01,
			Spread:       20,
			TradeAllowed: true,
		}
		m.prices[d.name] = d.price
	}
	return m
}

// AddSymbol registers or replaces a symbol with a base price.
func (m *Mock) AddSymbol(info types.SymbolInfo, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[info.Name] = info
	m.prices[info.Name] = price
}

// SetLotBounds applies configured lot constraints to every known symbol.
func (m *Mock) SetLotBounds(min, max, step float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, info := range m.symbols {
		info.MinLot = min
		info.MaxLot = max
		info.LotStep = step
		m.symbols[name] = info
	}
}

// SetBalance overrides the mock account balance.
func (m *Mock) SetBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account.Balance = balance
	m.account.Equity = balance
}

func (m *Mock) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Mock) SymbolInfo(_ context.Context, symbol string) (*types.SymbolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.symbols[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return &info, nil
}

// Symbols returns every known symbol.
func (m *Mock) Symbols(_ context.Context) ([]types.SymbolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SymbolInfo, 0, len(m.symbols))
	for _, info := range m.symbols {
		out = append(out, info)
	}
	return out, nil
}

func (m *Mock) Tick(_ context.Context, symbol string) (*Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.symbols[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	// Small random walk so consecutive quotes differ.
	base := m.prices[symbol] * (1 + (rand.Float64()*0.0002 - 0.0001))
	m.prices[symbol] = base
	half := float64(info.Spread) / 2 * info.Point
	return &Tick{
		Symbol: symbol,
		Bid:    base - half,
		Ask:    base + half,
		Time:   time.Now(),
	}, nil
}

func (m *Mock) AccountInfo(_ context.Context) (*AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.account
	acct.FreeMargin = acct.Equity - acct.Margin
	acct.ServerTime = time.Now()
	return &acct, nil
}

func (m *Mock) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.symbols[req.Symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	if !info.TradeAllowed {
		return nil, ErrRejected
	}
	if req.Volume < info.MinLot || req.Volume > info.MaxLot {
		return nil, ErrRejected
	}

	base := m.prices[req.Symbol]
	half := float64(info.Spread) / 2 * info.Point
	executed := base + half
	if req.Side == types.SideSell {
		executed = base - half
	}
	if req.Type != types.OrderTypeMarket && req.Price != nil {
		executed = *req.Price
	}

	m.ticket++
	orderID := m.ticket
	m.ticket++
	positionID := m.ticket

	pos := &Position{
		Ticket:       positionID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		PriceOpen:    executed,
		PriceCurrent: executed,
		Comment:      req.Comment,
		Magic:        req.Magic,
		OpenedAt:     time.Now(),
	}
	if req.SL != nil {
		pos.SL = *req.SL
	}
	if req.TP != nil {
		pos.TP = *req.TP
	}
	m.positions[positionID] = pos

	log.Debug().
		Int64("order_id", orderID).
		Int64("position_id", positionID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("volume", req.Volume).
		Float64("executed_price", executed).
		Msg("mock terminal filled order")

	return &OrderResult{
		OrderID:       orderID,
		PositionID:    positionID,
		ExecutedPrice: executed,
		ServerTime:    time.Now(),
	}, nil
}

func (m *Mock) Positions(_ context.Context, symbol string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		out = append(out, *pos)
	}
	return out, nil
}

func (m *Mock) ModifyPosition(_ context.Context, ticket int64, sl, tp *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[ticket]
	if !ok {
		return ErrNoPosition
	}
	if sl != nil {
		pos.SL = *sl
	}
	if tp != nil {
		pos.TP = *tp
	}
	return nil
}

func (m *Mock) ClosePosition(_ context.Context, ticket int64, volume *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[ticket]
	if !ok {
		return ErrNoPosition
	}
	if volume != nil && *volume < pos.Volume {
		pos.Volume -= *volume
		return nil
	}
	delete(m.positions, ticket)
	return nil
}
