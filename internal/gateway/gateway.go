// Package gateway coordinates the signal pipeline: reservation against the
// idempotency ledger, risk sizing, price resolution, and order placement at
// the terminal. Authentication and throttling happen in middleware before a
// signal ever reaches this package.
package gateway

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradegate/signal-gateway/internal/ledger"
	"github.com/tradegate/signal-gateway/internal/metrics"
	"github.com/tradegate/signal-gateway/internal/risk"
	"github.com/tradegate/signal-gateway/internal/terminal"
	"github.com/tradegate/signal-gateway/internal/types"
)

// Options tunes the coordinator.
type Options struct {
	// ExecutionTimeout bounds every call into the terminal.
	ExecutionTimeout time.Duration
	// StopLevelPips is the minimum distance between entry and SL/TP.
	StopLevelPips float64
}

// Service is the execution coordinator.
type Service struct {
	db      *Database
	ledger  *ledger.Ledger
	driver  terminal.Driver
	opts    Options
}

func NewService(gormDB *gorm.DB, led *ledger.Ledger, driver terminal.Driver, opts Options) *Service {
	if opts.ExecutionTimeout <= 0 {
		opts.ExecutionTimeout = 15 * time.Second
	}
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: led,
		driver: driver,
		opts:   opts,
	}
}

// ExecuteSignal runs a signal through the pipeline. Validation failures are
// rejected before any side effect. Execution failures after reservation are
// committed to the ledger as Failed, so a retry with the same idempotency key
// observes the failure instead of re-executing the trade. Replayed keys get
// the stored outcome without touching the terminal.
func (s *Service) ExecuteSignal(ctx context.Context, keyID string, sig *types.Signal) (*types.ExecutionResult, error) {
	logger := log.With().
		Str("key_id", keyID).
		Str("strategy", sig.Strategy).
		Str("symbol", sig.Symbol).
		Str("idempotency_key", sig.IdempotencyKey).
		Logger()

	if err := sig.Validate(); err != nil {
		metrics.SignalProcessed("validation_failed")
		return nil, err
	}

	// A caller that omits the key opts out of deduplication; every such
	// signal is its own series.
	if sig.IdempotencyKey == "" {
		sig.IdempotencyKey = uuid.New().String()
	}

	out, err := s.ledger.Reserve(sig.IdempotencyKey)
	if err != nil {
		logger.Error().Err(err).Msg("ledger reservation failed")
		metrics.SignalProcessed("internal_error")
		return nil, types.NewError(types.KindInternal, "ledger reservation failed")
	}

	switch out.Status {
	case ledger.AlreadyCompleted:
		logger.Info().Msg("replayed signal, returning stored result")
		metrics.SignalProcessed("replayed")
		return out.Result, nil

	case ledger.AlreadyFailed:
		logger.Info().Str("error_kind", string(out.ErrorKind)).
			Msg("replayed signal, returning stored failure")
		metrics.SignalProcessed("replayed")
		return nil, types.NewError(out.ErrorKind, "%s", out.ErrorMessage)

	case ledger.AlreadyReserved:
		metrics.SignalProcessed("in_progress")
		return nil, types.NewError(types.KindInProgress,
			"a request with this idempotency key is in progress")
	}

	started := time.Now()
	result, gerr := s.execute(ctx, sig)
	metrics.ObserveExecution(time.Since(started).Seconds())

	if gerr != nil {
		logger.Warn().Str("error_kind", string(gerr.Kind)).Str("error", gerr.Message).
			Msg("signal execution failed")
		if err := s.ledger.Fail(sig.IdempotencyKey, gerr.Kind, gerr.Message); err != nil {
			logger.Error().Err(err).Msg("failed to commit failure to ledger")
		}
		s.audit(keyID, sig, nil, gerr)
		metrics.SignalProcessed("failed")
		return nil, gerr
	}

	// The order is live at the terminal at this point; a commit failure is
	// logged and investigated, never a reason to report the trade as failed.
	if err := s.ledger.Commit(sig.IdempotencyKey, result); err != nil {
		logger.Error().Err(err).Msg("failed to commit result to ledger")
	}
	s.audit(keyID, sig, result, nil)
	metrics.SignalProcessed("completed")
	metrics.OrderPlaced(string(sig.Side))

	logger.Info().
		Int64("order_id", result.OrderID).
		Int64("position_id", result.PositionID).
		Float64("executed_price", result.ExecutedPrice).
		Float64("lot_size", result.LotSize).
		Msg("signal executed")
	return result, nil
}

// execute performs the Sized and Submitted stages against the terminal.
// The caller hanging up must not cancel a placement in flight; the terminal
// may have already accepted the order. Only the execution deadline bounds
// these calls.
func (s *Service) execute(parent context.Context, sig *types.Signal) (*types.ExecutionResult, *types.GatewayError) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.opts.ExecutionTimeout)
	defer cancel()

	// Symbol info must be fetched fresh for every execution.
	info, err := s.driver.SymbolInfo(ctx, sig.Symbol)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	if !info.TradeAllowed {
		return nil, types.NewError(types.KindRejectedOrder, "trading disabled for %s", sig.Symbol)
	}

	acct, err := s.driver.AccountInfo(ctx)
	if err != nil {
		return nil, driverError(ctx, err)
	}

	tick, err := s.driver.Tick(ctx, sig.Symbol)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	entry := tick.Ask
	if sig.Side == types.SideSell {
		entry = tick.Bid
	}
	if sig.Type != types.OrderTypeMarket && sig.Price != nil {
		entry = *sig.Price
	}

	slPips := 0.0
	if sig.SL.Pips != nil {
		slPips = *sig.SL.Pips
	} else if sig.SL.Price != nil && info.Point > 0 {
		slPips = math.Abs(entry-*sig.SL.Price) / info.Point
	}

	lot, err := risk.LotSize(acct.Balance, sig.Risk, slPips, *info)
	if err != nil {
		return nil, types.NewError(types.KindOf(err), "lot sizing failed: %v", err)
	}

	slPrice, tpPrice := risk.Prices(entry, sig.Side, sig.SL, sig.TP, *info, s.opts.StopLevelPips)

	var price *float64
	if sig.Type != types.OrderTypeMarket {
		price = sig.Price
	}
	res, err := s.driver.PlaceOrder(ctx, terminal.OrderRequest{
		Symbol:  sig.Symbol,
		Side:    sig.Side,
		Type:    sig.Type,
		Volume:  lot,
		Price:   price,
		SL:      slPrice,
		TP:      tpPrice,
		Comment: sig.Comment,
		Magic:   sig.MagicNumber,
	})
	if err != nil {
		return nil, driverError(ctx, err)
	}

	return &types.ExecutionResult{
		OrderID:       res.OrderID,
		PositionID:    res.PositionID,
		ExecutedPrice: res.ExecutedPrice,
		LotSize:       lot,
		SL:            slPrice,
		TP:            tpPrice,
		ServerTime:    res.ServerTime,
	}, nil
}

// driverError maps a terminal failure to its error kind. A deadline hit is
// always ExecutionTimeout regardless of how the driver surfaced it.
func driverError(ctx context.Context, err error) *types.GatewayError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewError(types.KindExecutionTimeout, "terminal call exceeded deadline")
	case errors.Is(err, terminal.ErrUnknownSymbol):
		return types.NewError(types.KindRejectedOrder, "unknown symbol")
	case errors.Is(err, terminal.ErrRejected):
		return types.NewError(types.KindRejectedOrder, "order rejected by terminal")
	default:
		return types.NewError(types.KindTerminalUnavailable, "terminal call failed: %v", err)
	}
}

func (s *Service) audit(keyID string, sig *types.Signal, result *types.ExecutionResult, gerr *types.GatewayError) {
	rec := &SignalRecord{
		SignalID:       "sig_" + uuid.New().String(),
		IdempotencyKey: sig.IdempotencyKey,
		KeyID:          keyID,
		Strategy:       sig.Strategy,
		Symbol:         sig.Symbol,
		Side:           string(sig.Side),
	}
	if result != nil {
		rec.Status = "EXECUTED"
		rec.OrderID = result.OrderID
		rec.PositionID = result.PositionID
		rec.ExecutedPrice = result.ExecutedPrice
		rec.LotSize = result.LotSize
	} else {
		rec.Status = "FAILED"
		if gerr != nil {
			rec.ErrorKind = string(gerr.Kind)
			rec.ErrorMessage = gerr.Message
		}
	}
	if err := s.db.CreateSignalRecord(rec); err != nil {
		log.Error().Err(err).Str("signal_id", rec.SignalID).Msg("failed to write audit record")
	}
}

// PlaceOrder places a direct order with explicit volume. No risk sizing and
// no idempotency ledger involvement; the caller owns deduplication.
func (s *Service) PlaceOrder(ctx context.Context, req terminal.OrderRequest) (*types.ExecutionResult, error) {
	// Placement runs to its deadline even if the caller hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ExecutionTimeout)
	defer cancel()

	if req.Symbol == "" {
		return nil, types.NewError(types.KindValidation, "symbol is required")
	}
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return nil, types.NewError(types.KindValidation, "side must be buy or sell")
	}
	if req.Volume <= 0 {
		return nil, types.NewError(types.KindValidation, "volume must be positive")
	}

	res, err := s.driver.PlaceOrder(ctx, req)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	metrics.OrderPlaced(string(req.Side))

	return &types.ExecutionResult{
		OrderID:       res.OrderID,
		PositionID:    res.PositionID,
		ExecutedPrice: res.ExecutedPrice,
		LotSize:       req.Volume,
		SL:            req.SL,
		TP:            req.TP,
		ServerTime:    res.ServerTime,
	}, nil
}

// Positions lists open positions, optionally filtered by symbol.
func (s *Service) Positions(ctx context.Context, symbol string) ([]terminal.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	positions, err := s.driver.Positions(ctx, symbol)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	return positions, nil
}

// ModifyPosition updates SL/TP on an open position.
func (s *Service) ModifyPosition(ctx context.Context, ticket int64, sl, tp *float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	if err := s.driver.ModifyPosition(ctx, ticket, sl, tp); err != nil {
		if errors.Is(err, terminal.ErrNoPosition) {
			return types.NewError(types.KindRejectedOrder, "position %d not found", ticket)
		}
		return driverError(ctx, err)
	}
	return nil
}

// ClosePosition closes an open position, fully or partially.
func (s *Service) ClosePosition(ctx context.Context, ticket int64, volume *float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	if err := s.driver.ClosePosition(ctx, ticket, volume); err != nil {
		if errors.Is(err, terminal.ErrNoPosition) {
			return types.NewError(types.KindRejectedOrder, "position %d not found", ticket)
		}
		return driverError(ctx, err)
	}
	return nil
}

// Account returns the terminal's account summary.
func (s *Service) Account(ctx context.Context) (*terminal.AccountInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	acct, err := s.driver.AccountInfo(ctx)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	return acct, nil
}

// SymbolInfo returns the terminal's view of one symbol.
func (s *Service) SymbolInfo(ctx context.Context, symbol string) (*types.SymbolInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	info, err := s.driver.SymbolInfo(ctx, symbol)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	return info, nil
}

// Symbols lists every symbol the terminal knows.
func (s *Service) Symbols(ctx context.Context) ([]types.SymbolInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	defer cancel()
	symbols, err := s.driver.Symbols(ctx)
	if err != nil {
		return nil, driverError(ctx, err)
	}
	return symbols, nil
}

// GetSignal fetches an audit record by signal id.
func (s *Service) GetSignal(signalID string) (*SignalRecord, error) {
	return s.db.GetSignalRecord(signalID)
}

// Healthy reports whether the terminal link is up.
func (s *Service) Healthy() bool {
	return s.driver.Connected()
}
