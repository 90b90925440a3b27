// Package risk turns a risk-based signal into concrete order parameters:
// position size from the account's risk budget, and absolute stop-loss /
// take-profit prices from pip distances.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/tradegate/signal-gateway/internal/types"
)

// DefaultMaxRiskPerTrade caps the risk budget when the signal does not carry
// its own cap, as a percentage of balance.
const DefaultMaxRiskPerTrade = 2.0

// LotSize converts balance, risk specification, and stop-loss distance into a
// position size. The result is clamped to the symbol's lot bounds and rounded
// down to its lot step. A non-positive loss per lot is a defined degenerate
// input: the symbol minimum lot is returned, never zero or a negative size.
func LotSize(balance float64, spec types.RiskSpec, slPips float64, info types.SymbolInfo) (float64, error) {
	if slPips <= 0 {
		return 0, types.NewError(types.KindInvalidRisk, "stop-loss distance must be positive")
	}

	var riskAmount float64
	if spec.FixedAmount != nil {
		if *spec.FixedAmount <= 0 {
			return 0, types.NewError(types.KindInvalidRisk, "fixed risk amount must be positive")
		}
		riskAmount = *spec.FixedAmount
	} else {
		if spec.Percent <= 0 {
			return 0, types.NewError(types.KindInvalidRisk, "risk percent must be positive")
		}
		riskAmount = balance * (spec.Percent / 100)
	}

	maxRisk := spec.MaxRiskPerTrade
	if maxRisk <= 0 {
		maxRisk = DefaultMaxRiskPerTrade
	}
	if cap := balance * (maxRisk / 100); riskAmount > cap {
		riskAmount = cap
	}

	lossPerLot := slPips * info.Point * info.TickValue * info.ContractSize
	if lossPerLot <= 0 {
		return info.MinLot, nil
	}

	lot := riskAmount / lossPerLot
	if lot > info.MaxLot {
		lot = info.MaxLot
	}
	lot = floorToStep(lot, info.LotStep)
	if lot < info.MinLot {
		lot = info.MinLot
	}
	return lot, nil
}

// floorToStep rounds lot down to the nearest multiple of step. Decimal
// arithmetic avoids float artifacts like 0.07/0.01 -> 6.999... truncating to
// the wrong step.
func floorToStep(lot, step float64) float64 {
	if step <= 0 {
		return lot
	}
	d := decimal.NewFromFloat(lot)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Floor().Mul(s).Float64()
	return out
}
