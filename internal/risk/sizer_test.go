package risk

import (
	"math"
	"testing"

	"github.com/tradegate/signal-gateway/internal/types"
)

func fxSymbol() types.SymbolInfo {
	return types.SymbolInfo{
		Name:         "EURUSD",
		Digits:       5,
		Point:        0.0001,
		TickValue:    1.0,
		ContractSize: 100000,
		MinLot:       0.01,
		MaxLot:       100.0,
		LotStep:      0.01,
		TradeAllowed: true,
	}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLotSizePercentRisk(t *testing.T) {
	// 1% of 10k is $100; a 20 pip stop loses $200 per lot, so 0.5 lots.
	lot, err := LotSize(10000, types.RiskSpec{Percent: 1.0}, 20, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, 0.5) {
		t.Fatalf("expected 0.5 lots, got %v", lot)
	}
}

func TestLotSizeFixedAmount(t *testing.T) {
	fixed := 50.0
	lot, err := LotSize(10000, types.RiskSpec{FixedAmount: &fixed}, 25, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	// $50 over a $250 per-lot loss.
	if !floatEq(lot, 0.2) {
		t.Fatalf("expected 0.2 lots, got %v", lot)
	}
}

func TestLotSizeCappedByMaxRiskPerTrade(t *testing.T) {
	// 5% requested but the default cap is 2%, so the budget is $200 not $500.
	lot, err := LotSize(10000, types.RiskSpec{Percent: 5.0}, 20, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, 1.0) {
		t.Fatalf("expected cap to limit size to 1.0 lots, got %v", lot)
	}
}

func TestLotSizeExplicitCap(t *testing.T) {
	lot, err := LotSize(10000, types.RiskSpec{Percent: 5.0, MaxRiskPerTrade: 1.0}, 20, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, 0.5) {
		t.Fatalf("expected explicit cap to limit size to 0.5 lots, got %v", lot)
	}
}

func TestLotSizeClampedToMaxLot(t *testing.T) {
	info := fxSymbol()
	info.MaxLot = 0.3
	lot, err := LotSize(10000, types.RiskSpec{Percent: 1.0}, 20, info)
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, 0.3) {
		t.Fatalf("expected max lot clamp to 0.3, got %v", lot)
	}
}

func TestLotSizeFlooredToStep(t *testing.T) {
	fixed := 13.4
	lot, err := LotSize(10000, types.RiskSpec{FixedAmount: &fixed}, 20, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	// 13.4 / 200 = 0.067, floored to the 0.01 step.
	if !floatEq(lot, 0.06) {
		t.Fatalf("expected 0.06 lots, got %v", lot)
	}
}

func TestLotSizeRaisedToMinLot(t *testing.T) {
	fixed := 0.5
	lot, err := LotSize(10000, types.RiskSpec{FixedAmount: &fixed}, 20, fxSymbol())
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, 0.01) {
		t.Fatalf("expected min lot 0.01, got %v", lot)
	}
}

func TestLotSizeDegenerateSymbol(t *testing.T) {
	info := fxSymbol()
	info.Point = 0
	lot, err := LotSize(10000, types.RiskSpec{Percent: 1.0}, 20, info)
	if err != nil {
		t.Fatalf("lot sizing failed: %v", err)
	}
	if !floatEq(lot, info.MinLot) {
		t.Fatalf("expected min lot for degenerate symbol, got %v", lot)
	}
}

func TestLotSizeRejectsInvalidInputs(t *testing.T) {
	negative := -10.0
	cases := []struct {
		name   string
		spec   types.RiskSpec
		slPips float64
	}{
		{"zero stop distance", types.RiskSpec{Percent: 1.0}, 0},
		{"negative stop distance", types.RiskSpec{Percent: 1.0}, -5},
		{"zero percent", types.RiskSpec{}, 20},
		{"negative fixed amount", types.RiskSpec{FixedAmount: &negative}, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LotSize(10000, tc.spec, tc.slPips, fxSymbol())
			if err == nil {
				t.Fatal("expected an error")
			}
			if kind := types.KindOf(err); kind != types.KindInvalidRisk {
				t.Fatalf("expected %s, got %s", types.KindInvalidRisk, kind)
			}
		})
	}
}

func TestFloorToStepAvoidsFloatArtifacts(t *testing.T) {
	// 0.07/0.01 computed in floats is 6.999...; naive truncation loses a step.
	if got := floorToStep(0.07, 0.01); !floatEq(got, 0.07) {
		t.Fatalf("expected 0.07, got %v", got)
	}
	if got := floorToStep(0.069, 0.01); !floatEq(got, 0.06) {
		t.Fatalf("expected 0.06, got %v", got)
	}
}
