package risk

import (
	"math"

	"github.com/tradegate/signal-gateway/internal/types"
)

// Prices converts the stop-loss and take-profit specifications into absolute
// prices around entry. Each side is independently optional and nil when not
// supplied. For a buy the stop sits below entry and the target above; a sell
// inverts the signs. stopLevelPips, when positive, is the terminal's minimum
// distance between entry and either level; prices inside it are pushed out.
// No rounding beyond the symbol's native precision is applied here.
func Prices(entry float64, side types.Side, sl types.StopLossSpec, tp types.TakeProfitSpec,
	info types.SymbolInfo, stopLevelPips float64) (slPrice, tpPrice *float64) {

	dir := 1.0
	if side == types.SideSell {
		dir = -1.0
	}

	if sl.Pips != nil {
		p := entry - dir*(*sl.Pips)*info.Point
		slPrice = &p
	} else if sl.Price != nil {
		p := *sl.Price
		slPrice = &p
	}

	if tp.Pips != nil {
		p := entry + dir*(*tp.Pips)*info.Point
		tpPrice = &p
	} else if tp.Price != nil {
		p := *tp.Price
		tpPrice = &p
	} else if tp.RiskRewardRatio != nil && slPrice != nil {
		reward := math.Abs(entry-*slPrice) * (*tp.RiskRewardRatio)
		p := entry + dir*reward
		tpPrice = &p
	}

	minDistance := stopLevelPips * info.Point
	if minDistance > 0 {
		if slPrice != nil && math.Abs(entry-*slPrice) < minDistance {
			p := entry - dir*minDistance
			slPrice = &p
		}
		if tpPrice != nil && math.Abs(entry-*tpPrice) < minDistance {
			p := entry + dir*minDistance
			tpPrice = &p
		}
	}

	return slPrice, tpPrice
}
