package builtins

import (
	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// TrendBreakout buys when the last close sits near the top of its recent
// high-low range, following the direction of an established advance.
type TrendBreakout struct{}

var _ strategy.Strategy = (*TrendBreakout)(nil)

func (TrendBreakout) Name() string { return "trend-breakout" }

func (TrendBreakout) MinBars(p strategy.Params) int {
	return int(p.Get("period", 240))
}

func (TrendBreakout) Evaluate(window []domain.Bar, p strategy.Params) bool {
	period := int(p.Get("period", 240))
	threshold := p.Get("buy_threshold_factor", 0.9)

	if len(window) < period {
		return false
	}

	highs := strategy.RollingMax(strategy.Highs(window), period)
	lows := strategy.RollingMin(strategy.Lows(window), period)
	last := len(window) - 1
	if !strategy.Valid(highs[last]) || !strategy.Valid(lows[last]) {
		return false
	}

	hi, lo := highs[last], lows[last]
	if hi <= lo {
		return false
	}
	return (hi-lo)*threshold < window[last].Close-lo
}
