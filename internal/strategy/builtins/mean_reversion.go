package builtins

import (
	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// MeanReversion buys when the last close sits in the lower band of its
// recent high-low range, betting on a bounce back toward the middle.
type MeanReversion struct{}

var _ strategy.Strategy = (*MeanReversion)(nil)

func (MeanReversion) Name() string { return "mean-reversion" }

func (MeanReversion) MinBars(p strategy.Params) int {
	return int(p.Get("period", 120))
}

func (MeanReversion) Evaluate(window []domain.Bar, p strategy.Params) bool {
	period := int(p.Get("period", 120))
	threshold := p.Get("buy_threshold_factor", 0.2)

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
	return (hi-lo)*threshold > window[last].Close-lo
}
