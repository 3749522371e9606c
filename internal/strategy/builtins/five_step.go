// Package builtins provides the stock entry strategies shipped with the
// engine. Each strategy is registered under a stable name via RegisterAll
// and evaluates a window of daily bars with configurable parameters.
package builtins

import (
	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// FiveStep is a momentum strategy that requires five conditions to hold at
// once: a rising long moving average, a sustained price advance over the
// long period, a rising short moving average, a volume expansion, and
// strong RSI on two horizons.
type FiveStep struct{}

var _ strategy.Strategy = (*FiveStep)(nil)

func (FiveStep) Name() string { return "five-step" }

func (FiveStep) MinBars(p strategy.Params) int {
	return int(p.Get("ma_long_period", 240)) + 1
}

func (FiveStep) Evaluate(window []domain.Bar, p strategy.Params) bool {
	maLong := int(p.Get("ma_long_period", 240))
	maShort1 := int(p.Get("ma_short_period_1", 60))
	maShort2 := int(p.Get("ma_short_period_2", 20))
	priceFactor := p.Get("price_increase_factor", 1.1)
	rsiPeriod1 := int(p.Get("rsi_period_1", 13))
	rsiPeriod2 := int(p.Get("rsi_period_2", 6))
	rsiBuy1 := p.Get("rsi_buy_threshold_1", 50)
	rsiBuy2 := p.Get("rsi_buy_threshold_2", 70)
	volPeriod := int(p.Get("vol_period", 20))
	volFactor := p.Get("vol_factor", 1.5)

	if len(window) < maLong+1 {
		return false
	}

	closes := strategy.Closes(window)
	vols := strategy.Volumes(window)
	last := len(window) - 1

	smaLong := strategy.SMA(closes, maLong)
	if !strategy.Valid(smaLong[last]) || !strategy.Valid(smaLong[last-1]) ||
		smaLong[last] <= smaLong[last-1] {
		return false
	}

	if closes[last] < closes[last-maLong]*priceFactor {
		return false
	}

	smaShort1 := strategy.SMA(closes, maShort1)
	smaShort2 := strategy.SMA(closes, maShort2)
	short1Up := strategy.Valid(smaShort1[last]) && strategy.Valid(smaShort1[last-1]) &&
		smaShort1[last] > smaShort1[last-1]
	short2Up := strategy.Valid(smaShort2[last]) && strategy.Valid(smaShort2[last-1]) &&
		smaShort2[last] > smaShort2[last-1]
	if !short1Up && !short2Up {
		return false
	}

	volSMA := strategy.SMA(vols, volPeriod)
	if !strategy.Valid(volSMA[last]) || vols[last] <= volSMA[last]*volFactor {
		return false
	}

	rsi1 := strategy.RSI(closes, rsiPeriod1)
	rsi2 := strategy.RSI(closes, rsiPeriod2)
	if !strategy.Valid(rsi1[last]) || !strategy.Valid(rsi2[last]) {
		return false
	}
	return rsi1[last] > rsiBuy1 && rsi2[last] > rsiBuy2
}
