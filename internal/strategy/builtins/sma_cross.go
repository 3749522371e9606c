package builtins

import (
	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// SMACross buys when the fast moving average has crossed above the slow one
// within the last few bars and is still above it at the final bar.
type SMACross struct{}

var _ strategy.Strategy = (*SMACross)(nil)

func (SMACross) Name() string { return "sma-cross" }

func (SMACross) MinBars(p strategy.Params) int {
	return int(p.Get("slow_period", 60)) + int(p.Get("valid_days", 3))
}

func (SMACross) Evaluate(window []domain.Bar, p strategy.Params) bool {
	fastPeriod := int(p.Get("fast_period", 20))
	slowPeriod := int(p.Get("slow_period", 60))
	validDays := int(p.Get("valid_days", 3))

	if fastPeriod >= slowPeriod || len(window) < slowPeriod+validDays {
		return false
	}

	closes := strategy.Closes(window)
	fast := strategy.SMA(closes, fastPeriod)
	slow := strategy.SMA(closes, slowPeriod)
	last := len(window) - 1

	if !strategy.Valid(fast[last]) || !strategy.Valid(slow[last]) || fast[last] <= slow[last] {
		return false
	}

	// A cross counts when fast was at or below slow on one bar and above it
	// on the next, within the last validDays bars.
	for i := last; i > last-validDays && i > 0; i-- {
		if !strategy.Valid(fast[i-1]) || !strategy.Valid(slow[i-1]) {
			return false
		}
		if fast[i-1] <= slow[i-1] && fast[i] > slow[i] {
			return true
		}
	}
	return false
}
