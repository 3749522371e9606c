package builtins

import (
	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// WeeklyMACD resamples daily bars to weekly closes and buys when the MACD
// histogram on the weekly series is positive and expanding.
type WeeklyMACD struct{}

var _ strategy.Strategy = (*WeeklyMACD)(nil)

func (WeeklyMACD) Name() string { return "weekly-macd" }

func (WeeklyMACD) MinBars(p strategy.Params) int {
	slow := int(p.Get("slow_period", 26))
	signal := int(p.Get("signal_period", 9))
	return 5 * (slow + signal + 1)
}

func (WeeklyMACD) Evaluate(window []domain.Bar, p strategy.Params) bool {
	fast := int(p.Get("fast_period", 12))
	slow := int(p.Get("slow_period", 26))
	signal := int(p.Get("signal_period", 9))

	weekly := weeklyCloses(window)
	if len(weekly) < slow+signal+1 {
		return false
	}

	_, _, hist := strategy.MACD(weekly, fast, slow, signal)
	last := len(weekly) - 1
	if !strategy.Valid(hist[last]) || !strategy.Valid(hist[last-1]) {
		return false
	}
	return hist[last] > 0 && hist[last] > hist[last-1]
}

// weeklyCloses collapses daily bars into one close per ISO week, taking the
// last close observed in each week. The input is ordered by date ascending,
// so the resampled series is too.
func weeklyCloses(bars []domain.Bar) []float64 {
	var out []float64
	var curYear, curWeek int
	for i, b := range bars {
		y, w := b.Date.ISOWeek()
		if i == 0 || y != curYear || w != curWeek {
			out = append(out, b.Close)
			curYear, curWeek = y, w
			continue
		}
		out[len(out)-1] = b.Close
	}
	return out
}
