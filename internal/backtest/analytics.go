package backtest

import (
	"math"
	"time"

	"waysystem/internal/domain"
)

const dateLayout = "2006-01-02"

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// Metrics summarizes the performance of one backtest run. Percentages are
// expressed as 0-100 values.
type Metrics struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	WinRate      float64 `json:"win_rate"`
	TotalTrades  int     `json:"total_trades"`
}

// Summarize computes performance metrics from an equity curve and trade log.
// Degenerate inputs (empty curve, too few return observations, zero
// variance) yield zero for the affected metric rather than NaN.
func Summarize(curve []domain.Snapshot, trades []domain.Trade, initialCapital float64, start, end time.Time) Metrics {
	m := Metrics{TotalTrades: len(trades)}
	if len(curve) == 0 || initialCapital <= 0 {
		return m
	}

	final := curve[len(curve)-1].TotalValue
	m.TotalReturn = (final - initialCapital) / initialCapital * 100
	m.AnnualReturn = annualReturn(final/initialCapital, start, end)
	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio = sharpeRatio(dailyReturns(curve))
	m.WinRate = winRate(trades)
	return m
}

func annualReturn(growth float64, start, end time.Time) float64 {
	years := end.Sub(start).Hours() / 24 / 365.25
	if years <= 0 || growth <= 0 {
		return 0
	}
	return (math.Pow(growth, 1/years) - 1) * 100
}

// maxDrawdown returns the largest peak-to-trough decline of the equity
// curve, as a positive percentage.
func maxDrawdown(curve []domain.Snapshot) float64 {
	var peak, worst float64
	for _, snap := range curve {
		if snap.TotalValue > peak {
			peak = snap.TotalValue
		}
		if peak > 0 {
			dd := (peak - snap.TotalValue) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

func dailyReturns(curve []domain.Snapshot) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalValue
		if prev <= 0 {
			continue
		}
		out = append(out, curve[i].TotalValue/prev-1)
	}
	return out
}

// sharpeRatio annualizes the mean daily return over its standard deviation.
// Fewer than two observations or a flat series yields zero.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// winRate replays the trade log in chronological order, tracking each
// instrument's running average cost, and reports the share of sells that
// realized a profit net of fees. No sells yields zero.
func winRate(trades []domain.Trade) float64 {
	type book struct {
		qty, avgCost float64
	}
	books := make(map[string]*book)

	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Date.Before(ordered[j-1].Date); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	var sells, wins int
	for _, tr := range ordered {
		b := books[tr.Code]
		if b == nil {
			b = &book{}
			books[tr.Code] = b
		}
		switch tr.Side {
		case domain.SideBuy:
			total := b.qty + tr.Qty
			b.avgCost = (b.avgCost*b.qty + tr.Price*tr.Qty) / total
			b.qty = total
		case domain.SideSell:
			sells++
			if (tr.Price-b.avgCost)*tr.Qty-tr.Fee > 0 {
				wins++
			}
			b.qty -= tr.Qty
			if b.qty <= 0 {
				b.qty, b.avgCost = 0, 0
			}
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}
