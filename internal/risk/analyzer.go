// Package risk analyzes portfolio concentration and tail risk: value at
// risk from the empirical daily return distribution, expected shortfall,
// Herfindahl concentration, and sector exposure checks against configured
// limits.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"waysystem/internal/domain"
	"waysystem/internal/portfolio"
	"waysystem/internal/store"
)

// minObservations is the smallest daily return sample the tail statistics
// are computed from. Below this the VaR and CVaR fields stay zero.
const minObservations = 30

// Violation reports one limit breach.
type Violation struct {
	Rule     string  `json:"rule"`
	Code     string  `json:"code,omitempty"`
	Observed float64 `json:"observed"`
	Limit    float64 `json:"limit"`
}

// Report is the outcome of one portfolio risk analysis. VaR and CVaR are
// positive loss magnitudes in percent of portfolio value; HHI and weights
// are fractions in [0, 1].
type Report struct {
	Portfolio     string             `json:"portfolio"`
	AsOf          time.Time          `json:"as_of"`
	Observations  int                `json:"observations"`
	VaR95         float64            `json:"var_95"`
	VaR99         float64            `json:"var_99"`
	CVaR95        float64            `json:"cvar_95"`
	HHI           float64            `json:"hhi"`
	SectorWeights map[string]float64 `json:"sector_weights"`
	Violations    []Violation        `json:"violations"`
}

// Analyzer computes risk reports from stored bar history and instrument
// metadata.
type Analyzer struct {
	bars        store.BarStore
	instruments store.InstrumentStore
	limits      domain.RiskLimits
	lookback    int
	log         *slog.Logger
}

// NewAnalyzer creates an Analyzer. lookbackDays is the calendar span of bar
// history the return sample is drawn from.
func NewAnalyzer(bars store.BarStore, instruments store.InstrumentStore, limits domain.RiskLimits, lookbackDays int, log *slog.Logger) *Analyzer {
	return &Analyzer{
		bars:        bars,
		instruments: instruments,
		limits:      limits,
		lookback:    lookbackDays,
		log:         log,
	}
}

// AnalyzePortfolio values the ledger's current holdings over the lookback
// window, derives daily portfolio returns, and checks the configured limits.
// A zero limit disables its check.
func (a *Analyzer) AnalyzePortfolio(ctx context.Context, ledger *portfolio.Ledger, asOf time.Time) (*Report, error) {
	rep := &Report{
		Portfolio:     ledger.Name(),
		AsOf:          asOf,
		SectorWeights: make(map[string]float64),
	}

	positions := ledger.Positions()
	if len(positions) == 0 {
		return rep, nil
	}

	histories := make(map[string][]domain.Bar, len(positions))
	start := asOf.AddDate(0, 0, -a.lookback)
	for code := range positions {
		bars, err := a.bars.ReadBars(ctx, code, start, asOf)
		if err != nil {
			return nil, fmt.Errorf("read bars %s: %w", code, err)
		}
		if len(bars) == 0 {
			a.log.Warn("no price history for held position", "code", code)
			continue
		}
		histories[code] = bars
	}

	values := portfolioValues(positions, histories, ledger.Cash())
	returns := dailyReturns(values)
	rep.Observations = len(returns)
	if len(returns) >= minObservations {
		rep.VaR95 = VaR(returns, 0.95)
		rep.VaR99 = VaR(returns, 0.99)
		rep.CVaR95 = CVaR(returns, 0.95)
	} else {
		a.log.Warn("return sample too small for tail statistics",
			"observations", len(returns), "min", minObservations)
	}

	weights := a.positionWeights(positions, histories)
	rep.HHI = HHI(weights)
	rep.SectorWeights = a.sectorWeights(ctx, weights)

	rep.Violations = a.checkLimits(rep)
	return rep, nil
}

func (a *Analyzer) checkLimits(rep *Report) []Violation {
	var out []Violation
	if a.limits.MaxVaR95 > 0 && rep.VaR95 > a.limits.MaxVaR95 {
		out = append(out, Violation{Rule: "max_var_95", Observed: rep.VaR95, Limit: a.limits.MaxVaR95})
	}
	if a.limits.MaxHHI > 0 && rep.HHI > a.limits.MaxHHI {
		out = append(out, Violation{Rule: "max_hhi", Observed: rep.HHI, Limit: a.limits.MaxHHI})
	}
	if a.limits.MaxSectorWeight > 0 {
		for sector, w := range rep.SectorWeights {
			if w > a.limits.MaxSectorWeight {
				out = append(out, Violation{
					Rule: "max_sector_weight", Code: sector,
					Observed: w, Limit: a.limits.MaxSectorWeight,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// positionWeights values each position at its latest close and returns its
// share of total investment value.
func (a *Analyzer) positionWeights(positions map[string]domain.Position, histories map[string][]domain.Bar) map[string]float64 {
	value := make(map[string]float64, len(positions))
	var total float64
	for code, pos := range positions {
		price := pos.AvgCost
		if history := histories[code]; len(history) > 0 {
			price = history[len(history)-1].Close
		}
		v := price * pos.Qty
		value[code] = v
		total += v
	}
	if total <= 0 {
		return nil
	}
	for code := range value {
		value[code] /= total
	}
	return value
}

// sectorWeights folds position weights into per-sector totals. Positions
// with no known instrument fall under "unknown".
func (a *Analyzer) sectorWeights(ctx context.Context, weights map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for code, w := range weights {
		sector := "unknown"
		if a.instruments != nil {
			inst, err := a.instruments.GetInstrument(ctx, code)
			if err == nil && inst != nil && inst.Sector != "" {
				sector = inst.Sector
			}
		}
		out[sector] += w
	}
	return out
}

// portfolioValues marks the current holdings to market on every date any
// held instrument traded, carrying the last known close forward, and adds
// the cash balance.
func portfolioValues(positions map[string]domain.Position, histories map[string][]domain.Bar, cash float64) []float64 {
	seen := make(map[time.Time]struct{})
	for _, history := range histories {
		for _, b := range history {
			seen[b.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cursors := make(map[string]int, len(histories))
	lastClose := make(map[string]float64, len(histories))

	values := make([]float64, 0, len(dates))
	for _, date := range dates {
		for code, history := range histories {
			i := cursors[code]
			for i < len(history) && !history[i].Date.After(date) {
				lastClose[code] = history[i].Close
				i++
			}
			cursors[code] = i
		}
		v := cash
		for code, pos := range positions {
			if price, ok := lastClose[code]; ok {
				v += price * pos.Qty
			} else {
				v += pos.AvgCost * pos.Qty
			}
		}
		values = append(values, v)
	}
	return values
}

func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// VaR returns the empirical value at risk at the given confidence as a
// positive loss percentage. A lower tail above zero yields zero.
func VaR(returns []float64, confidence float64) float64 {
	q := quantile(returns, 1-confidence)
	if q >= 0 {
		return 0
	}
	return -q * 100
}

// CVaR returns the mean loss beyond the VaR quantile as a positive
// percentage.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	cut := tailIndex(len(sorted), 1-confidence)
	var sum float64
	for _, r := range sorted[:cut+1] {
		sum += r
	}
	mean := sum / float64(cut+1)
	if mean >= 0 {
		return 0
	}
	return -mean * 100
}

// HHI returns the Herfindahl-Hirschman concentration index of the weight
// map, a fraction in (0, 1] where 1 is a single-position portfolio.
func HHI(weights map[string]float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	return sum
}

func quantile(returns []float64, p float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return sorted[tailIndex(len(sorted), p)]
}

func tailIndex(n int, p float64) int {
	i := int(math.Floor(p * float64(n)))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
