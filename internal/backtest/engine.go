// Package backtest implements the event-driven simulation engine: it walks
// daily bars in date order across a set of instruments, evaluates a strategy
// at each step, sizes and executes entries against a simulated ledger, and
// summarizes the resulting equity curve.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"waysystem/internal/domain"
	"waysystem/internal/portfolio"
	"waysystem/internal/store"
	"waysystem/internal/strategy"
)

// Config describes one backtest run.
type Config struct {
	Strategy       string
	Codes          []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	MaxPositions   int
	FeeRate        float64
	Params         strategy.Params
}

// Result is the outcome of one backtest run.
type Result struct {
	Metrics     Metrics
	EquityCurve []domain.Snapshot
	Trades      []domain.Trade
	Skipped     []string
}

// Engine runs backtests against stored bar data. Every run simulates into a
// fresh in-memory ledger; persisted portfolios are never touched.
type Engine struct {
	bars     store.BarStore
	registry *strategy.Registry
	log      *slog.Logger
}

// NewEngine creates a backtest Engine.
func NewEngine(bars store.BarStore, registry *strategy.Registry, log *slog.Logger) *Engine {
	return &Engine{bars: bars, registry: registry, log: log}
}

// Run executes one backtest. Instruments whose available history is shorter
// than the strategy's minimum window are skipped and reported in
// Result.Skipped rather than failing the run.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	strat, err := e.registry.Lookup(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if len(cfg.Codes) == 0 {
		return nil, fmt.Errorf("no instruments to backtest")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", cfg.InitialCapital)
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("max positions must be positive, got %v", cfg.MaxPositions)
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("end %s before start %s",
			cfg.End.Format(dateLayout), cfg.Start.Format(dateLayout))
	}

	minBars := strat.MinBars(cfg.Params)
	result := &Result{}

	// History loads include the warm-up region before cfg.Start so the
	// strategy has a full window on the first simulated date. Calendar days
	// overshoot bar counts, so pad generously.
	warmupStart := cfg.Start.AddDate(0, 0, -2*minBars-30)

	histories := make(map[string][]domain.Bar, len(cfg.Codes))
	for _, code := range cfg.Codes {
		bars, err := e.bars.ReadBars(ctx, code, warmupStart, cfg.End)
		if err != nil {
			return nil, fmt.Errorf("read bars %s: %w", code, err)
		}
		if len(bars) < minBars {
			e.log.Debug("skipping instrument with short history",
				"code", code, "bars", len(bars), "min", minBars)
			result.Skipped = append(result.Skipped, code)
			continue
		}
		histories[code] = bars
	}

	ledger, err := portfolio.NewLedger(ctx, store.NewMemoryStore(), "backtest")
	if err != nil {
		return nil, err
	}
	if err := ledger.Initialize(ctx, cfg.InitialCapital); err != nil {
		return nil, err
	}

	dates := tradingDates(histories, cfg.Start, cfg.End)
	windows := make(map[string][]domain.Bar, len(histories))
	cursors := make(map[string]int, len(histories))
	lastClose := make(map[string]float64, len(histories))

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Advance each instrument's window to this date. Codes are visited in
		// cfg.Codes order so runs are deterministic.
		for _, code := range cfg.Codes {
			history, ok := histories[code]
			if !ok {
				continue
			}
			i := cursors[code]
			for i < len(history) && !history[i].Date.After(date) {
				windows[code] = append(windows[code], history[i])
				lastClose[code] = history[i].Close
				i++
			}
			cursors[code] = i
		}

		for _, code := range cfg.Codes {
			window := windows[code]
			if len(window) == 0 || !window[len(window)-1].Date.Equal(date) {
				continue
			}
			if _, held := ledger.Positions()[code]; held {
				continue
			}
			if len(window) < minBars || !strat.Evaluate(window, cfg.Params) {
				continue
			}

			price := window[len(window)-1].Close
			equity := markToMarket(ledger, lastClose)
			qty := SizeOrder(equity, ledger.Cash(), price, cfg.MaxPositions, cfg.FeeRate)
			if qty == 0 {
				continue
			}
			fee := price * qty * cfg.FeeRate
			trade, err := ledger.ExecuteTrade(ctx, date, code, domain.SideBuy, price, qty, fee)
			if err != nil {
				return nil, fmt.Errorf("execute %s on %s: %w", code, date.Format(dateLayout), err)
			}
			result.Trades = append(result.Trades, trade)
			e.log.Debug("entry filled",
				"code", code, "date", date.Format(dateLayout), "price", price, "qty", qty)
		}

		result.EquityCurve = append(result.EquityCurve, domain.Snapshot{
			Date:       date,
			Cash:       ledger.Cash(),
			Positions:  ledger.Positions(),
			TotalValue: markToMarket(ledger, lastClose),
		})
	}

	result.Metrics = Summarize(result.EquityCurve, result.Trades, cfg.InitialCapital, cfg.Start, cfg.End)
	e.log.Info("backtest complete",
		"strategy", cfg.Strategy,
		"instruments", len(histories),
		"skipped", len(result.Skipped),
		"trades", len(result.Trades),
		"total_return", result.Metrics.TotalReturn)
	return result, nil
}

// markToMarket values the ledger at the most recent known close per code.
// A position with no observed close yet is valued at its average cost.
func markToMarket(ledger *portfolio.Ledger, lastClose map[string]float64) float64 {
	total := ledger.Cash()
	for code, pos := range ledger.Positions() {
		if price, ok := lastClose[code]; ok && price > 0 {
			total += price * pos.Qty
		} else {
			total += pos.AvgCost * pos.Qty
		}
	}
	return total
}

// tradingDates returns the sorted union of bar dates across all histories,
// restricted to [start, end].
func tradingDates(histories map[string][]domain.Bar, start, end time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, history := range histories {
		for _, b := range history {
			if b.Date.Before(start) || b.Date.After(end) {
				continue
			}
			seen[b.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
