package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"waysystem/internal/store"
)

// priceLookbackDays bounds how far back Report searches for the latest
// close. Long enough to bridge holidays and trading halts.
const priceLookbackDays = 30

// PositionReport is one position's mark-to-market valuation line.
type PositionReport struct {
	Code          string    `json:"code"`
	Name          string    `json:"name,omitempty"`
	Qty           float64   `json:"qty"`
	AvgCost       float64   `json:"avg_cost"`
	LastPrice     float64   `json:"last_price"`
	LastDate      time.Time `json:"last_date"`
	MarketValue   float64   `json:"market_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	UnrealizedPct float64   `json:"unrealized_pct"`
}

// Report is the full valuation of a portfolio as of one date.
type Report struct {
	Portfolio       string           `json:"portfolio"`
	AsOf            time.Time        `json:"as_of"`
	Cash            float64          `json:"cash"`
	InvestmentValue float64          `json:"investment_value"`
	TotalValue      float64          `json:"total_value"`
	PositionCount   int              `json:"position_count"`
	Positions       []PositionReport `json:"positions"`
}

// Report values every position at its latest close on or before asOf. A
// position with no price inside the lookback window contributes zero market
// value and zero unrealized P&L. Instrument names are attached when the
// instrument store knows the code; instruments may be nil.
func (l *Ledger) Report(ctx context.Context, bars store.BarStore, instruments store.InstrumentStore, asOf time.Time) (*Report, error) {
	rep := &Report{
		Portfolio: l.name,
		AsOf:      asOf,
		Cash:      l.cash,
		Positions: make([]PositionReport, 0, len(l.positions)),
	}

	for code, pos := range l.positions {
		line := PositionReport{
			Code:    code,
			Qty:     pos.Qty,
			AvgCost: pos.AvgCost,
		}

		price, date, err := latestClose(ctx, bars, code, asOf)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", code, err)
		}
		if price > 0 {
			line.LastPrice = price
			line.LastDate = date
			line.MarketValue = price * pos.Qty
			line.UnrealizedPnL = (price - pos.AvgCost) * pos.Qty
			if pos.AvgCost > 0 {
				line.UnrealizedPct = (price - pos.AvgCost) / pos.AvgCost * 100
			}
		}

		if instruments != nil {
			inst, err := instruments.GetInstrument(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", code, err)
			}
			if inst != nil {
				line.Name = inst.Name
			}
		}

		rep.InvestmentValue += line.MarketValue
		rep.Positions = append(rep.Positions, line)
	}

	sort.Slice(rep.Positions, func(i, j int) bool {
		return rep.Positions[i].Code < rep.Positions[j].Code
	})
	rep.PositionCount = len(rep.Positions)
	rep.TotalValue = rep.Cash + rep.InvestmentValue
	return rep, nil
}

// latestClose returns the most recent close for code on or before asOf,
// searching back priceLookbackDays. Returns (0, zero, nil) when no bar is
// found.
func latestClose(ctx context.Context, bars store.BarStore, code string, asOf time.Time) (float64, time.Time, error) {
	start := asOf.AddDate(0, 0, -priceLookbackDays)
	history, err := bars.ReadBars(ctx, code, start, asOf)
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(history) == 0 {
		return 0, time.Time{}, nil
	}
	last := history[len(history)-1]
	return last.Close, last.Date, nil
}
