package httpapi

import (
	"time"

	"waysystem/internal/backtest"
	"waysystem/internal/domain"
	"waysystem/internal/risk"
	"waysystem/internal/screen"
)

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Strategy       string             `json:"strategy"`
	Codes          []string           `json:"codes,omitempty"`
	Start          string             `json:"start"`
	End            string             `json:"end"`
	InitialCapital float64            `json:"initial_capital,omitempty"`
	MaxPositions   int                `json:"max_positions,omitempty"`
	FeeRate        *float64           `json:"fee_rate,omitempty"`
	Params         map[string]float64 `json:"params,omitempty"`
}

// BacktestResponse is the result of one backtest run.
type BacktestResponse struct {
	Metrics     backtest.Metrics  `json:"metrics"`
	EquityCurve []EquityPoint     `json:"equity_curve"`
	Trades      []TradeJSON       `json:"trade_log"`
	Skipped     []string          `json:"skipped"`
}

// EquityPoint is one equity curve sample.
type EquityPoint struct {
	Date       string  `json:"date"`
	Cash       float64 `json:"cash"`
	TotalValue float64 `json:"total_value"`
}

// TradeJSON is the wire form of one trade.
type TradeJSON struct {
	ID        int64   `json:"id,omitempty"`
	Date      string  `json:"date"`
	Portfolio string  `json:"portfolio,omitempty"`
	Code      string  `json:"code"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	Fee       float64 `json:"fee"`
}

// ScreenResponse is the result of GET /api/screen.
type ScreenResponse struct {
	Strategy string         `json:"strategy"`
	AsOf     string         `json:"as_of"`
	Matches  []screen.Match `json:"matches"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// InitRequest is the body of POST /api/portfolio/init.
type InitRequest struct {
	Cash float64 `json:"cash"`
}

// CashRequest is the body of POST /api/portfolio/cash.
type CashRequest struct {
	Delta float64 `json:"delta"`
}

// TradeRequest is the body of POST /api/portfolio/trades.
type TradeRequest struct {
	Date  string  `json:"date,omitempty"`
	Code  string  `json:"code"`
	Side  string  `json:"side"`
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
	Fee   float64 `json:"fee,omitempty"`
}

// TradesResponse lists trade log entries, most recent first.
type TradesResponse struct {
	Trades []TradeJSON `json:"trades"`
}

// RiskResponse wraps one risk report.
type RiskResponse struct {
	Report *risk.Report `json:"report"`
}

// WatchlistEntry is one watchlist row.
type WatchlistEntry struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// WatchlistResponse lists watchlist entries.
type WatchlistResponse struct {
	Entries []WatchlistEntry `json:"entries"`
}

func tradeJSON(tr domain.Trade) TradeJSON {
	return TradeJSON{
		ID:        tr.ID,
		Date:      tr.Date.Format(dateLayout),
		Portfolio: tr.Portfolio,
		Code:      tr.Code,
		Side:      string(tr.Side),
		Price:     tr.Price,
		Qty:       tr.Qty,
		Fee:       tr.Fee,
	}
}

func equityPoints(curve []domain.Snapshot) []EquityPoint {
	out := make([]EquityPoint, len(curve))
	for i, snap := range curve {
		out[i] = EquityPoint{
			Date:       snap.Date.Format(dateLayout),
			Cash:       snap.Cash,
			TotalValue: snap.TotalValue,
		}
	}
	return out
}

func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(dateLayout, s)
}
