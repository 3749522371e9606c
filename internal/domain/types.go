// Package domain defines the core data types shared across the waysystem
// platform: bars, instruments, trades, positions, signals, and portfolio
// snapshots.
package domain

import "time"

// Bar is one trading day's OHLCV data for a single instrument. Bars are
// immutable once stored; a per-instrument sequence is ordered by date.
type Bar struct {
	Code   string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Instrument is the metadata for one tradable instrument. The core never
// mutates it.
type Instrument struct {
	Code   string
	Name   string
	Sector string
}

// SignalKind classifies a strategy signal.
type SignalKind string

const (
	// SignalEnterLong indicates the strategy's entry condition holds.
	SignalEnterLong SignalKind = "enter-long"
	// SignalNone indicates no entry condition holds.
	SignalNone SignalKind = "none"
)

// Signal is the output of a strategy evaluation for one instrument on one
// date.
type Signal struct {
	Code string
	Date time.Time
	Kind SignalKind
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one executed trade. The trade log is append-only; records are
// never mutated or deleted except by a full portfolio reset.
type Trade struct {
	ID        int64
	Date      time.Time
	Portfolio string
	Code      string
	Side      Side
	Price     float64
	Qty       float64
	Fee       float64
}

// Position is a held quantity of one instrument with its average cost.
// A position with zero quantity is removed from the ledger rather than
// persisted. Sells never change AvgCost.
type Position struct {
	Code    string
	Qty     float64
	AvgCost float64
}

// Snapshot captures the portfolio state at the end of one simulated date.
// TotalValue is cash plus the mark-to-market value of all positions.
// The snapshot sequence for a run is the equity curve.
type Snapshot struct {
	Date       time.Time
	Cash       float64
	Positions  map[string]Position
	TotalValue float64
}

// RiskLimits holds the thresholds the risk analyzer checks a portfolio
// against. A zero value disables the corresponding check.
type RiskLimits struct {
	MaxSectorWeight float64
	MaxVaR95        float64
	MaxHHI          float64
}
