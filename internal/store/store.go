// Package store defines storage interfaces for persisting and retrieving
// domain objects: daily bars, instrument metadata, the watchlist, and
// portfolio state (cash, positions, trades).
package store

import (
	"context"
	"time"

	"waysystem/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given instrument code within [start, end],
	// ordered by date ascending.
	ReadBars(ctx context.Context, code string, start, end time.Time) ([]domain.Bar, error)

	// ListCodes returns all distinct instrument codes with bar data.
	ListCodes(ctx context.Context) ([]string, error)
}

// InstrumentStore persists and retrieves instrument metadata.
type InstrumentStore interface {
	// SaveInstruments inserts or updates a batch of instruments.
	SaveInstruments(ctx context.Context, instruments []domain.Instrument) error

	// GetInstrument retrieves one instrument by code. Returns (nil, nil) if
	// the code is unknown.
	GetInstrument(ctx context.Context, code string) (*domain.Instrument, error)

	// ListInstruments returns all known instruments ordered by code.
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
}

// WatchlistStore persists the user watchlist and the backtest pool flag.
type WatchlistStore interface {
	// AddWatch adds an instrument to the watchlist if not already present.
	AddWatch(ctx context.Context, code, name string, addDate time.Time) error

	// SetInPool marks or unmarks a watchlist entry as part of the backtest
	// pool.
	SetInPool(ctx context.Context, code string, inPool bool) error

	// ListWatch returns watchlist entries ordered by code. With poolOnly set,
	// only entries flagged for the backtest pool are returned.
	ListWatch(ctx context.Context, poolOnly bool) ([]domain.Instrument, error)
}

// PortfolioStore persists portfolio state keyed by portfolio name. The
// persisted state must always reflect the last fully-applied mutation:
// ApplyTrade writes the trade record and the resulting cash/positions in one
// transaction.
type PortfolioStore interface {
	// LoadPortfolio returns the persisted cash balance, whether cash has been
	// initialized, and all held positions for the named portfolio.
	LoadPortfolio(ctx context.Context, name string) (cash float64, initialized bool, positions map[string]domain.Position, err error)

	// SavePortfolio replaces the persisted cash and positions for the named
	// portfolio. Used for cash initialization and deposits/withdrawals.
	SavePortfolio(ctx context.Context, name string, cash float64, positions map[string]domain.Position) error

	// ApplyTrade atomically appends a trade record and replaces the persisted
	// cash and positions with the post-trade state.
	ApplyTrade(ctx context.Context, name string, trade domain.Trade, cash float64, positions map[string]domain.Position) error

	// ListTrades returns trades for the named portfolio ordered most recent
	// first, optionally filtered by instrument code and date range (zero
	// times mean unbounded).
	ListTrades(ctx context.Context, name, code string, start, end time.Time) ([]domain.Trade, error)

	// ResetPortfolio erases all trades and positions for the named portfolio
	// and returns its cash to the uninitialized state.
	ResetPortfolio(ctx context.Context, name string) error
}
