// Package portfolio implements the position ledger: cash, positions with
// average-cost accounting, an append-only trade log, and mark-to-market
// valuation reports. All mutations are persisted through a
// store.PortfolioStore before the in-memory state changes, so a failed write
// leaves the ledger untouched.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"waysystem/internal/domain"
	"waysystem/internal/store"
)

// Ledger is the in-memory view of one named portfolio backed by a
// PortfolioStore. It is safe for use from a single goroutine; callers that
// share a ledger across goroutines must serialize access themselves.
type Ledger struct {
	name        string
	store       store.PortfolioStore
	cash        float64
	initialized bool
	positions   map[string]domain.Position
}

// NewLedger loads the named portfolio's persisted state into a Ledger.
func NewLedger(ctx context.Context, ps store.PortfolioStore, name string) (*Ledger, error) {
	cash, initialized, positions, err := ps.LoadPortfolio(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load portfolio %q: %w", name, err)
	}
	if positions == nil {
		positions = make(map[string]domain.Position)
	}
	return &Ledger{
		name:        name,
		store:       ps,
		cash:        cash,
		initialized: initialized,
		positions:   positions,
	}, nil
}

// Name returns the portfolio name.
func (l *Ledger) Name() string { return l.name }

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// Initialized reports whether the ledger's cash has been set.
func (l *Ledger) Initialized() bool { return l.initialized }

// Positions returns a copy of the current holdings keyed by code.
func (l *Ledger) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(l.positions))
	for code, pos := range l.positions {
		out[code] = pos
	}
	return out
}

// Initialize sets the starting cash balance. It fails with
// ErrAlreadyInitialized if cash has already been set, and rejects negative
// amounts.
func (l *Ledger) Initialize(ctx context.Context, cash float64) error {
	if l.initialized {
		return ErrAlreadyInitialized
	}
	if cash < 0 {
		return fmt.Errorf("initial cash must not be negative, got %v", cash)
	}
	if err := l.store.SavePortfolio(ctx, l.name, cash, l.positions); err != nil {
		return fmt.Errorf("save portfolio %q: %w", l.name, err)
	}
	l.cash = cash
	l.initialized = true
	return nil
}

// AdjustCash deposits (positive delta) or withdraws (negative delta) cash.
// A withdrawal that would leave the balance negative fails with
// ErrInsufficientCash.
func (l *Ledger) AdjustCash(ctx context.Context, delta float64) error {
	if !l.initialized {
		return ErrNotInitialized
	}
	next := l.cash + delta
	if next < 0 {
		return fmt.Errorf("%w: balance %v, withdrawal %v", ErrInsufficientCash, l.cash, -delta)
	}
	if err := l.store.SavePortfolio(ctx, l.name, next, l.positions); err != nil {
		return fmt.Errorf("save portfolio %q: %w", l.name, err)
	}
	l.cash = next
	return nil
}

// ExecuteTrade applies one buy or sell to the ledger. Buys debit
// price*qty+fee from cash and fold the purchase price into the position's
// average cost; the fee reduces cash but never the cost basis.
// Sells credit price*qty-fee and leave the average cost unchanged; a
// position sold down to zero quantity is removed. The trade record and the
// post-trade state are persisted atomically before the in-memory state is
// updated.
func (l *Ledger) ExecuteTrade(ctx context.Context, date time.Time, code string, side domain.Side, price, qty, fee float64) (domain.Trade, error) {
	if !l.initialized {
		return domain.Trade{}, ErrNotInitialized
	}
	if price <= 0 {
		return domain.Trade{}, fmt.Errorf("price must be positive, got %v", price)
	}
	if qty <= 0 {
		return domain.Trade{}, fmt.Errorf("qty must be positive, got %v", qty)
	}
	if fee < 0 {
		return domain.Trade{}, fmt.Errorf("fee must not be negative, got %v", fee)
	}

	nextCash := l.cash
	nextPositions := l.Positions()

	switch side {
	case domain.SideBuy:
		cost := price*qty + fee
		if cost > l.cash {
			return domain.Trade{}, fmt.Errorf("%w: need %v, have %v", ErrInsufficientCash, cost, l.cash)
		}
		nextCash -= cost
		pos := nextPositions[code]
		totalQty := pos.Qty + qty
		pos.AvgCost = (pos.AvgCost*pos.Qty + price*qty) / totalQty
		pos.Qty = totalQty
		pos.Code = code
		nextPositions[code] = pos
	case domain.SideSell:
		pos, ok := nextPositions[code]
		if !ok || pos.Qty < qty {
			return domain.Trade{}, fmt.Errorf("%w: %s holds %v, selling %v", ErrInsufficientPosition, code, pos.Qty, qty)
		}
		nextCash += price*qty - fee
		pos.Qty -= qty
		if pos.Qty == 0 {
			delete(nextPositions, code)
		} else {
			nextPositions[code] = pos
		}
	default:
		return domain.Trade{}, fmt.Errorf("unknown trade side %q", side)
	}

	trade := domain.Trade{
		Date:      date,
		Portfolio: l.name,
		Code:      code,
		Side:      side,
		Price:     price,
		Qty:       qty,
		Fee:       fee,
	}
	if err := l.store.ApplyTrade(ctx, l.name, trade, nextCash, nextPositions); err != nil {
		return domain.Trade{}, fmt.Errorf("apply trade: %w", err)
	}
	l.cash = nextCash
	l.positions = nextPositions
	return trade, nil
}

// History returns the portfolio's trade log ordered most recent first,
// optionally filtered by instrument code and date range. Zero times mean
// unbounded.
func (l *Ledger) History(ctx context.Context, code string, start, end time.Time) ([]domain.Trade, error) {
	return l.store.ListTrades(ctx, l.name, code, start, end)
}

// Reset erases the portfolio's trades and positions and returns its cash to
// the uninitialized state.
func (l *Ledger) Reset(ctx context.Context) error {
	if err := l.store.ResetPortfolio(ctx, l.name); err != nil {
		return fmt.Errorf("reset portfolio %q: %w", l.name, err)
	}
	l.cash = 0
	l.initialized = false
	l.positions = make(map[string]domain.Position)
	return nil
}
