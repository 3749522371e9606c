package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"waysystem/internal/domain"
)

// Compile-time interface checks.
var _ PortfolioStore = (*MemoryStore)(nil)
var _ BarStore = (*MemoryStore)(nil)
var _ InstrumentStore = (*MemoryStore)(nil)
var _ WatchlistStore = (*MemoryStore)(nil)

// MemoryStore implements every store interface entirely in memory. It backs
// simulated ledgers during backtests (which must never touch the live
// portfolio database) and tests.
type MemoryStore struct {
	mu sync.Mutex

	cash        map[string]float64
	initialized map[string]bool
	positions   map[string]map[string]domain.Position
	trades      map[string][]domain.Trade
	nextTradeID int64

	bars        map[string][]domain.Bar
	instruments map[string]domain.Instrument
	watchlist   map[string]watchEntry
}

type watchEntry struct {
	name    string
	addDate time.Time
	inPool  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cash:        make(map[string]float64),
		initialized: make(map[string]bool),
		positions:   make(map[string]map[string]domain.Position),
		trades:      make(map[string][]domain.Trade),
		bars:        make(map[string][]domain.Bar),
		instruments: make(map[string]domain.Instrument),
		watchlist:   make(map[string]watchEntry),
	}
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// LoadPortfolio returns the in-memory state for the named portfolio.
func (m *MemoryStore) LoadPortfolio(_ context.Context, name string) (float64, bool, map[string]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := make(map[string]domain.Position, len(m.positions[name]))
	for code, pos := range m.positions[name] {
		positions[code] = pos
	}
	return m.cash[name], m.initialized[name], positions, nil
}

// SavePortfolio replaces the in-memory cash and positions.
func (m *MemoryStore) SavePortfolio(_ context.Context, name string, cash float64, positions map[string]domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setState(name, cash, positions)
	return nil
}

// ApplyTrade appends a trade record and replaces the state in one step.
func (m *MemoryStore) ApplyTrade(_ context.Context, name string, trade domain.Trade, cash float64, positions map[string]domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTradeID++
	trade.ID = m.nextTradeID
	trade.Portfolio = name
	m.trades[name] = append(m.trades[name], trade)
	m.setState(name, cash, positions)
	return nil
}

// setState stores a deep copy of the portfolio state. Must be called with mu
// held.
func (m *MemoryStore) setState(name string, cash float64, positions map[string]domain.Position) {
	m.cash[name] = cash
	m.initialized[name] = true
	copied := make(map[string]domain.Position, len(positions))
	for code, pos := range positions {
		if pos.Qty == 0 {
			continue
		}
		copied[code] = pos
	}
	m.positions[name] = copied
}

// ListTrades returns trades ordered most recent first with optional filters.
func (m *MemoryStore) ListTrades(_ context.Context, name, code string, start, end time.Time) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Trade
	for _, t := range m.trades[name] {
		if code != "" && t.Code != code {
			continue
		}
		if !start.IsZero() && t.Date.Before(start) {
			continue
		}
		if !end.IsZero() && t.Date.After(end) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// ResetPortfolio erases the named portfolio's trades, positions, and cash.
func (m *MemoryStore) ResetPortfolio(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cash, name)
	delete(m.initialized, name)
	delete(m.positions, name)
	delete(m.trades, name)
	return nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars appends bars, keeping each instrument's sequence date-ordered.
func (m *MemoryStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[string]struct{})
	for _, b := range bars {
		m.bars[b.Code] = append(m.bars[b.Code], b)
		touched[b.Code] = struct{}{}
	}
	for code := range touched {
		series := m.bars[code]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return nil
}

// ReadBars returns bars for the instrument within [start, end].
func (m *MemoryStore) ReadBars(_ context.Context, code string, start, end time.Time) ([]domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Bar
	for _, b := range m.bars[code] {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ListCodes returns all instrument codes with bar data, sorted.
func (m *MemoryStore) ListCodes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	codes := make([]string, 0, len(m.bars))
	for code := range m.bars {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// SaveInstruments inserts or replaces instrument metadata.
func (m *MemoryStore) SaveInstruments(_ context.Context, instruments []domain.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inst := range instruments {
		m.instruments[inst.Code] = inst
	}
	return nil
}

// GetInstrument returns one instrument, or (nil, nil) if the code is
// unknown.
func (m *MemoryStore) GetInstrument(_ context.Context, code string) (*domain.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instruments[code]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

// ListInstruments returns all known instruments ordered by code.
func (m *MemoryStore) ListInstruments(_ context.Context) ([]domain.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Instrument, 0, len(m.instruments))
	for _, inst := range m.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ---------------------------------------------------------------------------
// WatchlistStore implementation
// ---------------------------------------------------------------------------

// AddWatch adds an instrument to the watchlist if not already present.
func (m *MemoryStore) AddWatch(_ context.Context, code, name string, addDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watchlist[code]; ok {
		return nil
	}
	m.watchlist[code] = watchEntry{name: name, addDate: addDate}
	return nil
}

// SetInPool flags or unflags a watchlist entry for the backtest pool.
func (m *MemoryStore) SetInPool(_ context.Context, code string, inPool bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.watchlist[code]
	if !ok {
		return fmt.Errorf("watchlist entry %s not found", code)
	}
	e.inPool = inPool
	m.watchlist[code] = e
	return nil
}

// ListWatch returns watchlist entries ordered by code.
func (m *MemoryStore) ListWatch(_ context.Context, poolOnly bool) ([]domain.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Instrument, 0, len(m.watchlist))
	for code, e := range m.watchlist {
		if poolOnly && !e.inPool {
			continue
		}
		out = append(out, domain.Instrument{Code: code, Name: e.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
