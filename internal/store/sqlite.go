package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waysystem/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ InstrumentStore = (*SQLiteStore)(nil)
var _ WatchlistStore = (*SQLiteStore)(nil)
var _ PortfolioStore = (*SQLiteStore)(nil)

// cashCode is the sentinel portfolio row holding the cash balance. A
// portfolio with no cash row has uninitialized cash.
const cashCode = "CASH"

const dateLayout = "2006-01-02"

// SQLiteStore implements InstrumentStore, WatchlistStore, and PortfolioStore
// backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migrations, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			code   TEXT PRIMARY KEY,
			name   TEXT,
			sector TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			code     TEXT PRIMARY KEY,
			name     TEXT,
			add_date TEXT,
			in_pool  INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id  INTEGER PRIMARY KEY AUTOINCREMENT,
			date      TEXT,
			portfolio TEXT,
			code      TEXT,
			side      TEXT,
			price     REAL,
			qty       REAL,
			fee       REAL
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio (
			portfolio TEXT,
			code      TEXT,
			qty       REAL,
			cost      REAL,
			PRIMARY KEY (portfolio, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_portfolio_date
			ON trades (portfolio, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// SaveInstruments inserts or updates a batch of instruments.
func (s *SQLiteStore) SaveInstruments(ctx context.Context, instruments []domain.Instrument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, inst := range instruments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO instruments (code, name, sector) VALUES (?, ?, ?)
			 ON CONFLICT(code) DO UPDATE SET name = excluded.name, sector = excluded.sector`,
			inst.Code, inst.Name, inst.Sector,
		); err != nil {
			return fmt.Errorf("saving instrument %s: %w", inst.Code, err)
		}
	}
	return tx.Commit()
}

// GetInstrument retrieves one instrument by code. Returns (nil, nil) when the
// code is unknown.
func (s *SQLiteStore) GetInstrument(ctx context.Context, code string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, sector FROM instruments WHERE code = ?`, code,
	).Scan(&inst.Code, &inst.Name, &inst.Sector)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListInstruments returns all known instruments ordered by code.
func (s *SQLiteStore) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, sector FROM instruments ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Sector); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// WatchlistStore implementation
// ---------------------------------------------------------------------------

// AddWatch adds an instrument to the watchlist if not already present.
func (s *SQLiteStore) AddWatch(ctx context.Context, code, name string, addDate time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watchlist (code, name, add_date, in_pool) VALUES (?, ?, ?, 0)`,
		code, name, addDate.Format(dateLayout))
	return err
}

// SetInPool marks or unmarks a watchlist entry as part of the backtest pool.
func (s *SQLiteStore) SetInPool(ctx context.Context, code string, inPool bool) error {
	flag := 0
	if inPool {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE watchlist SET in_pool = ? WHERE code = ?`, flag, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("watchlist entry %s not found", code)
	}
	return nil
}

// ListWatch returns watchlist entries ordered by code.
func (s *SQLiteStore) ListWatch(ctx context.Context, poolOnly bool) ([]domain.Instrument, error) {
	query := `SELECT code, name FROM watchlist`
	if poolOnly {
		query += ` WHERE in_pool = 1`
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// LoadPortfolio returns the persisted cash balance, whether cash has been
// initialized, and all held positions for the named portfolio.
func (s *SQLiteStore) LoadPortfolio(ctx context.Context, name string) (float64, bool, map[string]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, qty, cost FROM portfolio WHERE portfolio = ?`, name)
	if err != nil {
		return 0, false, nil, err
	}
	defer rows.Close()

	var (
		cash        float64
		initialized bool
	)
	positions := make(map[string]domain.Position)
	for rows.Next() {
		var (
			code      string
			qty, cost float64
		)
		if err := rows.Scan(&code, &qty, &cost); err != nil {
			return 0, false, nil, err
		}
		if code == cashCode {
			cash = cost
			initialized = true
			continue
		}
		positions[code] = domain.Position{Code: code, Qty: qty, AvgCost: cost}
	}
	return cash, initialized, positions, rows.Err()
}

// SavePortfolio replaces the persisted cash and positions for the named
// portfolio in one transaction.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, name string, cash float64, positions map[string]domain.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writePortfolioRows(ctx, tx, name, cash, positions); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyTrade atomically appends a trade record and replaces the persisted
// cash and positions with the post-trade state. Either both writes land or
// neither does.
func (s *SQLiteStore) ApplyTrade(ctx context.Context, name string, trade domain.Trade, cash float64, positions map[string]domain.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trades (date, portfolio, code, side, price, qty, fee) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.Date.Format(dateLayout), name, trade.Code, string(trade.Side), trade.Price, trade.Qty, trade.Fee,
	); err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	if err := writePortfolioRows(ctx, tx, name, cash, positions); err != nil {
		return err
	}
	return tx.Commit()
}

// writePortfolioRows replaces the portfolio rows for name with the given
// cash and positions. Must run inside tx.
func writePortfolioRows(ctx context.Context, tx *sql.Tx, name string, cash float64, positions map[string]domain.Position) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM portfolio WHERE portfolio = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO portfolio (portfolio, code, qty, cost) VALUES (?, ?, 1, ?)`,
		name, cashCode, cash); err != nil {
		return err
	}
	for code, pos := range positions {
		if pos.Qty == 0 {
			continue // zero-quantity positions are never persisted
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO portfolio (portfolio, code, qty, cost) VALUES (?, ?, ?, ?)`,
			name, code, pos.Qty, pos.AvgCost); err != nil {
			return err
		}
	}
	return nil
}

// ListTrades returns trades ordered most recent first, optionally filtered
// by instrument code and date range.
func (s *SQLiteStore) ListTrades(ctx context.Context, name, code string, start, end time.Time) ([]domain.Trade, error) {
	query := `SELECT trade_id, date, code, side, price, qty, fee FROM trades WHERE portfolio = ?`
	args := []any{name}
	if code != "" {
		query += ` AND code = ?`
		args = append(args, code)
	}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.Format(dateLayout))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.Format(dateLayout))
	}
	query += ` ORDER BY date DESC, trade_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t       domain.Trade
			dateStr string
			side    string
		)
		if err := rows.Scan(&t.ID, &dateStr, &t.Code, &side, &t.Price, &t.Qty, &t.Fee); err != nil {
			return nil, err
		}
		t.Date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing trade date %q: %w", dateStr, err)
		}
		t.Portfolio = name
		t.Side = domain.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResetPortfolio erases all trades and positions for the named portfolio and
// returns its cash to the uninitialized state.
func (s *SQLiteStore) ResetPortfolio(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE portfolio = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio WHERE portfolio = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}
