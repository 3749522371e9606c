package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"waysystem/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.barPath("600519", 2024)
	want := filepath.Join("/data", "daily", "600519", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Code: "600519", Date: day(2024, 1, 2), Open: 1700, High: 1712, Low: 1690, Close: 1705, Volume: 31000},
		{Code: "600519", Date: day(2024, 1, 3), Open: 1705, High: 1720, Low: 1701, Close: 1718, Volume: 28000},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "600519", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 1705 || got[1].Close != 1718 {
		t.Errorf("closes = %v, %v, want 1705, 1718", got[0].Close, got[1].Close)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{{Code: "000001", Date: day(2024, 3, 1), Close: 10.5, Volume: 100}}
	if err := ps.WriteBars(ctx, first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same code and year: should merge, not overwrite.
	second := []domain.Bar{{Code: "000001", Date: day(2024, 3, 4), Close: 10.9, Volume: 120}}
	if err := ps.WriteBars(ctx, second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "000001", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
}

func TestParquetStoreListCodes(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Code: "000001", Date: day(2024, 1, 2), Close: 10},
		{Code: "600519", Date: day(2024, 1, 2), Close: 1700},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	codes, err := ps.ListCodes(ctx)
	if err != nil {
		t.Fatalf("ListCodes: %v", err)
	}
	if len(codes) != 2 || codes[0] != "000001" || codes[1] != "600519" {
		t.Errorf("ListCodes = %v, want [000001 600519]", codes)
	}
}

func TestSQLitePortfolioRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// Unknown portfolio loads as uninitialized.
	_, initialized, _, err := s.LoadPortfolio(ctx, "default")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if initialized {
		t.Fatal("fresh portfolio reported as initialized")
	}

	positions := map[string]domain.Position{
		"600519": {Code: "600519", Qty: 100, AvgCost: 1700},
	}
	if err := s.SavePortfolio(ctx, "default", 50000, positions); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}

	cash, initialized, got, err := s.LoadPortfolio(ctx, "default")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if !initialized {
		t.Fatal("saved portfolio reported as uninitialized")
	}
	if cash != 50000 {
		t.Errorf("cash = %v, want 50000", cash)
	}
	if pos := got["600519"]; pos.Qty != 100 || pos.AvgCost != 1700 {
		t.Errorf("position = %+v", pos)
	}
}

func TestSQLiteApplyTrade(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.SavePortfolio(ctx, "default", 100000, nil); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}

	trade := domain.Trade{
		Date: day(2024, 6, 3), Code: "600519", Side: domain.SideBuy,
		Price: 1700, Qty: 10, Fee: 5.1,
	}
	positions := map[string]domain.Position{
		"600519": {Code: "600519", Qty: 10, AvgCost: 1700},
	}
	if err := s.ApplyTrade(ctx, "default", trade, 82994.9, positions); err != nil {
		t.Fatalf("ApplyTrade: %v", err)
	}

	cash, _, got, err := s.LoadPortfolio(ctx, "default")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if cash != 82994.9 {
		t.Errorf("cash = %v, want 82994.9", cash)
	}
	if got["600519"].Qty != 10 {
		t.Errorf("position qty = %v, want 10", got["600519"].Qty)
	}

	trades, err := s.ListTrades(ctx, "default", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("ListTrades returned %d trades, want 1", len(trades))
	}
	if trades[0].Side != domain.SideBuy || trades[0].Price != 1700 {
		t.Errorf("trade = %+v", trades[0])
	}
}

func TestSQLiteListTradesFilters(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.SavePortfolio(ctx, "default", 100000, nil); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}
	dates := []time.Time{day(2024, 1, 5), day(2024, 2, 5), day(2024, 3, 5)}
	codes := []string{"000001", "600519", "000001"}
	for i := range dates {
		trade := domain.Trade{Date: dates[i], Code: codes[i], Side: domain.SideBuy, Price: 10, Qty: 1}
		if err := s.ApplyTrade(ctx, "default", trade, 100000, nil); err != nil {
			t.Fatalf("ApplyTrade: %v", err)
		}
	}

	// Most recent first.
	all, err := s.ListTrades(ctx, "default", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(all) != 3 || !all[0].Date.Equal(dates[2]) {
		t.Fatalf("unexpected order: %+v", all)
	}

	// Code filter.
	only, err := s.ListTrades(ctx, "default", "000001", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(only) != 2 {
		t.Errorf("code filter returned %d trades, want 2", len(only))
	}

	// Date range filter.
	ranged, err := s.ListTrades(ctx, "default", "", day(2024, 2, 1), day(2024, 2, 28))
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(ranged) != 1 || ranged[0].Code != "600519" {
		t.Errorf("date filter returned %+v", ranged)
	}
}

func TestSQLiteResetPortfolio(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	positions := map[string]domain.Position{"600519": {Code: "600519", Qty: 10, AvgCost: 1700}}
	if err := s.SavePortfolio(ctx, "default", 100000, positions); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}
	trade := domain.Trade{Date: day(2024, 6, 3), Code: "600519", Side: domain.SideBuy, Price: 1700, Qty: 10}
	if err := s.ApplyTrade(ctx, "default", trade, 83000, positions); err != nil {
		t.Fatalf("ApplyTrade: %v", err)
	}

	if err := s.ResetPortfolio(ctx, "default"); err != nil {
		t.Fatalf("ResetPortfolio: %v", err)
	}

	_, initialized, got, err := s.LoadPortfolio(ctx, "default")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if initialized || len(got) != 0 {
		t.Errorf("reset portfolio still has state: initialized=%v positions=%v", initialized, got)
	}
	trades, err := s.ListTrades(ctx, "default", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("reset portfolio still has %d trades", len(trades))
	}
}

func TestSQLiteInstrumentsAndWatchlist(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	instruments := []domain.Instrument{
		{Code: "600519", Name: "Kweichow Moutai", Sector: "Consumer"},
		{Code: "000001", Name: "Ping An Bank", Sector: "Financials"},
	}
	if err := s.SaveInstruments(ctx, instruments); err != nil {
		t.Fatalf("SaveInstruments: %v", err)
	}

	inst, err := s.GetInstrument(ctx, "600519")
	if err != nil {
		t.Fatalf("GetInstrument: %v", err)
	}
	if inst == nil || inst.Sector != "Consumer" {
		t.Errorf("GetInstrument = %+v", inst)
	}

	missing, err := s.GetInstrument(ctx, "999999")
	if err != nil {
		t.Fatalf("GetInstrument (missing): %v", err)
	}
	if missing != nil {
		t.Errorf("missing instrument = %+v, want nil", missing)
	}

	if err := s.AddWatch(ctx, "600519", "Kweichow Moutai", day(2024, 1, 2)); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}
	if err := s.AddWatch(ctx, "000001", "Ping An Bank", day(2024, 1, 2)); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}
	if err := s.SetInPool(ctx, "600519", true); err != nil {
		t.Fatalf("SetInPool: %v", err)
	}

	pool, err := s.ListWatch(ctx, true)
	if err != nil {
		t.Fatalf("ListWatch: %v", err)
	}
	if len(pool) != 1 || pool[0].Code != "600519" {
		t.Errorf("pool = %+v, want only 600519", pool)
	}

	all, err := s.ListWatch(ctx, false)
	if err != nil {
		t.Fatalf("ListWatch: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("watchlist has %d entries, want 2", len(all))
	}
}

func TestMemoryStorePortfolio(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.SavePortfolio(ctx, "sim", 1000, nil); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}
	trade := domain.Trade{Date: day(2024, 5, 6), Code: "000001", Side: domain.SideBuy, Price: 10, Qty: 50}
	positions := map[string]domain.Position{"000001": {Code: "000001", Qty: 50, AvgCost: 10}}
	if err := m.ApplyTrade(ctx, "sim", trade, 500, positions); err != nil {
		t.Fatalf("ApplyTrade: %v", err)
	}

	cash, initialized, got, err := m.LoadPortfolio(ctx, "sim")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if !initialized || cash != 500 || got["000001"].Qty != 50 {
		t.Errorf("state = cash %v init %v positions %v", cash, initialized, got)
	}

	trades, err := m.ListTrades(ctx, "sim", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 1 || trades[0].ID == 0 {
		t.Errorf("trades = %+v", trades)
	}
}
