package builtins

import (
	"math"
	"testing"
	"time"

	"waysystem/internal/domain"
	"waysystem/internal/strategy"
)

// series builds a daily bar window from a close series, with highs and lows
// one point either side of the close and a flat volume of 1000.
func series(closes []float64) []domain.Bar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Code:   "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestRegisterAll(t *testing.T) {
	r := strategy.NewRegistry()
	RegisterAll(r)

	want := []string{"five-step", "mean-reversion", "sma-cross", "trend-breakout", "weekly-macd"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d strategies, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFiveStepEntry(t *testing.T) {
	closes := make([]float64, 241)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.005, float64(i))
	}
	bars := series(closes)
	bars[len(bars)-1].Volume = 5000

	s := FiveStep{}
	if !s.Evaluate(bars, nil) {
		t.Fatal("steady advance with a volume spike should trigger an entry")
	}

	// Same series without the volume expansion must not trigger.
	bars[len(bars)-1].Volume = 1000
	if s.Evaluate(bars, nil) {
		t.Fatal("entry requires volume above its average")
	}
}

func TestFiveStepRejectsDecline(t *testing.T) {
	closes := make([]float64, 241)
	for i := range closes {
		closes[i] = 300 - float64(i)
	}
	bars := series(closes)
	bars[len(bars)-1].Volume = 5000

	if (FiveStep{}).Evaluate(bars, nil) {
		t.Fatal("declining series must not trigger an entry")
	}
}

func TestFiveStepShortWindow(t *testing.T) {
	bars := series([]float64{100, 101, 102})
	if (FiveStep{}).Evaluate(bars, nil) {
		t.Fatal("window shorter than MinBars must evaluate false")
	}
}

func TestMeanReversionEntry(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 200 - float64(i)*100/119
	}
	bars := series(closes)

	s := MeanReversion{}
	if !s.Evaluate(bars, nil) {
		t.Fatal("close at the bottom of the range should trigger an entry")
	}

	// Reverse the series so the close sits at the top of the range.
	for i := range closes {
		closes[i] = 100 + float64(i)*100/119
	}
	if s.Evaluate(series(closes), nil) {
		t.Fatal("close at the top of the range must not trigger")
	}
}

func TestTrendBreakoutEntry(t *testing.T) {
	p := strategy.Params{"period": 10}

	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)*10
	}
	s := TrendBreakout{}
	if !s.Evaluate(series(closes), p) {
		t.Fatal("close at the top of the range should trigger an entry")
	}

	for i := range closes {
		closes[i] = 190 - float64(i)*10
	}
	if s.Evaluate(series(closes), p) {
		t.Fatal("close at the bottom of the range must not trigger")
	}
}

func TestSMACrossEntry(t *testing.T) {
	closes := make([]float64, 66)
	for i := 0; i < 63; i++ {
		closes[i] = 100 - 0.1*float64(i)
	}
	for i := 63; i < 66; i++ {
		closes[i] = closes[i-1] + 50
	}
	s := SMACross{}
	if !s.Evaluate(series(closes), nil) {
		t.Fatal("recent upward cross should trigger an entry")
	}
}

func TestSMACrossStaleCross(t *testing.T) {
	// The cross happened long ago: fast has been above slow for the whole
	// tail of the window, so no bar inside valid_days shows a transition.
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if (SMACross{}).Evaluate(series(closes), nil) {
		t.Fatal("a cross outside the validity window must not trigger")
	}
}

func TestWeeklyMACDEntry(t *testing.T) {
	p := strategy.Params{"fast_period": 3, "slow_period": 6, "signal_period": 4}

	// Sixty flat days followed by a fresh advance: the weekly histogram has
	// just turned positive and is still widening at the window's end.
	closes := make([]float64, 84)
	for i := 0; i < 60; i++ {
		closes[i] = 100
	}
	for i := 60; i < 84; i++ {
		closes[i] = 100 + float64(i-59)
	}
	s := WeeklyMACD{}
	if !s.Evaluate(series(closes), p) {
		t.Fatal("fresh weekly advance should trigger an entry")
	}

	// A flat series has a zero histogram and must not trigger.
	for i := range closes {
		closes[i] = 100
	}
	if s.Evaluate(series(closes), p) {
		t.Fatal("flat series must not trigger")
	}
}

func TestWeeklyCloses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	bars := make([]domain.Bar, 10)
	for i := range bars {
		bars[i] = domain.Bar{Date: start.AddDate(0, 0, i), Close: float64(i)}
	}
	weekly := weeklyCloses(bars)
	if len(weekly) != 2 {
		t.Fatalf("ten consecutive days span two ISO weeks, got %d", len(weekly))
	}
	if weekly[0] != 6 || weekly[1] != 9 {
		t.Fatalf("expected last close of each week, got %v", weekly)
	}
}

func TestMinBars(t *testing.T) {
	if got := (FiveStep{}).MinBars(nil); got != 241 {
		t.Fatalf("five-step MinBars: got %d", got)
	}
	if got := (MeanReversion{}).MinBars(nil); got != 120 {
		t.Fatalf("mean-reversion MinBars: got %d", got)
	}
	if got := (TrendBreakout{}).MinBars(strategy.Params{"period": 30}); got != 30 {
		t.Fatalf("trend-breakout MinBars: got %d", got)
	}
	if got := (SMACross{}).MinBars(nil); got != 63 {
		t.Fatalf("sma-cross MinBars: got %d", got)
	}
	if got := (WeeklyMACD{}).MinBars(nil); got != 180 {
		t.Fatalf("weekly-macd MinBars: got %d", got)
	}
}
