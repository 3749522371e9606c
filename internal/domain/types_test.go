package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Code != "" {
		t.Error("expected empty Code for zero-value Bar")
	}
	if !bar.Date.IsZero() {
		t.Error("expected zero Date for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("expected zero OHLCV values for zero-value Bar")
	}

	// Verify Trade can be instantiated with zero values.
	trade := Trade{}
	if trade.Code != "" || trade.Portfolio != "" {
		t.Error("expected empty Code/Portfolio for zero-value Trade")
	}
	if trade.Price != 0 || trade.Qty != 0 || trade.Fee != 0 {
		t.Error("expected zero Price/Qty/Fee for zero-value Trade")
	}

	// Verify Position can be instantiated with zero values.
	pos := Position{}
	if pos.Qty != 0 || pos.AvgCost != 0 {
		t.Error("expected zero Qty/AvgCost for zero-value Position")
	}
}

func TestSideConstants(t *testing.T) {
	if SideBuy != "buy" || SideSell != "sell" {
		t.Errorf("unexpected side values: %q %q", SideBuy, SideSell)
	}
}

func TestSignalKinds(t *testing.T) {
	if SignalEnterLong != "enter-long" || SignalNone != "none" {
		t.Errorf("unexpected signal kinds: %q %q", SignalEnterLong, SignalNone)
	}
	sig := Signal{Code: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Kind: SignalEnterLong}
	if sig.Kind != SignalEnterLong {
		t.Error("signal kind should round-trip")
	}
}

func TestZeroRiskLimitsDisable(t *testing.T) {
	limits := RiskLimits{}
	if limits.MaxSectorWeight != 0 || limits.MaxVaR95 != 0 || limits.MaxHHI != 0 {
		t.Error("zero-value RiskLimits should disable every check")
	}
}
