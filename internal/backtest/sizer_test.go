package backtest

import "testing"

func TestSizeOrderEqualSlots(t *testing.T) {
	// 95% of equity over 5 slots is 19% per entry: 19000 / 50 = 380 shares.
	if qty := SizeOrder(100000, 100000, 50, 5, 0); qty != 380 {
		t.Fatalf("expected 380 shares, got %v", qty)
	}
}

func TestSizeOrderRoundsDown(t *testing.T) {
	// 19% of 100000 is 19000; at 7000 per share that is 2.71 shares.
	if qty := SizeOrder(100000, 100000, 7000, 5, 0); qty != 2 {
		t.Fatalf("expected 2 shares, got %v", qty)
	}
}

func TestSizeOrderBelowOneShare(t *testing.T) {
	if qty := SizeOrder(1000, 1000, 500, 5, 0); qty != 0 {
		t.Fatalf("sub-share slot should size to zero, got %v", qty)
	}
}

func TestSizeOrderCashGate(t *testing.T) {
	// Equity supports the slot but cash does not: never clamp, return zero.
	if qty := SizeOrder(100000, 10000, 50, 5, 0); qty != 0 {
		t.Fatalf("expected zero when cash cannot cover the order, got %v", qty)
	}
	// The fee alone can push the cost over available cash.
	if qty := SizeOrder(100000, 19000, 50, 5, 0.01); qty != 0 {
		t.Fatalf("expected zero when cost plus fee exceeds cash, got %v", qty)
	}
	if qty := SizeOrder(100000, 19190, 50, 5, 0.01); qty != 380 {
		t.Fatalf("expected 380 when cash covers cost plus fee, got %v", qty)
	}
}

func TestSizeOrderDegenerateInputs(t *testing.T) {
	if qty := SizeOrder(100000, 100000, 0, 5, 0); qty != 0 {
		t.Fatalf("zero price: %v", qty)
	}
	if qty := SizeOrder(100000, 100000, 50, 0, 0); qty != 0 {
		t.Fatalf("zero slots: %v", qty)
	}
}
