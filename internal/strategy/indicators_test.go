package strategy

import (
	"math"
	"testing"

	"waysystem/internal/domain"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	out := SMA(vals, 3)
	if Valid(out[0]) || Valid(out[1]) {
		t.Fatalf("warm-up region should be NaN, got %v", out[:2])
	}
	if !almost(out[2], 2) || !almost(out[3], 3) || !almost(out[4], 4) {
		t.Fatalf("unexpected SMA values: %v", out)
	}
}

func TestSMAShortSeries(t *testing.T) {
	out := SMA([]float64{1, 2}, 3)
	for i, v := range out {
		if Valid(v) {
			t.Fatalf("expected NaN at %d, got %v", i, v)
		}
	}
}

func TestEMASeed(t *testing.T) {
	vals := []float64{2, 4, 6, 8}
	out := EMA(vals, 3)
	if !almost(out[2], 4) {
		t.Fatalf("seed should be SMA of first 3, got %v", out[2])
	}
	// alpha = 0.5 for period 3
	want := 0.5*8 + 0.5*4
	if !almost(out[3], want) {
		t.Fatalf("EMA step: got %v want %v", out[3], want)
	}
}

func TestRSIMonotone(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	out := RSI(up, 14)
	if !almost(out[19], 100) {
		t.Fatalf("all-gain series should read 100, got %v", out[19])
	}

	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	out = RSI(down, 14)
	if !almost(out[19], 0) {
		t.Fatalf("all-loss series should read 0, got %v", out[19])
	}
}

func TestRSIFlat(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	out := RSI(flat, 14)
	if !almost(out[19], 50) {
		t.Fatalf("flat series should read 50, got %v", out[19])
	}
}

func TestRollingMaxMin(t *testing.T) {
	vals := []float64{3, 1, 4, 1, 5}
	mx := RollingMax(vals, 3)
	mn := RollingMin(vals, 3)
	if !almost(mx[2], 4) || !almost(mx[4], 5) {
		t.Fatalf("rolling max: %v", mx)
	}
	if !almost(mn[2], 1) || !almost(mn[4], 1) {
		t.Fatalf("rolling min: %v", mn)
	}
}

func TestMACDRising(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	line, sig, hist := MACD(closes, 12, 26, 9)
	last := len(closes) - 1
	if !Valid(line[last]) || !Valid(sig[last]) || !Valid(hist[last]) {
		t.Fatal("MACD tail should be defined")
	}
	if line[last] <= 0 {
		t.Fatalf("rising series should have positive MACD line, got %v", line[last])
	}
	if !almost(hist[last], line[last]-sig[last]) {
		t.Fatalf("histogram mismatch: %v vs %v", hist[last], line[last]-sig[last])
	}
}

func TestExtractors(t *testing.T) {
	bars := []domain.Bar{
		{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 20},
	}
	if c := Closes(bars); !almost(c[1], 2.5) {
		t.Fatalf("closes: %v", c)
	}
	if h := Highs(bars); !almost(h[0], 2) {
		t.Fatalf("highs: %v", h)
	}
	if l := Lows(bars); !almost(l[1], 1.5) {
		t.Fatalf("lows: %v", l)
	}
	if v := Volumes(bars); !almost(v[1], 20) {
		t.Fatalf("volumes: %v", v)
	}
}
