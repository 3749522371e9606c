package backtest

import "math"

// investablePct is the share of equity spread across position slots. The
// remainder is headroom for fees and price movement between signal and fill.
const investablePct = 95.0

// SizeOrder returns the whole-share buy quantity for one entry signal. Each
// of maxPositions slots is allotted an equal percentage of current equity;
// the quantity is the slot value divided by price, rounded down. It returns
// zero when the rounded quantity is below one share or when the total cost
// including the fee exceeds available cash. Sizing never clamps to cash.
func SizeOrder(equity, cash, price float64, maxPositions int, feeRate float64) float64 {
	if price <= 0 || maxPositions <= 0 {
		return 0
	}
	pct := investablePct / float64(maxPositions)
	qty := math.Floor(equity * pct / 100 / price)
	if qty < 1 {
		return 0
	}
	if price*qty+price*qty*feeRate > cash {
		return 0
	}
	return qty
}
