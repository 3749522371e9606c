package builtins

import "waysystem/internal/strategy"

// RegisterAll registers every builtin strategy on the registry.
func RegisterAll(r *strategy.Registry) {
	r.Register(FiveStep{})
	r.Register(MeanReversion{})
	r.Register(TrendBreakout{})
	r.Register(SMACross{})
	r.Register(WeeklyMACD{})
}
