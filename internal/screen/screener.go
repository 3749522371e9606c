// Package screen evaluates a strategy across a pool of instruments on their
// latest available bars and reports the ones whose entry condition holds.
package screen

import (
	"context"
	"log/slog"
	"time"

	"waysystem/internal/store"
	"waysystem/internal/strategy"
)

// lookbackDays is the trailing calendar span of bars loaded per instrument.
const lookbackDays = 365

// Match is one instrument whose entry condition held at its latest bar.
type Match struct {
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	SignalDate time.Time `json:"signal_date"`
	LastClose  float64   `json:"last_close"`
}

// Screener runs strategy scans over stored bar history.
type Screener struct {
	bars        store.BarStore
	instruments store.InstrumentStore
	registry    *strategy.Registry
	log         *slog.Logger
}

// NewScreener creates a Screener. instruments may be nil; matches then carry
// no display names.
func NewScreener(bars store.BarStore, instruments store.InstrumentStore, registry *strategy.Registry, log *slog.Logger) *Screener {
	return &Screener{
		bars:        bars,
		instruments: instruments,
		registry:    registry,
		log:         log,
	}
}

// Run evaluates the named strategy on every code's trailing window ending at
// asOf and returns the matches in input order. Instruments with too little
// history are skipped silently; an unknown strategy name fails the scan.
func (s *Screener) Run(ctx context.Context, strategyName string, codes []string, params strategy.Params, asOf time.Time) ([]Match, error) {
	strat, err := s.registry.Lookup(strategyName)
	if err != nil {
		return nil, err
	}
	minBars := strat.MinBars(params)
	start := asOf.AddDate(0, 0, -lookbackDays)

	matches := make([]Match, 0)
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window, err := s.bars.ReadBars(ctx, code, start, asOf)
		if err != nil {
			return nil, err
		}
		if len(window) < minBars {
			s.log.Debug("skipping instrument with short history",
				"code", code, "bars", len(window), "min", minBars)
			continue
		}
		if !strat.Evaluate(window, params) {
			continue
		}

		last := window[len(window)-1]
		m := Match{Code: code, SignalDate: last.Date, LastClose: last.Close}
		if s.instruments != nil {
			inst, err := s.instruments.GetInstrument(ctx, code)
			if err != nil {
				return nil, err
			}
			if inst != nil {
				m.Name = inst.Name
			}
		}
		matches = append(matches, m)
	}

	s.log.Info("screen complete",
		"strategy", strategyName, "pool", len(codes), "matches", len(matches))
	return matches, nil
}
