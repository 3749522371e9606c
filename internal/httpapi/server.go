// Package httpapi exposes the engine over a JSON REST API: backtests,
// screening, portfolio accounting, risk reports, and watchlist management.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"waysystem/internal/backtest"
	"waysystem/internal/domain"
	"waysystem/internal/portfolio"
	"waysystem/internal/risk"
	"waysystem/internal/screen"
	"waysystem/internal/store"
	"waysystem/internal/strategy"
)

const dateLayout = "2006-01-02"

// defaultPortfolio is used when a request names no portfolio.
const defaultPortfolio = "default"

// Defaults applied to backtest requests that omit the corresponding field.
type Defaults struct {
	InitialCapital float64
	MaxPositions   int
	FeeRate        float64
}

// Server wires the engine components behind HTTP handlers.
type Server struct {
	bars        store.BarStore
	instruments store.InstrumentStore
	watchlist   store.WatchlistStore
	portfolios  store.PortfolioStore
	registry    *strategy.Registry
	engine      *backtest.Engine
	screener    *screen.Screener
	analyzer    *risk.Analyzer
	defaults    Defaults
	log         *slog.Logger
}

// NewServer creates a Server over the given stores and engine components.
func NewServer(
	bars store.BarStore,
	instruments store.InstrumentStore,
	watchlist store.WatchlistStore,
	portfolios store.PortfolioStore,
	registry *strategy.Registry,
	engine *backtest.Engine,
	screener *screen.Screener,
	analyzer *risk.Analyzer,
	defaults Defaults,
	log *slog.Logger,
) *Server {
	return &Server{
		bars:        bars,
		instruments: instruments,
		watchlist:   watchlist,
		portfolios:  portfolios,
		registry:    registry,
		engine:      engine,
		screener:    screener,
		analyzer:    analyzer,
		defaults:    defaults,
		log:         log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/screen", s.handleScreen)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolioReport)
	mux.HandleFunc("POST /api/portfolio/init", s.handlePortfolioInit)
	mux.HandleFunc("POST /api/portfolio/cash", s.handlePortfolioCash)
	mux.HandleFunc("POST /api/portfolio/trades", s.handlePortfolioTrade)
	mux.HandleFunc("GET /api/portfolio/trades", s.handlePortfolioTrades)
	mux.HandleFunc("POST /api/portfolio/reset", s.handlePortfolioReset)
	mux.HandleFunc("GET /api/risk", s.handleRisk)
	mux.HandleFunc("GET /api/watchlist", s.handleWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{code}", s.handleWatchlistAdd)
	mux.HandleFunc("PUT /api/watchlist/{code}/pool", s.handleWatchlistPool)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeLedgerError maps ledger and engine errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrAlreadyInitialized), errors.Is(err, portfolio.ErrNotInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, portfolio.ErrInsufficientCash), errors.Is(err, portfolio.ErrInsufficientPosition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, strategy.ErrUnknownStrategy):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func portfolioName(r *http.Request) string {
	if name := r.URL.Query().Get("name"); name != "" {
		return name
	}
	return defaultPortfolio
}

func (s *Server) loadLedger(r *http.Request) (*portfolio.Ledger, error) {
	return portfolio.NewLedger(r.Context(), s.portfolios, portfolioName(r))
}

// poolCodes returns the backtest pool, the fallback universe when a request
// names no instruments.
func (s *Server) poolCodes(r *http.Request) ([]string, error) {
	entries, err := s.watchlist.ListWatch(r.Context(), true)
	if err != nil {
		return nil, fmt.Errorf("listing pool: %w", err)
	}
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.Code
	}
	return codes, nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date: "+req.Start)
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date: "+req.End)
		return
	}

	codes := req.Codes
	if len(codes) == 0 {
		if codes, err = s.poolCodes(r); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	cfg := backtest.Config{
		Strategy:       req.Strategy,
		Codes:          codes,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		MaxPositions:   req.MaxPositions,
		FeeRate:        s.defaults.FeeRate,
		Params:         req.Params,
	}
	if req.FeeRate != nil {
		// An explicit zero fee is a valid request.
		cfg.FeeRate = *req.FeeRate
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = s.defaults.InitialCapital
	}
	if cfg.MaxPositions == 0 {
		cfg.MaxPositions = s.defaults.MaxPositions
	}

	res, err := s.engine.Run(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, strategy.ErrUnknownStrategy) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := BacktestResponse{
		Metrics:     res.Metrics,
		EquityCurve: equityPoints(res.EquityCurve),
		Trades:      make([]TradeJSON, len(res.Trades)),
		Skipped:     res.Skipped,
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	for i, tr := range res.Trades {
		resp.Trades[i] = tradeJSON(tr)
	}
	writeJSON(w, resp)
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("strategy")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing strategy parameter")
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("date"), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date parameter")
		return
	}

	var codes []string
	if raw := r.URL.Query().Get("codes"); raw != "" {
		codes = strings.Split(raw, ",")
	} else if codes, err = s.poolCodes(r); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := make(strategy.Params)
	matches, err := s.screener.Run(r.Context(), name, codes, params, asOf)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, ScreenResponse{
		Strategy: name,
		AsOf:     asOf.Format(dateLayout),
		Matches:  matches,
	})
}

func (s *Server) handlePortfolioReport(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("date"), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date parameter")
		return
	}
	rep, err := ledger.Report(r.Context(), s.bars, s.instruments, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handlePortfolioInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ledger.Initialize(r.Context(), req.Cash); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, map[string]float64{"cash": ledger.Cash()})
}

func (s *Server) handlePortfolioCash(w http.ResponseWriter, r *http.Request) {
	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ledger.AdjustCash(r.Context(), req.Delta); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, map[string]float64{"cash": ledger.Cash()})
}

func (s *Server) handlePortfolioTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	date, err := parseDate(req.Date, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+req.Date)
		return
	}
	side := domain.Side(req.Side)
	if side != domain.SideBuy && side != domain.SideSell {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing instrument code")
		return
	}

	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	trade, err := ledger.ExecuteTrade(r.Context(), date, req.Code, side, req.Price, req.Qty, req.Fee)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	// Bought instruments join the watchlist so the gatherer keeps their
	// history current.
	if side == domain.SideBuy {
		name := ""
		if inst, err := s.instruments.GetInstrument(r.Context(), req.Code); err == nil && inst != nil {
			name = inst.Name
		}
		if err := s.watchlist.AddWatch(r.Context(), req.Code, name, date); err != nil {
			s.log.Warn("adding bought instrument to watchlist", "code", req.Code, "error", err)
		}
	}

	writeJSON(w, tradeJSON(trade))
}

func (s *Server) handlePortfolioTrades(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	start, err := parseDate(r.URL.Query().Get("start"), time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start parameter")
		return
	}
	end, err := parseDate(r.URL.Query().Get("end"), time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end parameter")
		return
	}

	trades, err := ledger.History(r.Context(), r.URL.Query().Get("code"), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := TradesResponse{Trades: make([]TradeJSON, len(trades))}
	for i, tr := range trades {
		resp.Trades[i] = tradeJSON(tr)
	}
	writeJSON(w, resp)
}

func (s *Server) handlePortfolioReset(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ledger.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "reset"})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.loadLedger(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("date"), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date parameter")
		return
	}
	rep, err := s.analyzer.AnalyzePortfolio(r.Context(), ledger, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, RiskResponse{Report: rep})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	poolOnly := r.URL.Query().Get("pool") == "true"
	entries, err := s.watchlist.ListWatch(r.Context(), poolOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := WatchlistResponse{Entries: make([]WatchlistEntry, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = WatchlistEntry{Code: e.Code, Name: e.Name}
	}
	writeJSON(w, resp)
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	name := ""
	if inst, err := s.instruments.GetInstrument(r.Context(), code); err == nil && inst != nil {
		name = inst.Name
	}
	if err := s.watchlist.AddWatch(r.Context(), code, name, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"code": code})
}

func (s *Server) handleWatchlistPool(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	inPool := r.URL.Query().Get("in") != "false"
	if err := s.watchlist.SetInPool(r.Context(), code, inPool); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"code": code, "in_pool": inPool})
}
