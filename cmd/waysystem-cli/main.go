package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"waysystem/internal/backtest"
	"waysystem/internal/config"
	"waysystem/internal/domain"
	"waysystem/internal/portfolio"
	"waysystem/internal/risk"
	"waysystem/internal/screen"
	"waysystem/internal/store"
	"waysystem/internal/strategy"
	"waysystem/internal/strategy/builtins"
	"waysystem/internal/util"
)

const version = "0.1.0"

const dateLayout = "2006-01-02"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: waysystem-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies  List registered strategies\n")
		fmt.Fprintf(os.Stderr, "  backtest    Run a backtest against local bar data\n")
		fmt.Fprintf(os.Stderr, "  screen      Scan instruments for entry signals\n")
		fmt.Fprintf(os.Stderr, "  report      Print the portfolio valuation report\n")
		fmt.Fprintf(os.Stderr, "  risk        Print the portfolio risk report\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("waysystem-cli %s\n", version)
	case "strategies":
		err = runStrategies()
	case "backtest":
		err = runBacktest(os.Args[2:])
	case "screen":
		err = runScreen(os.Args[2:])
	case "report":
		err = runReport(os.Args[2:])
	case "risk":
		err = runRisk(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg      *config.Config
	bars     *store.ParquetStore
	db       *store.SQLiteStore
	registry *strategy.Registry
}

func loadEnv() (*env, error) {
	cfgPath := "config/waysystem.yaml"
	if p := os.Getenv("WAYSYSTEM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	util.SetDefault(util.NewLogger("warn", cfg.Logging.Format))

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	return &env{
		cfg:      cfg,
		bars:     store.NewParquetStore(cfg.Storage.DataDir),
		db:       db,
		registry: registry,
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

// codesOrPool returns the explicit code list, or the backtest pool when none
// was given.
func (e *env) codesOrPool(ctx context.Context, raw string) ([]string, error) {
	if raw != "" {
		return strings.Split(raw, ","), nil
	}
	entries, err := e.db.ListWatch(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("listing pool: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no codes given and the backtest pool is empty")
	}
	codes := make([]string, len(entries))
	for i, entry := range entries {
		codes[i] = entry.Code
	}
	return codes, nil
}

func parseParams(raw string) (strategy.Params, error) {
	params := make(strategy.Params)
	if raw == "" {
		return params, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", pair)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter value %q: %w", pair, err)
		}
		params[key] = f
	}
	return params, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStrategies() error {
	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)
	for _, name := range registry.List() {
		fmt.Println(name)
	}
	return nil
}

func runBacktest(args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	strategyName := fs.String("strategy", "", "strategy name (required)")
	codes := fs.String("codes", "", "comma-separated instrument codes (default: backtest pool)")
	start := fs.String("start", "", "start date YYYY-MM-DD (required)")
	end := fs.String("end", time.Now().UTC().Format(dateLayout), "end date YYYY-MM-DD")
	capital := fs.Float64("capital", 0, "initial capital (default: config)")
	maxPositions := fs.Int("max-positions", 0, "position slots (default: config)")
	feeRate := fs.Float64("fee-rate", -1, "fee rate (default: config)")
	params := fs.String("params", "", "strategy parameters key=value,key=value")
	fs.Parse(args)

	if *strategyName == "" || *start == "" {
		fs.Usage()
		return fmt.Errorf("strategy and start are required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	startDate, err := time.Parse(dateLayout, *start)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	endDate, err := time.Parse(dateLayout, *end)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	ctx := context.Background()
	codeList, err := e.codesOrPool(ctx, *codes)
	if err != nil {
		return err
	}
	paramMap, err := parseParams(*params)
	if err != nil {
		return err
	}

	cfg := backtest.Config{
		Strategy:       *strategyName,
		Codes:          codeList,
		Start:          startDate,
		End:            endDate,
		InitialCapital: *capital,
		MaxPositions:   *maxPositions,
		FeeRate:        *feeRate,
		Params:         paramMap,
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = e.cfg.Backtest.InitialCapital
	}
	if cfg.MaxPositions == 0 {
		cfg.MaxPositions = e.cfg.Backtest.MaxPositions
	}
	if cfg.FeeRate < 0 {
		cfg.FeeRate = e.cfg.Backtest.FeeRate
	}

	engine := backtest.NewEngine(e.bars, e.registry, util.NewLogger("warn", "text"))
	res, err := engine.Run(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("strategy:      %s\n", cfg.Strategy)
	fmt.Printf("period:        %s .. %s\n", *start, *end)
	fmt.Printf("instruments:   %d (skipped %d)\n", len(codeList)-len(res.Skipped), len(res.Skipped))
	fmt.Printf("trades:        %d\n", res.Metrics.TotalTrades)
	fmt.Printf("total return:  %.2f%%\n", res.Metrics.TotalReturn)
	fmt.Printf("annual return: %.2f%%\n", res.Metrics.AnnualReturn)
	fmt.Printf("max drawdown:  %.2f%%\n", res.Metrics.MaxDrawdown)
	fmt.Printf("sharpe:        %.2f\n", res.Metrics.SharpeRatio)
	for _, tr := range res.Trades {
		fmt.Printf("  %s %-4s %-6s %10.2f x %.0f fee %.2f\n",
			tr.Date.Format(dateLayout), tr.Side, tr.Code, tr.Price, tr.Qty, tr.Fee)
	}
	return nil
}

func runScreen(args []string) error {
	fs := flag.NewFlagSet("screen", flag.ExitOnError)
	strategyName := fs.String("strategy", "", "strategy name (required)")
	codes := fs.String("codes", "", "comma-separated instrument codes (default: backtest pool)")
	date := fs.String("date", time.Now().UTC().Format(dateLayout), "as-of date YYYY-MM-DD")
	params := fs.String("params", "", "strategy parameters key=value,key=value")
	fs.Parse(args)

	if *strategyName == "" {
		fs.Usage()
		return fmt.Errorf("strategy is required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	asOf, err := time.Parse(dateLayout, *date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	ctx := context.Background()
	codeList, err := e.codesOrPool(ctx, *codes)
	if err != nil {
		return err
	}
	paramMap, err := parseParams(*params)
	if err != nil {
		return err
	}

	screener := screen.NewScreener(e.bars, e.db, e.registry, util.NewLogger("warn", "text"))
	matches, err := screener.Run(ctx, *strategyName, codeList, paramMap, asOf)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%-6s %-24s %s close %.2f\n",
			m.Code, m.Name, m.SignalDate.Format(dateLayout), m.LastClose)
	}
	return nil
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	name := fs.String("portfolio", "default", "portfolio name")
	date := fs.String("date", time.Now().UTC().Format(dateLayout), "as-of date YYYY-MM-DD")
	fs.Parse(args)

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	asOf, err := time.Parse(dateLayout, *date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	ctx := context.Background()
	ledger, err := portfolio.NewLedger(ctx, e.db, *name)
	if err != nil {
		return err
	}
	rep, err := ledger.Report(ctx, e.bars, e.db, asOf)
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func runRisk(args []string) error {
	fs := flag.NewFlagSet("risk", flag.ExitOnError)
	name := fs.String("portfolio", "default", "portfolio name")
	date := fs.String("date", time.Now().UTC().Format(dateLayout), "as-of date YYYY-MM-DD")
	fs.Parse(args)

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	asOf, err := time.Parse(dateLayout, *date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	ctx := context.Background()
	ledger, err := portfolio.NewLedger(ctx, e.db, *name)
	if err != nil {
		return err
	}

	limits := domain.RiskLimits{
		MaxSectorWeight: e.cfg.Risk.MaxSectorWeight,
		MaxVaR95:        e.cfg.Risk.MaxVaR95,
		MaxHHI:          e.cfg.Risk.MaxHHI,
	}
	analyzer := risk.NewAnalyzer(e.bars, e.db, limits, e.cfg.Risk.LookbackDays, util.NewLogger("warn", "text"))
	rep, err := analyzer.AnalyzePortfolio(ctx, ledger, asOf)
	if err != nil {
		return err
	}
	return printJSON(rep)
}
