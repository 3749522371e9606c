package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"waysystem/internal/domain"
	"waysystem/internal/store"
	"waysystem/internal/util"
)

var _ Gatherer = (*DailyBarGatherer)(nil)

const dateLayout = "2006-01-02"

// DailyBarGatherer fetches daily OHLCV bars for the watchlist from the
// Alpaca market-data API and writes them to the bar store. Fetches run in
// symbol batches across a bounded worker pool, throttled by a shared rate
// limiter.
type DailyBarGatherer struct {
	client     *marketdata.Client
	bars       store.BarStore
	watchlist  store.WatchlistStore
	batchSize  int
	maxWorkers int
	startDate  string
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// DailyBarOpts configures a DailyBarGatherer.
type DailyBarOpts struct {
	APIKey          string
	APISecret       string
	DataURL         string
	BatchSize       int
	MaxWorkers      int
	StartDate       string
	RateLimitPerMin int
}

// NewDailyBarGatherer creates a DailyBarGatherer writing to bars, with the
// symbol universe drawn from the watchlist.
func NewDailyBarGatherer(opts DailyBarOpts, bars store.BarStore, watchlist store.WatchlistStore) *DailyBarGatherer {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}

	return &DailyBarGatherer{
		client:     marketdata.NewClient(clientOpts),
		bars:       bars,
		watchlist:  watchlist,
		batchSize:  opts.BatchSize,
		maxWorkers: opts.MaxWorkers,
		startDate:  opts.StartDate,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin),
		log:        slog.Default().With("gatherer", "daily-bars"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Run fetches daily bars for every watchlist symbol from the start date
// through yesterday and writes them to the bar store. Batches that fail
// after retries fail the whole pass.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse(dateLayout, g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

	entries, err := g.watchlist.ListWatch(ctx, false)
	if err != nil {
		return fmt.Errorf("listing watchlist: %w", err)
	}
	if len(entries) == 0 {
		g.log.Info("watchlist empty, nothing to gather")
		return nil
	}
	symbols := make([]string, len(entries))
	for i, e := range entries {
		symbols[i] = e.Code
	}

	runStart := time.Now()
	var (
		mu        sync.Mutex
		totalBars int
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxWorkers)
	for _, batch := range batches(symbols, g.batchSize) {
		eg.Go(func() error {
			if err := g.limiter.Wait(gctx); err != nil {
				return err
			}

			var bars []domain.Bar
			err := util.Retry(gctx, 3, time.Second, func() error {
				var ferr error
				bars, ferr = g.fetchMultiBars(gctx, batch, start, end)
				return ferr
			})
			if err != nil {
				return fmt.Errorf("fetching batch %v: %w", batch[:1], err)
			}
			if len(bars) == 0 {
				return nil
			}
			if err := g.bars.WriteBars(gctx, bars); err != nil {
				return fmt.Errorf("writing bars: %w", err)
			}

			mu.Lock()
			totalBars += len(bars)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	g.log.Info("gather complete",
		"symbols", len(symbols),
		"bars", totalBars,
		"elapsed", time.Since(runStart).Round(time.Second))
	return nil
}

// fetchMultiBars fetches daily bars for a symbol batch in one API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Code:   strings.ToUpper(symbol),
				Date:   ab.Timestamp.UTC().Truncate(24 * time.Hour),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: int64(ab.Volume),
			})
		}
	}
	return bars, nil
}

// batches splits symbols into chunks of at most size.
func batches(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var out [][]string
	for len(symbols) > size {
		out = append(out, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		out = append(out, symbols)
	}
	return out
}
