package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"waysystem/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk, one file per
// instrument and year.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data
// directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// barRecord is the Parquet schema for daily bar data.
type barRecord struct {
	Code   string  `parquet:"code"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms at midnight UTC
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume int64   `parquet:"volume"`
}

// WriteBars writes bar data to Parquet files organized by instrument and
// year. Each code+year combination produces a separate file at:
//
//	<DataDir>/daily/<CODE>/<YYYY>.parquet
//
// Existing records for the same dates are replaced; others are preserved.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		code string
		year int
	}
	groups := make(map[key][]barRecord)
	for _, b := range bars {
		k := key{code: b.Code, year: b.Date.Year()}
		groups[k] = append(groups[k], barRecord{
			Code:   b.Code,
			Date:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.code, k.year)

		// Read existing records to merge.
		existing, _ := readParquetFile[barRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.code, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data for the given instrument and date range, ordered
// by date ascending.
func (s *ParquetStore) ReadBars(_ context.Context, code string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(code, year)

		records, err := readParquetFile[barRecord](path)
		if err != nil {
			// No file for this year, skip it.
			continue
		}

		for _, r := range records {
			d := time.UnixMilli(r.Date).UTC()
			if (d.Equal(start) || d.After(start)) && (d.Equal(end) || d.Before(end)) {
				bars = append(bars, domain.Bar{
					Code:   r.Code,
					Date:   d,
					Open:   r.Open,
					High:   r.High,
					Low:    r.Low,
					Close:  r.Close,
					Volume: r.Volume,
				})
			}
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// ListCodes lists all instrument codes that have bar data.
func (s *ParquetStore) ListCodes(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var codes []string
	for _, e := range entries {
		if e.IsDir() {
			codes = append(codes, e.Name())
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/daily/<CODE>/<YYYY>.parquet
func (s *ParquetStore) barPath(code string, year int) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(code), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (code, date), preferring new
// records over existing ones. Results are sorted by date.
func mergeBarRecords(existing, incoming []barRecord) []barRecord {
	type key struct {
		code string
		date int64
	}
	seen := make(map[key]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Code, r.Date}] = r
	}
	for _, r := range incoming {
		seen[key{r.Code, r.Date}] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
