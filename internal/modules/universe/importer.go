package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const (
	// CatalogueFile is the catalogue file name inside the import directory
	CatalogueFile = "catalogue.csv"
	// DailyDir holds one <code>.csv file of daily bars per instrument
	DailyDir = "daily"
)

var inputDateLayouts = []string{"2006-01-02", "2006/01/02", "20060102", "2006-01-02 15:04:05"}

// headerAliases maps accepted column headers to canonical column names
var headerAliases = map[string]string{
	"代码": "code", "etf代码": "code", "基金代码": "code",
	"名称": "name", "etf名称": "name", "基金名称": "name",
	"完整代码": "full_code",
	"基金规模": "fund_size", "规模": "fund_size",
	"上市日期": "listing_date",
	"行业":   "sector", "板块": "sector",
	"日期":   "date",
	"开盘":   "open",
	"收盘":   "close",
	"最高":   "high",
	"最低":   "low",
	"成交量":  "volume",
	"成交额":  "amount",
	"换手率":  "turnover",
	"指数收盘": "index_close",
	"跟踪误差": "tracking_error",
	"买卖价差": "spread",
	"买量":   "bid_volume",
	"卖量":   "ask_volume",
}

var requiredBarColumns = []string{"date", "open", "close", "high", "low"}

// CatalogueStore is the catalogue persistence used by the importer
type CatalogueStore interface {
	Upsert(entries []domain.CatalogueEntry) error
	Stale(now time.Time, maxAge time.Duration) (bool, error)
}

// BarStore is the price persistence used by the importer
type BarStore interface {
	UpsertBars(code string, bars []domain.PriceBar) error
	RecordSize(code string, date time.Time, fundSize float64) error
}

// ImportResult summarises one import run
type ImportResult struct {
	CatalogueRefreshed bool              `json:"catalogue_refreshed"`
	Entries            int               `json:"entries"`
	Files              int               `json:"files"`
	Bars               int               `json:"bars"`
	Rejected           int               `json:"rejected"`
	Failed             map[string]string `json:"failed,omitempty"`
}

// Importer loads the catalogue and daily price files from a directory
type Importer struct {
	dir       string
	maxAge    time.Duration
	catalogue CatalogueStore
	prices    BarStore
	validator *PriceValidator
	now       domain.Clock
	log       zerolog.Logger
}

// NewImporter creates an importer reading from dir. The catalogue is only
// refreshed when it is older than maxAgeDays unless the run is forced.
func NewImporter(dir string, maxAgeDays int, catalogue CatalogueStore, prices BarStore, log zerolog.Logger) *Importer {
	return &Importer{
		dir:       dir,
		maxAge:    time.Duration(maxAgeDays) * 24 * time.Hour,
		catalogue: catalogue,
		prices:    prices,
		validator: NewPriceValidator(log),
		now:       time.Now,
		log:       log.With().Str("component", "importer").Logger(),
	}
}

// SetClock overrides the time source
func (imp *Importer) SetClock(now domain.Clock) {
	imp.now = now
}

// Run imports the catalogue (when stale or forced) and every daily file.
// A broken price file is recorded in Failed and does not stop the run.
func (imp *Importer) Run(ctx context.Context, force bool) (*ImportResult, error) {
	result := &ImportResult{Failed: map[string]string{}}
	now := imp.now()

	refresh := force
	if !refresh {
		stale, err := imp.catalogue.Stale(now, imp.maxAge)
		if err != nil {
			return nil, err
		}
		refresh = stale
	}

	if refresh {
		entries, err := imp.importCatalogue(now)
		if err != nil {
			return nil, err
		}
		result.CatalogueRefreshed = true
		result.Entries = entries
	} else {
		imp.log.Info().Msg("Catalogue is fresh, skipping refresh")
	}

	files, err := imp.dailyFiles()
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		code := domain.CanonicalCode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		bars, report, err := imp.importDaily(code, path)
		if err != nil {
			imp.log.Warn().Err(err).Str("code", code).Msg("Failed to import price file")
			result.Failed[code] = err.Error()
			continue
		}
		result.Files++
		result.Bars += bars
		result.Rejected += len(report.Rejections)
	}

	imp.log.Info().
		Bool("catalogue_refreshed", result.CatalogueRefreshed).
		Int("entries", result.Entries).
		Int("files", result.Files).
		Int("bars", result.Bars).
		Int("failed", len(result.Failed)).
		Msg("Import finished")

	return result, nil
}

func (imp *Importer) importCatalogue(now time.Time) (int, error) {
	path := filepath.Join(imp.dir, CatalogueFile)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer f.Close()

	entries, err := ParseCatalogue(f, now)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := imp.catalogue.Upsert(entries); err != nil {
		return 0, err
	}

	for _, e := range entries {
		if e.FundSize <= 0 {
			continue
		}
		if err := imp.prices.RecordSize(e.Code, now, e.FundSize); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func (imp *Importer) dailyFiles() ([]string, error) {
	dir := filepath.Join(imp.dir, DailyDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		imp.log.Warn().Str("dir", dir).Msg("No daily price directory")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (imp *Importer) importDaily(code, path string) (int, ValidationReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ValidationReport{}, err
	}
	defer f.Close()

	bars, err := ParseBars(f)
	if err != nil {
		return 0, ValidationReport{}, err
	}

	clean, report := imp.validator.Clean(code, bars)
	if err := imp.prices.UpsertBars(code, clean); err != nil {
		return 0, report, err
	}
	return len(clean), report, nil
}

// ParseCatalogue reads catalogue rows. Rows without a code are skipped,
// the last row wins for a repeated code.
func ParseCatalogue(r io.Reader, now time.Time) ([]domain.CatalogueEntry, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["code"]; !ok {
		return nil, fmt.Errorf("%w: code", domain.ErrMissingColumn)
	}

	byCode := map[string]int{}
	entries := make([]domain.CatalogueEntry, 0, len(rows))
	for _, row := range rows {
		raw := field(header, row, "code")
		if raw == "" {
			continue
		}

		e := domain.CatalogueEntry{
			Code:      domain.CanonicalCode(raw),
			Name:      field(header, row, "name"),
			FullCode:  strings.ToLower(field(header, row, "full_code")),
			Sector:    field(header, row, "sector"),
			UpdatedAt: now,
		}
		if e.FullCode == "" {
			e.FullCode = domain.FullCode(e.Code)
		}
		e.FundSize, _ = parseNumber(field(header, row, "fund_size"))
		if t, ok := parseDate(field(header, row, "listing_date")); ok {
			e.ListingDate = t
		}

		if i, seen := byCode[e.Code]; seen {
			entries[i] = e
			continue
		}
		byCode[e.Code] = len(entries)
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseBars reads daily bars. Rows with an unparseable date or close are
// skipped; optional columns stay nil when absent or blank.
func ParseBars(r io.Reader) ([]domain.PriceBar, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	for _, col := range requiredBarColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, col)
		}
	}

	bars := make([]domain.PriceBar, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(field(header, row, "date"))
		if !ok {
			continue
		}
		closePrice, ok := parseNumber(field(header, row, "close"))
		if !ok {
			continue
		}

		b := domain.PriceBar{Date: date, Close: closePrice}
		b.Open, _ = parseNumber(field(header, row, "open"))
		b.High, _ = parseNumber(field(header, row, "high"))
		b.Low, _ = parseNumber(field(header, row, "low"))
		b.Volume, _ = parseNumber(field(header, row, "volume"))
		b.Amount, _ = parseNumber(field(header, row, "amount"))
		b.IndexClose = optionalField(header, row, "index_close")
		b.TrackingError = optionalField(header, row, "tracking_error")
		b.Spread = optionalField(header, row, "spread")
		b.BidVolume = optionalField(header, row, "bid_volume")
		b.AskVolume = optionalField(header, row, "ask_volume")
		b.Turnover = optionalField(header, row, "turnover")

		bars = append(bars, b)
	}
	return bars, nil
}

func readTable(r io.Reader) (map[string]int, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", domain.ErrInsufficientData)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, dup := header[key]; !dup {
			header[key] = i
		}
	}
	return header, records[1:], nil
}

func field(header map[string]int, row []string, col string) string {
	i, ok := header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func optionalField(header map[string]int, row []string, col string) *float64 {
	v, ok := parseNumber(field(header, row, col))
	if !ok {
		return nil
	}
	return &v
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSuffix(s, "%"), ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
