package universe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

var importNow = time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupImporter(t *testing.T) (*Importer, *CatalogueRepository, *PriceRepository, string) {
	t.Helper()
	db := setupUniverseDB(t)
	catalogue := NewCatalogueRepository(db, zerolog.Nop())
	prices := NewPriceRepository(db, zerolog.Nop())
	dir := t.TempDir()

	imp := NewImporter(dir, 7, catalogue, prices, zerolog.Nop())
	imp.SetClock(func() time.Time { return importNow })
	return imp, catalogue, prices, dir
}

func TestParseCatalogue_ChineseHeaders(t *testing.T) {
	csv := "\ufeffETF代码,ETF名称,基金规模,上市日期,行业\n" +
		"510300,沪深300ETF,\"1,200.5\",2012-05-28,\n" +
		"159915,创业板ETF,300,20111209,科技\n" +
		",空代码,1,,\n" +
		"510300,沪深300ETF华泰,1300,2012/05/28,\n"

	entries, err := ParseCatalogue(strings.NewReader(csv), importNow)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "510300", entries[0].Code)
	assert.Equal(t, "沪深300ETF华泰", entries[0].Name, "last row wins")
	assert.Equal(t, 1300.0, entries[0].FundSize)
	assert.Equal(t, "sh510300", entries[0].FullCode)
	assert.Equal(t, day("2012-05-28"), entries[0].ListingDate)

	assert.Equal(t, "sz159915", entries[1].FullCode)
	assert.Equal(t, "科技", entries[1].Sector)
	assert.Equal(t, day("2011-12-09"), entries[1].ListingDate)
	assert.Equal(t, importNow, entries[1].UpdatedAt)
}

func TestParseCatalogue_MissingCodeColumn(t *testing.T) {
	_, err := ParseCatalogue(strings.NewReader("name,fund_size\na,1\n"), importNow)
	assert.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestParseBars(t *testing.T) {
	csv := "日期,开盘,收盘,最高,最低,成交量,成交额,换手率\n" +
		"2024-01-02,3.00,3.10,3.15,2.95,1000,3100,1.5%\n" +
		"bad-date,3.00,3.10,3.15,2.95,1000,3100,\n" +
		"2024-01-03,3.10,,3.20,3.05,1000,3100,\n" +
		"2024-01-04,3.10,3.20,3.25,3.05,1100,3520,\n"

	bars, err := ParseBars(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, day("2024-01-02"), bars[0].Date)
	assert.Equal(t, 3.1, bars[0].Close)
	assert.Equal(t, 3100.0, bars[0].Amount)
	require.NotNil(t, bars[0].Turnover)
	assert.Equal(t, 1.5, *bars[0].Turnover)
	assert.Nil(t, bars[1].Turnover, "blank optional column")
	assert.Nil(t, bars[1].IndexClose, "absent optional column")
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3.10", 3.1, true},
		{"1,200.5", 1200.5, true},
		{"1.5%", 1.5, true},
		{"", 0, false},
		{"-", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"nan", 0, false},
		{"Inf", 0, false},
		{"+Inf", 0, false},
		{"-Inf", 0, false},
		{"1e400", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBars_NonFiniteValues(t *testing.T) {
	csv := "date,open,close,high,low,volume,amount,turnover\n" +
		"2024-01-02,3.00,NaN,3.15,2.95,1000,3100,\n" +
		"2024-01-03,3.10,3.20,3.25,3.05,Inf,-Inf,NaN\n"

	bars, err := ParseBars(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 1, "a non-finite close drops the row")

	assert.Equal(t, day("2024-01-03"), bars[0].Date)
	assert.Equal(t, 0.0, bars[0].Volume)
	assert.Equal(t, 0.0, bars[0].Amount)
	assert.Nil(t, bars[0].Turnover)
}

func TestParseBars_MissingRequiredColumn(t *testing.T) {
	_, err := ParseBars(strings.NewReader("date,open,close\n2024-01-02,1,1\n"))
	assert.ErrorIs(t, err, domain.ErrMissingColumn)

	_, err = ParseBars(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestImporter_Run(t *testing.T) {
	imp, catalogue, prices, dir := setupImporter(t)

	writeFile(t, filepath.Join(dir, CatalogueFile),
		"code,name,fund_size,listing_date\n510300,沪深300ETF,900,2012-05-28\n159915,创业板ETF,0,\n")
	writeFile(t, filepath.Join(dir, DailyDir, "sh510300.csv"),
		"date,open,close,high,low,volume,amount\n"+
			"2024-01-03,3.1,3.2,3.25,3.05,1000,3200\n"+
			"2024-01-02,3.0,3.1,3.15,2.95,900,2790\n"+
			"2024-01-04,3.2,0,3.2,3.2,0,0\n")
	writeFile(t, filepath.Join(dir, DailyDir, "159915.csv"), "date,close\n2024-01-02,1\n")
	writeFile(t, filepath.Join(dir, DailyDir, "notes.txt"), "ignored")

	result, err := imp.Run(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, result.CatalogueRefreshed, "empty catalogue is refreshed")
	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 2, result.Bars)
	assert.Equal(t, 1, result.Rejected)
	assert.Contains(t, result.Failed, "159915")

	all, err := catalogue.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	series, err := prices.GetPriceSeries("510300")
	require.NoError(t, err)
	assert.Equal(t, []float64{3.1, 3.2}, series.Closes())

	sizes, err := prices.SizeHistory("510300")
	require.NoError(t, err)
	assert.Equal(t, []float64{900}, sizes)

	sizes, err = prices.SizeHistory("159915")
	require.NoError(t, err)
	assert.Empty(t, sizes, "zero fund size is not recorded")
}

func TestImporter_FreshCatalogueIsSkippedUnlessForced(t *testing.T) {
	imp, catalogue, _, dir := setupImporter(t)

	require.NoError(t, catalogue.Upsert([]domain.CatalogueEntry{
		{Code: "510300", Name: "旧名称", UpdatedAt: importNow.Add(-24 * time.Hour)},
	}))
	writeFile(t, filepath.Join(dir, CatalogueFile), "code,name\n510300,新名称\n")

	result, err := imp.Run(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.CatalogueRefreshed)
	assert.Zero(t, result.Files, "missing daily directory is not an error")

	entry, err := catalogue.Get("510300")
	require.NoError(t, err)
	assert.Equal(t, "旧名称", entry.Name)

	result, err = imp.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.CatalogueRefreshed)

	entry, err = catalogue.Get("510300")
	require.NoError(t, err)
	assert.Equal(t, "新名称", entry.Name)
}

func TestImporter_MissingCatalogueFails(t *testing.T) {
	imp, _, _, _ := setupImporter(t)

	_, err := imp.Run(context.Background(), true)
	assert.Error(t, err)
}

func TestImporter_CancelledContext(t *testing.T) {
	imp, _, _, dir := setupImporter(t)
	writeFile(t, filepath.Join(dir, CatalogueFile), "code,name\n510300,a\n")
	writeFile(t, filepath.Join(dir, DailyDir, "510300.csv"), "date,open,close,high,low\n2024-01-02,1,1,1,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := imp.Run(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Files)
}
