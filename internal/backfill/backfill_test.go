package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajjensen13/marketfill/internal/fmp"
	"github.com/ajjensen13/marketfill/internal/model"
)

func rawBar(date, open, high, low, closePrice, volume string) fmp.Bar {
	return fmp.Bar{
		Date:   date,
		Open:   json.Number(open),
		High:   json.Number(high),
		Low:    json.Number(low),
		Close:  json.Number(closePrice),
		Volume: json.Number(volume),
	}
}

type fetchCall struct {
	symbol   string
	from, to time.Time
}

type fakeSource struct {
	bars  map[string][]fmp.Bar
	errs  map[string]error
	calls []fetchCall
}

func (s *fakeSource) IntradayBars(ctx context.Context, symbol string, from, to time.Time) ([]fmp.Bar, error) {
	s.calls = append(s.calls, fetchCall{symbol: symbol, from: from, to: to})
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	return s.bars[symbol], nil
}

// fakeStore implements BarStore over an in-memory (symbol, timestamp)
// key set, mirroring the storage layer's uniqueness constraint.
type fakeStore struct {
	rows     map[string]model.Bar
	latest   map[string]time.Time
	saveErrs map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:     make(map[string]model.Bar),
		latest:   make(map[string]time.Time),
		saveErrs: make(map[string]error),
	}
}

func (s *fakeStore) LatestDates(ctx context.Context) (map[string]time.Time, error) {
	ret := make(map[string]time.Time, len(s.latest))
	for k, v := range s.latest {
		ret[k] = v
	}
	return ret, nil
}

func (s *fakeStore) SaveBars(ctx context.Context, bars []model.Bar) (int64, int, error) {
	if len(bars) > 0 {
		if err := s.saveErrs[bars[0].Symbol]; err != nil {
			return 0, 0, err
		}
	}

	var inserted int64
	for _, b := range bars {
		key := fmt.Sprintf("%s|%d", b.Symbol, b.Timestamp.Unix())
		if _, ok := s.rows[key]; ok {
			continue
		}
		s.rows[key] = b
		inserted++

		if b.Date.After(s.latest[b.Symbol]) {
			s.latest[b.Symbol] = b.Date
		}
	}
	return inserted, 0, nil
}

func testConfig(today time.Time) Config {
	return Config{
		Today:        today,
		BackfillDays: 30,
		Delay:        time.Millisecond,
		Timezone:     time.UTC,
	}
}

var today = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestRun_InitialBackfillScenario(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{
		"AAPL": {
			rawBar("2024-03-14 15:59:00", "100", "101", "99", "100.5", "1200"),
			rawBar("2024-03-14 15:58:00", "100", "99", "101", "100", "1200"), // high < low
			rawBar("not a timestamp", "100", "101", "99", "100.5", "1200"),
		},
	}}
	store := newFakeStore()
	o := New(source, store, testConfig(today))

	summary, err := o.Run(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	require.Len(t, source.calls, 1)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), source.calls[0].from)
	assert.Equal(t, today, source.calls[0].to)

	assert.Equal(t, Summary{Symbols: 1, Fetched: 3, Validated: 1, Removed: 2, Inserted: 1}, summary)
}

func TestRun_IncrementalWindowFromWatermark(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{"AAPL": nil}}
	store := newFakeStore()
	store.latest["AAPL"] = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	o := New(source, store, testConfig(today))

	_, err := o.Run(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	require.Len(t, source.calls, 1)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), source.calls[0].from)
	assert.Equal(t, today, source.calls[0].to)
}

func TestRun_AlreadyCurrentSkipsFetch(t *testing.T) {
	source := &fakeSource{}
	store := newFakeStore()
	store.latest["AAPL"] = today
	o := New(source, store, testConfig(today))

	summary, err := o.Run(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	assert.Empty(t, source.calls)
	assert.Equal(t, Summary{Symbols: 1, Skipped: 1}, summary)
}

func TestRun_FetchErrorContinuesWithRemainingSymbols(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}
	bars := make(map[string][]fmp.Bar, len(symbols))
	for _, symbol := range symbols {
		bars[symbol] = []fmp.Bar{rawBar("2024-03-14 15:59:00", "100", "101", "99", "100.5", "1200")}
	}
	source := &fakeSource{
		bars: bars,
		errs: map[string]error{"GOOGL": errors.New("connection reset")},
	}
	store := newFakeStore()
	o := New(source, store, testConfig(today))

	summary, err := o.Run(context.Background(), symbols)

	require.NoError(t, err)
	assert.Len(t, source.calls, 5)
	assert.Equal(t, Summary{Symbols: 5, Fetched: 4, Validated: 4, Inserted: 4}, summary)
}

func TestRun_PersistFailureCreditsZero(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{
		"AAPL": {rawBar("2024-03-14 15:59:00", "100", "101", "99", "100.5", "1200")},
		"MSFT": {rawBar("2024-03-14 15:59:00", "200", "201", "199", "200.5", "900")},
	}}
	store := newFakeStore()
	store.saveErrs["AAPL"] = errors.New("database unreachable")
	o := New(source, store, testConfig(today))

	summary, err := o.Run(context.Background(), []string{"AAPL", "MSFT"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Inserted)
	assert.Equal(t, int64(2), summary.Validated)
	assert.Empty(t, store.latest["AAPL"])
}

func TestRun_SecondRunInsertsNothing(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{
		"AAPL": {
			rawBar("2024-03-15 09:30:00", "100", "101", "99", "100.5", "1200"),
			rawBar("2024-03-15 09:31:00", "100.5", "102", "100", "101", "800"),
		},
	}}
	store := newFakeStore()

	first, err := New(source, store, testConfig(today)).Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, int64(2), first.Inserted)

	second, err := New(source, store, testConfig(today)).Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	// Watermark now covers today, so the second run skips the symbol and
	// the stored rows are unchanged.
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.rows, 2)
}

func TestRun_WatermarkAdvancesMonotonically(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{
		"AAPL": {rawBar("2024-03-14 15:59:00", "100", "101", "99", "100.5", "1200")},
	}}
	store := newFakeStore()
	before := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	store.latest["AAPL"] = before
	o := New(source, store, testConfig(today))

	_, err := o.Run(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	assert.False(t, store.latest["AAPL"].Before(before))
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), store.latest["AAPL"])
}

func TestRun_EmptySymbolIsIgnored(t *testing.T) {
	source := &fakeSource{bars: map[string][]fmp.Bar{
		"AAPL": {rawBar("2024-03-14 15:59:00", "100", "101", "99", "100.5", "1200")},
	}}
	store := newFakeStore()
	o := New(source, store, testConfig(today))

	summary, err := o.Run(context.Background(), []string{"", "AAPL"})

	require.NoError(t, err)
	assert.Len(t, source.calls, 1)
	assert.Equal(t, 1, summary.Symbols)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	source := &fakeSource{}
	store := newFakeStore()
	o := New(source, store, Config{
		Today:        today,
		BackfillDays: 30,
		Delay:        time.Hour, // never ticks
		Timezone:     time.UTC,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, []string{"AAPL"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, source.calls)
}
