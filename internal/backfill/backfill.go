/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package backfill drives the per-symbol plan → fetch → clean → persist
// loop. Symbols are processed strictly in order, one at a time; a
// per-symbol failure never aborts the run.
package backfill

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/logging"

	"github.com/ajjensen13/marketfill/internal/fmp"
	"github.com/ajjensen13/marketfill/internal/model"
	"github.com/ajjensen13/marketfill/internal/plan"
	"github.com/ajjensen13/marketfill/internal/transform"
	"github.com/ajjensen13/marketfill/internal/util"
)

// BarSource fetches raw bars for a symbol over an inclusive date range.
// An empty result for a symbol with no data in range is not an error.
type BarSource interface {
	IntradayBars(ctx context.Context, symbol string, from, to time.Time) ([]fmp.Bar, error)
}

// BarStore is the persisted bar set: the watermark view read at the start
// of a run and the per-symbol batch writer.
type BarStore interface {
	LatestDates(ctx context.Context) (map[string]time.Time, error)
	SaveBars(ctx context.Context, bars []model.Bar) (inserted int64, skipped int, err error)
}

// Config holds the per-run parameters. Constructed once at startup and
// passed in; there is no ambient state.
type Config struct {
	// Today anchors every planned window. Normally midnight of the wall
	// clock date, overridable for reproducible runs.
	Today time.Time

	// BackfillDays is the initial window size for symbols without a
	// watermark.
	BackfillDays int

	// Delay is the pause between requests to the data source.
	Delay time.Duration

	// Timezone is the exchange timezone raw timestamps are parsed in.
	Timezone *time.Location
}

// Summary is the outcome of one run.
type Summary struct {
	Symbols   int   // symbols processed, including already-current ones
	Skipped   int   // symbols skipped because their watermark covers today
	Fetched   int64 // raw rows returned by the data source
	Validated int64 // rows that survived cleaning
	Removed   int64 // rows dropped during cleaning
	Inserted  int64 // rows newly written
}

const (
	DefaultBackfillDays = 30
	DefaultDelay        = 500 * time.Millisecond
)

type Orchestrator struct {
	source BarSource
	store  BarStore
	cfg    Config
}

func New(source BarSource, store BarStore, cfg Config) *Orchestrator {
	if cfg.BackfillDays <= 0 {
		cfg.BackfillDays = DefaultBackfillDays
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Today.IsZero() {
		cfg.Today = time.Now().In(cfg.Timezone)
	}
	return &Orchestrator{source: source, store: store, cfg: cfg}
}

// Run processes symbols in the given order. Per symbol: plan the window
// from the watermark, fetch, clean, persist, accumulate. A fetch failure
// degrades to zero rows and a persist failure credits zero rows; both are
// logged and the run continues with the next symbol. Run only fails when
// the watermark lookup fails or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) (Summary, error) {
	var summary Summary

	latest, err := o.store.LatestDates(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to look up watermarks: %w", err)
	}
	watermarks := plan.Watermarks(latest)

	throttler := time.NewTicker(o.cfg.Delay)
	defer throttler.Stop()

	for _, symbol := range symbols {
		if symbol == "" {
			util.Logf(ctx, logging.Warning, "skipping symbol without a name")
			continue
		}

		ctx := util.WithLoggerValue(ctx, "symbol", symbol)
		summary.Symbols++

		window, ok := watermarks.Range(symbol, o.cfg.Today, o.cfg.BackfillDays)
		if !ok {
			util.Logf(ctx, logging.Info, "%s is already current, skipping", symbol)
			summary.Skipped++
			continue
		}

		select {
		case <-ctx.Done():
			return summary, fmt.Errorf("aborting backfill at %q: %w", symbol, ctx.Err())
		case <-throttler.C:
		}

		raw, err := o.source.IntradayBars(ctx, symbol, window.From, window.To)
		if err != nil {
			util.Logf(ctx, logging.Warning, "failed to fetch %s (%s — %s), continuing with no rows: %v",
				symbol, window.From.Format("2006-01-02"), window.To.Format("2006-01-02"), err)
			raw = nil
		}
		summary.Fetched += int64(len(raw))

		bars, removed := transform.Bars(symbol, raw, o.cfg.Timezone)
		summary.Validated += int64(len(bars))
		summary.Removed += int64(removed)

		if len(bars) == 0 {
			util.Logf(ctx, logging.Info, "no valid rows for %s (%d fetched, %d removed)", symbol, len(raw), removed)
			continue
		}

		inserted, skipped, err := o.store.SaveBars(ctx, bars)
		if err != nil {
			util.Logf(ctx, logging.Error, "failed to persist %d bars for %s, batch rolled back: %v", len(bars), symbol, err)
			continue
		}
		summary.Inserted += inserted

		util.Logf(ctx, logging.Info, "loaded %d of %d bars for %s (%d pre-existing, %d skipped, %d removed)",
			inserted, len(bars), symbol, int64(len(bars))-inserted-int64(skipped), skipped, removed)
	}

	return summary, nil
}
