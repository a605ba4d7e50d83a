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
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ajjensen13/marketfill/internal/db"
	"github.com/ajjensen13/marketfill/internal/util"
)

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Incrementally backfill per-minute bars for the configured symbols",
	Long: `Backfill determines, per symbol, the date range missing from the
database, fetches it from the market-data API, cleans the returned rows
and persists them idempotently. Already-known rows are never re-inserted.`,
	Run: func(cmd *cobra.Command, args []string) {
		lg, cleanup := logger()
		defer cleanup()

		ctx := util.WithLogger(context.Background(), lg)

		m, err := migrator(lg)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to setup database migrator: %w", err)))
		}
		err = m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			lg.Defaultf("database schema is already up to date")
		case err != nil:
			panic(lg.ErrorErr(fmt.Errorf("failed to ensure database schema: %w", err)))
		}

		pool, cleanup, err := openPool(ctx)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to open database connection pool: %w", err)))
		}
		defer cleanup()

		symbols, err := symbolList()
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to determine symbol list: %w", err)))
		}

		orchestrator, err := newOrchestrator(pool)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to setup backfill: %w", err)))
		}

		jobRunId, err := db.StartJobRun(ctx, pool)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to record job run: %w", err)))
		}
		lg.Defaultf("starting backfill job run %d for %d symbols", jobRunId, len(symbols))

		summary, err := orchestrator.Run(ctx, symbols)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("backfill aborted: %w", err)))
		}

		if err := db.FinishJobRun(ctx, pool, jobRunId, summary); err != nil {
			lg.Warningf("failed to record job run outcome: %v", err)
		}

		lg.Defaultf("backfill complete: %d symbols (%d already current), %d rows fetched, %d validated, %d removed, %d inserted",
			summary.Symbols, summary.Skipped, summary.Fetched, summary.Validated, summary.Removed, summary.Inserted)
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
