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

package load

import (
	"context"
	"fmt"

	"cloud.google.com/go/logging"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/marketfill/internal/db"
	"github.com/ajjensen13/marketfill/internal/model"
	"github.com/ajjensen13/marketfill/internal/util"
)

// Bars persists one symbol's batch of validated bars as a unit. Rows are
// written insert-if-absent: a pre-existing (symbol, timestamp) key is a
// silent no-op, detected by RowsAffected() == 0 and excluded from the
// inserted count. A row that fails type conversion is logged and skipped
// without aborting the rest of the batch. Any statement or commit failure
// rolls the whole batch back, in which case zero rows were written.
func Bars(ctx context.Context, pool *pgxpool.Pool, bars []model.Bar) (inserted int64, skipped int, err error) {
	ctx = util.WithLoggerValue(ctx, "action", "load")

	rows := make([]db.Bar, 0, len(bars))
	for _, b := range bars {
		row, err := db.TransformBar(b)
		if err != nil {
			util.Logf(ctx, logging.Warning, "skipping bar %s %v: %v", b.Symbol, b.Timestamp, err)
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	err = util.RunTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, row := range rows {
			ct, err := tx.Exec(ctx, `
				INSERT INTO market_data
					(symbol, "timestamp", date, open, high, low, close, volume)
				VALUES
					($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT
					(symbol, "timestamp")
				DO NOTHING`,
				row.Symbol, row.Timestamp, row.Date, row.Open, row.High, row.Low, row.Close, row.Volume)
			if err != nil {
				return fmt.Errorf("failed to load bar %s %v: %w", row.Symbol.String, row.Timestamp.Time, err)
			}
			inserted += ct.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, skipped, err
	}

	return inserted, skipped, nil
}
