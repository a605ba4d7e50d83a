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

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/marketfill/internal/backfill"
	"github.com/ajjensen13/marketfill/internal/util"
)

// StartJobRun records the start of a backfill run and returns its id.
func StartJobRun(ctx context.Context, pool *pgxpool.Pool) (id int64, err error) {
	err = util.RunTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO job_runs (started_at) VALUES (CURRENT_TIMESTAMP) RETURNING id`)
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("failed to insert job run: %w", err)
		}
		return nil
	})
	return id, err
}

// FinishJobRun records the outcome of a completed backfill run.
func FinishJobRun(ctx context.Context, pool *pgxpool.Pool, id int64, summary backfill.Summary) error {
	return util.RunTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE job_runs
			SET finished_at = CURRENT_TIMESTAMP,
				symbols = $2,
				skipped = $3,
				fetched = $4,
				validated = $5,
				removed = $6,
				inserted = $7
			WHERE id = $1`,
			id, summary.Symbols, summary.Skipped, summary.Fetched, summary.Validated, summary.Removed, summary.Inserted)
		if err != nil {
			return fmt.Errorf("failed to finish job run %d: %w", id, err)
		}
		return nil
	})
}
