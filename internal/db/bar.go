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
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/marketfill/internal/model"
	"github.com/ajjensen13/marketfill/internal/util"
)

// Bar is the market_data row representation of a validated bar.
type Bar struct {
	Symbol    pgtype.Text
	Timestamp pgtype.Timestamptz
	Date      pgtype.Date
	Open      pgtype.Float8
	High      pgtype.Float8
	Low       pgtype.Float8
	Close     pgtype.Float8
	Volume    pgtype.Int8
}

// TransformBar converts a validated bar into its row representation.
// Conversion happens client-side so a bad row can be skipped before any
// SQL is issued; a statement failure inside the batch transaction would
// poison the whole transaction.
func TransformBar(in model.Bar) (out Bar, err error) {
	if err = out.Symbol.Set(in.Symbol); err != nil {
		return out, fmt.Errorf("failed to convert symbol %q: %w", in.Symbol, err)
	}
	if err = out.Timestamp.Set(in.Timestamp); err != nil {
		return out, fmt.Errorf("failed to convert timestamp %v: %w", in.Timestamp, err)
	}
	if err = out.Date.Set(in.Date); err != nil {
		return out, fmt.Errorf("failed to convert date %v: %w", in.Date, err)
	}
	if err = out.Open.Set(in.Open); err != nil {
		return out, fmt.Errorf("failed to convert open %v: %w", in.Open, err)
	}
	if err = out.High.Set(in.High); err != nil {
		return out, fmt.Errorf("failed to convert high %v: %w", in.High, err)
	}
	if err = out.Low.Set(in.Low); err != nil {
		return out, fmt.Errorf("failed to convert low %v: %w", in.Low, err)
	}
	if err = out.Close.Set(in.Close); err != nil {
		return out, fmt.Errorf("failed to convert close %v: %w", in.Close, err)
	}
	if err = out.Volume.Set(in.Volume); err != nil {
		return out, fmt.Errorf("failed to convert volume %v: %w", in.Volume, err)
	}
	return out, nil
}

// LookupLatestDates returns, per symbol, the latest calendar date with at
// least one persisted bar. The watermark is always derived from
// market_data itself so it cannot drift from the persisted rows.
func LookupLatestDates(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	var ret map[string]time.Time
	err := util.RunTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT symbol, max(date) FROM market_data GROUP BY symbol`)
		if err != nil {
			return fmt.Errorf("failed to query latest dates: %w", err)
		}
		defer rows.Close()

		ret = make(map[string]time.Time)
		for rows.Next() {
			var symbol string
			var date time.Time
			if err := rows.Scan(&symbol, &date); err != nil {
				return fmt.Errorf("failed to scan latest dates: %w", err)
			}
			ret[symbol] = date
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return ret, nil
}
