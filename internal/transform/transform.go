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

package transform

import (
	"sort"
	"time"

	"github.com/ajjensen13/marketfill/internal/fmp"
	"github.com/ajjensen13/marketfill/internal/model"
)

// TimestampLayout is the timestamp format used by the FMP intraday
// endpoints, interpreted in the configured exchange timezone.
const TimestampLayout = "2006-01-02 15:04:05"

// Bars narrows raw bars down to valid ones. Stages, in order: timestamp
// parse, numeric coercion, domain invariants, stable dedup on timestamp
// (first occurrence wins), ascending sort by timestamp. Rows that fail any
// stage are silently removed and only show up in the removed count. Bars
// never fails: bad input degrades to an empty result.
func Bars(symbol string, in []fmp.Bar, tz *time.Location) (out []model.Bar, removed int) {
	out = make([]model.Bar, 0, len(in))
	seen := make(map[int64]struct{}, len(in))

	for _, raw := range in {
		b, ok := bar(symbol, raw, tz)
		if !ok {
			removed++
			continue
		}

		ts := b.Timestamp.Unix()
		if _, dup := seen[ts]; dup {
			removed++
			continue
		}
		seen[ts] = struct{}{}

		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out, removed
}

func bar(symbol string, in fmp.Bar, tz *time.Location) (model.Bar, bool) {
	if symbol == "" {
		return model.Bar{}, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, in.Date, tz)
	if err != nil {
		return model.Bar{}, false
	}

	open, err := in.Open.Float64()
	if err != nil {
		return model.Bar{}, false
	}
	high, err := in.High.Float64()
	if err != nil {
		return model.Bar{}, false
	}
	low, err := in.Low.Float64()
	if err != nil {
		return model.Bar{}, false
	}
	closePrice, err := in.Close.Float64()
	if err != nil {
		return model.Bar{}, false
	}
	volume, err := in.Volume.Int64()
	if err != nil {
		// The feed occasionally reports volume as a float. Truncate
		// toward zero rather than dropping the row.
		f, ferr := in.Volume.Float64()
		if ferr != nil {
			return model.Bar{}, false
		}
		volume = int64(f)
	}

	switch {
	case closePrice <= 0:
		return model.Bar{}, false
	case volume < 0:
		return model.Bar{}, false
	case high < low:
		return model.Bar{}, false
	case high < closePrice:
		return model.Bar{}, false
	case low > closePrice:
		return model.Bar{}, false
	}

	y, m, d := ts.Date()
	return model.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, tz),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, true
}
