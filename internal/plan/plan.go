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

package plan

import (
	"time"
)

// Window is an inclusive [From, To] calendar date range to request from
// the data source. Computed once per symbol per run and discarded.
type Window struct {
	From time.Time
	To   time.Time
}

// Watermarks maps a symbol to the latest calendar date with at least one
// durably persisted bar. A missing entry means no data yet for that
// symbol. The map is derived from persisted rows at the start of a run.
type Watermarks map[string]time.Time

// Range plans the fetch window for symbol. Without a watermark it is the
// initial backfill window [today-backfillDays, today]; with a watermark W
// it is [W+1, today]. The second return is false when the watermark
// already covers today and there is nothing to fetch. Range never fails:
// an absent watermark degrades to the initial backfill.
func (w Watermarks) Range(symbol string, today time.Time, backfillDays int) (Window, bool) {
	today = truncate(today)

	latest, ok := w[symbol]
	if !ok {
		return Window{From: today.AddDate(0, 0, -backfillDays), To: today}, true
	}

	from := rebase(latest, today.Location()).AddDate(0, 0, 1)
	if from.After(today) {
		return Window{}, false
	}

	return Window{From: from, To: today}, true
}

func truncate(t time.Time) time.Time {
	return rebase(t, t.Location())
}

// rebase reinterprets the calendar date of t as a midnight in loc.
// Watermarks come out of a DATE column as UTC midnights while today
// carries the exchange timezone; the two only compare correctly on
// calendar components, not instants.
func rebase(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
