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

package model

import (
	"time"
)

// Bar is one validated per-minute observation. Instances only come out of
// the transform package, which guarantees: non-empty symbol, a tz-aware
// timestamp, close > 0, volume >= 0, high >= low, high >= close and
// low <= close.
type Bar struct {
	Symbol    string    `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	Timestamp time.Time `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Date      time.Time `yaml:"date,omitempty" json:"date,omitempty"`
	Open      float64   `yaml:"open,omitempty" json:"open,omitempty"`
	High      float64   `yaml:"high,omitempty" json:"high,omitempty"`
	Low       float64   `yaml:"low,omitempty" json:"low,omitempty"`
	Close     float64   `yaml:"close,omitempty" json:"close,omitempty"`
	Volume    int64     `yaml:"volume,omitempty" json:"volume,omitempty"`
}
