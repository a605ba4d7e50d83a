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

// Package fmp is a minimal client for the Financial Modeling Prep
// historical-chart endpoints. Only the pieces the backfill needs are
// implemented.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the production FMP endpoint.
const DefaultBaseURL = "https://financialmodelingprep.com"

// Bar is one raw per-minute observation as returned by FMP. Nothing about
// it is guaranteed: fields may be missing or carry values that do not
// survive coercion. json.Number keeps the numeric fields lazy so one bad
// value drops one row downstream, not the whole payload.
type Bar struct {
	Date   string      `json:"date"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the given base URL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

const dateLayout = "2006-01-02"

// IntradayBars requests 1-minute bars for symbol over the inclusive
// [from, to] date range. A symbol with no data in range yields an empty
// slice, not an error.
func (c *Client) IntradayBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	query := url.Values{}
	query.Set("from", from.Format(dateLayout))
	query.Set("to", to.Format(dateLayout))
	query.Set("apikey", c.apiKey)

	fullURL := fmt.Sprintf("%s/api/v3/historical-chart/1min/%s?%s", c.baseURL, url.PathEscape(symbol), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %q: %w", symbol, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while requesting bars for %q: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErr(fmt.Sprintf("error while requesting bars for %q", symbol), resp)
	}

	var result []Bar
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("error while decoding bars for %q: %w", symbol, err)
	}

	return result, nil
}

var ErrToManyRequests = errors.New("error: too many requests")

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fmp api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func handleErr(msg string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", msg, ErrToManyRequests)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error while parsing error response %v. %s: %w", err, msg, &StatusError{StatusCode: resp.StatusCode})
	}
	return fmt.Errorf("%s: %w", msg, &StatusError{StatusCode: resp.StatusCode, Body: body})
}
