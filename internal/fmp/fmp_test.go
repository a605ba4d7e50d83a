package fmp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func TestIntradayBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/historical-chart/1min/AAPL", r.URL.Path)
		assert.Equal(t, "2024-02-14", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-03-15", r.URL.Query().Get("to"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date":"2024-03-15 15:59:00","open":100,"high":101,"low":99,"close":100.5,"volume":1200},
			{"date":"2024-03-15 15:58:00","open":99.5,"high":100.25,"low":99.25,"close":100,"volume":800}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	bars, err := c.IntradayBars(context.Background(), "AAPL", from, to)

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-03-15 15:59:00", bars[0].Date)
	assert.Equal(t, json.Number("100"), bars[0].Open)
	assert.Equal(t, json.Number("100.5"), bars[0].Close)
	assert.Equal(t, json.Number("1200"), bars[0].Volume)
}

func TestIntradayBars_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	bars, err := c.IntradayBars(context.Background(), "NODATA", from, to)

	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestIntradayBars_TooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.IntradayBars(context.Background(), "AAPL", from, to)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToManyRequests)
}

func TestIntradayBars_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.IntradayBars(context.Background(), "AAPL", from, to)

	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, string(statusErr.Body), "boom")
}

func TestIntradayBars_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.IntradayBars(context.Background(), "AAPL", from, to)

	require.Error(t, err)
}

func TestIntradayBars_SymbolIsPathEscaped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/historical-chart/1min/BRK.B", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.IntradayBars(context.Background(), "BRK.B", from, to)

	require.NoError(t, err)
}
