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
	"fmt"
	"net/url"
	"time"

	"github.com/ajjensen13/config"
	"github.com/ajjensen13/gke"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/marketfill/internal/backfill"
	"github.com/ajjensen13/marketfill/internal/db"
	"github.com/ajjensen13/marketfill/internal/fmp"
	"github.com/ajjensen13/marketfill/internal/load"
	"github.com/ajjensen13/marketfill/internal/model"
)

const (
	dbSecretName  = "marketfill-db-secret.json"
	appConfigName = "marketfill-config-cm.json"
	apiSecretName = "marketfill-api-secret.json"
)

type appConfig struct {
	Symbols                 []string  `json:"symbols"`
	InitialBackfillDays     int       `json:"initial_backfill_days"`
	InterSymbolDelaySeconds float64   `json:"inter_symbol_delay_seconds"`
	OverrideDate            time.Time `json:"override_date"`
	Timezone                string    `json:"timezone"`
	ApiUrl                  string    `json:"api_url"`
	DataSourceName          string    `json:"data_source_name"`
	MigrationSourceURL      string    `json:"migration_source_url"`
}

type appSecrets struct {
	ApiKey string `json:"api_key"`
}

// defaultSymbols is used when the configuration provides no symbol list.
var defaultSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK.B", "V", "UNH",
	"JNJ", "WMT", "JPM", "MA", "PG", "XOM", "HD", "CVX", "MRK", "ABBV",
	"KO", "PEP", "COST", "AVGO", "TMO", "MCD", "CSCO", "ACN", "ABT", "CRM",
	"NFLX", "AMD", "NKE", "DHR", "TXN", "ORCL", "QCOM", "DIS", "PM", "VZ",
	"INTC", "UPS", "HON", "NEE", "CMCSA", "AMGN", "T", "IBM", "BA", "GE",
}

func provideAppConfig() (*appConfig, error) {
	var result appConfig
	err := config.InterfaceJson(appConfigName, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func provideAppSecrets() (*appSecrets, error) {
	var result appSecrets
	err := config.InterfaceJson(apiSecretName, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func provideDbSecrets() (*url.Userinfo, error) {
	ui, err := config.Userinfo(dbSecretName)
	if err != nil {
		return nil, err
	}
	return ui, nil
}

func provideTimezone(cfg *appConfig) (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

func provideFmpClient(cfg *appConfig, secrets *appSecrets) *fmp.Client {
	return fmp.NewClient(cfg.ApiUrl, secrets.ApiKey)
}

func provideToday(cfg *appConfig, tz *time.Location) time.Time {
	if !cfg.OverrideDate.IsZero() {
		return cfg.OverrideDate.In(tz)
	}
	now := time.Now().In(tz)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
}

func provideSymbols(cfg *appConfig) []string {
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}

	result := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if symbol == "" {
			continue
		}
		result = append(result, symbol)
	}
	return result
}

func provideBackfillConfig(cfg *appConfig, tz *time.Location, today time.Time) backfill.Config {
	return backfill.Config{
		Today:        today,
		BackfillDays: cfg.InitialBackfillDays,
		Delay:        time.Duration(cfg.InterSymbolDelaySeconds * float64(time.Second)),
		Timezone:     tz,
	}
}

// dbStore adapts the db and load packages to the orchestrator's BarStore.
type dbStore struct {
	pool *pgxpool.Pool
}

func (s *dbStore) LatestDates(ctx context.Context) (map[string]time.Time, error) {
	return db.LookupLatestDates(ctx, s.pool)
}

func (s *dbStore) SaveBars(ctx context.Context, bars []model.Bar) (int64, int, error) {
	return load.Bars(ctx, s.pool, bars)
}

func provideOrchestrator(client *fmp.Client, pool *pgxpool.Pool, cfg backfill.Config) *backfill.Orchestrator {
	return backfill.New(client, &dbStore{pool: pool}, cfg)
}

func provideDataSourceName(user *url.Userinfo, cfg *appConfig) (dsn *url.URL, err error) {
	dsn, err = url.Parse(cfg.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data source name: %w", err)
	}
	dsn.User = user

	return dsn, nil
}

func provideDbConnPool(ctx context.Context, dsn *url.URL) (ret *pgxpool.Pool, cleanup func(), err error) {
	pool, err := pgxpool.Connect(ctx, dsn.String())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, func() {}, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, pool.Close, nil
}

func provideMigrationSourceURL(cfg *appConfig) string {
	return cfg.MigrationSourceURL
}

func provideLogger() (lg gke.Logger, cleanup func()) {
	lg, cleanup, err := gke.NewLogger(context.Background())
	if err != nil {
		panic(err)
	}

	gke.LogEnv(lg)
	gke.LogMetadata(lg)

	return lg, cleanup
}

func provideMigrator(lg gke.Logger, databaseURL *url.URL, sourceURL string) (m *migrate.Migrate, err error) {
	m, err = migrate.New(sourceURL, databaseURL.String())
	if err != nil {
		return nil, err
	}
	m.Log = migrationLogger{lg}
	return m, err
}

type migrationLogger struct {
	gke.Logger
}

func (m migrationLogger) Printf(format string, v ...interface{}) {
	m.Defaultf(format, v...)
}

func (m migrationLogger) Verbose() bool {
	return false
}
