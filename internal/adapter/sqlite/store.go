// Package sqlite keeps a local history of weather observations.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/weather-station/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-observation.sql
var insertObservationSQL string

//go:embed sql/get-latest-observations.sql
var getLatestObservationsSQL string

//go:embed sql/count-observations.sql
var countObservationsSQL string

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*sql.DB, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer; an in-memory database also lives only on its connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Store writes observations for one station.
type Store struct {
	db        *sql.DB
	stationID string
	logger    *slog.Logger
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB, stationID string, logger *slog.Logger) *Store {
	return &Store{db: db, stationID: stationID, logger: logger}
}

// Publish inserts one row. Empty observations are kept along with the
// reason they are empty.
func (s *Store) Publish(ctx context.Context, obs domain.Observation) error {
	rec := obs.Record
	var kind any
	if k := domain.KindOf(obs.Err); k != 0 {
		kind = k.String()
	}

	_, err := s.db.ExecContext(ctx, insertObservationSQL,
		s.stationID,
		obs.ObservedAt.UTC().Format(time.RFC3339Nano),
		rec.Temperature, rec.Pressure, rec.Humidity, rec.WindSpeed, rec.WindDirection,
		rec.Description, rec.Condition, rec.Icon,
		kind,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// Latest returns up to limit observations, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, getLatestObservationsSQL, s.stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close observation rows", "error", err)
		}
	}()

	var out []domain.Observation
	for rows.Next() {
		var (
			obs  domain.Observation
			ts   string
			kind sql.NullString
		)
		rec := &obs.Record
		if err := rows.Scan(&ts,
			&rec.Temperature, &rec.Pressure, &rec.Humidity, &rec.WindSpeed, &rec.WindDirection,
			&rec.Description, &rec.Condition, &rec.Icon,
			&kind,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.ObservedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse observed_at %q: %w", ts, err)
		}
		if kind.Valid {
			obs.Err = domain.NewFetchError(domain.ParseFetchKind(kind.String), nil)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Count returns the number of stored observations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, countObservationsSQL, s.stationID).Scan(&n)
	return n, err
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
