package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/domain"
)

func setupTestStore(t *testing.T, stationID string) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
	})
	return NewStore(db, stationID, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completeObservation(at time.Time) domain.Observation {
	return domain.Observation{
		Record: domain.WeatherRecord{
			Temperature:   domain.Float(21.4),
			Pressure:      domain.Float(1013),
			Humidity:      domain.Float(55),
			WindSpeed:     domain.Float(3.6),
			WindDirection: domain.Float(240),
			Description:   domain.String("Mäßig bewölkt"),
			Condition:     domain.String("Clouds"),
			Icon:          domain.String("03d"),
		},
		ObservedAt: at,
	}
}

func TestStore_PublishAndLatest(t *testing.T) {
	s := setupTestStore(t, "balcony")
	ctx := context.Background()
	base := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Publish(ctx, completeObservation(base)))
	require.NoError(t, s.Publish(ctx, domain.Observation{
		Record:     domain.EmptyRecord(),
		ObservedAt: base.Add(15 * time.Minute),
		Err:        domain.NewFetchError(domain.KindOffline, nil),
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, base.Add(15*time.Minute), got[0].ObservedAt)
	assert.True(t, got[0].Record.IsEmpty())
	assert.ErrorIs(t, got[0].Err, domain.ErrOffline)

	assert.Equal(t, base, got[1].ObservedAt)
	assert.NoError(t, got[1].Err)
	assert.True(t, got[1].HasData())
	assert.Equal(t, completeObservation(base).Record, got[1].Record)
}

func TestStore_LatestLimit(t *testing.T) {
	s := setupTestStore(t, "balcony")
	ctx := context.Background()
	base := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, s.Publish(ctx, completeObservation(base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(4*time.Minute), got[0].ObservedAt)
	assert.Equal(t, base.Add(3*time.Minute), got[1].ObservedAt)
}

func TestStore_PartialRecordRoundTrip(t *testing.T) {
	s := setupTestStore(t, "balcony")
	ctx := context.Background()
	obs := domain.Observation{
		Record:     domain.WeatherRecord{Temperature: domain.Float(0), Description: domain.String("Nebel")},
		ObservedAt: time.Date(2024, 11, 2, 6, 0, 0, 0, time.UTC),
	}

	require.NoError(t, s.Publish(ctx, obs))

	got, err := s.Latest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, obs.Record, got[0].Record)
	assert.False(t, got[0].Record.IsComplete())
}

func TestStore_ScopedToStation(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewStore(db, "a", logger)
	b := NewStore(db, "b", logger)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, completeObservation(time.Now())))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, b.CheckReadiness(ctx))
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(db, "x", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Publish(context.Background(), completeObservation(time.Now())))
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	dsn, err := buildDSN(filepath.Join(dir, "w.db"))
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "w.db")+"?_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = buildDSN("file:" + filepath.Join(dir, "w.db") + "?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "w.db")+"?cache=shared&_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = buildDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)
}
