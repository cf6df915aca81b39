package rtc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-station/internal/domain"
)

func TestFileClock_SetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rtc.json")
	c := NewFileClock(path)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.ErrorIs(t, err, ErrNotSet)

	dt := domain.RTCDateTime{Year: 2024, Month: 7, Day: 15, Weekday: 1, Hour: 12, Minute: 30, Second: 5}
	require.NoError(t, c.Set(ctx, dt))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, dt, got)

	next := dt
	next.Second = 6
	require.NoError(t, c.Set(ctx, next))
	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileClock_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtc.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileClock(path).Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotSet)
}

func TestFileClock_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewFileClock(filepath.Join(blocker, "rtc.json")).Set(context.Background(), domain.RTCDateTime{})
	require.Error(t, err)
}
