package sensor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/store"
	"github.com/mnemora/mnemora/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db)
}

func serveReading(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollCachesAndPersists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := memory.NewWorker(1, 8)
	srv := serveReading(t, `{"temperature": 22.5, "humidity": 55, "status": "valid"}`)

	m := NewManager(srv.URL, time.Minute, s, w)
	require.NoError(t, s.UpsertUser(ctx, &store.User{Email: "ada@example.com", Name: "Ada"}))
	m.SetCurrentUser("ada@example.com")
	m.poll(ctx)

	reading, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, 22.5, reading.Temperature)
	assert.Equal(t, 55.0, reading.Humidity)
	assert.Equal(t, "valid", reading.Status)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(shutdownCtx))

	readings, err := s.RecentSensorReadings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 22.5, readings[0].Temperature)
	assert.Equal(t, "valid", readings[0].Status)
	assert.InDelta(t, 92.5, readings[0].ComfortScore, 0.01)

	hist, err := s.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Edges["HAS_SENSOR_READING"])
}

func TestPollDropsOutOfRange(t *testing.T) {
	ctx := context.Background()
	srv := serveReading(t, `{"temperature": 120, "humidity": 55, "status": "valid"}`)

	m := NewManager(srv.URL, time.Minute, nil, nil)
	m.poll(ctx)

	_, ok := m.Latest()
	assert.False(t, ok)
}

func TestPollMissingValues(t *testing.T) {
	ctx := context.Background()
	srv := serveReading(t, `{"status": "valid"}`)

	m := NewManager(srv.URL, time.Minute, nil, nil)
	m.poll(ctx)

	_, ok := m.Latest()
	assert.False(t, ok)
}

func TestAnalyze(t *testing.T) {
	m := NewManager("", time.Minute, nil, nil)
	assert.Nil(t, m.Analyze())

	m.latest = &Reading{Temperature: 30, Humidity: 70, Status: "valid", Timestamp: time.Now()}
	env := m.Analyze()
	require.NotNil(t, env)
	assert.InDelta(t, 45.0, env.ComfortScore, 0.01)
	assert.Equal(t, []string{
		"Room temperature is high - consider cooling",
		"Humidity is high - consider dehumidifying",
	}, env.Recommendations)
}

func TestComfortScore(t *testing.T) {
	assert.Equal(t, 100.0, ComfortScore(23, 50))
	assert.Equal(t, 0.0, ComfortScore(60, 0))
}

func TestRecommendationsOptimal(t *testing.T) {
	assert.Equal(t, []string{"Environmental conditions are optimal"}, Recommendations(23, 50))
}
