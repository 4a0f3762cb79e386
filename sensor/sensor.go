// Package sensor polls an environment sensor endpoint and folds validated
// readings into sensory memory.
package sensor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/internal/metrics"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/store"
)

// Accepted reading ranges. Wider than any single sensor model so the
// poller works with whatever is wired to the endpoint.
const (
	minTemperature = -40.0
	maxTemperature = 80.0
	minHumidity    = 0.0
	maxHumidity    = 100.0
)

// Reading is one validated observation.
type Reading struct {
	Temperature float64
	Humidity    float64
	Status      string
	Timestamp   time.Time
}

// Environment is a reading enriched with derived comfort metrics.
type Environment struct {
	Reading
	ComfortScore    float64
	Recommendations []string
}

// Manager polls the endpoint on an interval, caches the latest valid
// reading and persists each one through the background worker.
type Manager struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	store    *store.Store
	worker   *memory.Worker

	mu     sync.RWMutex
	latest *Reading
	email  string

	wg sync.WaitGroup
}

// NewManager creates a new instance of Manager. An empty endpoint yields a
// manager that never polls; lookups then report no reading.
func NewManager(endpoint string, interval time.Duration, s *store.Store, w *memory.Worker) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		store:    s,
		worker:   w,
	}
}

// Start launches the poll loop. It returns immediately; cancel ctx to stop
// and call Wait to drain.
func (m *Manager) Start(ctx context.Context) {
	if m.endpoint == "" {
		slog.Info("sensor polling disabled, no endpoint configured")
		return
	}
	m.wg.Add(1)
	go m.loop(ctx)
}

// Wait blocks until the poll loop has stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// SetCurrentUser sets the user future readings are linked to. Empty
// detaches.
func (m *Manager) SetCurrentUser(email string) {
	m.mu.Lock()
	m.email = email
	m.mu.Unlock()
}

// Latest returns the most recent valid reading, ok false when none has
// arrived yet.
func (m *Manager) Latest() (Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Reading{}, false
	}
	return *m.latest, true
}

// Analyze derives comfort metrics from the latest reading. Nil when no
// valid reading is cached.
func (m *Manager) Analyze() *Environment {
	reading, ok := m.Latest()
	if !ok || reading.Status != "valid" {
		return nil
	}
	return &Environment{
		Reading:         reading,
		ComfortScore:    ComfortScore(reading.Temperature, reading.Humidity),
		Recommendations: Recommendations(reading.Temperature, reading.Humidity),
	}
}

// RecentReadings lists the most recently persisted readings, newest first.
func (m *Manager) RecentReadings(ctx context.Context, limit int) ([]*store.SensorReading, error) {
	return m.store.RecentSensorReadings(ctx, limit)
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// wireReading is the endpoint payload. Pointers distinguish missing values
// from zero readings.
type wireReading struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Status      string   `json:"status"`
}

func (m *Manager) poll(ctx context.Context) {
	reading, err := m.fetch(ctx)
	if err != nil {
		slog.Warn("sensor poll failed", slog.String("error", err.Error()))
		return
	}
	if err := validate(reading); err != nil {
		metrics.SensorReadingsDropped.Inc()
		slog.Warn("dropping sensor reading", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	m.latest = reading
	email := m.email
	m.mu.Unlock()

	m.persist(*reading, email)
}

func (m *Manager) fetch(ctx context.Context) (*Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sensor request")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach sensor endpoint")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("sensor endpoint returned status %d", resp.StatusCode)
	}

	var wire wireReading
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "failed to decode sensor payload")
	}
	if wire.Temperature == nil || wire.Humidity == nil {
		return nil, errors.New("sensor payload missing temperature or humidity")
	}

	status := wire.Status
	if status == "" {
		status = "valid"
	}
	return &Reading{
		Temperature: *wire.Temperature,
		Humidity:    *wire.Humidity,
		Status:      status,
		Timestamp:   time.Now(),
	}, nil
}

func validate(r *Reading) error {
	if r.Temperature < minTemperature || r.Temperature > maxTemperature {
		return errors.Errorf("temperature %.1f out of range", r.Temperature)
	}
	if r.Humidity < minHumidity || r.Humidity > maxHumidity {
		return errors.Errorf("humidity %.1f out of range", r.Humidity)
	}
	return nil
}

// persist hands the reading to the worker. Readings are keyed on their
// timestamp so re-delivery cannot duplicate them.
func (m *Manager) persist(reading Reading, email string) {
	if m.worker == nil || m.store == nil {
		return
	}
	m.worker.Submit("persist-sensor-reading", func(ctx context.Context) error {
		key := store.Props{"timestamp": reading.Timestamp}
		extra := store.Props{
			"temperature":   reading.Temperature,
			"humidity":      reading.Humidity,
			"status":        reading.Status,
			"comfort_score": ComfortScore(reading.Temperature, reading.Humidity),
		}
		labels := []store.Label{store.LabelSensorReading, store.LabelSensoryMemory}
		if err := m.store.MergeNode(ctx, labels, key, extra); err != nil {
			return err
		}
		if email == "" {
			return nil
		}
		userRef := store.NodeRef{
			Labels: []store.Label{store.LabelUser},
			Key:    store.Props{"email": email},
		}
		readingRef := store.NodeRef{Labels: labels, Key: key}
		return m.store.MergeEdge(ctx, userRef, readingRef, store.EdgeHasSensorReading, nil)
	})
}

// ComfortScore rates the environment 0..100. Optimum sits at 23 °C and
// 50 % relative humidity.
func ComfortScore(temp, humidity float64) float64 {
	tempScore := clamp(100 - abs(temp-23)*10)
	humidityScore := clamp(100 - abs(humidity-50)*2)
	return (tempScore + humidityScore) / 2
}

// Recommendations suggests adjustments for readings outside the comfort
// band.
func Recommendations(temp, humidity float64) []string {
	var out []string
	if temp > 26 {
		out = append(out, "Room temperature is high - consider cooling")
	} else if temp < 20 {
		out = append(out, "Room temperature is low - consider warming")
	}
	if humidity > 60 {
		out = append(out, "Humidity is high - consider dehumidifying")
	} else if humidity < 40 {
		out = append(out, "Humidity is low - consider humidifying")
	}
	if len(out) == 0 {
		out = append(out, "Environmental conditions are optimal")
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
