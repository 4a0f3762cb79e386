// Package store provides access to the labeled-graph memory store. All node
// kinds carry an identity key (see graph.go); writes go through merge-or-create
// primitives so repeated ingestion of the same content is idempotent.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by reads that match nothing. Handlers map it
	// to an "unknown"/"No" sentinel, never to a user-visible failure.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps store connectivity failures. It must never
	// propagate past a background-task boundary.
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnsupported is returned by drivers for operations outside their
	// support policy (see the sqlite driver notes).
	ErrUnsupported = errors.New("unsupported by driver")
)

// User is an account node. Never deleted by memory operations.
type User struct {
	Email        string
	Name         string
	PasswordHash string
}

// Episode is one login-to-logout session.
type Episode struct {
	SessionID string
	StartTime time.Time
	EndTime   *time.Time
}

// Interaction is one request/response turn within an episode.
type Interaction struct {
	ID        string
	Timestamp time.Time
	UserEmail string
}

// UserCounts are per-user aggregates over the memory graph.
type UserCounts struct {
	Episodes     int64
	Interactions int64
	Texts        int64
	Sentences    int64
	Words        int64
}

// Histogram is the global node/edge-type distribution.
type Histogram struct {
	Nodes map[string]int64
	Edges map[string]int64
}

// HistoryEntry is one logged turn, joined with its episode bounds.
type HistoryEntry struct {
	EpisodeStart  time.Time
	EpisodeEnd    *time.Time
	InteractionID string
	UserMessage   string
	BotResponse   string
}

// SensorReading is one persisted environmental observation.
type SensorReading struct {
	Timestamp    time.Time
	Temperature  float64
	Humidity     float64
	Status       string
	ComfortScore float64
}

// Driver is the boundary to a concrete graph backend. The four write
// primitives carry merge-or-create semantics keyed on identity properties;
// typed reads return ErrNotFound when nothing matches.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// Write primitives.
	MergeNode(ctx context.Context, labels []Label, key Props, extra Props) error
	CreateNode(ctx context.Context, labels []Label, props Props) error
	MergeEdge(ctx context.Context, from, to NodeRef, typ EdgeType, props Props) error
	SetNodeProps(ctx context.Context, ref NodeRef, props Props) error

	// Run executes a parametrized backend-native query. Drivers without a
	// query language return ErrUnsupported.
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// Typed reads.
	GetUser(ctx context.Context, email string) (*User, error)
	LatestEpisode(ctx context.Context, email string) (*Episode, error)
	OpenEpisodes(ctx context.Context, email string) ([]*Episode, error)
	TailInteraction(ctx context.Context, sessionID string) (*Interaction, error)
	UserCounts(ctx context.Context, email string) (*UserCounts, error)
	GraphHistogram(ctx context.Context) (*Histogram, error)
	ListHistory(ctx context.Context, email string) ([]*HistoryEntry, error)
	RecentSensorReadings(ctx context.Context, limit int) ([]*SensorReading, error)

	// DeleteUserMemory removes everything owned through memory edges by the
	// user, then collects shared nodes left without any owner. The User
	// node itself survives.
	DeleteUserMemory(ctx context.Context, email string) error
}

// Store provides graph access to the memory domain on top of a Driver.
type Store struct {
	driver Driver
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) MergeNode(ctx context.Context, labels []Label, key Props, extra Props) error {
	return s.driver.MergeNode(ctx, labels, key, extra)
}

func (s *Store) CreateNode(ctx context.Context, labels []Label, props Props) error {
	return s.driver.CreateNode(ctx, labels, props)
}

func (s *Store) MergeEdge(ctx context.Context, from, to NodeRef, typ EdgeType, props Props) error {
	return s.driver.MergeEdge(ctx, from, to, typ, props)
}

// UpsertUser merges the account node keyed by email.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	return s.driver.MergeNode(ctx, []Label{LabelUser},
		Props{"email": u.Email},
		Props{"name": u.Name, "password": u.PasswordHash})
}

func (s *Store) GetUser(ctx context.Context, email string) (*User, error) {
	return s.driver.GetUser(ctx, email)
}

// CreateEpisode opens a new episode for the user and chains it after the
// most recent prior one. Any episode still open for the user is closed
// first, so at most one open episode exists per user afterwards.
func (s *Store) CreateEpisode(ctx context.Context, email, sessionID string, start time.Time) error {
	open, err := s.driver.OpenEpisodes(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, ep := range open {
		slog.Warn("closing stale open episode", "user", email, "session", ep.SessionID)
		if err := s.EndEpisode(ctx, ep.SessionID, start); err != nil {
			return err
		}
	}

	prev, err := s.driver.LatestEpisode(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.driver.MergeNode(ctx, []Label{LabelUser}, Props{"email": email}, nil); err != nil {
		return err
	}
	if err := s.driver.MergeNode(ctx, []Label{LabelEpisode, LabelEpisodicMemory},
		Props{"session_id": sessionID},
		Props{"start_time": start}); err != nil {
		return err
	}
	if err := s.driver.MergeEdge(ctx,
		NodeRef{Labels: []Label{LabelUser}, Key: Props{"email": email}},
		NodeRef{Labels: []Label{LabelEpisode}, Key: Props{"session_id": sessionID}},
		EdgeHasEpisode, nil); err != nil {
		return err
	}
	if prev != nil && prev.SessionID != sessionID {
		if err := s.driver.MergeEdge(ctx,
			NodeRef{Labels: []Label{LabelEpisode}, Key: Props{"session_id": prev.SessionID}},
			NodeRef{Labels: []Label{LabelEpisode}, Key: Props{"session_id": sessionID}},
			EdgeNextEpisode, nil); err != nil {
			return err
		}
	}
	return nil
}

// EndEpisode stamps end_time on the episode.
func (s *Store) EndEpisode(ctx context.Context, sessionID string, end time.Time) error {
	return s.driver.SetNodeProps(ctx,
		NodeRef{Labels: []Label{LabelEpisode}, Key: Props{"session_id": sessionID}},
		Props{"end_time": end})
}

func (s *Store) LatestEpisode(ctx context.Context, email string) (*Episode, error) {
	return s.driver.LatestEpisode(ctx, email)
}

func (s *Store) TailInteraction(ctx context.Context, sessionID string) (*Interaction, error) {
	return s.driver.TailInteraction(ctx, sessionID)
}

// SaveRelation records a relation between a named person and the user in
// social memory. Symmetric kinds create edges both directions.
func (s *Store) SaveRelation(ctx context.Context, email, personName string, kind RelationKind) error {
	person := NodeRef{Labels: []Label{LabelPerson}, Key: Props{"name": personName}}
	user := NodeRef{Labels: []Label{LabelUser}, Key: Props{"email": email}}

	if err := s.driver.MergeNode(ctx, []Label{LabelPerson, LabelSocialMemory},
		Props{"name": personName}, nil); err != nil {
		return err
	}
	if err := s.driver.MergeEdge(ctx, person, user, kind.EdgeType(), nil); err != nil {
		return err
	}
	if kind.Symmetric() {
		return s.driver.MergeEdge(ctx, user, person, kind.EdgeType(), nil)
	}
	return nil
}

func (s *Store) UserCounts(ctx context.Context, email string) (*UserCounts, error) {
	return s.driver.UserCounts(ctx, email)
}

func (s *Store) GraphHistogram(ctx context.Context) (*Histogram, error) {
	return s.driver.GraphHistogram(ctx)
}

func (s *Store) ListHistory(ctx context.Context, email string) ([]*HistoryEntry, error) {
	return s.driver.ListHistory(ctx, email)
}

func (s *Store) RecentSensorReadings(ctx context.Context, limit int) ([]*SensorReading, error) {
	return s.driver.RecentSensorReadings(ctx, limit)
}

func (s *Store) DeleteUserMemory(ctx context.Context, email string) error {
	return s.driver.DeleteUserMemory(ctx, email)
}
