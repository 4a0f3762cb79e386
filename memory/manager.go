package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/store"
)

// SessionSnapshot is everything an interaction write needs from the
// request. Copied by value onto the queue so the background task never
// touches live session state.
type SessionSnapshot struct {
	Email     string
	Username  string
	SessionID string
	FactFile  string
	IP        string
}

// Manager keeps the episodic chains: episodes per user, interactions per
// episode, both linked in insertion order.
type Manager struct {
	store     *store.Store
	pipeline  *Pipeline
	worker    *Worker
	agentName string
}

// NewManager creates a new instance of Manager.
func NewManager(s *store.Store, pipeline *Pipeline, worker *Worker, agentName string) *Manager {
	return &Manager{
		store:     s,
		pipeline:  pipeline,
		worker:    worker,
		agentName: agentName,
	}
}

// StartEpisode opens a fresh episode for the user and returns its session
// id.
func (m *Manager) StartEpisode(ctx context.Context, email string) (string, error) {
	sessionID := shortuuid.New()
	if err := m.store.CreateEpisode(ctx, email, sessionID, time.Now()); err != nil {
		return "", err
	}
	return sessionID, nil
}

// EndEpisode closes the episode.
func (m *Manager) EndEpisode(ctx context.Context, sessionID string) error {
	return m.store.EndEpisode(ctx, sessionID, time.Now())
}

// EnqueueInteraction hands a full turn to the background worker. Returns
// false when the queue was full and the turn was dropped; the conversation
// goes on either way.
func (m *Manager) EnqueueInteraction(snap SessionSnapshot, userText, botText string) bool {
	return m.worker.Submit("record-interaction", func(ctx context.Context) error {
		return m.recordInteraction(ctx, snap, userText, botText)
	})
}

// recordInteraction ingests both utterances and links them under a new
// interaction at the tail of the episode's chain.
func (m *Manager) recordInteraction(ctx context.Context, snap SessionSnapshot, userText, botText string) error {
	userRef := store.NodeRef{
		Labels: []store.Label{store.LabelUser},
		Key:    store.Props{"email": snap.Email},
	}
	agentRef := store.NodeRef{
		Labels: []store.Label{store.LabelAgent},
		Key:    store.Props{"name": m.agentName},
	}
	if err := m.store.MergeNode(ctx, userRef.Labels, userRef.Key, nil); err != nil {
		return err
	}
	if err := m.store.MergeNode(ctx, agentRef.Labels, agentRef.Key, nil); err != nil {
		return err
	}

	// Distinct timestamps keep the two Text identities apart even when
	// the agent echoes the user.
	userTime := time.Now()
	botTime := userTime.Add(time.Millisecond)

	userTextRef, err := m.pipeline.IngestText(ctx, userText, snap.IP, userTime)
	if err != nil {
		return errors.Wrap(err, "failed to ingest user text")
	}
	botTextRef, err := m.pipeline.IngestText(ctx, botText, "", botTime)
	if err != nil {
		return errors.Wrap(err, "failed to ingest bot text")
	}
	// Only the agent authors its texts; user texts are owned through the
	// interaction's HAS_USER_RESPONSE link.
	if err := m.store.MergeEdge(ctx, agentRef, botTextRef, store.EdgeGenerated, nil); err != nil {
		return err
	}

	episodeRef := store.NodeRef{
		Labels: []store.Label{store.LabelEpisode},
		Key:    store.Props{"session_id": snap.SessionID},
	}
	if err := m.store.MergeEdge(ctx, userRef, episodeRef, store.EdgeHasEpisode, nil); err != nil {
		return err
	}

	// Find the chain tail before creating the new interaction.
	prev, err := m.store.TailInteraction(ctx, snap.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	interactionID := uuid.NewString()
	interactionRef := store.NodeRef{
		Labels: []store.Label{store.LabelInteraction},
		Key:    store.Props{"interaction_id": interactionID},
	}
	if err := m.store.MergeNode(ctx,
		[]store.Label{store.LabelInteraction, store.LabelEpisodicMemory},
		interactionRef.Key,
		store.Props{"timestamp": userTime, "user_email": snap.Email}); err != nil {
		return err
	}
	if err := m.store.MergeEdge(ctx, episodeRef, interactionRef, store.EdgeHasInteraction, nil); err != nil {
		return err
	}
	if prev != nil {
		prevRef := store.NodeRef{
			Labels: []store.Label{store.LabelInteraction},
			Key:    store.Props{"interaction_id": prev.ID},
		}
		if err := m.store.MergeEdge(ctx, prevRef, interactionRef, store.EdgeNextInteraction, nil); err != nil {
			return err
		}
	}

	if err := m.store.MergeEdge(ctx, interactionRef, userTextRef, store.EdgeHasUserResponse, nil); err != nil {
		return err
	}
	return m.store.MergeEdge(ctx, interactionRef, botTextRef, store.EdgeHasBotResponse, nil)
}
