package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	p := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := NewDB(p)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustNode(t *testing.T, db *DB, labels []store.Label, key, extra store.Props) {
	t.Helper()
	require.NoError(t, db.MergeNode(context.Background(), labels, key, extra))
}

func mustEdge(t *testing.T, db *DB, from, to store.NodeRef, typ store.EdgeType) {
	t.Helper()
	require.NoError(t, db.MergeEdge(context.Background(), from, to, typ, nil))
}

func userRef(email string) store.NodeRef {
	return store.NodeRef{Labels: []store.Label{store.LabelUser}, Key: store.Props{"email": email}}
}

func ref(label store.Label, key store.Props) store.NodeRef {
	return store.NodeRef{Labels: []store.Label{label}, Key: key}
}

func TestMergeNodeIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustNode(t, db, []store.Label{store.LabelUser}, store.Props{"email": "ada@example.com"},
		store.Props{"name": "Ada"})
	mustNode(t, db, []store.Label{store.LabelUser}, store.Props{"email": "ada@example.com"},
		store.Props{"name": "Ada Lovelace"})

	user, err := db.GetUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)

	hist, err := db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Nodes["User"])
}

func TestMergeNodeUnionsLabels(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustNode(t, db, []store.Label{store.LabelWord}, store.Props{"text": "river"}, nil)
	mustNode(t, db, []store.Label{store.LabelWord, store.LabelSemanticMemory},
		store.Props{"text": "river"}, nil)

	hist, err := db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Nodes["Word"])
}

func TestMergeEdgeMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustNode(t, db, []store.Label{store.LabelUser}, store.Props{"email": "ada@example.com"}, nil)

	err := db.MergeEdge(ctx, userRef("ada@example.com"),
		ref(store.LabelEpisode, store.Props{"session_id": "nope"}),
		store.EdgeHasEpisode, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMergeEdgeIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustNode(t, db, []store.Label{store.LabelUser}, store.Props{"email": "ada@example.com"}, nil)
	mustNode(t, db, []store.Label{store.LabelEpisode}, store.Props{"session_id": "sess-1"}, nil)

	epRef := ref(store.LabelEpisode, store.Props{"session_id": "sess-1"})
	mustEdge(t, db, userRef("ada@example.com"), epRef, store.EdgeHasEpisode)
	mustEdge(t, db, userRef("ada@example.com"), epRef, store.EdgeHasEpisode)

	hist, err := db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Edges["HAS_EPISODE"])
}

func TestEpisodeLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := store.New(db)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateEpisode(ctx, "ada@example.com", "sess-1", base))

	open, err := db.OpenEpisodes(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "sess-1", open[0].SessionID)

	require.NoError(t, s.EndEpisode(ctx, "sess-1", base.Add(time.Hour)))
	open, err = db.OpenEpisodes(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, s.CreateEpisode(ctx, "ada@example.com", "sess-2", base.Add(2*time.Hour)))
	latest, err := db.LatestEpisode(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", latest.SessionID)

	hist, err := db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Edges["NEXT_EPISODE"])
}

func TestTailInteraction(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustNode(t, db, []store.Label{store.LabelEpisode}, store.Props{"session_id": "sess-1"}, nil)
	epRef := ref(store.LabelEpisode, store.Props{"session_id": "sess-1"})

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"i-1", "i-2", "i-3"} {
		mustNode(t, db, []store.Label{store.LabelInteraction},
			store.Props{"interaction_id": id},
			store.Props{"timestamp": base.Add(time.Duration(i) * time.Minute), "user_email": "ada@example.com"})
		mustEdge(t, db, epRef, ref(store.LabelInteraction, store.Props{"interaction_id": id}), store.EdgeHasInteraction)
	}

	tail, err := db.TailInteraction(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "i-3", tail.ID)
	assert.Equal(t, "ada@example.com", tail.UserEmail)

	_, err = db.TailInteraction(ctx, "sess-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// buildTurn wires user -> episode -> interaction -> text -> sentence -> word
// for one user, reusing whatever shared nodes already exist.
func buildTurn(t *testing.T, db *DB, email, session, interactionID, text, sentence, word string) {
	t.Helper()
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mustNode(t, db, []store.Label{store.LabelUser}, store.Props{"email": email}, nil)
	mustNode(t, db, []store.Label{store.LabelEpisode}, store.Props{"session_id": session},
		store.Props{"start_time": ts})
	mustNode(t, db, []store.Label{store.LabelInteraction}, store.Props{"interaction_id": interactionID},
		store.Props{"timestamp": ts, "user_email": email})
	mustNode(t, db, []store.Label{store.LabelText, store.LabelSensoryMemory},
		store.Props{"full_text": text}, nil)
	mustNode(t, db, []store.Label{store.LabelSentence}, store.Props{"sentence_text": sentence}, nil)
	mustNode(t, db, []store.Label{store.LabelWord}, store.Props{"word_text": word}, nil)

	mustEdge(t, db, userRef(email), ref(store.LabelEpisode, store.Props{"session_id": session}), store.EdgeHasEpisode)
	mustEdge(t, db, ref(store.LabelEpisode, store.Props{"session_id": session}),
		ref(store.LabelInteraction, store.Props{"interaction_id": interactionID}), store.EdgeHasInteraction)
	mustEdge(t, db, ref(store.LabelInteraction, store.Props{"interaction_id": interactionID}),
		ref(store.LabelText, store.Props{"full_text": text}), store.EdgeHasUserResponse)
	mustEdge(t, db, ref(store.LabelText, store.Props{"full_text": text}),
		ref(store.LabelSentence, store.Props{"sentence_text": sentence}), store.EdgeHasSentence)
	mustEdge(t, db, ref(store.LabelSentence, store.Props{"sentence_text": sentence}),
		ref(store.LabelWord, store.Props{"word_text": word}), store.EdgeHasWord)
}

func TestUserCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	buildTurn(t, db, "ada@example.com", "sess-1", "i-1", "Rivers are long.", "Rivers are long.", "rivers")

	counts, err := db.UserCounts(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Episodes)
	assert.Equal(t, int64(1), counts.Interactions)
	assert.Equal(t, int64(1), counts.Texts)
	assert.Equal(t, int64(1), counts.Sentences)
	assert.Equal(t, int64(1), counts.Words)

	_, err = db.UserCounts(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	buildTurn(t, db, "ada@example.com", "sess-1", "i-1", "Hello there.", "Hello there.", "hello")
	mustNode(t, db, []store.Label{store.LabelText}, store.Props{"full_text": "Hi, Ada."}, nil)
	mustEdge(t, db, ref(store.LabelInteraction, store.Props{"interaction_id": "i-1"}),
		ref(store.LabelText, store.Props{"full_text": "Hi, Ada."}), store.EdgeHasBotResponse)

	entries, err := db.ListHistory(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "i-1", entries[0].InteractionID)
	assert.Equal(t, "Hello there.", entries[0].UserMessage)
	assert.Equal(t, "Hi, Ada.", entries[0].BotResponse)
}

func TestDeleteUserMemory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	// Two users whose texts share one sentence and word.
	buildTurn(t, db, "ada@example.com", "sess-a", "i-a", "The river is long.", "Shared thought.", "shared")
	buildTurn(t, db, "bob@example.com", "sess-b", "i-b", "A different text.", "Shared thought.", "shared")

	require.NoError(t, db.DeleteUserMemory(ctx, "ada@example.com"))

	// Ada's subtree is gone but she keeps her account.
	_, err := db.GetUser(ctx, "ada@example.com")
	require.NoError(t, err)
	counts, err := db.UserCounts(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Zero(t, counts.Episodes)
	assert.Zero(t, counts.Texts)

	// The shared sentence survives through Bob's text.
	hist, err := db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.Nodes["Sentence"])
	assert.Equal(t, int64(1), hist.Nodes["Word"])
	assert.Zero(t, hist.Nodes["Episode"])
	assert.Equal(t, int64(1), hist.Nodes["Text"])

	require.NoError(t, db.DeleteUserMemory(ctx, "bob@example.com"))
	hist, err = db.GraphHistogram(ctx)
	require.NoError(t, err)
	assert.Zero(t, hist.Nodes["Sentence"])
	assert.Zero(t, hist.Nodes["Word"])

	err = db.DeleteUserMemory(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecentSensorReadings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.CreateNode(ctx,
			[]store.Label{store.LabelSensorReading, store.LabelSensoryMemory},
			store.Props{
				"timestamp":     base.Add(time.Duration(i) * time.Minute),
				"temperature":   20.0 + float64(i),
				"humidity":      40.0,
				"status":        "ok",
				"comfort_score": 80.0,
			}))
	}

	readings, err := db.RecentSensorReadings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 22.0, readings[0].Temperature)
	assert.Equal(t, 21.0, readings[1].Temperature)
}

func TestRunUnsupported(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Run(context.Background(), "MATCH (n) RETURN n", nil)
	assert.ErrorIs(t, err, store.ErrUnsupported)
}
