package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/store"
)

func propString(props map[string]any, name string) string {
	if v, ok := props[name].(string); ok {
		return v
	}
	return ""
}

func propFloat(props map[string]any, name string) float64 {
	if v, ok := props[name].(float64); ok {
		return v
	}
	return 0
}

func (d *DB) GetUser(ctx context.Context, email string) (*store.User, error) {
	identity, err := canonicalIdentity(store.Props{"email": email})
	if err != nil {
		return nil, err
	}
	var rawProps string
	err = d.db.QueryRowContext(ctx,
		"SELECT props FROM node WHERE kind = ? AND identity = ?",
		string(store.LabelUser), identity).Scan(&rawProps)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "user %s", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user")
	}
	props, err := decodeProps(rawProps)
	if err != nil {
		return nil, err
	}
	return &store.User{
		Email:        email,
		Name:         propString(props, "name"),
		PasswordHash: propString(props, "password"),
	}, nil
}

func episodeFromProps(sessionID string, props map[string]any) (*store.Episode, error) {
	ep := &store.Episode{SessionID: sessionID}
	if raw := propString(props, "start_time"); raw != "" {
		t, err := store.ParseTime(raw)
		if err != nil {
			return nil, errors.Wrap(err, "bad start_time")
		}
		ep.StartTime = t
	}
	if raw := propString(props, "end_time"); raw != "" {
		t, err := store.ParseTime(raw)
		if err != nil {
			return nil, errors.Wrap(err, "bad end_time")
		}
		ep.EndTime = &t
	}
	return ep, nil
}

const episodeQuery = `
SELECT e.props FROM node e
JOIN edge g ON g.target = e.id AND g.type = 'HAS_EPISODE'
JOIN node u ON u.id = g.source AND u.kind = 'User' AND u.identity = ?
WHERE e.kind = 'Episode'`

func (d *DB) LatestEpisode(ctx context.Context, email string) (*store.Episode, error) {
	identity, err := canonicalIdentity(store.Props{"email": email})
	if err != nil {
		return nil, err
	}
	var rawProps string
	err = d.db.QueryRowContext(ctx,
		episodeQuery+" ORDER BY json_extract(e.props, '$.start_time') DESC LIMIT 1",
		identity).Scan(&rawProps)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "no episodes for %s", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query episode")
	}
	props, err := decodeProps(rawProps)
	if err != nil {
		return nil, err
	}
	return episodeFromProps(propString(props, "session_id"), props)
}

func (d *DB) OpenEpisodes(ctx context.Context, email string) ([]*store.Episode, error) {
	identity, err := canonicalIdentity(store.Props{"email": email})
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		episodeQuery+" AND json_extract(e.props, '$.end_time') IS NULL ORDER BY json_extract(e.props, '$.start_time') ASC",
		identity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query open episodes")
	}
	defer rows.Close()

	var episodes []*store.Episode
	for rows.Next() {
		var rawProps string
		if err := rows.Scan(&rawProps); err != nil {
			return nil, errors.Wrap(err, "failed to scan episode")
		}
		props, err := decodeProps(rawProps)
		if err != nil {
			return nil, err
		}
		ep, err := episodeFromProps(propString(props, "session_id"), props)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func (d *DB) TailInteraction(ctx context.Context, sessionID string) (*store.Interaction, error) {
	identity, err := canonicalIdentity(store.Props{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	var rawProps string
	err = d.db.QueryRowContext(ctx, `
SELECT i.props FROM node i
JOIN edge g ON g.target = i.id AND g.type = 'HAS_INTERACTION'
JOIN node e ON e.id = g.source AND e.kind = 'Episode' AND e.identity = ?
WHERE i.kind = 'Interaction'
ORDER BY json_extract(i.props, '$.timestamp') DESC LIMIT 1`,
		identity).Scan(&rawProps)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "no interactions in session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query interaction")
	}
	props, err := decodeProps(rawProps)
	if err != nil {
		return nil, err
	}
	interaction := &store.Interaction{
		ID:        propString(props, "interaction_id"),
		UserEmail: propString(props, "user_email"),
	}
	if raw := propString(props, "timestamp"); raw != "" {
		t, err := store.ParseTime(raw)
		if err != nil {
			return nil, errors.Wrap(err, "bad timestamp")
		}
		interaction.Timestamp = t
	}
	return interaction, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// children returns distinct ids reachable from the sources over one hop of
// the given edge types, restricted to a node kind.
func children(ctx context.Context, q querier, sources []int64, kind store.Label, edgeTypes ...store.EdgeType) ([]int64, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT DISTINCT n.id FROM node n
JOIN edge g ON g.target = n.id AND g.type IN (%s)
WHERE n.kind = ? AND g.source IN (%s)`,
		placeholders(len(edgeTypes)), placeholders(len(sources)))

	// Args bind by marker position: edge types first, then kind, then ids.
	args := make([]any, 0, len(sources)+len(edgeTypes)+1)
	for _, t := range edgeTypes {
		args = append(args, string(t))
	}
	args = append(args, string(kind))
	for _, id := range sources {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query children")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (d *DB) nodeID(ctx context.Context, ref store.NodeRef) (int64, error) {
	return lookupID(ctx, d.db, ref)
}

func (d *DB) UserCounts(ctx context.Context, email string) (*store.UserCounts, error) {
	uid, err := d.nodeID(ctx, store.NodeRef{
		Labels: []store.Label{store.LabelUser},
		Key:    store.Props{"email": email},
	})
	if err != nil {
		return nil, err
	}

	episodes, err := children(ctx, d.db, []int64{uid}, store.LabelEpisode, store.EdgeHasEpisode)
	if err != nil {
		return nil, err
	}
	interactions, err := children(ctx, d.db, episodes, store.LabelInteraction, store.EdgeHasInteraction)
	if err != nil {
		return nil, err
	}
	texts, err := children(ctx, d.db, interactions, store.LabelText,
		store.EdgeHasUserResponse, store.EdgeHasBotResponse)
	if err != nil {
		return nil, err
	}
	sentences, err := children(ctx, d.db, texts, store.LabelSentence, store.EdgeHasSentence)
	if err != nil {
		return nil, err
	}
	words, err := children(ctx, d.db, sentences, store.LabelWord, store.EdgeHasWord)
	if err != nil {
		return nil, err
	}

	return &store.UserCounts{
		Episodes:     int64(len(episodes)),
		Interactions: int64(len(interactions)),
		Texts:        int64(len(texts)),
		Sentences:    int64(len(sentences)),
		Words:        int64(len(words)),
	}, nil
}

func (d *DB) GraphHistogram(ctx context.Context) (*store.Histogram, error) {
	hist := &store.Histogram{
		Nodes: map[string]int64{},
		Edges: map[string]int64{},
	}

	rows, err := d.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM node GROUP BY kind")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count nodes")
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan node count")
		}
		hist.Nodes[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := d.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM edge GROUP BY type")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count edges")
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var typ string
		var count int64
		if err := edgeRows.Scan(&typ, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan edge count")
		}
		hist.Edges[typ] = count
	}
	return hist, edgeRows.Err()
}

func (d *DB) ListHistory(ctx context.Context, email string) ([]*store.HistoryEntry, error) {
	identity, err := canonicalIdentity(store.Props{"email": email})
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT e.props, i.props,
	(SELECT t.props FROM edge ut JOIN node t ON t.id = ut.target
	 WHERE ut.source = i.id AND ut.type = 'HAS_USER_RESPONSE' LIMIT 1),
	(SELECT t.props FROM edge bt JOIN node t ON t.id = bt.target
	 WHERE bt.source = i.id AND bt.type = 'HAS_BOT_RESPONSE' LIMIT 1)
FROM node i
JOIN edge gi ON gi.target = i.id AND gi.type = 'HAS_INTERACTION'
JOIN node e ON e.id = gi.source AND e.kind = 'Episode'
JOIN edge ge ON ge.target = e.id AND ge.type = 'HAS_EPISODE'
JOIN node u ON u.id = ge.source AND u.kind = 'User' AND u.identity = ?
WHERE i.kind = 'Interaction'
ORDER BY json_extract(i.props, '$.timestamp') ASC`,
		identity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var entries []*store.HistoryEntry
	for rows.Next() {
		var rawEpisode, rawInteraction string
		var rawUserText, rawBotText sql.NullString
		if err := rows.Scan(&rawEpisode, &rawInteraction, &rawUserText, &rawBotText); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}
		episodeProps, err := decodeProps(rawEpisode)
		if err != nil {
			return nil, err
		}
		interactionProps, err := decodeProps(rawInteraction)
		if err != nil {
			return nil, err
		}
		episode, err := episodeFromProps(propString(episodeProps, "session_id"), episodeProps)
		if err != nil {
			return nil, err
		}
		entry := &store.HistoryEntry{
			EpisodeStart:  episode.StartTime,
			EpisodeEnd:    episode.EndTime,
			InteractionID: propString(interactionProps, "interaction_id"),
		}
		if rawUserText.Valid {
			props, err := decodeProps(rawUserText.String)
			if err != nil {
				return nil, err
			}
			entry.UserMessage = propString(props, "full_text")
		}
		if rawBotText.Valid {
			props, err := decodeProps(rawBotText.String)
			if err != nil {
				return nil, err
			}
			entry.BotResponse = propString(props, "full_text")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (d *DB) RecentSensorReadings(ctx context.Context, limit int) ([]*store.SensorReading, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT props FROM node WHERE kind = 'SensorReading'
ORDER BY json_extract(props, '$.timestamp') DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sensor readings")
	}
	defer rows.Close()

	var readings []*store.SensorReading
	for rows.Next() {
		var rawProps string
		if err := rows.Scan(&rawProps); err != nil {
			return nil, errors.Wrap(err, "failed to scan sensor reading")
		}
		props, err := decodeProps(rawProps)
		if err != nil {
			return nil, err
		}
		reading := &store.SensorReading{
			Temperature:  propFloat(props, "temperature"),
			Humidity:     propFloat(props, "humidity"),
			Status:       propString(props, "status"),
			ComfortScore: propFloat(props, "comfort_score"),
		}
		if raw := propString(props, "timestamp"); raw != "" {
			t, err := store.ParseTime(raw)
			if err != nil {
				return nil, errors.Wrap(err, "bad timestamp")
			}
			reading.Timestamp = t
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}
