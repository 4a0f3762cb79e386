package neo4j

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/store"
)

func recordString(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recordInt(record *neo4j.Record, key string) int64 {
	if v, ok := record.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func recordFloat(record *neo4j.Record, key string) float64 {
	if v, ok := record.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func recordTime(record *neo4j.Record, key string) (time.Time, error) {
	raw := recordString(record, key)
	if raw == "" {
		return time.Time{}, nil
	}
	return store.ParseTime(raw)
}

func (d *DB) GetUser(ctx context.Context, email string) (*store.User, error) {
	records, err := d.read(ctx,
		"MATCH (u:User {email: $email}) RETURN u.name AS name, u.password AS password",
		map[string]any{"email": email})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "user %s", email)
	}
	return &store.User{
		Email:        email,
		Name:         recordString(records[0], "name"),
		PasswordHash: recordString(records[0], "password"),
	}, nil
}

func episodeFromRecord(record *neo4j.Record) (*store.Episode, error) {
	start, err := recordTime(record, "start")
	if err != nil {
		return nil, errors.Wrap(err, "bad start_time")
	}
	ep := &store.Episode{
		SessionID: recordString(record, "sid"),
		StartTime: start,
	}
	if raw := recordString(record, "end"); raw != "" {
		end, err := store.ParseTime(raw)
		if err != nil {
			return nil, errors.Wrap(err, "bad end_time")
		}
		ep.EndTime = &end
	}
	return ep, nil
}

const episodeReturn = " RETURN e.session_id AS sid, e.start_time AS start, e.end_time AS end"

func (d *DB) LatestEpisode(ctx context.Context, email string) (*store.Episode, error) {
	records, err := d.read(ctx,
		"MATCH (:User {email: $email})-[:HAS_EPISODE]->(e:Episode)"+
			episodeReturn+" ORDER BY e.start_time DESC LIMIT 1",
		map[string]any{"email": email})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "no episodes for %s", email)
	}
	return episodeFromRecord(records[0])
}

func (d *DB) OpenEpisodes(ctx context.Context, email string) ([]*store.Episode, error) {
	records, err := d.read(ctx,
		"MATCH (:User {email: $email})-[:HAS_EPISODE]->(e:Episode) WHERE e.end_time IS NULL"+
			episodeReturn+" ORDER BY e.start_time ASC",
		map[string]any{"email": email})
	if err != nil {
		return nil, err
	}
	episodes := make([]*store.Episode, 0, len(records))
	for _, record := range records {
		ep, err := episodeFromRecord(record)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

func (d *DB) TailInteraction(ctx context.Context, sessionID string) (*store.Interaction, error) {
	records, err := d.read(ctx, `
MATCH (:Episode {session_id: $sid})-[:HAS_INTERACTION]->(i:Interaction)
RETURN i.interaction_id AS id, i.timestamp AS ts, i.user_email AS user
ORDER BY i.timestamp DESC LIMIT 1`,
		map[string]any{"sid": sessionID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "no interactions in session %s", sessionID)
	}
	ts, err := recordTime(records[0], "ts")
	if err != nil {
		return nil, errors.Wrap(err, "bad timestamp")
	}
	return &store.Interaction{
		ID:        recordString(records[0], "id"),
		Timestamp: ts,
		UserEmail: recordString(records[0], "user"),
	}, nil
}

func (d *DB) UserCounts(ctx context.Context, email string) (*store.UserCounts, error) {
	records, err := d.read(ctx, `
MATCH (u:User {email: $email})
OPTIONAL MATCH (u)-[:HAS_EPISODE]->(e:Episode)
OPTIONAL MATCH (e)-[:HAS_INTERACTION]->(i:Interaction)
OPTIONAL MATCH (i)-[:HAS_USER_RESPONSE|HAS_BOT_RESPONSE]->(t:Text)
OPTIONAL MATCH (t)-[:HAS_A_SENTENCE]->(s:Sentence)
OPTIONAL MATCH (s)-[:HAS_A_WORD]->(w:Word)
RETURN count(DISTINCT e) AS episodes, count(DISTINCT i) AS interactions,
	count(DISTINCT t) AS texts, count(DISTINCT s) AS sentences,
	count(DISTINCT w) AS words`,
		map[string]any{"email": email})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "user %s", email)
	}
	return &store.UserCounts{
		Episodes:     recordInt(records[0], "episodes"),
		Interactions: recordInt(records[0], "interactions"),
		Texts:        recordInt(records[0], "texts"),
		Sentences:    recordInt(records[0], "sentences"),
		Words:        recordInt(records[0], "words"),
	}, nil
}

// layerLabels never identify a node kind on their own.
var layerLabels = map[string]bool{
	string(store.LabelSensoryMemory):    true,
	string(store.LabelSemanticMemory):   true,
	string(store.LabelPerceptualMemory): true,
	string(store.LabelEpisodicMemory):   true,
	string(store.LabelSocialMemory):     true,
}

func (d *DB) GraphHistogram(ctx context.Context) (*store.Histogram, error) {
	hist := &store.Histogram{
		Nodes: map[string]int64{},
		Edges: map[string]int64{},
	}

	records, err := d.read(ctx, "MATCH (n) RETURN labels(n) AS ls, count(*) AS c", nil)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		raw, _ := record.Get("ls")
		labels, ok := raw.([]any)
		if !ok {
			continue
		}
		c := recordInt(record, "c")
		for _, l := range labels {
			name, ok := l.(string)
			if !ok || layerLabels[name] {
				continue
			}
			hist.Nodes[name] += c
			break
		}
	}

	edgeRecords, err := d.read(ctx, "MATCH ()-[r]->() RETURN type(r) AS t, count(*) AS c", nil)
	if err != nil {
		return nil, err
	}
	for _, record := range edgeRecords {
		hist.Edges[recordString(record, "t")] = recordInt(record, "c")
	}
	return hist, nil
}

func (d *DB) ListHistory(ctx context.Context, email string) ([]*store.HistoryEntry, error) {
	records, err := d.read(ctx, `
MATCH (:User {email: $email})-[:HAS_EPISODE]->(e:Episode)-[:HAS_INTERACTION]->(i:Interaction)
OPTIONAL MATCH (i)-[:HAS_USER_RESPONSE]->(ut:Text)
OPTIONAL MATCH (i)-[:HAS_BOT_RESPONSE]->(bt:Text)
RETURN e.start_time AS start, e.end_time AS end, i.interaction_id AS id,
	ut.full_text AS user_message, bt.full_text AS bot_response
ORDER BY i.timestamp ASC`,
		map[string]any{"email": email})
	if err != nil {
		return nil, err
	}

	entries := make([]*store.HistoryEntry, 0, len(records))
	for _, record := range records {
		start, err := recordTime(record, "start")
		if err != nil {
			return nil, errors.Wrap(err, "bad start_time")
		}
		entry := &store.HistoryEntry{
			EpisodeStart:  start,
			InteractionID: recordString(record, "id"),
			UserMessage:   recordString(record, "user_message"),
			BotResponse:   recordString(record, "bot_response"),
		}
		if raw := recordString(record, "end"); raw != "" {
			end, err := store.ParseTime(raw)
			if err != nil {
				return nil, errors.Wrap(err, "bad end_time")
			}
			entry.EpisodeEnd = &end
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *DB) RecentSensorReadings(ctx context.Context, limit int) ([]*store.SensorReading, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := d.read(ctx, `
MATCH (r:SensorReading)
RETURN r.timestamp AS ts, r.temperature AS temperature, r.humidity AS humidity,
	r.status AS status, r.comfort_score AS comfort_score
ORDER BY r.timestamp DESC LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}

	readings := make([]*store.SensorReading, 0, len(records))
	for _, record := range records {
		ts, err := recordTime(record, "ts")
		if err != nil {
			return nil, errors.Wrap(err, "bad timestamp")
		}
		readings = append(readings, &store.SensorReading{
			Timestamp:    ts,
			Temperature:  recordFloat(record, "temperature"),
			Humidity:     recordFloat(record, "humidity"),
			Status:       recordString(record, "status"),
			ComfortScore: recordFloat(record, "comfort_score"),
		})
	}
	return readings, nil
}

// DeleteUserMemory removes the user's episodic subtree, detaches the user,
// and collects shared nodes nothing refers to anymore. The User node stays.
func (d *DB) DeleteUserMemory(ctx context.Context, email string) error {
	if _, err := d.GetUser(ctx, email); err != nil {
		return err
	}

	cascade := []string{`
MATCH (u:User {email: $email})
OPTIONAL MATCH (u)-[:HAS_EPISODE]->(e:Episode)
OPTIONAL MATCH (e)-[:HAS_INTERACTION]->(i:Interaction)
OPTIONAL MATCH (i)-[:HAS_USER_RESPONSE|HAS_BOT_RESPONSE]->(t:Text)
OPTIONAL MATCH (u)-[:HAS_SENSOR_READING]->(sr:SensorReading)
DETACH DELETE e, i, t, sr`,
		"MATCH (u:User {email: $email})-[r]-() DELETE r",
	}
	for _, stmt := range cascade {
		if _, err := d.write(ctx, stmt, map[string]any{"email": email}); err != nil {
			return err
		}
	}

	// Waves expose each other (text gone, sentence orphaned, word
	// orphaned), and the pure-semantic wave can need a second pass when
	// shared nodes chain, e.g. an IPAddress holding its Location.
	orphans := []string{
		"MATCH (n:Sentence) WHERE NOT ()-[:HAS_A_SENTENCE]->(n) DETACH DELETE n",
		"MATCH (n:Word) WHERE NOT ()-[:HAS_A_WORD]->(n) DETACH DELETE n",
		"MATCH (n:Description|Synonym|Antonym|Category|Domain|Sentiment|Mood|SentenceType|IPAddress|Location|Person) WHERE NOT ()-->(n) DETACH DELETE n",
	}
	for pass := 0; pass < 2; pass++ {
		for _, stmt := range orphans {
			if _, err := d.write(ctx, stmt, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
