// Package neo4j implements the graph store on a Neo4j server over bolt.
// Labels and edge types come from closed constant sets, so splicing them
// into Cypher text is safe; everything caller-supplied travels as a
// parameter.
package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/store"
)

// DB is the Neo4j graph driver.
type DB struct {
	driver  neo4j.DriverWithContext
	profile *profile.Profile
}

// NewDB connects to the server named by the profile DSN and verifies
// connectivity before returning.
func NewDB(ctx context.Context, profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	driver, err := neo4j.NewDriverWithContext(profile.DSN,
		neo4j.BasicAuth(profile.Neo4jUser, profile.Neo4jPass, ""))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create driver for %s", profile.DSN)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, errors.Wrap(store.ErrUnavailable, err.Error())
	}
	return &DB{driver: driver, profile: profile}, nil
}

// Single-property identity keys per node kind, enforced as uniqueness
// constraints. Kinds with composite keys (Text, Word, Sentiment, Location)
// rely on MERGE matching the full key instead.
var uniqueKeys = map[store.Label]string{
	store.LabelUser:         "email",
	store.LabelAgent:        "name",
	store.LabelEpisode:      "session_id",
	store.LabelInteraction:  "interaction_id",
	store.LabelSentence:     "sentence_text",
	store.LabelDescription:  "description",
	store.LabelSynonym:      "synonym",
	store.LabelAntonym:      "antonym",
	store.LabelCategory:     "name",
	store.LabelDomain:       "domain_name",
	store.LabelMood:         "mood",
	store.LabelSentenceType: "type",
	store.LabelIPAddress:    "ip",
	store.LabelPerson:       "name",
}

// Migrate creates the uniqueness constraints that back merge semantics.
func (d *DB) Migrate(ctx context.Context) error {
	labels := make([]store.Label, 0, len(uniqueKeys))
	for label := range uniqueKeys {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	for _, label := range labels {
		stmt := fmt.Sprintf(
			"CREATE CONSTRAINT %s_%s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			strings.ToLower(string(label)), uniqueKeys[label], label, uniqueKeys[label])
		if _, err := d.write(ctx, stmt, nil); err != nil {
			return errors.Wrapf(err, "failed to create constraint for %s", label)
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.driver.Close(context.Background())
}

func (d *DB) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, errors.Wrap(store.ErrUnavailable, err.Error())
	}
	return result.([]*neo4j.Record), nil
}

func (d *DB) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, errors.Wrap(store.ErrUnavailable, err.Error())
	}
	return result.([]*neo4j.Record), nil
}

// normalizeValue converts values to their on-store form. Timestamps are
// stored as sortable strings, identical to the SQLite driver.
func normalizeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return store.FormatTime(t)
	}
	return v
}

func normalizeProps(props store.Props) map[string]any {
	out := make(map[string]any, len(props))
	for name, v := range props {
		out[name] = normalizeValue(v)
	}
	return out
}

// keyPattern renders an identity key as a Cypher property pattern with
// parameter markers. Key names come from the pipeline, not end users, so
// splicing the names is safe; the values stay parametrized.
func keyPattern(prefix string, key store.Props, params map[string]any) string {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		marker := prefix + "_" + name
		parts[i] = fmt.Sprintf("%s: $%s", name, marker)
		params[marker] = normalizeValue(key[name])
	}
	return strings.Join(parts, ", ")
}

func labelExpr(labels []store.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ":")
}

// MergeNode creates or updates the node identified by (labels[0], key).
// Extra labels are added and extra props overwrite existing ones.
func (d *DB) MergeNode(ctx context.Context, labels []store.Label, key store.Props, extra store.Props) error {
	if len(labels) == 0 {
		return errors.New("node needs at least one label")
	}
	if len(key) == 0 {
		return errors.New("empty identity key")
	}

	params := map[string]any{}
	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE (n:%s {%s})", labels[0], keyPattern("k", key, params))
	if len(labels) > 1 {
		fmt.Fprintf(&sb, " SET n:%s", labelExpr(labels[1:]))
	}
	if len(extra) > 0 {
		sb.WriteString(" SET n += $extra")
		params["extra"] = normalizeProps(extra)
	}

	_, err := d.write(ctx, sb.String(), params)
	return err
}

// CreateNode inserts a fresh node without merge semantics.
func (d *DB) CreateNode(ctx context.Context, labels []store.Label, props store.Props) error {
	if len(labels) == 0 {
		return errors.New("node needs at least one label")
	}
	query := fmt.Sprintf("CREATE (n:%s) SET n = $props", labelExpr(labels))
	_, err := d.write(ctx, query, map[string]any{"props": normalizeProps(props)})
	return err
}

// MergeEdge creates the (from)-[typ]->(to) edge if missing. Both endpoints
// must already exist.
func (d *DB) MergeEdge(ctx context.Context, from, to store.NodeRef, typ store.EdgeType, props store.Props) error {
	if len(from.Labels) == 0 || len(to.Labels) == 0 {
		return errors.New("edge endpoints need labels")
	}

	params := map[string]any{}
	var sb strings.Builder
	fmt.Fprintf(&sb, "MATCH (a:%s {%s}) MATCH (b:%s {%s}) MERGE (a)-[r:%s]->(b)",
		from.Labels[0], keyPattern("a", from.Key, params),
		to.Labels[0], keyPattern("b", to.Key, params),
		typ)
	if len(props) > 0 {
		sb.WriteString(" SET r += $props")
		params["props"] = normalizeProps(props)
	}
	sb.WriteString(" RETURN count(r) AS c")

	records, err := d.write(ctx, sb.String(), params)
	if err != nil {
		return err
	}
	if merged, _ := count(records); merged == 0 {
		return errors.Wrapf(store.ErrNotFound, "edge %s endpoint missing", typ)
	}
	return nil
}

// SetNodeProps overwrites the named props on an existing node.
func (d *DB) SetNodeProps(ctx context.Context, ref store.NodeRef, props store.Props) error {
	if len(ref.Labels) == 0 {
		return errors.New("node ref needs at least one label")
	}
	params := map[string]any{"props": normalizeProps(props)}
	query := fmt.Sprintf("MATCH (n:%s {%s}) SET n += $props RETURN count(n) AS c",
		ref.Labels[0], keyPattern("k", ref.Key, params))

	records, err := d.write(ctx, query, params)
	if err != nil {
		return err
	}
	if updated, _ := count(records); updated == 0 {
		return errors.Wrapf(store.ErrNotFound, "node %s", ref.Labels[0])
	}
	return nil
}

// Run executes raw parametrized Cypher and returns the records as maps.
func (d *DB) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	records, err := d.write(ctx, query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(records))
	for i, record := range records {
		rows[i] = record.AsMap()
	}
	return rows, nil
}

// count reads an integer aggregate from the first record.
func count(records []*neo4j.Record) (int64, bool) {
	if len(records) == 0 {
		return 0, false
	}
	v, ok := records[0].Values[0].(int64)
	return v, ok
}
