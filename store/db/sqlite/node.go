package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/store"
)

// canonicalIdentity renders an identity key deterministically: keys sorted,
// values stringified the same way props are. Two callers merging the same
// logical node always hit the same row.
func canonicalIdentity(key store.Props) (string, error) {
	if len(key) == 0 {
		return "", errors.New("empty identity key")
	}
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('|')
		}
		raw, err := json.Marshal(normalizeValue(key[name]))
		if err != nil {
			return "", errors.Wrapf(err, "identity key %s", name)
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.Write(raw)
	}
	return sb.String(), nil
}

// normalizeValue converts values to their on-store form.
func normalizeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return store.FormatTime(t)
	}
	return v
}

func encodeProps(props store.Props) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	normalized := make(map[string]any, len(props))
	for name, v := range props {
		normalized[name] = normalizeValue(v)
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode props")
	}
	return string(raw), nil
}

func decodeProps(raw string) (map[string]any, error) {
	props := map[string]any{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, errors.Wrap(err, "failed to decode props")
	}
	return props, nil
}

func encodeLabels(labels []store.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}

// MergeNode creates the node identified by (labels[0], key) or updates it in
// place: labels are unioned and extra props overwrite existing ones. The
// identity-key props themselves are stored too so reads see them.
func (d *DB) MergeNode(ctx context.Context, labels []store.Label, key store.Props, extra store.Props) error {
	if len(labels) == 0 {
		return errors.New("node needs at least one label")
	}
	identity, err := canonicalIdentity(key)
	if err != nil {
		return err
	}
	kind := string(labels[0])

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(store.ErrUnavailable, err.Error())
	}
	defer tx.Rollback()

	var (
		id        int64
		rawLabels string
		rawProps  string
	)
	row := tx.QueryRowContext(ctx,
		"SELECT id, labels, props FROM node WHERE kind = ? AND identity = ?",
		kind, identity)
	switch err := row.Scan(&id, &rawLabels, &rawProps); {
	case err == sql.ErrNoRows:
		props := store.Props{}
		for name, v := range key {
			props[name] = v
		}
		for name, v := range extra {
			props[name] = v
		}
		encoded, err := encodeProps(props)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO node (kind, labels, identity, props) VALUES (?, ?, ?, ?)",
			kind, encodeLabels(labels), identity, encoded); err != nil {
			return errors.Wrap(err, "failed to insert node")
		}
	case err != nil:
		return errors.Wrap(err, "failed to query node")
	default:
		props, err := decodeProps(rawProps)
		if err != nil {
			return err
		}
		for name, v := range extra {
			props[name] = normalizeValue(v)
		}
		encoded, err := json.Marshal(props)
		if err != nil {
			return errors.Wrap(err, "failed to encode props")
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE node SET labels = ?, props = ? WHERE id = ?",
			unionLabels(rawLabels, labels), string(encoded), id); err != nil {
			return errors.Wrap(err, "failed to update node")
		}
	}

	return tx.Commit()
}

func unionLabels(existing string, labels []store.Label) string {
	seen := map[string]bool{}
	out := []string{}
	for _, l := range strings.Split(existing, ",") {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range labels {
		if !seen[string(l)] {
			seen[string(l)] = true
			out = append(out, string(l))
		}
	}
	return strings.Join(out, ",")
}

// CreateNode inserts a fresh node without merge semantics. A generated
// identity keeps the uniqueness constraint satisfied.
func (d *DB) CreateNode(ctx context.Context, labels []store.Label, props store.Props) error {
	if len(labels) == 0 {
		return errors.New("node needs at least one label")
	}
	encoded, err := encodeProps(props)
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx,
		"INSERT INTO node (kind, labels, identity, props) VALUES (?, ?, ?, ?)",
		string(labels[0]), encodeLabels(labels), uuid.NewString(), encoded); err != nil {
		return errors.Wrap(err, "failed to insert node")
	}
	return nil
}

// lookupID resolves a NodeRef to its row id.
func lookupID(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, ref store.NodeRef) (int64, error) {
	if len(ref.Labels) == 0 {
		return 0, errors.New("node ref needs at least one label")
	}
	identity, err := canonicalIdentity(ref.Key)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx,
		"SELECT id FROM node WHERE kind = ? AND identity = ?",
		string(ref.Labels[0]), identity).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, errors.Wrapf(store.ErrNotFound, "node %s %s", ref.Labels[0], identity)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to resolve node")
	}
	return id, nil
}

// MergeEdge creates the (from)-[typ]->(to) edge if missing. Non-empty props
// overwrite on conflict; empty props leave an existing edge untouched.
func (d *DB) MergeEdge(ctx context.Context, from, to store.NodeRef, typ store.EdgeType, props store.Props) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(store.ErrUnavailable, err.Error())
	}
	defer tx.Rollback()

	sourceID, err := lookupID(ctx, tx, from)
	if err != nil {
		return err
	}
	targetID, err := lookupID(ctx, tx, to)
	if err != nil {
		return err
	}
	encoded, err := encodeProps(props)
	if err != nil {
		return err
	}

	stmt := "INSERT INTO edge (source, target, type, props) VALUES (?, ?, ?, ?) ON CONFLICT(source, target, type) DO NOTHING"
	if len(props) > 0 {
		stmt = "INSERT INTO edge (source, target, type, props) VALUES (?, ?, ?, ?) ON CONFLICT(source, target, type) DO UPDATE SET props = excluded.props"
	}
	if _, err := tx.ExecContext(ctx, stmt, sourceID, targetID, string(typ), encoded); err != nil {
		return errors.Wrap(err, "failed to merge edge")
	}
	return tx.Commit()
}

// SetNodeProps overwrites the named props on an existing node.
func (d *DB) SetNodeProps(ctx context.Context, ref store.NodeRef, props store.Props) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(store.ErrUnavailable, err.Error())
	}
	defer tx.Rollback()

	id, err := lookupID(ctx, tx, ref)
	if err != nil {
		return err
	}
	var rawProps string
	if err := tx.QueryRowContext(ctx, "SELECT props FROM node WHERE id = ?", id).Scan(&rawProps); err != nil {
		return errors.Wrap(err, "failed to query node")
	}
	existing, err := decodeProps(rawProps)
	if err != nil {
		return err
	}
	for name, v := range props {
		existing[name] = normalizeValue(v)
	}
	encoded, err := json.Marshal(existing)
	if err != nil {
		return errors.Wrap(err, "failed to encode props")
	}
	if _, err := tx.ExecContext(ctx, "UPDATE node SET props = ? WHERE id = ?", string(encoded), id); err != nil {
		return errors.Wrap(err, "failed to update node")
	}
	return tx.Commit()
}
