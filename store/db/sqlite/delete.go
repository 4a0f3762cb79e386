package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/store"
)

// sharedKinds are node kinds that may be reachable from several users.
// After a cascade they are collected only once nothing points at them
// anymore, so another user's memory keeps them alive.
var sharedKinds = []store.Label{
	store.LabelSentence,
	store.LabelWord,
	store.LabelDescription,
	store.LabelSynonym,
	store.LabelAntonym,
	store.LabelCategory,
	store.LabelDomain,
	store.LabelSentiment,
	store.LabelMood,
	store.LabelSentenceType,
	store.LabelIPAddress,
	store.LabelLocation,
	store.LabelPerson,
}

// chainEdges link siblings inside one memory. They never confer ownership,
// so orphan collection ignores them: a dangling NEXT_WORD must not keep a
// word alive.
var chainEdges = []store.EdgeType{
	store.EdgeNextEpisode,
	store.EdgeNextInteraction,
	store.EdgeNextSentence,
	store.EdgeNextWord,
}

// DeleteUserMemory removes the user's episodic subtree (episodes,
// interactions, texts), every edge incident on the user, and then collects
// shared nodes no surviving memory refers to. The User node stays.
func (d *DB) DeleteUserMemory(ctx context.Context, email string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(store.ErrUnavailable, err.Error())
	}
	defer tx.Rollback()

	uid, err := lookupID(ctx, tx, store.NodeRef{
		Labels: []store.Label{store.LabelUser},
		Key:    store.Props{"email": email},
	})
	if err != nil {
		return err
	}

	episodes, err := children(ctx, tx, []int64{uid}, store.LabelEpisode, store.EdgeHasEpisode)
	if err != nil {
		return err
	}
	interactions, err := children(ctx, tx, episodes, store.LabelInteraction, store.EdgeHasInteraction)
	if err != nil {
		return err
	}
	texts, err := children(ctx, tx, interactions, store.LabelText,
		store.EdgeHasUserResponse, store.EdgeHasBotResponse)
	if err != nil {
		return err
	}
	readings, err := children(ctx, tx, []int64{uid}, store.LabelSensorReading, store.EdgeHasSensorReading)
	if err != nil {
		return err
	}

	owned := make([]int64, 0, len(episodes)+len(interactions)+len(texts)+len(readings))
	owned = append(owned, episodes...)
	owned = append(owned, interactions...)
	owned = append(owned, texts...)
	owned = append(owned, readings...)

	if len(owned) > 0 {
		args := make([]any, len(owned))
		for i, id := range owned {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM node WHERE id IN (%s)", placeholders(len(owned))),
			args...); err != nil {
			return errors.Wrap(err, "failed to delete owned nodes")
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM edge WHERE source = ? OR target = ?", uid, uid); err != nil {
		return errors.Wrap(err, "failed to detach user")
	}

	if err := collectOrphans(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// collectOrphans drops dangling edges and unreferenced shared nodes until a
// fixpoint. Each wave can expose the next (text gone, sentence orphaned,
// word orphaned), so iterate; the graph depth bounds the wave count.
func collectOrphans(ctx context.Context, tx *sql.Tx) error {
	kindArgs := make([]any, len(sharedKinds))
	for i, k := range sharedKinds {
		kindArgs[i] = string(k)
	}
	chainArgs := make([]any, len(chainEdges))
	for i, t := range chainEdges {
		chainArgs[i] = string(t)
	}

	danglingStmt := `
DELETE FROM edge WHERE source NOT IN (SELECT id FROM node)
	OR target NOT IN (SELECT id FROM node)`
	orphanStmt := fmt.Sprintf(`
DELETE FROM node WHERE kind IN (%s)
	AND id NOT IN (SELECT target FROM edge WHERE type NOT IN (%s))`,
		placeholders(len(sharedKinds)), placeholders(len(chainEdges)))
	orphanArgs := append(append([]any{}, kindArgs...), chainArgs...)

	for i := 0; i < 16; i++ {
		if _, err := tx.ExecContext(ctx, danglingStmt); err != nil {
			return errors.Wrap(err, "failed to drop dangling edges")
		}
		res, err := tx.ExecContext(ctx, orphanStmt, orphanArgs...)
		if err != nil {
			return errors.Wrap(err, "failed to collect orphan nodes")
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if deleted == 0 {
			if _, err := tx.ExecContext(ctx, danglingStmt); err != nil {
				return errors.Wrap(err, "failed to drop dangling edges")
			}
			return nil
		}
	}
	return errors.New("orphan collection did not converge")
}
