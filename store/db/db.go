// Package db selects the graph driver for a profile.
package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/store"
	"github.com/mnemora/mnemora/store/db/neo4j"
	"github.com/mnemora/mnemora/store/db/sqlite"
)

// NewDriver creates the graph driver named by the profile.
func NewDriver(ctx context.Context, p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "sqlite":
		return sqlite.NewDB(p)
	case "neo4j":
		return neo4j.NewDB(ctx, p)
	default:
		return nil, errors.Errorf("unknown graph driver %q", p.Driver)
	}
}
