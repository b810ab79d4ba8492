// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/skpdportal/internal/platform/dberr"
)

// PostgresLookup implements [Lookup] over core.tenant.
type PostgresLookup struct {
	pool *pgxpool.Pool
}

// NewLookup creates a new PostgreSQL implementation of the Lookup.
func NewLookup(pool *pgxpool.Pool) *PostgresLookup {
	return &PostgresLookup{pool: pool}
}

// FindActive matches the slug or the custom domain of active tenants.
func (repository *PostgresLookup) FindActive(context context.Context, slug, host string) (*int64, error) {
	const query = `
		SELECT id
		FROM core.tenant
		WHERE deletedat IS NULL
		  AND isactive = TRUE
		  AND (slug = $1 OR domain = $2)
		ORDER BY (domain = $2) DESC, id
		LIMIT 1`

	var id int64
	if err := repository.pool.QueryRow(context, query, slug, host).Scan(&id); err != nil {
		if dberr.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_tenant_lookup_failed: %w", err)
	}

	return &id, nil
}
