// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loginattempt

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/skpdportal/pkg/pagination"
)

// PostgresRepository implements [Repository] over users.loginattempt.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of the Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// likePattern escapes LIKE metacharacters and wraps the term for substring search.
func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	return "%" + escaped + "%"
}

/*
List retrieves one page of attempts.

Description: An empty search disables filtering; the same predicate feeds the
count and the page query so totals stay consistent with the rows.
*/
func (repository *PostgresRepository) List(context context.Context, params pagination.Params) ([]Attempt, int, error) {
	const filter = `
		WHERE $1 = ''
		   OR ipaddress ILIKE $2
		   OR identifier ILIKE $2
		   OR useragent ILIKE $2`

	pattern := likePattern(params.Search)

	// Step 1: Count matching rows
	var total int
	err := repository.pool.QueryRow(context,
		`SELECT COUNT(*) FROM users.loginattempt`+filter,
		params.Search, pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loginattempt_count_failed: %w", err)
	}

	// Step 2: Fetch the page
	rows, err := repository.pool.Query(context, `
		SELECT id, ipaddress, identifier, useragent, attemptedat
		FROM users.loginattempt`+filter+`
		ORDER BY attemptedat DESC, id DESC
		LIMIT $3 OFFSET $4`,
		params.Search, pattern, params.Limit, params.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loginattempt_list_failed: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Attempt, error) {
		var attempt Attempt
		err := row.Scan(&attempt.ID, &attempt.IPAddress, &attempt.Identifier, &attempt.UserAgent, &attempt.AttemptAt)
		return attempt, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loginattempt_scan_failed: %w", err)
	}

	return attempts, total, nil
}

// Delete removes one row by id.
func (repository *PostgresRepository) Delete(context context.Context, id int64) (bool, error) {
	tag, err := repository.pool.Exec(context, `DELETE FROM users.loginattempt WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres_loginattempt_delete_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Purge truncates the table and restarts its identity.
func (repository *PostgresRepository) Purge(context context.Context) error {
	if _, err := repository.pool.Exec(context, `TRUNCATE TABLE users.loginattempt RESTART IDENTITY`); err != nil {
		return fmt.Errorf("postgres_loginattempt_purge_failed: %w", err)
	}
	return nil
}

// PostgresAuditWriter implements [AuditWriter] over system.auditlog.
type PostgresAuditWriter struct {
	pool *pgxpool.Pool
}

// NewAuditWriter creates a new PostgreSQL audit writer.
func NewAuditWriter(pool *pgxpool.Pool) *PostgresAuditWriter {
	return &PostgresAuditWriter{pool: pool}
}

// Write inserts one administrative audit row.
func (writer *PostgresAuditWriter) Write(context context.Context, event AdminEvent) error {
	const query = `
		INSERT INTO system.auditlog (
			accountid, tenantid, action, eventtype, entitytype, entityid, status,
			reason, identity, ipaddress, useragent, createdat
		) VALUES ($1, $2, $3, $4, 'loginattempt', $5, $6, $7, NULLIF($8, ''), $9, $10, $11)`

	_, err := writer.pool.Exec(context, query,
		event.ActorID,
		event.TenantID,
		event.Action,
		event.EventType,
		event.EntityID,
		event.Status,
		event.Reason,
		event.Identity,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_loginattempt_audit_failed: %w", err)
	}
	return nil
}
