// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/skpdportal/internal/platform/dberr"
)

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] over users.account.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const accountColumns = `
	id, tenantid, username, email, passwordhash, isactive, twofactorenabled,
	failedloginattempt, lockoutuntil, lastfailedlogin, lastloginat`

// scanAccount hydrates an account; a missing row yields (nil, nil).
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.TenantID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
		&account.TwoFactorEnabled,
		&account.FailedLoginAttempt,
		&account.LockoutUntil,
		&account.LastFailedLogin,
		&account.LastLoginAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

/*
FindByLogin retrieves the account whose username or email equals the identifier.

Description: Filters out soft-deleted accounts. Usernames take precedence when
an identifier happens to match one account's username and another's email.

Parameters:
  - context: context.Context
  - usernameOrEmail: string

Returns:
  - *Account: Hydrated entity, or nil
  - error: Database errors
*/
func (repository *PostgresAccountRepository) FindByLogin(context context.Context, usernameOrEmail string) (*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE (username = $1 OR email = $1) AND deletedat IS NULL
		ORDER BY (username = $1) DESC, id
		LIMIT 1`

	account, err := scanAccount(repository.pool.QueryRow(context, query, usernameOrEmail))
	if err != nil {
		return nil, fmt.Errorf("postgres_account_repo_find_by_login_failed: %w", err)
	}
	return account, nil
}

// FindByEmail retrieves a non-deleted account by email.
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE email = $1 AND deletedat IS NULL
		ORDER BY id
		LIMIT 1`

	account, err := scanAccount(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}
	return account, nil
}

// FindByID retrieves a non-deleted account by primary key.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id int64) (*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE id = $1 AND deletedat IS NULL`

	account, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}
	return account, nil
}

/*
RegisterFailure applies one failed password attempt.

Description: The counter is read under a row lock so concurrent failures
against the same account serialize and every tier boundary is evaluated
against a consistent count.

Parameters:
  - context: context.Context
  - accountID: int64
  - now: time.Time

Returns:
  - FailureState: Counter and lockout after the write
  - error: Database errors
*/
func (repository *PostgresAccountRepository) RegisterFailure(context context.Context, accountID int64, now time.Time) (FailureState, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return FailureState{}, fmt.Errorf("postgres_account_repo_failure_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	// Step 1: Lock the row and read the current counter
	var current int
	err = transaction.QueryRow(context,
		`SELECT failedloginattempt FROM users.account WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&current)
	if err != nil {
		return FailureState{}, fmt.Errorf("postgres_account_repo_failure_lock_failed: %w", err)
	}

	// Step 2: Recompute and persist counter and lockout together
	state := nextFailureState(current, now)

	_, err = transaction.Exec(context, `
		UPDATE users.account
		SET failedloginattempt = $2,
		    lockoutuntil = $3,
		    lastfailedlogin = $4
		WHERE id = $1`,
		accountID, state.FailedCount, state.LockoutUntil, now,
	)
	if err != nil {
		return FailureState{}, fmt.Errorf("postgres_account_repo_failure_update_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return FailureState{}, fmt.Errorf("postgres_account_repo_failure_commit_failed: %w", err)
	}

	return state, nil
}

// RegisterSuccess resets failure bookkeeping and stamps the login time.
func (repository *PostgresAccountRepository) RegisterSuccess(context context.Context, accountID int64, now time.Time) error {
	const query = `
		UPDATE users.account
		SET failedloginattempt = 0,
		    lockoutuntil = NULL,
		    lastloginat = $2
		WHERE id = $1`

	if _, err := repository.pool.Exec(context, query, accountID, now); err != nil {
		return fmt.Errorf("postgres_account_repo_success_failed: %w", err)
	}
	return nil
}

// # Attempt Repository

// PostgresAttemptRepository implements [AttemptRepository] over users.loginattempt.
type PostgresAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new PostgreSQL implementation of the AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{pool: pool}
}

// Append inserts one attempt row; an empty identifier is stored as NULL.
func (repository *PostgresAttemptRepository) Append(context context.Context, attempt LoginAttempt) error {
	const query = `
		INSERT INTO users.loginattempt (ipaddress, identifier, useragent, attemptedat)
		VALUES ($1, NULLIF($2, ''), $3, $4)`

	_, err := repository.pool.Exec(context, query,
		attempt.IPAddress,
		attempt.Identifier,
		attempt.UserAgent,
		attempt.AttemptAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_attempt_repo_append_failed: %w", err)
	}
	return nil
}

// CountSince counts attempts from ip newer than since.
func (repository *PostgresAttemptRepository) CountSince(context context.Context, ip string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM users.loginattempt
		WHERE ipaddress = $1 AND attemptedat > $2`

	var count int
	if err := repository.pool.QueryRow(context, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_attempt_repo_count_failed: %w", err)
	}
	return count, nil
}

// # One-Time Code Repository

// PostgresOtpRepository implements [OtpRepository] over users.otpcode.
type PostgresOtpRepository struct {
	pool *pgxpool.Pool
}

// NewOtpRepository creates a new PostgreSQL implementation of the OtpRepository.
func NewOtpRepository(pool *pgxpool.Pool) *PostgresOtpRepository {
	return &PostgresOtpRepository{pool: pool}
}

/*
Replace invalidates outstanding codes and stores a new one.

Description: Both statements share a transaction, so at no point do two usable
codes exist for the same (email, purpose).
*/
func (repository *PostgresOtpRepository) Replace(context context.Context, email, purpose, code, challengeHash string, expiresAt, now time.Time) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_otp_repo_replace_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	// Step 1: Invalidate previous unused codes
	_, err = transaction.Exec(context, `
		UPDATE users.otpcode
		SET isused = TRUE
		WHERE email = $1 AND purpose = $2 AND isused = FALSE`,
		email, purpose,
	)
	if err != nil {
		return fmt.Errorf("postgres_otp_repo_invalidate_failed: %w", err)
	}

	// Step 2: Insert the fresh code
	_, err = transaction.Exec(context, `
		INSERT INTO users.otpcode (email, purpose, code, challengehash, expiresat, isused, createdat)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		email, purpose, code, challengeHash, expiresAt, now,
	)
	if err != nil {
		return fmt.Errorf("postgres_otp_repo_insert_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_otp_repo_replace_commit_failed: %w", err)
	}
	return nil
}

// Consume marks a matching current code as used in one conditional UPDATE.
// A concurrent second consumer re-checks isused after the row lock and matches nothing.
func (repository *PostgresOtpRepository) Consume(context context.Context, email, purpose, code string, now time.Time) (bool, error) {
	const query = `
		UPDATE users.otpcode
		SET isused = TRUE
		WHERE email = $1
		  AND purpose = $2
		  AND code = $3
		  AND isused = FALSE
		  AND expiresat > $4
		RETURNING id`

	var id int64
	err := repository.pool.QueryRow(context, query, email, purpose, code, now).Scan(&id)
	if err != nil {
		if dberr.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("postgres_otp_repo_consume_failed: %w", err)
	}
	return true, nil
}

// EmailForChallenge looks up the pending code a challenge reference points at.
func (repository *PostgresOtpRepository) EmailForChallenge(context context.Context, challengeHash, purpose string, now time.Time) (string, error) {
	const query = `
		SELECT email
		FROM users.otpcode
		WHERE challengehash = $1
		  AND purpose = $2
		  AND isused = FALSE
		  AND expiresat > $3`

	var email string
	err := repository.pool.QueryRow(context, query, challengeHash, purpose, now).Scan(&email)
	if err != nil {
		if dberr.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("postgres_otp_repo_challenge_lookup_failed: %w", err)
	}
	return email, nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements [RefreshTokenRepository] over users.refreshtoken.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of the RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token hash.
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, accountID int64, tokenHash string, expiresAt, now time.Time) error {
	const query = `
		INSERT INTO users.refreshtoken (accountid, tokenhash, expiresat, isrevoked, createdat)
		VALUES ($1, $2, $3, FALSE, $4)`

	if _, err := repository.pool.Exec(context, query, accountID, tokenHash, expiresAt, now); err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}
	return nil
}

/*
Rotate revokes a usable token and inserts its replacement.

Description: The revoke is a conditional UPDATE, so two concurrent renewals
with the same token cannot both succeed.

Returns:
  - int64: Owning account id
  - bool: false when the old token is not usable
  - error: Database errors
*/
func (repository *PostgresRefreshTokenRepository) Rotate(context context.Context, oldHash, newHash string, newExpiresAt, now time.Time) (int64, bool, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return 0, false, fmt.Errorf("postgres_refresh_repo_rotate_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	// Step 1: Revoke the presented token if it is still usable
	var accountID int64
	err = transaction.QueryRow(context, `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE, revokedat = $2
		WHERE tokenhash = $1 AND isrevoked = FALSE AND expiresat > $2
		RETURNING accountid`,
		oldHash, now,
	).Scan(&accountID)
	if err != nil {
		if dberr.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("postgres_refresh_repo_revoke_old_failed: %w", err)
	}

	// Step 2: Insert the replacement for the same account
	_, err = transaction.Exec(context, `
		INSERT INTO users.refreshtoken (accountid, tokenhash, expiresat, isrevoked, createdat)
		VALUES ($1, $2, $3, FALSE, $4)`,
		accountID, newHash, newExpiresAt, now,
	)
	if err != nil {
		return 0, false, fmt.Errorf("postgres_refresh_repo_insert_new_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return 0, false, fmt.Errorf("postgres_refresh_repo_rotate_commit_failed: %w", err)
	}

	return accountID, true, nil
}

// Revoke marks a token revoked; unknown and already revoked tokens are left untouched.
func (repository *PostgresRefreshTokenRepository) Revoke(context context.Context, tokenHash string, now time.Time) error {
	const query = `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE, revokedat = $2
		WHERE tokenhash = $1 AND isrevoked = FALSE`

	if _, err := repository.pool.Exec(context, query, tokenHash, now); err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_failed: %w", err)
	}
	return nil
}

// # Permission Repository

// PostgresPermissionRepository implements [PermissionRepository] over the users.role* tables.
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PostgreSQL implementation of the PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

/*
GrantsFor resolves role names and permission strings for the account.

Description: Only roles defined in the account's own tenant count (platform
roles for platform accounts), so a role assignment can never leak across tenants.
*/
func (repository *PostgresPermissionRepository) GrantsFor(context context.Context, account *Account) (Grants, error) {
	const roleQuery = `
		SELECT r.name
		FROM users.role r
		JOIN users.userrole ur ON ur.roleid = r.id
		WHERE ur.accountid = $1
		  AND r.tenantid IS NOT DISTINCT FROM $2
		ORDER BY r.name`

	const permissionQuery = `
		SELECT DISTINCT p.name
		FROM users.permission p
		JOIN users.rolepermission rp ON rp.permissionid = p.id
		JOIN users.userrole ur ON ur.roleid = rp.roleid
		JOIN users.role r ON r.id = ur.roleid
		WHERE ur.accountid = $1
		  AND r.tenantid IS NOT DISTINCT FROM $2
		ORDER BY p.name`

	roleRows, err := repository.pool.Query(context, roleQuery, account.ID, account.TenantID)
	if err != nil {
		return Grants{}, fmt.Errorf("postgres_permission_repo_roles_failed: %w", err)
	}
	roles, err := pgx.CollectRows(roleRows, pgx.RowTo[string])
	if err != nil {
		return Grants{}, fmt.Errorf("postgres_permission_repo_roles_scan_failed: %w", err)
	}

	permissionRows, err := repository.pool.Query(context, permissionQuery, account.ID, account.TenantID)
	if err != nil {
		return Grants{}, fmt.Errorf("postgres_permission_repo_permissions_failed: %w", err)
	}
	permissions, err := pgx.CollectRows(permissionRows, pgx.RowTo[string])
	if err != nil {
		return Grants{}, fmt.Errorf("postgres_permission_repo_permissions_scan_failed: %w", err)
	}

	return Grants{Roles: roles, Permissions: permissions}, nil
}

// # Audit Sink

// PostgresAuditSink implements [AuditSink] over system.auditlog.
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

// NewAuditSink creates a new PostgreSQL audit writer.
func NewAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

// Record inserts one LOGIN_ATTEMPT audit row.
func (sink *PostgresAuditSink) Record(context context.Context, event AuditEvent) error {
	const query = `
		INSERT INTO system.auditlog (
			accountid, tenantid, action, eventtype, status, reason, identity,
			ipaddress, useragent, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`

	_, err := sink.pool.Exec(context, query,
		event.AccountID,
		event.TenantID,
		auditActionLoginAttempt,
		event.EventType,
		event.Status,
		event.Reason,
		event.Identity,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_audit_sink_record_failed: %w", err)
	}
	return nil
}
