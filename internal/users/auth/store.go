// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository is the credential store plus the two bookkeeping writes
// the auth core is allowed to make.
type AccountRepository interface {

	/*
		FindByLogin returns the non-deleted account whose username or email equals
		the identifier.

		Returns:
		  - *Account: nil when nothing matches
		  - error: Database retrieval failures
	*/
	FindByLogin(context context.Context, usernameOrEmail string) (*Account, error)

	/*
		FindByEmail returns the non-deleted account with the given email, or nil.
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		FindByID returns the non-deleted account with the given id, or nil.
	*/
	FindByID(context context.Context, id int64) (*Account, error)

	/*
		RegisterFailure atomically increments the failure counter, recomputes
		lockout-until from the new count and stamps last-failed-login.

		Parameters:
		  - context: context.Context
		  - accountID: int64
		  - now: time.Time (the instant lockout durations are measured from)

		Returns:
		  - FailureState: Counter and lockout after the write
		  - error: Persistence failures
	*/
	RegisterFailure(context context.Context, accountID int64, now time.Time) (FailureState, error)

	/*
		RegisterSuccess resets the failure counter, clears the lockout and
		stamps last-login.
	*/
	RegisterSuccess(context context.Context, accountID int64, now time.Time) error
}

// # Throttle Data Access

// AttemptRepository is the append-only per-IP attempt log.
type AttemptRepository interface {

	// Append records one attempt.
	Append(context context.Context, attempt LoginAttempt) error

	// CountSince counts attempts from ip strictly newer than since.
	CountSince(context context.Context, ip string, since time.Time) (int, error)
}

// # One-Time Code Data Access

// OtpRepository persists single-use codes keyed by (email, purpose).
type OtpRepository interface {

	/*
		Replace marks every unused code for (email, purpose) as used and inserts
		the new one, in a single transaction.
	*/
	Replace(context context.Context, email, purpose, code, challengeHash string, expiresAt, now time.Time) error

	/*
		EmailForChallenge returns the email of the unused, unexpired code whose
		challenge digest matches, or "" when there is none.
	*/
	EmailForChallenge(context context.Context, challengeHash, purpose string, now time.Time) (string, error)

	/*
		Consume marks the matching unused, unexpired code as used in one
		conditional statement. It reports whether a row was consumed.
	*/
	Consume(context context.Context, email, purpose, code string, now time.Time) (bool, error)
}

// # Refresh Token Data Access

// StoredRefreshToken is a refresh token row; the raw token is never stored.
type StoredRefreshToken struct {
	ID        int64
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// RefreshTokenRepository persists hashed refresh tokens.
type RefreshTokenRepository interface {

	// Create stores a new token hash for the account.
	Create(context context.Context, accountID int64, tokenHash string, expiresAt, now time.Time) error

	/*
		Rotate revokes the usable token identified by oldHash and inserts newHash
		for the same account, in one transaction.

		Returns:
		  - int64: The owning account id
		  - bool: false when oldHash is unknown, expired or already revoked
		  - error: Persistence failures
	*/
	Rotate(context context.Context, oldHash, newHash string, newExpiresAt, now time.Time) (int64, bool, error)

	// Revoke marks the token revoked; unknown or already revoked tokens are a no-op.
	Revoke(context context.Context, tokenHash string, now time.Time) error
}

// # Permission Data Access

// PermissionRepository resolves the grants held by an account.
type PermissionRepository interface {
	GrantsFor(context context.Context, account *Account) (Grants, error)
}

// # Audit

// AuditEvent is one authentication audit row.
type AuditEvent struct {
	AccountID *int64
	TenantID  *int64
	EventType string
	Status    string
	Reason    string
	Identity  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// AuditSink records audit events. Callers log and drop its errors.
type AuditSink interface {
	Record(context context.Context, event AuditEvent) error
}

// # Mail

// OtpMailer delivers a one-time code. It performs no retries.
type OtpMailer interface {
	SendOtp(context context.Context, toEmail, code string, expiresAt time.Time) error
}
