// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the authentication and session core of the portal.

It turns a username/password (and, when required, an emailed one-time code)
into a tenant-scoped, time-bounded session while resisting credential guessing
and brute force.

# Architecture

  - Service: the session facade; the only component HTTP handlers call.
  - Throttle, Verifier, NextLockout, OtpChallenge, TokenIssuer: the building
    blocks the facade orchestrates.
  - Repositories: interfaces in store.go, PostgreSQL implementations in
    store_postgres.go.

All durable state lives in PostgreSQL; nothing in this package holds shared
mutable state between requests.
*/
package auth

import (
	"time"

	"github.com/taibuivan/skpdportal/pkg/pointer"
)

// # Domain Entities

// Account is a principal capable of authenticating.
//
// TenantID is nil for platform-level accounts.
type Account struct {
	ID                 int64
	TenantID           *int64
	Username           string
	Email              string
	PasswordHash       string
	IsActive           bool
	TwoFactorEnabled   bool
	FailedLoginAttempt int
	LockoutUntil       *time.Time
	LastFailedLogin    *time.Time
	LastLoginAt        *time.Time
}

// IsLockedAt reports whether the account is under lockout at instant now.
func (account *Account) IsLockedAt(now time.Time) bool {
	return account.LockoutUntil != nil && account.LockoutUntil.After(now)
}

// BelongsTo reports whether the account may log in under the given tenant
// constraint. A nil constraint admits every account.
func (account *Account) BelongsTo(tenantID *int64) bool {
	return tenantID == nil || pointer.Equal(account.TenantID, tenantID)
}

// FailureState is the bookkeeping written by a failed password attempt.
type FailureState struct {
	FailedCount  int
	LockoutUntil *time.Time
}

// LoginAttempt is one inbound authentication attempt, recorded before
// credentials are evaluated.
type LoginAttempt struct {
	IPAddress  string
	Identifier string
	UserAgent  string
	AttemptAt  time.Time
}

// Grants are the role names and permission strings embedded in an access token.
type Grants struct {
	Roles       []string
	Permissions []string
}

// # Field Identifiers

// Field names used in validation errors; they match the JSON request keys.
const (
	FieldUsernameOrEmail = "usernameOrEmail"
	FieldPassword        = "password"
	FieldEmail           = "email"
	FieldChallenge       = "challenge"
	FieldCode            = "code"
)
