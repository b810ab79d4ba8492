// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package loginattempt exposes the recorded login attempts to administrators.

The rows are the same ones the login throttle counts. Administrators can page
and search them, delete a single row (for example a false positive that keeps
an office NAT address throttled) or purge the table. Both mutations are audited.
*/
package loginattempt

import (
	"context"
	"time"

	"github.com/taibuivan/skpdportal/pkg/pagination"
)

// Attempt is one recorded login attempt as shown to administrators.
type Attempt struct {
	ID         int64     `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	Identifier *string   `json:"identifier"`
	UserAgent  string    `json:"userAgent"`
	AttemptAt  time.Time `json:"attemptAt"`
}

// Repository defines persistence for administrative attempt management.
type Repository interface {

	/*
		List returns one page of attempts, newest first, filtered by a
		case-insensitive substring of address, identifier or user agent.

		Returns:
		  - []Attempt: The page
		  - int: Total matching rows
		  - error: Database failures
	*/
	List(context context.Context, params pagination.Params) ([]Attempt, int, error)

	// Delete removes one attempt and reports whether it existed.
	Delete(context context.Context, id int64) (bool, error)

	// Purge removes every attempt.
	Purge(context context.Context) error
}

// AdminEvent is an audit row for an administrative action.
type AdminEvent struct {
	ActorID   *int64
	TenantID  *int64
	Action    string
	EventType string
	EntityID  *int64
	Status    string
	Reason    string
	Identity  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// AuditWriter persists [AdminEvent] values.
type AuditWriter interface {
	Write(context context.Context, event AdminEvent) error
}

const (
	actionDelete = "DELETE_LOGIN_ATTEMPT"
	actionClear  = "CLEAR_LOGIN_ATTEMPTS"

	eventDelete = "security.login_attempt.delete"
	eventClear  = "security.login_attempt.clear"
)
