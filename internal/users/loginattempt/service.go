// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loginattempt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/apperr"
	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/pkg/pagination"
)

// Service implements administrative attempt management.
type Service struct {
	repository Repository
	audit      AuditWriter
	now        func() time.Time
}

// NewService constructs a new [Service].
func NewService(repository Repository, audit AuditWriter, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repository: repository, audit: audit, now: now}
}

// Origin identifies the administrator request behind a mutation.
type Origin struct {
	IPAddress string
	UserAgent string
}

// List returns one page of attempts and the total match count.
func (service *Service) List(context context.Context, params pagination.Params) ([]Attempt, int, error) {
	attempts, total, err := service.repository.List(context, params)
	if err != nil {
		return nil, 0, fmt.Errorf("loginattempt_service_list_failed: %w", err)
	}
	if attempts == nil {
		attempts = []Attempt{}
	}
	return attempts, total, nil
}

/*
Delete removes one attempt.

Returns:
  - error: apperr.NotFound if no such attempt exists, or store failures
*/
func (service *Service) Delete(context context.Context, id int64, origin Origin) error {
	deleted, err := service.repository.Delete(context, id)
	if err != nil {
		return fmt.Errorf("loginattempt_service_delete_failed: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Login attempt")
	}

	service.record(context, origin, actionDelete, eventDelete, &id, "deleted")
	return nil
}

// Purge removes every attempt.
func (service *Service) Purge(context context.Context, origin Origin) error {
	if err := service.repository.Purge(context); err != nil {
		return fmt.Errorf("loginattempt_service_purge_failed: %w", err)
	}

	service.record(context, origin, actionClear, eventClear, nil, "cleared all")
	return nil
}

// record writes the audit row for a mutation; failures are logged and dropped.
func (service *Service) record(context context.Context, origin Origin, action, eventType string, entityID *int64, reason string) {
	event := AdminEvent{
		Action:    action,
		EventType: eventType,
		EntityID:  entityID,
		Status:    "success",
		Reason:    reason,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
		CreatedAt: service.now(),
	}

	if claims := ctxutil.GetAuthUser(context); claims != nil {
		event.Identity = claims.Username
		event.TenantID = claims.TenantID
		if id, err := claims.UserID(); err == nil {
			event.ActorID = &id
		}
	}

	if err := service.audit.Write(context, event); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "audit_record_failed",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}
