// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/skpdportal/internal/platform/ctxkey"
	"github.com/taibuivan/skpdportal/internal/platform/sec"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithAuthUser returns a new context with the provided auth claims attached.
func WithAuthUser(ctx context.Context, user *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUser, user)
}

// GetAuthUser retrieves the [*sec.AuthClaims] from the [context.Context].
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, ok := ctx.Value(ctxkey.KeyUser).(*sec.AuthClaims)
	if !ok {
		return nil
	}
	return claims
}

// # Tenancy

// WithTenant returns a new context carrying the tenant resolved for the request.
// A nil tenantID is stored as-is and means "no tenant constraint".
func WithTenant(ctx context.Context, tenantID *int64) context.Context {
	return context.WithValue(ctx, ctxkey.KeyTenant, tenantID)
}

// GetTenant retrieves the resolved tenant ID, or nil when the request is not
// scoped to a tenant.
func GetTenant(ctx context.Context) *int64 {
	tenantID, _ := ctx.Value(ctxkey.KeyTenant).(*int64)
	return tenantID
}

// # Client Origin

// Origin is where a request came from once trusted proxy hops are peeled off.
type Origin struct {
	// IP is the client address used for throttling and auditing.
	IP string

	// ForwardedHost is the X-Forwarded-Host a trusted proxy reported, or "".
	ForwardedHost string
}

// WithOrigin returns a new context carrying the resolved client origin.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, ctxkey.KeyOrigin, origin)
}

// GetOrigin retrieves the client origin. The boolean is false when no
// origin was resolved for the request.
func GetOrigin(ctx context.Context) (Origin, bool) {
	origin, ok := ctx.Value(ctxkey.KeyOrigin).(Origin)
	return origin, ok
}
