// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/internal/platform/respond"
)

// Resolver maps hosts to tenant ids through a cache.
type Resolver struct {
	lookup Lookup
	cache  Cache
	ttl    time.Duration
}

// NewResolver constructs a [Resolver]. A nil cache disables caching.
func NewResolver(lookup Lookup, cache Cache, ttl time.Duration) *Resolver {
	return &Resolver{lookup: lookup, cache: cache, ttl: ttl}
}

/*
Resolve returns the tenant addressed by host.

Description: Cache failures degrade to a direct lookup and are only logged;
lookup failures are returned.

Returns:
  - *int64: Tenant id, or nil when the host names no tenant
  - error: Lookup failures
*/
func (resolver *Resolver) Resolve(context context.Context, host string) (*int64, error) {
	if host == "" {
		return nil, nil
	}

	logger := ctxutil.GetLogger(context)

	if resolver.cache != nil {
		tenantID, found, err := resolver.cache.Get(context, host)
		if err != nil {
			logger.WarnContext(context, "tenant_cache_get_failed", slog.String("host", host), slog.Any("error", err))
		} else if found {
			return tenantID, nil
		}
	}

	slugCandidate := SlugOf(host)
	if slugCandidate == "" {
		return nil, nil
	}

	tenantID, err := resolver.lookup.FindActive(context, slugCandidate, host)
	if err != nil {
		return nil, fmt.Errorf("tenant_resolve_failed: %w", err)
	}

	if resolver.cache != nil {
		if err := resolver.cache.Set(context, host, tenantID, resolver.ttl); err != nil {
			logger.WarnContext(context, "tenant_cache_set_failed", slog.String("host", host), slog.Any("error", err))
		}
	}

	return tenantID, nil
}

/*
Middleware resolves the tenant of every request and stores it with
[ctxutil.WithTenant]. A failed lookup answers 500 rather than letting the
request continue without its tenant constraint.
*/
func (resolver *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		tenantID, err := resolver.Resolve(request.Context(), RequestHost(request))
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		if tenantID == nil {
			next.ServeHTTP(writer, request)
			return
		}

		next.ServeHTTP(writer, request.WithContext(ctxutil.WithTenant(request.Context(), tenantID)))
	})
}
