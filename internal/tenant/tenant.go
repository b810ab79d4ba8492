// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package tenant resolves the SKPD (tenant) a request is addressed to.

A portal is served either from a subdomain whose first label is the tenant
slug (dinkes.merauke.go.id) or from a custom domain registered on the tenant.
The resolved id is placed in the request context and constrains which
accounts may log in.

# Resolution

 1. Host comes from X-Forwarded-Host, falling back to the Host header.
 2. Redis is consulted first; misses are cached too, with a marker.
 3. Postgres matches slug or full domain among active, non-deleted tenants.

No match is not an error: the request proceeds unconstrained (platform login).
*/
package tenant

import (
	"context"
	"time"
)

// Lookup finds the active tenant for a host.
type Lookup interface {

	/*
		FindActive returns the id of the active, non-deleted tenant whose slug
		equals slug or whose custom domain equals host.

		Returns:
		  - *int64: nil when no tenant matches
		  - error: Database failures
	*/
	FindActive(context context.Context, slug, host string) (*int64, error)
}

// Cache memoizes host resolutions, including negative ones.
type Cache interface {

	// Get reports the cached resolution; found is false on a cache miss.
	Get(context context.Context, host string) (tenantID *int64, found bool, err error)

	// Set stores a resolution; a nil tenantID records a negative result.
	Set(context context.Context, host string, tenantID *int64, ttl time.Duration) error
}
