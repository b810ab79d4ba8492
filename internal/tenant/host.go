// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tenant

import (
	"net"
	"net/http"
	"strings"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/pkg/slug"
)

/*
RequestHost extracts the addressed host of a request.

Description: The X-Forwarded-Host reported by a trusted proxy wins, as
resolved by the ProxyHeaders middleware into [ctxutil.Origin]. The header is
never read directly, so an untrusted caller cannot pick its tenant. The port
is dropped and the result lower-cased.

Returns:
  - string: Normalized host, or "" when none is present
*/
func RequestHost(request *http.Request) string {
	var host string
	if origin, ok := ctxutil.GetOrigin(request.Context()); ok {
		host = origin.ForwardedHost
	}

	if host == "" {
		host = request.Host
	}

	if withoutPort, _, err := net.SplitHostPort(host); err == nil {
		host = withoutPort
	}

	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// SlugOf returns the tenant slug candidate of a host: its first DNS label,
// normalized the same way tenant slugs are generated.
func SlugOf(host string) string {
	label, _, _ := strings.Cut(host, ".")
	return slug.Label(label)
}
