// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"slices"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
)

// # Permission Checks

// HasPermission reports whether the claims grant the required permission.
// The manage_all permission satisfies every check.
func (c *AuthClaims) HasPermission(required string) bool {
	if c == nil {
		return false
	}

	return slices.Contains(c.Permissions, constants.PermissionManageAll) ||
		slices.Contains(c.Permissions, required)
}
