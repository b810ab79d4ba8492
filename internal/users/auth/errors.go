// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "github.com/taibuivan/skpdportal/internal/platform/apperr"

// # Wire Errors

var (
	// ErrInvalidCredentials is the single wire shape for every credential rejection.
	ErrInvalidCredentials = apperr.UnauthorizedCode("invalid_credentials", "Invalid username/email or password")

	// ErrAccountLocked is returned while the account's lockout is in force.
	ErrAccountLocked = apperr.Locked("account_locked", "Account is temporarily locked. Try again later")

	// ErrInvalidOtp covers wrong, expired and already-used codes alike.
	ErrInvalidOtp = apperr.UnauthorizedCode("invalid_otp", "Invalid or expired verification code")

	// ErrNoRefreshToken is returned when the refresh cookie is absent.
	ErrNoRefreshToken = apperr.UnauthorizedCode("no_refresh_token", "Refresh token is missing")

	// ErrInvalidRefreshToken is returned for unknown, expired, revoked or replayed tokens.
	ErrInvalidRefreshToken = apperr.UnauthorizedCode("invalid_refresh_token", "Refresh token is invalid or expired")
)
