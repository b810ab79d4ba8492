// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Throttling

const (
	// ThrottleWindow is the trailing window over which attempts per IP are counted.
	ThrottleWindow = 60 * time.Second

	// ThrottleMaxAttempts is the highest in-window count (current attempt
	// included) that is still evaluated on its merits.
	ThrottleMaxAttempts = 10
)

// # Lockout Tiers

const (
	lockoutTierOneThreshold   = 5
	lockoutTierTwoThreshold   = 10
	lockoutTierThreeThreshold = 20

	lockoutTierOneDuration   = 15 * time.Minute
	lockoutTierTwoDuration   = 1 * time.Hour
	lockoutTierThreeDuration = 24 * time.Hour
)

// # One-Time Codes

const (
	// OtpLength is the number of decimal digits in a one-time code.
	OtpLength = 6

	// OtpTTL is how long an issued code stays valid.
	OtpTTL = 5 * time.Minute

	// OtpPurposeLogin scopes codes issued for the second login factor.
	OtpPurposeLogin = "login"

	// maxChallengeLength caps the challenge reference accepted from clients
	// (issued references are 43 base64url characters).
	maxChallengeLength = 64
)

// # Audit Vocabulary

const (
	auditActionLoginAttempt = "LOGIN_ATTEMPT"

	auditEventLogin   = "auth.login"
	auditEventOtp     = "auth.otp"
	auditEventRefresh = "auth.refresh"
	auditEventLogout  = "auth.logout"

	auditStatusSuccess = "success"
	auditStatusFailed  = "failed"
	auditStatusLocked  = "locked"
	auditStatusPending = "pending"
)
