// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Login Outcome

// OutcomeKind enumerates the terminal states of a login attempt.
type OutcomeKind int

const (
	// OutcomeInvalid covers every rejection the caller must not tell apart.
	OutcomeInvalid OutcomeKind = iota
	// OutcomeLocked means the credentials were right but the account is locked out.
	OutcomeLocked
	// OutcomeOtpRequired pauses the login until a one-time code is verified.
	OutcomeOtpRequired
	// OutcomeAuthenticated carries a freshly minted session.
	OutcomeAuthenticated
)

// String implements fmt.Stringer for logging.
func (kind OutcomeKind) String() string {
	switch kind {
	case OutcomeLocked:
		return "locked"
	case OutcomeOtpRequired:
		return "otp_required"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// InvalidReason is the internal cause of an [OutcomeInvalid]. It is logged and
// audited but never sent to the client.
type InvalidReason string

const (
	ReasonRateLimited        InvalidReason = "rate_limited"
	ReasonInvalidCredentials InvalidReason = "invalid_credentials"
	ReasonInvalidPassword    InvalidReason = "invalid_password"
	ReasonInactive           InvalidReason = "inactive"
	ReasonTenantMismatch     InvalidReason = "tenant_mismatch"
	ReasonInvalidOtp         InvalidReason = "invalid_otp"
)

// Session is the token pair handed to an authenticated client.
type Session struct {
	AccountID             int64
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	TenantID              *int64
	Username              string
}

/*
LoginOutcome is the result of [Service.Login] and [Service.VerifyOtpAndLogin].

Exactly one variant is populated, selected by Kind. Use the constructors below;
callers switch on Kind and read only the matching accessor.
*/
type LoginOutcome struct {
	kind        OutcomeKind
	session     *Session
	maskedEmail string
	challenge   string
	lockedUntil time.Time
	reason      InvalidReason
}

func authenticated(session *Session) LoginOutcome {
	return LoginOutcome{kind: OutcomeAuthenticated, session: session}
}

func otpRequired(maskedEmail, challenge string) LoginOutcome {
	return LoginOutcome{kind: OutcomeOtpRequired, maskedEmail: maskedEmail, challenge: challenge}
}

func locked(until time.Time) LoginOutcome {
	return LoginOutcome{kind: OutcomeLocked, lockedUntil: until}
}

func invalid(reason InvalidReason) LoginOutcome {
	return LoginOutcome{kind: OutcomeInvalid, reason: reason}
}

// Kind returns the populated variant.
func (outcome LoginOutcome) Kind() OutcomeKind { return outcome.kind }

// Session returns the minted session of an [OutcomeAuthenticated].
func (outcome LoginOutcome) Session() *Session { return outcome.session }

// MaskedEmail returns where the code was sent for an [OutcomeOtpRequired].
func (outcome LoginOutcome) MaskedEmail() string { return outcome.maskedEmail }

// Challenge returns the opaque reference that verify-otp accepts in place of
// the email for an [OutcomeOtpRequired].
func (outcome LoginOutcome) Challenge() string { return outcome.challenge }

// LockedUntil returns the lockout expiry of an [OutcomeLocked].
func (outcome LoginOutcome) LockedUntil() time.Time { return outcome.lockedUntil }

// Reason returns the internal cause of an [OutcomeInvalid].
func (outcome LoginOutcome) Reason() InvalidReason { return outcome.reason }
