// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/sec"
)

// OtpChallenge issues and verifies single-use numeric codes keyed by (email, purpose).
// Each code also carries an opaque challenge reference the client can present
// instead of the email.
type OtpChallenge struct {
	codes OtpRepository
	now   func() time.Time
}

// NewOtpChallenge constructs an [OtpChallenge] over the code store.
func NewOtpChallenge(codes OtpRepository, now func() time.Time) *OtpChallenge {
	if now == nil {
		now = time.Now
	}
	return &OtpChallenge{codes: codes, now: now}
}

// IssuedOtp is a freshly stored code and the opaque reference to its challenge.
type IssuedOtp struct {
	// Code is the plaintext code to deliver by mail.
	Code string

	// Challenge identifies the pending login without revealing the email. Only
	// its SHA-256 digest is stored.
	Challenge string

	ExpiresAt time.Time
}

/*
Issue invalidates every outstanding code for (email, purpose) and stores a
fresh one that expires after [OtpTTL].

Returns:
  - IssuedOtp: The plaintext code, its challenge reference and expiry
  - error: Generation or persistence failures
*/
func (challenge *OtpChallenge) Issue(context context.Context, email, purpose string) (IssuedOtp, error) {
	code, err := sec.GenerateNumericCode(OtpLength)
	if err != nil {
		return IssuedOtp{}, fmt.Errorf("auth_otp_generate_failed: %w", err)
	}

	reference, err := sec.GenerateSecureToken()
	if err != nil {
		return IssuedOtp{}, fmt.Errorf("auth_otp_challenge_generate_failed: %w", err)
	}

	now := challenge.now()
	expiresAt := now.Add(OtpTTL)

	if err := challenge.codes.Replace(context, email, purpose, code, sec.HashToken(reference), expiresAt, now); err != nil {
		return IssuedOtp{}, fmt.Errorf("auth_otp_issue_failed: %w", err)
	}

	return IssuedOtp{Code: code, Challenge: reference, ExpiresAt: expiresAt}, nil
}

// Resolve returns the email a pending challenge was issued for, or "" when the
// reference is unknown, superseded, used or expired.
func (challenge *OtpChallenge) Resolve(context context.Context, reference, purpose string) (string, error) {
	if reference == "" {
		return "", nil
	}

	email, err := challenge.codes.EmailForChallenge(context, sec.HashToken(reference), purpose, challenge.now())
	if err != nil {
		return "", fmt.Errorf("auth_otp_resolve_failed: %w", err)
	}
	return email, nil
}

// Verify consumes the code if it is current. Wrong, expired and used codes all
// report false; a code is accepted at most once even under concurrent calls.
func (challenge *OtpChallenge) Verify(context context.Context, email, code, purpose string) (bool, error) {
	consumed, err := challenge.codes.Consume(context, email, purpose, code, challenge.now())
	if err != nil {
		return false, fmt.Errorf("auth_otp_verify_failed: %w", err)
	}
	return consumed, nil
}
