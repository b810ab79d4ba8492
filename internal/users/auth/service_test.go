// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/internal/users/auth"
)

func login(t *testing.T, f *fixture, identifier, password string, m auth.RequestMeta) auth.LoginOutcome {
	t.Helper()
	outcome, err := f.service.Login(context.Background(), auth.LoginInput{
		UsernameOrEmail: identifier,
		Password:        password,
		RequestMeta:     m,
	})
	require.NoError(t, err)
	return outcome
}

/*
TestLogin_Success mints a session carrying tenant, roles and permissions.
*/
func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	outcome := login(t, f, "alice", testPassword, meta("10.0.0.1"))
	require.Equal(t, auth.OutcomeAuthenticated, outcome.Kind())

	session := outcome.Session()
	require.NotNil(t, session)
	assert.Equal(t, "alice", session.Username)
	require.NotNil(t, session.TenantID)
	assert.Equal(t, tenantOne, *session.TenantID)

	claims, err := f.tokens.VerifyToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"operator"}, claims.Roles)
	assert.Equal(t, []string{"documents.read"}, claims.Permissions)

	account := f.accounts.get(aliceID)
	require.NotNil(t, account.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *account.LastLoginAt)

	event := f.audit.last()
	assert.Equal(t, "auth.login", event.EventType)
	assert.Equal(t, "success", event.Status)
	require.NotNil(t, event.AccountID)
	assert.Equal(t, aliceID, *event.AccountID)
}

/*
TestLogin_ByEmail accepts the email as identifier.
*/
func TestLogin_ByEmail(t *testing.T) {
	f := newFixture(t)

	outcome := login(t, f, "alice@example.com", testPassword, meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeAuthenticated, outcome.Kind())
}

/*
TestLogin_DecoyHash runs exactly one hash comparison for an unknown
identifier and for a wrong password, and answers both with Invalid.
*/
func TestLogin_DecoyHash(t *testing.T) {
	f := newFixture(t)

	unknown := login(t, f, "ghost", testPassword, meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeInvalid, unknown.Kind())
	assert.Equal(t, auth.ReasonInvalidCredentials, unknown.Reason())
	assert.Equal(t, 1, f.verifier.count())

	wrong := login(t, f, "alice", "not-the-password", meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeInvalid, wrong.Kind())
	assert.Equal(t, auth.ReasonInvalidPassword, wrong.Reason())
	assert.Equal(t, 2, f.verifier.count())

	assert.Equal(t, 1, f.accounts.get(aliceID).FailedLoginAttempt)
}

/*
TestLogin_LockoutEscalation walks the 5 / 10 / 20 tiers and confirms that a
correct password is refused while locked and resets everything afterwards.
*/
func TestLogin_LockoutEscalation(t *testing.T) {
	f := newFixture(t)
	attempt := 0

	failUntil := func(count int) {
		for f.accounts.get(aliceID).FailedLoginAttempt < count {
			attempt++
			outcome := login(t, f, "alice", "wrong", meta(uniqueIP(attempt)))
			require.Equal(t, auth.OutcomeInvalid, outcome.Kind())
		}
	}

	tiers := []struct {
		failures int
		duration time.Duration
	}{
		{5, 15 * time.Minute},
		{10, time.Hour},
		{20, 24 * time.Hour},
	}

	for _, tier := range tiers {
		failUntil(tier.failures)

		account := f.accounts.get(aliceID)
		require.NotNil(t, account.LockoutUntil, "after %d failures", tier.failures)
		assert.Equal(t, f.clock.Now().Add(tier.duration), *account.LockoutUntil)

		attempt++
		outcome := login(t, f, "alice", testPassword, meta(uniqueIP(attempt)))
		require.Equal(t, auth.OutcomeLocked, outcome.Kind(), "after %d failures", tier.failures)
		assert.Equal(t, *account.LockoutUntil, outcome.LockedUntil())
		assert.Equal(t, "locked", f.audit.last().Status)
	}

	f.clock.Advance(24*time.Hour + time.Second)

	outcome := login(t, f, "alice", testPassword, meta("10.9.9.9"))
	require.Equal(t, auth.OutcomeAuthenticated, outcome.Kind())

	account := f.accounts.get(aliceID)
	assert.Zero(t, account.FailedLoginAttempt)
	assert.Nil(t, account.LockoutUntil)
}

/*
TestLogin_FourFailuresDoNotLock stays below the first tier.
*/
func TestLogin_FourFailuresDoNotLock(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 4; i++ {
		login(t, f, "alice", "wrong", meta("10.0.0.1"))
	}

	assert.Nil(t, f.accounts.get(aliceID).LockoutUntil)
	assert.Equal(t, auth.OutcomeAuthenticated, login(t, f, "alice", testPassword, meta("10.0.0.1")).Kind())
}

/*
TestLogin_Throttle evaluates ten attempts per minute per address on their
merits and refuses the eleventh without comparing a hash.
*/
func TestLogin_Throttle(t *testing.T) {
	f := newFixture(t)

	for i := 1; i < auth.ThrottleMaxAttempts; i++ {
		outcome := login(t, f, "ghost", "whatever", meta("10.0.0.1"))
		require.Equal(t, auth.ReasonInvalidCredentials, outcome.Reason())
	}

	tenth := login(t, f, "alice", testPassword, meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeAuthenticated, tenth.Kind())

	comparisons := f.verifier.count()

	eleventh := login(t, f, "alice", testPassword, meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeInvalid, eleventh.Kind())
	assert.Equal(t, auth.ReasonRateLimited, eleventh.Reason())
	assert.Equal(t, comparisons, f.verifier.count())

	// Another address is judged independently.
	assert.Equal(t, auth.OutcomeAuthenticated, login(t, f, "alice", testPassword, meta("10.0.0.2")).Kind())

	f.clock.Advance(auth.ThrottleWindow + time.Second)
	assert.Equal(t, auth.OutcomeAuthenticated, login(t, f, "alice", testPassword, meta("10.0.0.1")).Kind())
}

/*
TestLogin_Inactive answers a disabled account like bad credentials.
*/
func TestLogin_Inactive(t *testing.T) {
	f := newFixture(t)
	f.accounts.update(aliceID, func(a *auth.Account) { a.IsActive = false })

	outcome := login(t, f, "alice", testPassword, meta("10.0.0.1"))
	assert.Equal(t, auth.OutcomeInvalid, outcome.Kind())
	assert.Equal(t, auth.ReasonInactive, outcome.Reason())
}

/*
TestLogin_TenantConstraint admits only accounts of the resolved tenant.
*/
func TestLogin_TenantConstraint(t *testing.T) {
	f := newFixture(t)

	other := int64(99)
	mismatch := meta("10.0.0.1")
	mismatch.TenantID = &other

	outcome := login(t, f, "alice", testPassword, mismatch)
	assert.Equal(t, auth.OutcomeInvalid, outcome.Kind())
	assert.Equal(t, auth.ReasonTenantMismatch, outcome.Reason())

	own := tenantOne
	match := meta("10.0.0.1")
	match.TenantID = &own
	assert.Equal(t, auth.OutcomeAuthenticated, login(t, f, "alice", testPassword, match).Kind())

	// Platform accounts have no tenant and cannot log in through a tenant host.
	bob := login(t, f, "bob", testPassword, match)
	assert.Equal(t, auth.ReasonTenantMismatch, bob.Reason())
}

/*
TestLogin_OtpFlow pauses for a code, rejects a wrong one without touching the
password counter and completes with the right one exactly once.
*/
func TestLogin_OtpFlow(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.otpRequired = true })
	ctx := context.Background()

	outcome := login(t, f, "alice", testPassword, meta("10.0.0.1"))
	require.Equal(t, auth.OutcomeOtpRequired, outcome.Kind())
	assert.Equal(t, "ali**@example.com", outcome.MaskedEmail())
	assert.Equal(t, "pending", f.audit.last().Status)

	sent := f.mailer.next(t)
	assert.Equal(t, "alice@example.com", sent.email)

	wrong, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Email: sent.email, Code: "000000x", RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.ReasonInvalidOtp, wrong.Reason())
	assert.Zero(t, f.accounts.get(aliceID).FailedLoginAttempt)

	done, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Email: sent.email, Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeAuthenticated, done.Kind())
	assert.Equal(t, "alice", done.Session().Username)

	replay, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Email: sent.email, Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalid, replay.Kind())
}

/*
TestLogin_OtpChallengeReference completes a paused login with the opaque
challenge instead of the email.
*/
func TestLogin_OtpChallengeReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome := login(t, f, "bob", testPassword, meta("10.0.0.1"))
	require.Equal(t, auth.OutcomeOtpRequired, outcome.Kind())
	require.NotEmpty(t, outcome.Challenge())
	sent := f.mailer.next(t)

	mismatched, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{
		Email:       "alice@example.com",
		Challenge:   outcome.Challenge(),
		Code:        sent.code,
		RequestMeta: meta("10.0.0.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.ReasonInvalidOtp, mismatched.Reason())

	unknown, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Challenge: "not-a-challenge", Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.ReasonInvalidOtp, unknown.Reason())

	done, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Challenge: outcome.Challenge(), Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeAuthenticated, done.Kind())
	assert.Equal(t, "bob", done.Session().Username)
	assert.Equal(t, "bob@example.com", f.audit.last().Identity)

	replay, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Challenge: outcome.Challenge(), Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalid, replay.Kind())
}

/*
TestLogin_OtpPerAccount honors the per-account two-factor flag.
*/
func TestLogin_OtpPerAccount(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, auth.OutcomeAuthenticated, login(t, f, "alice", testPassword, meta("10.0.0.1")).Kind())
	assert.Equal(t, auth.OutcomeOtpRequired, login(t, f, "bob", testPassword, meta("10.0.0.1")).Kind())
}

/*
TestLogin_OtpReissue invalidates the first code when a second login runs.
*/
func TestLogin_OtpReissue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login(t, f, "bob", testPassword, meta("10.0.0.1"))
	first := f.mailer.next(t)
	login(t, f, "bob", testPassword, meta("10.0.0.1"))
	second := f.mailer.next(t)

	if first.code != second.code {
		outcome, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Email: first.email, Code: first.code, RequestMeta: meta("10.0.0.1")})
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalid, outcome.Kind())
	}

	outcome, err := f.service.VerifyOtpAndLogin(ctx, auth.OtpLoginInput{Email: second.email, Code: second.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, outcome.Kind())
}

/*
TestLogin_OtpExpired rejects a code presented after five minutes.
*/
func TestLogin_OtpExpired(t *testing.T) {
	f := newFixture(t)

	login(t, f, "bob", testPassword, meta("10.0.0.1"))
	sent := f.mailer.next(t)

	f.clock.Advance(auth.OtpTTL + time.Second)

	outcome, err := f.service.VerifyOtpAndLogin(context.Background(), auth.OtpLoginInput{Email: sent.email, Code: sent.code, RequestMeta: meta("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, auth.ReasonInvalidOtp, outcome.Reason())
}

/*
TestRefreshAndLogout renews a session, refuses replay and revokes on logout.
*/
func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := login(t, f, "alice", testPassword, meta("10.0.0.1")).Session()
	require.NotNil(t, session)

	f.clock.Advance(10 * time.Minute)

	renewed, err := f.service.Refresh(ctx, session.RefreshToken, meta("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", renewed.Username)

	renewal := f.audit.last()
	assert.Equal(t, "auth.refresh", renewal.EventType)
	assert.Equal(t, "success", renewal.Status)
	require.NotNil(t, renewal.AccountID)
	assert.Equal(t, aliceID, *renewal.AccountID)
	require.NotNil(t, renewal.TenantID)
	assert.Equal(t, tenantOne, *renewal.TenantID)

	_, err = f.service.Refresh(ctx, session.RefreshToken, meta("10.0.0.1"))
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	assert.Equal(t, "failed", f.audit.last().Status)

	claims, err := f.tokens.VerifyToken(renewed.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctxutil.WithAuthUser(ctx, claims), renewed.RefreshToken, meta("10.0.0.1")))
	assert.True(t, f.refresh.isRevoked(renewed.RefreshToken))
	assert.Equal(t, "alice", f.audit.last().Identity)

	_, err = f.service.Refresh(ctx, renewed.RefreshToken, meta("10.0.0.1"))
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	// Logging out without a token is harmless.
	assert.NoError(t, f.service.Logout(ctx, "", meta("10.0.0.1")))
}
