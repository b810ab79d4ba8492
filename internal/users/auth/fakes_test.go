// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/skpdportal/internal/platform/sec"
	"github.com/taibuivan/skpdportal/internal/users/auth"
)

// # Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// # Accounts

type memAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*auth.Account
}

func newMemAccounts(accounts ...*auth.Account) *memAccounts {
	store := &memAccounts{accounts: map[int64]*auth.Account{}}
	for _, account := range accounts {
		store.accounts[account.ID] = account
	}
	return store
}

func (m *memAccounts) copyOf(account *auth.Account) *auth.Account {
	clone := *account
	return &clone
}

func (m *memAccounts) FindByLogin(_ context.Context, usernameOrEmail string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Username == usernameOrEmail || account.Email == usernameOrEmail {
			return m.copyOf(account), nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Email == email {
			return m.copyOf(account), nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByID(_ context.Context, id int64) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		return m.copyOf(account), nil
	}
	return nil, nil
}

func (m *memAccounts) RegisterFailure(_ context.Context, id int64, now time.Time) (auth.FailureState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[id]
	account.FailedLoginAttempt++
	account.LastFailedLogin = &now

	state := auth.FailureState{FailedCount: account.FailedLoginAttempt}
	if duration, ok := auth.NextLockout(account.FailedLoginAttempt); ok {
		until := now.Add(duration)
		account.LockoutUntil = &until
		state.LockoutUntil = &until
	} else {
		account.LockoutUntil = nil
	}
	return state, nil
}

func (m *memAccounts) RegisterSuccess(_ context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[id]
	account.FailedLoginAttempt = 0
	account.LockoutUntil = nil
	account.LastLoginAt = &now
	return nil
}

func (m *memAccounts) get(id int64) auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

func (m *memAccounts) update(id int64, mutate func(*auth.Account)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(m.accounts[id])
}

// # Attempts

type memAttempts struct {
	mu       sync.Mutex
	attempts []auth.LoginAttempt
}

func (m *memAttempts) Append(_ context.Context, attempt auth.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memAttempts) CountSince(_ context.Context, ip string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, attempt := range m.attempts {
		if attempt.IPAddress == ip && attempt.AttemptAt.After(since) {
			count++
		}
	}
	return count, nil
}

// # One-Time Codes

type otpRow struct {
	email, purpose, code string
	challengeHash        string
	expiresAt            time.Time
	used                 bool
}

type memOtps struct {
	mu   sync.Mutex
	rows []*otpRow
}

func (m *memOtps) Replace(_ context.Context, email, purpose, code, challengeHash string, expiresAt, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.email == email && row.purpose == purpose {
			row.used = true
		}
	}
	m.rows = append(m.rows, &otpRow{email: email, purpose: purpose, code: code, challengeHash: challengeHash, expiresAt: expiresAt})
	return nil
}

func (m *memOtps) EmailForChallenge(_ context.Context, challengeHash, purpose string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.challengeHash == challengeHash && row.purpose == purpose && !row.used && row.expiresAt.After(now) {
			return row.email, nil
		}
	}
	return "", nil
}

func (m *memOtps) Consume(_ context.Context, email, purpose, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.email == email && row.purpose == purpose && row.code == code && !row.used && row.expiresAt.After(now) {
			row.used = true
			return true, nil
		}
	}
	return false, nil
}

// # Refresh Tokens

type memRefreshTokens struct {
	mu   sync.Mutex
	rows map[string]*auth.StoredRefreshToken
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{rows: map[string]*auth.StoredRefreshToken{}}
}

func (m *memRefreshTokens) Create(_ context.Context, accountID int64, hash string, expiresAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[hash] = &auth.StoredRefreshToken{AccountID: accountID, TokenHash: hash, ExpiresAt: expiresAt, CreatedAt: now}
	return nil
}

func (m *memRefreshTokens) Rotate(_ context.Context, oldHash, newHash string, newExpiresAt, now time.Time) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[oldHash]
	if !ok || row.IsRevoked || !row.ExpiresAt.After(now) {
		return 0, false, nil
	}
	row.IsRevoked = true
	m.rows[newHash] = &auth.StoredRefreshToken{AccountID: row.AccountID, TokenHash: newHash, ExpiresAt: newExpiresAt, CreatedAt: now}
	return row.AccountID, true, nil
}

func (m *memRefreshTokens) Revoke(_ context.Context, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[hash]; ok {
		row.IsRevoked = true
	}
	return nil
}

func (m *memRefreshTokens) isRevoked(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sec.HashToken(token)]
	return ok && row.IsRevoked
}

// # Grants & Audit

type memPermissions struct {
	grants map[int64]auth.Grants
}

func (m *memPermissions) GrantsFor(_ context.Context, account *auth.Account) (auth.Grants, error) {
	return m.grants[account.ID], nil
}

type memAudit struct {
	mu     sync.Mutex
	events []auth.AuditEvent
}

func (m *memAudit) Record(_ context.Context, event auth.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) last() auth.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

// # Verifier & Mailer

// countingVerifier records every hash comparison the facade performs.
type countingVerifier struct {
	inner auth.CredentialVerifier
	mu    sync.Mutex
	calls int
}

func (v *countingVerifier) Verify(password string, account *auth.Account) bool {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.inner.Verify(password, account)
}

func (v *countingVerifier) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type sentOtp struct {
	email, code string
}

type chanMailer struct {
	sent chan sentOtp
}

func (m *chanMailer) SendOtp(_ context.Context, email, code string, _ time.Time) error {
	m.sent <- sentOtp{email: email, code: code}
	return nil
}

func (m *chanMailer) next(t *testing.T) sentOtp {
	t.Helper()
	select {
	case otp := <-m.sent:
		return otp
	case <-time.After(2 * time.Second):
		t.Fatal("no one-time code was dispatched")
		return sentOtp{}
	}
}

// # Fixture

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Rahasia#2026"
	aliceID      = int64(1)
	bobID        = int64(2)
	tenantOne    = int64(7)
)

type fixture struct {
	clock       *fakeClock
	accounts    *memAccounts
	attempts    *memAttempts
	otps        *memOtps
	refresh     *memRefreshTokens
	audit       *memAudit
	auditSink   auth.AuditSink
	verifier    *countingVerifier
	mailer      *chanMailer
	tokens      *sec.TokenService
	service     *auth.Service
	issuer      *auth.TokenIssuer
	otpRequired bool
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := sec.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

// newFixture wires a service over in-memory stores with two accounts:
// alice (tenant 7, password only) and bob (platform, two-factor enabled).
func newFixture(t *testing.T, configure ...func(*fixture)) *fixture {
	t.Helper()

	tenant := tenantOne
	hash := hashFor(t, testPassword)

	clock := newFakeClock()

	f := &fixture{
		clock: clock,
		accounts: newMemAccounts(
			&auth.Account{ID: aliceID, TenantID: &tenant, Username: "alice", Email: "alice@example.com", PasswordHash: hash, IsActive: true},
			&auth.Account{ID: bobID, Username: "bob", Email: "bob@example.com", PasswordHash: hash, IsActive: true, TwoFactorEnabled: true},
		),
		attempts: &memAttempts{},
		otps:     &memOtps{},
		refresh:  newMemRefreshTokens(),
		audit:    &memAudit{},
		mailer:   &chanMailer{sent: make(chan sentOtp, 8)},
		tokens:   sec.NewTokenService(testSecret, "skpd-portal", "skpd-portal-web", sec.WithClock(clock.Now)),
	}
	for _, apply := range configure {
		apply(f)
	}

	verifier, err := auth.NewVerifier(bcrypt.MinCost)
	require.NoError(t, err)
	f.verifier = &countingVerifier{inner: verifier}

	permissions := &memPermissions{grants: map[int64]auth.Grants{
		aliceID: {Roles: []string{"operator"}, Permissions: []string{"documents.read"}},
		bobID:   {Roles: []string{"superadmin"}, Permissions: []string{"manage_all"}},
	}}

	f.issuer = auth.NewTokenIssuer(f.tokens, f.refresh, f.accounts, permissions, auth.TokenIssuerConfig{
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, f.clock.Now)

	var sink auth.AuditSink = f.audit
	if f.auditSink != nil {
		sink = f.auditSink
	}

	f.service = auth.NewService(auth.Dependencies{
		Throttle:    auth.NewThrottle(f.attempts, f.clock.Now),
		Accounts:    f.accounts,
		Verifier:    f.verifier,
		Otp:         auth.NewOtpChallenge(f.otps, f.clock.Now),
		Mailer:      f.mailer,
		Permissions: permissions,
		Tokens:      f.issuer,
		Audit:       sink,
	}, auth.ServiceConfig{
		OtpLoginRequired: f.otpRequired,
		MailSendTimeout:  time.Second,
	}, f.clock.Now)

	return f
}

// meta builds request metadata; distinct ips keep the throttle out of lockout tests.
func meta(ip string) auth.RequestMeta {
	return auth.RequestMeta{IPAddress: ip, UserAgent: "go-test"}
}

func uniqueIP(i int) string {
	return fmt.Sprintf("10.1.%d.%d", i/250, i%250+1)
}
