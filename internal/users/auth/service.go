// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
)

// # Contracts & Types

// ServiceConfig holds the deployment switches of the session facade.
type ServiceConfig struct {
	// OtpLoginRequired forces the emailed second factor for every account.
	OtpLoginRequired bool

	// MailSendTimeout bounds a single OTP delivery.
	MailSendTimeout time.Duration
}

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Throttle    *Throttle
	Accounts    AccountRepository
	Verifier    CredentialVerifier
	Otp         *OtpChallenge
	Mailer      OtpMailer
	Permissions PermissionRepository
	Tokens      *TokenIssuer
	Audit       AuditSink
}

// Service is the session facade: password login with an optional second
// factor, refresh-token renewal and logout.
//
// # Review Process
//
// This service is critical for security. Any change to the order of the
// login steps must keep the hash comparison unconditional.
type Service struct {
	throttle    *Throttle
	accounts    AccountRepository
	verifier    CredentialVerifier
	otp         *OtpChallenge
	mailer      OtpMailer
	permissions PermissionRepository
	tokens      *TokenIssuer
	audit       AuditSink
	config      ServiceConfig
	now         func() time.Time
}

// NewService constructs a new [Service]. A nil mailer disables OTP delivery
// (codes are still issued and logged as undeliverable).
func NewService(deps Dependencies, config ServiceConfig, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		throttle:    deps.Throttle,
		accounts:    deps.Accounts,
		verifier:    deps.Verifier,
		otp:         deps.Otp,
		mailer:      deps.Mailer,
		permissions: deps.Permissions,
		tokens:      deps.Tokens,
		audit:       deps.Audit,
		config:      config,
		now:         now,
	}
}

// RequestMeta identifies where a request came from.
type RequestMeta struct {
	IPAddress string
	UserAgent string

	// TenantID is the tenant resolved from the request host; nil means unconstrained.
	TenantID *int64
}

// # Password Login

// LoginInput defines credentials for a password login.
type LoginInput struct {
	UsernameOrEmail string
	Password        string
	RequestMeta
}

/*
Login runs the password login state machine.

Description: Records and throttles the attempt, verifies the password (against
a decoy when the identifier is unknown), applies lockout bookkeeping, enforces
the tenant constraint, and then either pauses for a one-time code or mints a session.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - LoginOutcome: Exactly one of Authenticated, OtpRequired, Locked or Invalid
  - error: Store or signing failures; no outcome is valid alongside an error
*/
func (service *Service) Login(context context.Context, input LoginInput) (LoginOutcome, error) {
	now := service.now()
	event := service.newEvent(auditEventLogin, input.UsernameOrEmail, input.RequestMeta, now)

	// 1. Record first, then decide
	allowed, err := service.admit(context, input.UsernameOrEmail, input.RequestMeta, now)
	if err != nil {
		return LoginOutcome{}, err
	}
	if !allowed {
		service.recordAudit(context, event.with(nil, auditStatusFailed, string(ReasonRateLimited)))
		return invalid(ReasonRateLimited), nil
	}

	// 2. Look up and always compare
	account, err := service.accounts.FindByLogin(context, input.UsernameOrEmail)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("auth_service_account_lookup_failed: %w", err)
	}

	passwordValid := service.verifier.Verify(input.Password, account)

	// 3. Unknown identifier or wrong password
	if account == nil {
		service.recordAudit(context, event.with(nil, auditStatusFailed, string(ReasonInvalidCredentials)))
		return invalid(ReasonInvalidCredentials), nil
	}

	if !passwordValid {
		if _, err := service.accounts.RegisterFailure(context, account.ID, now); err != nil {
			return LoginOutcome{}, fmt.Errorf("auth_service_register_failure_failed: %w", err)
		}
		service.recordAudit(context, event.with(account, auditStatusFailed, string(ReasonInvalidPassword)))
		return invalid(ReasonInvalidPassword), nil
	}

	// 4-6. Account state checks
	if outcome, rejected := service.checkAccount(context, account, input.TenantID, event, now); rejected {
		return outcome, nil
	}

	// 7. Second factor
	if service.config.OtpLoginRequired || account.TwoFactorEnabled {
		issued, err := service.otp.Issue(context, account.Email, OtpPurposeLogin)
		if err != nil {
			return LoginOutcome{}, err
		}

		service.dispatchOtp(context, account.Email, issued.Code, issued.ExpiresAt)
		service.recordAudit(context, event.with(account, auditStatusPending, "otp_sent"))

		return otpRequired(MaskEmail(account.Email), issued.Challenge), nil
	}

	// 8. Session
	return service.complete(context, account, event, now)
}

// # Second Factor

// OtpLoginInput carries the emailed code that completes a paused login. The
// login is named either by Email or by the Challenge reference returned with
// [OutcomeOtpRequired]; when both are sent they must agree.
type OtpLoginInput struct {
	Email     string
	Challenge string
	Code      string
	RequestMeta
}

/*
VerifyOtpAndLogin completes a login paused at [OutcomeOtpRequired].

Every failure collapses to Invalid(invalid_otp) and never touches the password
failure counter. The code is checked even when no account matches the email
or the challenge resolves to nothing.
*/
func (service *Service) VerifyOtpAndLogin(context context.Context, input OtpLoginInput) (LoginOutcome, error) {
	now := service.now()
	event := service.newEvent(auditEventOtp, input.Email, input.RequestMeta, now)

	allowed, err := service.admit(context, input.Email, input.RequestMeta, now)
	if err != nil {
		return LoginOutcome{}, err
	}
	if !allowed {
		service.recordAudit(context, event.with(nil, auditStatusFailed, string(ReasonRateLimited)))
		return invalid(ReasonRateLimited), nil
	}

	email := input.Email
	if input.Challenge != "" {
		resolved, err := service.otp.Resolve(context, input.Challenge, OtpPurposeLogin)
		if err != nil {
			return LoginOutcome{}, err
		}
		if email != "" && !strings.EqualFold(email, resolved) {
			resolved = ""
		}
		email = resolved
		if email != "" {
			event.Identity = email
		}
	}

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("auth_service_account_lookup_failed: %w", err)
	}

	codeValid, err := service.otp.Verify(context, email, input.Code, OtpPurposeLogin)
	if err != nil {
		return LoginOutcome{}, err
	}

	if !codeValid || account == nil {
		service.recordAudit(context, event.with(account, auditStatusFailed, string(ReasonInvalidOtp)))
		return invalid(ReasonInvalidOtp), nil
	}

	// Inactive, locked and foreign-tenant accounts are audited precisely but
	// answered like a wrong code.
	if _, rejected := service.checkAccount(context, account, input.TenantID, event, now); rejected {
		return invalid(ReasonInvalidOtp), nil
	}

	return service.complete(context, account, event, now)
}

// # Session Management

/*
Refresh rotates a refresh token and mints a new access token.

Returns:
  - RenewedSession: The rotated token pair
  - error: [ErrNoRefreshToken], [ErrInvalidRefreshToken] or store failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string, meta RequestMeta) (RenewedSession, error) {
	event := service.newEvent(auditEventRefresh, "", meta, service.now())

	session, err := service.tokens.Renew(context, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) || errors.Is(err, ErrNoRefreshToken) {
			service.recordAudit(context, event.with(nil, auditStatusFailed, "invalid_refresh_token"))
		}
		return RenewedSession{}, err
	}

	accountID := session.AccountID
	event.AccountID = &accountID
	event.TenantID = session.TenantID
	event.Identity = session.Username
	service.recordAudit(context, event.with(nil, auditStatusSuccess, "renewed"))

	return session, nil
}

// Logout revokes the presented refresh token. A missing or unknown token is not an error.
func (service *Service) Logout(context context.Context, refreshToken string, meta RequestMeta) error {
	if err := service.tokens.Revoke(context, refreshToken); err != nil {
		return err
	}

	event := service.newEvent(auditEventLogout, "", meta, service.now())
	if claims := ctxutil.GetAuthUser(context); claims != nil {
		event.Identity = claims.Username
		if id, err := claims.UserID(); err == nil {
			event.AccountID = &id
		}
		event.TenantID = claims.TenantID
	}
	service.recordAudit(context, event.with(nil, auditStatusSuccess, "logged_out"))

	return nil
}

// # Internal Steps

// admit records the attempt and asks the throttle whether to evaluate it.
func (service *Service) admit(context context.Context, identifier string, meta RequestMeta, now time.Time) (bool, error) {
	err := service.throttle.RecordAttempt(context, LoginAttempt{
		IPAddress:  meta.IPAddress,
		Identifier: identifier,
		UserAgent:  meta.UserAgent,
		AttemptAt:  now,
	})
	if err != nil {
		return false, err
	}

	return service.throttle.Allow(context, meta.IPAddress)
}

// checkAccount applies the active, lockout and tenant rules, in that order.
func (service *Service) checkAccount(context context.Context, account *Account, tenantID *int64, event AuditEvent, now time.Time) (LoginOutcome, bool) {
	if !account.IsActive {
		service.recordAudit(context, event.with(account, auditStatusFailed, string(ReasonInactive)))
		return invalid(ReasonInactive), true
	}

	if account.IsLockedAt(now) {
		service.recordAudit(context, event.with(account, auditStatusLocked, "account_locked"))
		return locked(*account.LockoutUntil), true
	}

	if !account.BelongsTo(tenantID) {
		service.recordAudit(context, event.with(account, auditStatusFailed, string(ReasonTenantMismatch)))
		return invalid(ReasonTenantMismatch), true
	}

	return LoginOutcome{}, false
}

// complete resets bookkeeping, resolves grants and mints the session.
func (service *Service) complete(context context.Context, account *Account, event AuditEvent, now time.Time) (LoginOutcome, error) {
	if err := service.accounts.RegisterSuccess(context, account.ID, now); err != nil {
		return LoginOutcome{}, fmt.Errorf("auth_service_register_success_failed: %w", err)
	}

	grants, err := service.permissions.GrantsFor(context, account)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("auth_service_grants_failed: %w", err)
	}

	session, err := service.tokens.IssueTokens(context, account, grants)
	if err != nil {
		return LoginOutcome{}, err
	}

	service.recordAudit(context, event.with(account, auditStatusSuccess, "authenticated"))

	return authenticated(&session), nil
}

// dispatchOtp sends the code in the background. The request's cancellation does
// not reach the send; MailSendTimeout bounds it. Failures are logged only.
func (service *Service) dispatchOtp(ctx context.Context, email, code string, expiresAt time.Time) {
	logger := ctxutil.GetLogger(ctx)

	if service.mailer == nil {
		logger.WarnContext(ctx, "login_otp_mailer_disabled", slog.String("email", MaskEmail(email)))
		return
	}

	detached := context.WithoutCancel(ctx)

	go func() {
		sendCtx, cancel := context.WithTimeout(detached, service.config.MailSendTimeout)
		defer cancel()

		if err := service.mailer.SendOtp(sendCtx, email, code, expiresAt); err != nil {
			logger.ErrorContext(sendCtx, "login_otp_dispatch_failed",
				slog.String("email", MaskEmail(email)),
				slog.Any("error", err),
			)
		}
	}()
}

// recordAudit writes the event; failures are logged at WARN and dropped.
func (service *Service) recordAudit(context context.Context, event AuditEvent) {
	if service.audit == nil {
		return
	}

	if err := service.audit.Record(context, event); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "audit_record_failed",
			slog.String("event_type", event.EventType),
			slog.String("status", event.Status),
			slog.Any("error", err),
		)
	}
}

// newEvent prepares an audit row carrying the request identity.
func (service *Service) newEvent(eventType, identity string, meta RequestMeta, now time.Time) AuditEvent {
	return AuditEvent{
		TenantID:  meta.TenantID,
		EventType: eventType,
		Identity:  identity,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}
}

// with completes the event with an outcome; a non-nil account supplies the ids.
func (event AuditEvent) with(account *Account, status, reason string) AuditEvent {
	event.Status = status
	event.Reason = reason
	if account != nil {
		id := account.ID
		event.AccountID = &id
		event.TenantID = account.TenantID
	}
	return event
}
