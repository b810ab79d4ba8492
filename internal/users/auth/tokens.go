// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/sec"
)

// AccessTokenSigner mints signed access tokens; [sec.TokenService] implements it.
type AccessTokenSigner interface {
	GenerateAccessToken(input sec.AccessTokenInput, issuedAt time.Time, timeToLive time.Duration) (string, time.Time, error)
}

// TokenIssuerConfig holds the session lifetimes.
type TokenIssuerConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenIssuer mints access tokens and persists opaque refresh tokens.
type TokenIssuer struct {
	signer        AccessTokenSigner
	refreshTokens RefreshTokenRepository
	accounts      AccountRepository
	permissions   PermissionRepository
	config        TokenIssuerConfig
	now           func() time.Time
}

// NewTokenIssuer constructs a [TokenIssuer].
func NewTokenIssuer(
	signer AccessTokenSigner,
	refreshTokens RefreshTokenRepository,
	accounts AccountRepository,
	permissions PermissionRepository,
	config TokenIssuerConfig,
	now func() time.Time,
) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		signer:        signer,
		refreshTokens: refreshTokens,
		accounts:      accounts,
		permissions:   permissions,
		config:        config,
		now:           now,
	}
}

// IssuedTokens is the full token pair produced at login.
type IssuedTokens = Session

// RenewedSession is the result of a refresh: a new access token and, since
// refresh tokens rotate on use, a new refresh token.
type RenewedSession = Session

/*
IssueTokens mints an access token carrying the given grants and stores a new
refresh token for the account.

Parameters:
  - context: context.Context
  - account: *Account
  - grants: Grants (roles and permissions, resolved by the caller)

Returns:
  - IssuedTokens: Both tokens with their expiries
  - error: Signing or persistence failures
*/
func (issuer *TokenIssuer) IssueTokens(context context.Context, account *Account, grants Grants) (IssuedTokens, error) {
	now := issuer.now()

	accessToken, accessExpiresAt, err := issuer.signAccess(account, grants, now)
	if err != nil {
		return IssuedTokens{}, err
	}

	refreshToken, err := sec.GenerateSecureToken()
	if err != nil {
		return IssuedTokens{}, fmt.Errorf("auth_token_refresh_generate_failed: %w", err)
	}

	refreshExpiresAt := now.Add(issuer.config.RefreshTokenTTL)
	if err := issuer.refreshTokens.Create(context, account.ID, sec.HashToken(refreshToken), refreshExpiresAt, now); err != nil {
		return IssuedTokens{}, fmt.Errorf("auth_token_refresh_persist_failed: %w", err)
	}

	return IssuedTokens{
		AccountID:             account.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
		TenantID:              account.TenantID,
		Username:              account.Username,
	}, nil
}

/*
Renew exchanges a usable refresh token for a new session.

The presented token is revoked and replaced in one transaction; replaying it
afterwards fails. The owning account is re-read and its grants re-resolved, so
deactivated or deleted accounts cannot renew.

Returns:
  - RenewedSession: New access and refresh tokens
  - error: [ErrInvalidRefreshToken] or persistence failures
*/
func (issuer *TokenIssuer) Renew(context context.Context, refreshToken string) (RenewedSession, error) {
	if refreshToken == "" {
		return RenewedSession{}, ErrNoRefreshToken
	}

	now := issuer.now()

	newRefreshToken, err := sec.GenerateSecureToken()
	if err != nil {
		return RenewedSession{}, fmt.Errorf("auth_token_refresh_generate_failed: %w", err)
	}
	refreshExpiresAt := now.Add(issuer.config.RefreshTokenTTL)

	accountID, rotated, err := issuer.refreshTokens.Rotate(context, sec.HashToken(refreshToken), sec.HashToken(newRefreshToken), refreshExpiresAt, now)
	if err != nil {
		return RenewedSession{}, fmt.Errorf("auth_token_rotate_failed: %w", err)
	}
	if !rotated {
		return RenewedSession{}, ErrInvalidRefreshToken
	}

	account, err := issuer.accounts.FindByID(context, accountID)
	if err != nil {
		return RenewedSession{}, fmt.Errorf("auth_token_account_lookup_failed: %w", err)
	}

	if account == nil || !account.IsActive {
		// The replacement is useless to an account that may not log in.
		if err := issuer.refreshTokens.Revoke(context, sec.HashToken(newRefreshToken), now); err != nil {
			return RenewedSession{}, fmt.Errorf("auth_token_revoke_failed: %w", err)
		}
		return RenewedSession{}, ErrInvalidRefreshToken
	}

	grants, err := issuer.permissions.GrantsFor(context, account)
	if err != nil {
		return RenewedSession{}, fmt.Errorf("auth_token_grants_failed: %w", err)
	}

	accessToken, accessExpiresAt, err := issuer.signAccess(account, grants, now)
	if err != nil {
		return RenewedSession{}, err
	}

	return RenewedSession{
		AccountID:             account.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          newRefreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
		TenantID:              account.TenantID,
		Username:              account.Username,
	}, nil
}

// Revoke invalidates a refresh token. Unknown tokens are ignored.
func (issuer *TokenIssuer) Revoke(context context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := issuer.refreshTokens.Revoke(context, sec.HashToken(refreshToken), issuer.now()); err != nil {
		return fmt.Errorf("auth_token_revoke_failed: %w", err)
	}
	return nil
}

// signAccess builds the claims for account and signs them.
func (issuer *TokenIssuer) signAccess(account *Account, grants Grants, now time.Time) (string, time.Time, error) {
	token, expiresAt, err := issuer.signer.GenerateAccessToken(sec.AccessTokenInput{
		UserID:      account.ID,
		Username:    account.Username,
		TenantID:    account.TenantID,
		Roles:       grants.Roles,
		Permissions: grants.Permissions,
	}, now, issuer.config.AccessTokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth_token_sign_failed: %w", err)
	}

	return token, expiresAt, nil
}
