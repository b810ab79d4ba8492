// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/internal/platform/middleware"
	requestutil "github.com/taibuivan/skpdportal/internal/platform/request"
	"github.com/taibuivan/skpdportal/internal/platform/respond"
	"github.com/taibuivan/skpdportal/internal/platform/validate"
)

// maxIdentifierLength bounds usernames and emails accepted on the wire.
const maxIdentifierLength = 256

// # Definitions & Constructors

// Handler implements the session endpoints mounted at /auth.
//
// # Scope
//
// Transport concerns only: decoding, validation, cookies and the mapping of
// [LoginOutcome] variants onto status codes.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new [Handler]. secureCookies sets the Secure flag on
// both session cookies and should be false only in development.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login      : Password login; may pause for a one-time code.
//   - POST /verify-otp : Completes a paused login.
//   - POST /refresh    : Rotates the refresh cookie.
//   - POST /logout     : Revokes the refresh cookie.
//   - GET  /me         : Returns the caller's claims.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/verify-otp", handler.verifyOtp)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
	})

	return router
}

// # Payloads

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type verifyOtpRequest struct {
	Email     string `json:"email"`
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

type tokenResponse struct {
	AccessToken              string    `json:"accessToken"`
	ExpiresAtUtc             time.Time `json:"expiresAtUtc"`
	RefreshToken             string    `json:"refreshToken"`
	RefreshTokenExpiresAtUtc time.Time `json:"refreshTokenExpiresAtUtc"`
	TenantID                 *int64    `json:"tenantId"`
	Username                 string    `json:"username"`
}

type otpRequiredResponse struct {
	RequiresOtp bool   `json:"requiresOtp"`
	Email       string `json:"email"`
	Challenge   string `json:"challenge"`
}

type refreshResponse struct {
	AccessToken              string    `json:"accessToken"`
	ExpiresAtUtc             time.Time `json:"expiresAtUtc"`
	RefreshTokenExpiresAtUtc time.Time `json:"refreshTokenExpiresAtUtc"`
}

type meResponse struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	TenantID     *int64    `json:"tenantId"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions"`
	ExpiresAtUtc time.Time `json:"expiresAtUtc"`
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (UsernameOrEmail, Password)

Response:
  - 200: tokenResponse and session cookies, or otpRequiredResponse
  - 400: VALIDATION_ERROR: Missing fields
  - 401: invalid_credentials: Any rejection that must stay indistinguishable
  - 423: account_locked: Correct password on a locked account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsernameOrEmail, input.UsernameOrEmail).
		MaxLen(FieldUsernameOrEmail, input.UsernameOrEmail, maxIdentifierLength).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	outcome, err := handler.authService.Login(request.Context(), LoginInput{
		UsernameOrEmail: input.UsernameOrEmail,
		Password:        input.Password,
		RequestMeta:     requestMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	switch outcome.Kind() {
	case OutcomeAuthenticated:
		handler.writeSession(writer, outcome.Session())
	case OutcomeOtpRequired:
		respond.OK(writer, otpRequiredResponse{
			RequiresOtp: true,
			Email:       outcome.MaskedEmail(),
			Challenge:   outcome.Challenge(),
		})
	case OutcomeLocked:
		respond.Error(writer, request, ErrAccountLocked)
	default:
		respond.Error(writer, request, ErrInvalidCredentials)
	}
}

/*
VerifyOtp completes a login that paused for a one-time code.

POST /api/v1/auth/verify-otp

The paused login is named by "challenge" (returned with requiresOtp) or by
"email"; at least one is required.

Response:
  - 200: tokenResponse and session cookies
  - 400: VALIDATION_ERROR: Malformed email or code, or neither email nor challenge
  - 401: invalid_otp: Wrong, expired or used code
*/
func (handler *Handler) verifyOtp(writer http.ResponseWriter, request *http.Request) {
	var input verifyOtpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if input.Email != "" {
		validator.Email(FieldEmail, input.Email)
	}
	validator.Custom(FieldChallenge, input.Email == "" && strings.TrimSpace(input.Challenge) == "", "Either email or challenge is required").
		MaxLen(FieldChallenge, input.Challenge, maxChallengeLength).
		Required(FieldCode, input.Code).
		Digits(FieldCode, input.Code, OtpLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	outcome, err := handler.authService.VerifyOtpAndLogin(request.Context(), OtpLoginInput{
		Email:       input.Email,
		Challenge:   strings.TrimSpace(input.Challenge),
		Code:        input.Code,
		RequestMeta: requestMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if outcome.Kind() != OutcomeAuthenticated {
		respond.Error(writer, request, ErrInvalidOtp)
		return
	}

	handler.writeSession(writer, outcome.Session())
}

/*
Refresh rotates the refresh cookie and issues a new access token.

POST /api/v1/auth/refresh

Response:
  - 200: refreshResponse and rotated cookies
  - 401: no_refresh_token / invalid_refresh_token (cookies cleared)
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var refreshToken string
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	session, err := handler.authService.Refresh(request.Context(), refreshToken, requestMeta(request))
	if err != nil {
		if errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrInvalidRefreshToken) {
			handler.clearCookies(writer)
		}
		respond.Error(writer, request, err)
		return
	}

	handler.setCookies(writer, session)

	respond.OK(writer, refreshResponse{
		AccessToken:              session.AccessToken,
		ExpiresAtUtc:             session.AccessTokenExpiresAt.UTC(),
		RefreshTokenExpiresAtUtc: session.RefreshTokenExpiresAt.UTC(),
	})
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Revokes the refresh cookie if present and always clears both
cookies, so it succeeds for anonymous callers too.
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var refreshToken string
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	handler.clearCookies(writer)

	if err := handler.authService.Logout(request.Context(), refreshToken, requestMeta(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		constants.FieldMessage: "Logged out",
	})
}

// me returns the verified claims of the caller.
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := meResponse{
		UserID:      claims.Subject,
		Username:    claims.Username,
		TenantID:    claims.TenantID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
	if claims.ExpiresAt != nil {
		response.ExpiresAtUtc = claims.ExpiresAt.Time.UTC()
	}

	respond.OK(writer, response)
}

// # Cookie Helpers

func (handler *Handler) writeSession(writer http.ResponseWriter, session *Session) {
	handler.setCookies(writer, *session)

	respond.OK(writer, tokenResponse{
		AccessToken:              session.AccessToken,
		ExpiresAtUtc:             session.AccessTokenExpiresAt.UTC(),
		RefreshToken:             session.RefreshToken,
		RefreshTokenExpiresAtUtc: session.RefreshTokenExpiresAt.UTC(),
		TenantID:                 session.TenantID,
		Username:                 session.Username,
	})
}

func (handler *Handler) setCookies(writer http.ResponseWriter, session Session) {
	http.SetCookie(writer, handler.cookie(constants.AccessTokenCookieName, constants.AccessTokenCookiePath, session.AccessToken, session.AccessTokenExpiresAt))
	http.SetCookie(writer, handler.cookie(constants.RefreshTokenCookieName, constants.RefreshTokenCookiePath, session.RefreshToken, session.RefreshTokenExpiresAt))
}

func (handler *Handler) clearCookies(writer http.ResponseWriter) {
	for _, cookie := range []*http.Cookie{
		handler.cookie(constants.AccessTokenCookieName, constants.AccessTokenCookiePath, "", time.Time{}),
		handler.cookie(constants.RefreshTokenCookieName, constants.RefreshTokenCookiePath, "", time.Time{}),
	} {
		cookie.MaxAge = -1
		http.SetCookie(writer, cookie)
	}
}

func (handler *Handler) cookie(name, path, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// requestMeta collects the caller's address, agent and resolved tenant.
func requestMeta(request *http.Request) RequestMeta {
	return RequestMeta{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
		TenantID:  ctxutil.GetTenant(request.Context()),
	}
}
