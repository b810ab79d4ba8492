// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loginattempt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/internal/platform/sec"
	"github.com/taibuivan/skpdportal/internal/users/loginattempt"
	"github.com/taibuivan/skpdportal/pkg/pagination"
	"github.com/taibuivan/skpdportal/pkg/pointer"
)

type memRepository struct {
	mu       sync.Mutex
	attempts []loginattempt.Attempt
}

func (m *memRepository) List(_ context.Context, params pagination.Params) ([]loginattempt.Attempt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []loginattempt.Attempt
	needle := strings.ToLower(params.Search)
	for i := len(m.attempts) - 1; i >= 0; i-- {
		attempt := m.attempts[i]
		haystack := strings.ToLower(attempt.IPAddress + " " + pointer.Val(attempt.Identifier) + " " + attempt.UserAgent)
		if needle == "" || strings.Contains(haystack, needle) {
			matched = append(matched, attempt)
		}
	}

	start := min(params.Offset(), len(matched))
	end := min(start+params.Limit, len(matched))
	return matched[start:end], len(matched), nil
}

func (m *memRepository) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, attempt := range m.attempts {
		if attempt.ID == id {
			m.attempts = append(m.attempts[:i], m.attempts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepository) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = nil
	return nil
}

type memAudit struct {
	events []loginattempt.AdminEvent
}

func (m *memAudit) Write(_ context.Context, event loginattempt.AdminEvent) error {
	m.events = append(m.events, event)
	return nil
}

func seed() *memRepository {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repository := &memRepository{}
	for i := int64(1); i <= 15; i++ {
		ip := "10.0.0.1"
		if i%3 == 0 {
			ip = "172.16.5.9"
		}
		repository.attempts = append(repository.attempts, loginattempt.Attempt{
			ID:         i,
			IPAddress:  ip,
			Identifier: pointer.To("operator"),
			UserAgent:  "Mozilla/5.0",
			AttemptAt:  base.Add(time.Duration(i) * time.Second),
		})
	}
	return repository
}

// withClaims stands in for the token middleware.
func withClaims(claims *sec.AuthClaims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims != nil {
				r = r.WithContext(ctxutil.WithAuthUser(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func admin() *sec.AuthClaims {
	return &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
		Username:         "superadmin",
		Permissions:      []string{"manage_all"},
	}
}

func newRouter(claims *sec.AuthClaims, repository *memRepository, audit *memAudit) http.Handler {
	service := loginattempt.NewService(repository, audit, nil)
	router := chi.NewRouter()
	router.Use(withClaims(claims))
	router.Mount("/api/v1/login-attempts", loginattempt.NewHandler(service).Routes())
	return router
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(method, path, nil))
	return recorder
}

/*
TestRoutes_RequireManageAll rejects anonymous and under-privileged callers.
*/
func TestRoutes_RequireManageAll(t *testing.T) {
	operator := admin()
	operator.Permissions = []string{"documents.read"}

	assert.Equal(t, http.StatusUnauthorized, serve(newRouter(nil, seed(), &memAudit{}), http.MethodGet, "/api/v1/login-attempts").Code)
	assert.Equal(t, http.StatusForbidden, serve(newRouter(operator, seed(), &memAudit{}), http.MethodGet, "/api/v1/login-attempts").Code)
	assert.Equal(t, http.StatusForbidden, serve(newRouter(operator, seed(), &memAudit{}), http.MethodDelete, "/api/v1/login-attempts").Code)
}

/*
TestList pages newest first and filters by search term.
*/
func TestList(t *testing.T) {
	router := newRouter(admin(), seed(), &memAudit{})

	recorder := serve(router, http.MethodGet, "/api/v1/login-attempts?page=2&limit=10")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Data []loginattempt.Attempt `json:"data"`
		Meta pagination.Meta        `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Len(t, body.Data, 5)
	assert.Equal(t, 15, body.Meta.Total)
	assert.Equal(t, 2, body.Meta.TotalPages)
	assert.Equal(t, int64(5), body.Data[0].ID)

	recorder = serve(router, http.MethodGet, "/api/v1/login-attempts?search=172.16")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Meta.Total)
	for _, attempt := range body.Data {
		assert.Equal(t, "172.16.5.9", attempt.IPAddress)
	}

	recorder = serve(router, http.MethodGet, "/api/v1/login-attempts?search=nothing-matches")
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
}

/*
TestDelete removes one attempt, audits it and answers 404 for unknown ids.
*/
func TestDelete(t *testing.T) {
	repository := seed()
	audit := &memAudit{}
	router := newRouter(admin(), repository, audit)

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/api/v1/login-attempts/3").Code)
	assert.Len(t, repository.attempts, 14)

	require.Len(t, audit.events, 1)
	event := audit.events[0]
	assert.Equal(t, "DELETE_LOGIN_ATTEMPT", event.Action)
	assert.Equal(t, "security.login_attempt.delete", event.EventType)
	assert.Equal(t, int64(3), *event.EntityID)
	assert.Equal(t, int64(1), *event.ActorID)
	assert.Equal(t, "superadmin", event.Identity)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/api/v1/login-attempts/3").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodDelete, "/api/v1/login-attempts/abc").Code)
	assert.Len(t, audit.events, 1)
}

/*
TestPurge clears every attempt through both routes.
*/
func TestPurge(t *testing.T) {
	for _, path := range []string{"/api/v1/login-attempts", "/api/v1/login-attempts/clear"} {
		repository := seed()
		audit := &memAudit{}
		router := newRouter(admin(), repository, audit)

		assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, path).Code, path)
		assert.Empty(t, repository.attempts)
		require.Len(t, audit.events, 1)
		assert.Equal(t, "CLEAR_LOGIN_ATTEMPTS", audit.events[0].Action)
		assert.Nil(t, audit.events[0].EntityID)
	}
}
