// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loginattempt

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
	"github.com/taibuivan/skpdportal/internal/platform/middleware"
	requestutil "github.com/taibuivan/skpdportal/internal/platform/request"
	"github.com/taibuivan/skpdportal/internal/platform/respond"
	"github.com/taibuivan/skpdportal/pkg/pagination"
)

// Handler implements the administrative login-attempt endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] restricted to holders of manage_all.
//
// # Endpoints
//   - GET    /       : Paged list with ?page, ?limit, ?search.
//   - DELETE /{id}   : Deletes one attempt.
//   - DELETE /       : Purges all attempts (also served at /clear).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequirePermission(constants.PermissionManageAll))

	router.Get("/", handler.list)
	router.Delete("/", handler.purge)
	router.Delete("/clear", handler.purge)
	router.Delete("/{id}", handler.delete)

	return router
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	attempts, total, err := handler.service.List(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, attempts, pagination.NewMeta(params.Page, params.Limit, total))
}

func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), id, originOf(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) purge(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.Purge(request.Context(), originOf(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func originOf(request *http.Request) Origin {
	return Origin{IPAddress: middleware.RealIP(request), UserAgent: request.UserAgent()}
}
