package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/middleware"
)

// pathUUID binds the named chi path parameter as a UUID. On failure it
// writes a 422 and returns false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		requestError(w, "invalid "+name+": must be a UUID")
		return id, false
	}
	return id, true
}

// pagination binds the optional ?page= and ?limit= query parameters.
func pagination(w http.ResponseWriter, r *http.Request) (domain.PaginationParams, bool) {
	var page, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		requestError(w, "invalid page: must be an integer")
		return domain.PaginationParams{}, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		requestError(w, "invalid limit: must be an integer")
		return domain.PaginationParams{}, false
	}
	return domain.NewPaginationParams(page, limit), true
}

// actor returns the authenticated actor. Routes are always behind the
// authenticator, so a missing actor is a wiring bug reported as 401.
func actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return a, ok
}

// Pagination is the paging block of list responses.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
