// Package controllers holds the HTTP handlers. Controllers bind and
// validate input, call a service, and translate service errors into HTTP
// statuses; no business rules live here.
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/middleware"
	"github.com/mazeltote/mazeltote/pkg/response"
)

// currentUser returns the authenticated user id and admin flag. Handlers
// behind AuthMiddleware can rely on ok being true.
func currentUser(r *http.Request) (userID uint, isAdmin bool, ok bool) {
	claims, ok := middleware.ClaimsFromCtx(r.Context())
	if !ok {
		return 0, false, false
	}
	return claims.UserID, claims.Role == "admin", true
}

// uintParam parses a numeric chi URL parameter.
func uintParam(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

// pageParams reads ?page= and ?per_page= with sane defaults.
func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// serviceError maps the service sentinel errors onto HTTP statuses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrProductNotFound):
		response.NotFound(w)
	case errors.Is(err, services.ErrNotOwner):
		response.Forbidden(w)
	case errors.Is(err, services.ErrAlreadyPaid):
		response.Error(w, http.StatusConflict, "Order is already paid")
	case errors.Is(err, services.ErrOrderExpired):
		response.Error(w, http.StatusGone, "Order payment window has expired")
	case errors.Is(err, services.ErrOrderClosed),
		errors.Is(err, services.ErrBadTransition):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidCharity),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrTotalMismatch):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Unauthorized(w)
	default:
		response.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
