// Package handler contains HTTP handlers grouped by resource.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/middleware"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/auth"
	"github.com/envmgr/envmgr/internal/store"
	"gorm.io/gorm"
)

// requireClaims returns the authenticated caller's claims or writes a 401.
// RequireAuth runs first on every protected route, so a nil here means the
// route was wired without the middleware.
func requireClaims(w http.ResponseWriter, r *http.Request) *auth.Claims {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respond.Unauthorized(w, "authentication required")
	}
	return claims
}

// renderResolveError maps resolver and store errors onto the envelope.
// Anything unrecognized is logged and returned as a generic 500.
func renderResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		respond.NotFound(w, "resource not found")
	case errors.Is(err, access.ErrForbidden):
		respond.Forbidden(w, "you do not have permission to perform this action")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		respond.Conflict(w, "a resource with that identifier already exists")
	default:
		slog.Error("request failed", "err", err)
		respond.Internal(w)
	}
}
