package handler

import (
	"encoding/json"
	"net/http"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/store"
)

// SnapshotHandler handles environment snapshot routes.
type SnapshotHandler struct {
	resolver  *access.Resolver
	snapshots *store.Snapshots
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(resolver *access.Resolver, snapshots *store.Snapshots) *SnapshotHandler {
	return &SnapshotHandler{resolver: resolver, snapshots: snapshots}
}

type snapshotCreateRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/environments/{id}/snapshots. Requires
// maintainer.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	envID := r.PathValue("id")
	grant, err := h.resolver.Environment(r.Context(), claims.UserID, envID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !grant.CanWrite() {
		respond.Forbidden(w, "project maintainer role required")
		return
	}

	var req snapshotCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respond.ValidationError(w, "invalid snapshot request", map[string]string{"name": "required"})
		return
	}
	rec, err := h.snapshots.Create(r.Context(), envID, req.Name)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.Created(w, rec)
}

// List handles GET /api/v1/environments/{id}/snapshots, newest first.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	envID := r.PathValue("id")
	if _, err := h.resolver.Environment(r.Context(), claims.UserID, envID); err != nil {
		renderResolveError(w, err)
		return
	}
	records, err := h.snapshots.List(r.Context(), envID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, records)
}

// Restore handles POST /api/v1/snapshots/{id}/restore. Requires
// maintainer on the snapshot's environment. The environment's variable
// set becomes exactly the snapshot's contents.
func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	snapshotID := r.PathValue("id")
	grant, _, err := h.resolver.Snapshot(r.Context(), claims.UserID, snapshotID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !grant.CanWrite() {
		respond.Forbidden(w, "project maintainer role required")
		return
	}

	envID, count, err := h.snapshots.Restore(r.Context(), snapshotID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]any{"environmentId": envID, "count": count})
}
