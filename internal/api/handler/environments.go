package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/envmgr/envmgr/internal/slug"
	"gorm.io/gorm"
)

// EnvironmentHandler handles environment routes.
type EnvironmentHandler struct {
	db       *gorm.DB
	resolver *access.Resolver
}

// NewEnvironmentHandler creates an EnvironmentHandler.
func NewEnvironmentHandler(db *gorm.DB, resolver *access.Resolver) *EnvironmentHandler {
	return &EnvironmentHandler{db: db, resolver: resolver}
}

type environmentView struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

func environmentToView(e model.Environment) environmentView {
	return environmentView{ID: e.ID, ProjectID: e.ProjectID, Name: e.Name, Slug: e.Slug, CreatedAt: e.CreatedAt}
}

// List handles GET /api/v1/projects/{id}/environments.
func (h *EnvironmentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	if _, err := h.resolver.Project(r.Context(), claims.UserID, projectID); err != nil {
		renderResolveError(w, err)
		return
	}

	var envs []model.Environment
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("name asc").
		Find(&envs).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	out := make([]environmentView, 0, len(envs))
	for _, e := range envs {
		out = append(out, environmentToView(e))
	}
	respond.OK(w, out)
}

type environmentCreateRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/projects/{id}/environments. Requires
// maintainer.
func (h *EnvironmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	grant, err := h.resolver.Project(r.Context(), claims.UserID, projectID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !grant.CanWrite() {
		respond.Forbidden(w, "project maintainer role required")
		return
	}

	var req environmentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	s := slug.Make(req.Name)
	if s == "" {
		respond.ValidationError(w, "invalid environment name", map[string]string{"name": "must contain at least one alphanumeric character"})
		return
	}

	env := model.Environment{ProjectID: projectID, Name: req.Name, Slug: s}
	if err := h.db.WithContext(r.Context()).Create(&env).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "an environment with that slug already exists in this project")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, environmentToView(env))
}

// Get handles GET /api/v1/environments/{id}.
func (h *EnvironmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	envID := r.PathValue("id")
	if _, err := h.resolver.Environment(r.Context(), claims.UserID, envID); err != nil {
		renderResolveError(w, err)
		return
	}
	var env model.Environment
	if err := h.db.WithContext(r.Context()).First(&env, "id = ?", envID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, environmentToView(env))
}

// Update handles PATCH /api/v1/environments/{id}. Requires maintainer.
func (h *EnvironmentHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req environmentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respond.ValidationError(w, "invalid update request", map[string]string{"name": "required"})
		return
	}
	var env model.Environment
	if err := h.db.WithContext(r.Context()).First(&env, "id = ?", envID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	env.Name = req.Name
	if err := h.db.WithContext(r.Context()).Save(&env).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, environmentToView(env))
}

// Delete handles DELETE /api/v1/environments/{id}. Requires maintainer.
// Variables and snapshots under the environment go with it.
func (h *EnvironmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("environment_id = ?", envID).Delete(&model.Variable{}).Error; err != nil {
			return err
		}
		if err := tx.Where("environment_id = ?", envID).Delete(&model.Snapshot{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Environment{}, "id = ?", envID).Error
	})
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}
