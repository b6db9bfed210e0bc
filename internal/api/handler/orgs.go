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

// OrgHandler handles /api/v1/orgs routes.
type OrgHandler struct {
	db       *gorm.DB
	resolver *access.Resolver
}

// NewOrgHandler creates an OrgHandler.
func NewOrgHandler(db *gorm.DB, resolver *access.Resolver) *OrgHandler {
	return &OrgHandler{db: db, resolver: resolver}
}

type orgView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// List handles GET /api/v1/orgs, listing organizations the caller belongs to.
func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	var memberships []model.OrganizationMember
	if err := h.db.WithContext(r.Context()).
		Where("user_id = ?", claims.UserID).
		Find(&memberships).Error; err != nil {
		renderResolveError(w, err)
		return
	}

	out := make([]orgView, 0, len(memberships))
	for _, m := range memberships {
		var org model.Organization
		if err := h.db.WithContext(r.Context()).First(&org, "id = ?", m.OrganizationID).Error; err != nil {
			continue
		}
		out = append(out, orgView{ID: org.ID, Name: org.Name, Slug: org.Slug, Role: string(m.Role), CreatedAt: org.CreatedAt})
	}
	respond.OK(w, out)
}

type orgCreateRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/orgs. Any authenticated user may create an
// organization; the creator becomes its first owner.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	var req orgCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	s := slug.Make(req.Name)
	if s == "" {
		respond.ValidationError(w, "invalid organization name", map[string]string{"name": "must contain at least one alphanumeric character"})
		return
	}

	org := model.Organization{Name: req.Name, Slug: s}
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		return tx.Create(&model.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         claims.UserID,
			Role:           model.OrgRoleOwner,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "an organization with that slug already exists")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, orgView{ID: org.ID, Name: org.Name, Slug: org.Slug, Role: string(model.OrgRoleOwner), CreatedAt: org.CreatedAt})
}

// Get handles GET /api/v1/orgs/{id}.
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	var org model.Organization
	if err := h.db.WithContext(r.Context()).First(&org, "id = ?", orgID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, orgView{ID: org.ID, Name: org.Name, Slug: org.Slug, Role: string(grant.Role), CreatedAt: org.CreatedAt})
}

// Update handles PATCH /api/v1/orgs/{id}. Renaming keeps the slug stable.
// Requires admin.
func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !access.OrgAtLeast(grant.Role, model.OrgRoleAdmin) {
		respond.Forbidden(w, "organization admin role required")
		return
	}

	var req orgCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respond.ValidationError(w, "invalid update request", map[string]string{"name": "required"})
		return
	}
	var org model.Organization
	if err := h.db.WithContext(r.Context()).First(&org, "id = ?", orgID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	org.Name = req.Name
	if err := h.db.WithContext(r.Context()).Save(&org).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, orgView{ID: org.ID, Name: org.Name, Slug: org.Slug, Role: string(grant.Role), CreatedAt: org.CreatedAt})
}

// Delete handles DELETE /api/v1/orgs/{id}. Requires owner. The whole
// containment tree goes in one transaction so no orphan rows survive a
// partial failure.
func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if grant.Role != model.OrgRoleOwner {
		respond.Forbidden(w, "organization owner role required")
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var projects []model.Project
		if err := tx.Where("organization_id = ?", orgID).Find(&projects).Error; err != nil {
			return err
		}
		for _, p := range projects {
			if err := deleteProjectTree(tx, p.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("organization_id = ?", orgID).Delete(&model.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("organization_id = ?", orgID).Delete(&model.OrganizationMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Organization{}, "id = ?", orgID).Error
	})
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}

// deleteProjectTree removes a project and all its descendants inside the
// caller's transaction: environments cascade variables and snapshots.
func deleteProjectTree(tx *gorm.DB, projectID string) error {
	var envs []model.Environment
	if err := tx.Where("project_id = ?", projectID).Find(&envs).Error; err != nil {
		return err
	}
	for _, env := range envs {
		if err := tx.Where("environment_id = ?", env.ID).Delete(&model.Variable{}).Error; err != nil {
			return err
		}
		if err := tx.Where("environment_id = ?", env.ID).Delete(&model.Snapshot{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&model.Environment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectMember{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Project{}, "id = ?", projectID).Error
}
