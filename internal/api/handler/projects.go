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

// ProjectHandler handles project and project-membership routes.
type ProjectHandler struct {
	db       *gorm.DB
	resolver *access.Resolver
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(db *gorm.DB, resolver *access.Resolver) *ProjectHandler {
	return &ProjectHandler{db: db, resolver: resolver}
}

type projectView struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Role           string    `json:"role,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// List handles GET /api/v1/orgs/{id}/projects. Org admins and owners see
// every project; plain members see only the projects they belong to.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
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

	var projects []model.Project
	if err := h.db.WithContext(r.Context()).
		Where("organization_id = ?", orgID).
		Order("name asc").
		Find(&projects).Error; err != nil {
		renderResolveError(w, err)
		return
	}

	seeAll := access.OrgAtLeast(grant.Role, model.OrgRoleAdmin)
	out := make([]projectView, 0, len(projects))
	for _, p := range projects {
		var pm model.ProjectMember
		err := h.db.WithContext(r.Context()).
			Where("project_id = ? AND user_id = ?", p.ID, claims.UserID).
			First(&pm).Error
		if err != nil && !seeAll {
			continue
		}
		v := projectView{ID: p.ID, OrganizationID: p.OrganizationID, Name: p.Name, Slug: p.Slug, CreatedAt: p.CreatedAt}
		if err == nil {
			v.Role = string(pm.Role)
		}
		out = append(out, v)
	}
	respond.OK(w, out)
}

type projectCreateRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/orgs/{id}/projects. Requires org admin; the
// creator becomes the project's first maintainer.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	s := slug.Make(req.Name)
	if s == "" {
		respond.ValidationError(w, "invalid project name", map[string]string{"name": "must contain at least one alphanumeric character"})
		return
	}

	p := model.Project{OrganizationID: orgID, Name: req.Name, Slug: s}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Create(&model.ProjectMember{
			ProjectID: p.ID,
			UserID:    claims.UserID,
			Role:      model.ProjectRoleMaintainer,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "a project with that slug already exists in this organization")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, projectView{
		ID: p.ID, OrganizationID: p.OrganizationID, Name: p.Name, Slug: p.Slug,
		Role: string(model.ProjectRoleMaintainer), CreatedAt: p.CreatedAt,
	})
}

// Get handles GET /api/v1/projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	var p model.Project
	if err := h.db.WithContext(r.Context()).First(&p, "id = ?", projectID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, projectView{
		ID: p.ID, OrganizationID: p.OrganizationID, Name: p.Name, Slug: p.Slug,
		Role: string(grant.ProjectRole), CreatedAt: p.CreatedAt,
	})
}

// Update handles PATCH /api/v1/projects/{id}. Requires maintainer. The
// slug stays stable across renames.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respond.ValidationError(w, "invalid update request", map[string]string{"name": "required"})
		return
	}
	var p model.Project
	if err := h.db.WithContext(r.Context()).First(&p, "id = ?", projectID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	p.Name = req.Name
	if err := h.db.WithContext(r.Context()).Save(&p).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, projectView{
		ID: p.ID, OrganizationID: p.OrganizationID, Name: p.Name, Slug: p.Slug,
		Role: string(grant.ProjectRole), CreatedAt: p.CreatedAt,
	})
}

// Delete handles DELETE /api/v1/projects/{id}. Requires org admin.
// Everything under the project goes in one transaction.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	if _, err := h.resolver.ProjectAdmin(r.Context(), claims.UserID, projectID); err != nil {
		renderResolveError(w, err)
		return
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		return deleteProjectTree(tx, projectID)
	})
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}

type projectMemberView struct {
	UserID  string    `json:"userId"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

// ListMembers handles GET /api/v1/projects/{id}/members. Project members
// and org admins may list.
func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	if _, err := h.resolver.Project(r.Context(), claims.UserID, projectID); err != nil {
		if !errors.Is(err, access.ErrForbidden) {
			renderResolveError(w, err)
			return
		}
		// Not a project member; org admins may still inspect membership.
		if _, adminErr := h.resolver.ProjectAdmin(r.Context(), claims.UserID, projectID); adminErr != nil {
			renderResolveError(w, adminErr)
			return
		}
	}

	var memberships []model.ProjectMember
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("created_at asc").
		Find(&memberships).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	out := make([]projectMemberView, 0, len(memberships))
	for _, m := range memberships {
		var u model.User
		if err := h.db.WithContext(r.Context()).First(&u, "id = ?", m.UserID).Error; err != nil {
			continue
		}
		out = append(out, projectMemberView{UserID: u.ID, Email: u.Email, Name: u.Name, Role: string(m.Role), AddedAt: m.CreatedAt})
	}
	respond.OK(w, out)
}

type projectMemberRequest struct {
	UserID string            `json:"userId"`
	Role   model.ProjectRole `json:"role"`
}

// AddMember handles POST /api/v1/projects/{id}/members. Requires org
// admin. The user must already be an organization member.
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	grant, err := h.resolver.ProjectAdmin(r.Context(), claims.UserID, projectID)
	if err != nil {
		renderResolveError(w, err)
		return
	}

	var req projectMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respond.ValidationError(w, "invalid member request", map[string]string{"userId": "required"})
		return
	}
	if !access.ValidProjectRole(req.Role) {
		respond.ValidationError(w, "invalid member request", map[string]string{"role": "must be one of maintainer, viewer"})
		return
	}

	var om model.OrganizationMember
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ? AND user_id = ?", grant.OrganizationID, req.UserID).
		First(&om).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.ValidationError(w, "invalid member request", map[string]string{"userId": "user is not a member of the organization"})
			return
		}
		renderResolveError(w, err)
		return
	}

	pm := model.ProjectMember{ProjectID: projectID, UserID: req.UserID, Role: req.Role}
	if err := h.db.WithContext(r.Context()).Create(&pm).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "that user is already a member of this project")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, map[string]string{"userId": pm.UserID, "role": string(pm.Role)})
}

type projectRoleChangeRequest struct {
	Role model.ProjectRole `json:"role"`
}

// UpdateMemberRole handles PATCH /api/v1/projects/{id}/members/{userId}.
// Requires org admin.
func (h *ProjectHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	targetID := r.PathValue("userId")
	if _, err := h.resolver.ProjectAdmin(r.Context(), claims.UserID, projectID); err != nil {
		renderResolveError(w, err)
		return
	}

	var req projectRoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !access.ValidProjectRole(req.Role) {
		respond.ValidationError(w, "invalid role", map[string]string{"role": "must be one of maintainer, viewer"})
		return
	}

	var pm model.ProjectMember
	err := h.db.WithContext(r.Context()).
		Where("project_id = ? AND user_id = ?", projectID, targetID).
		First(&pm).Error
	if err != nil {
		renderResolveError(w, err)
		return
	}
	pm.Role = req.Role
	if err := h.db.WithContext(r.Context()).Save(&pm).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]string{"userId": targetID, "role": string(pm.Role)})
}

// RemoveMember handles DELETE /api/v1/projects/{id}/members/{userId}.
// Requires org admin.
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	projectID := r.PathValue("id")
	targetID := r.PathValue("userId")
	if _, err := h.resolver.ProjectAdmin(r.Context(), claims.UserID, projectID); err != nil {
		renderResolveError(w, err)
		return
	}

	res := h.db.WithContext(r.Context()).
		Where("project_id = ? AND user_id = ?", projectID, targetID).
		Delete(&model.ProjectMember{})
	if res.Error != nil {
		renderResolveError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respond.NotFound(w, "resource not found")
		return
	}
	respond.NoContent(w)
}
