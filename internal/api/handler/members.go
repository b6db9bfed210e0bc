package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/model"
	"gorm.io/gorm"
)

// MemberHandler handles organization membership routes.
type MemberHandler struct {
	db       *gorm.DB
	resolver *access.Resolver
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(db *gorm.DB, resolver *access.Resolver) *MemberHandler {
	return &MemberHandler{db: db, resolver: resolver}
}

type memberView struct {
	UserID   string    `json:"userId"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// List handles GET /api/v1/orgs/{id}/members. Any org member may list.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	if _, err := h.resolver.Org(r.Context(), claims.UserID, orgID); err != nil {
		renderResolveError(w, err)
		return
	}

	var memberships []model.OrganizationMember
	if err := h.db.WithContext(r.Context()).
		Where("organization_id = ?", orgID).
		Order("created_at asc").
		Find(&memberships).Error; err != nil {
		renderResolveError(w, err)
		return
	}

	out := make([]memberView, 0, len(memberships))
	for _, m := range memberships {
		var u model.User
		if err := h.db.WithContext(r.Context()).First(&u, "id = ?", m.UserID).Error; err != nil {
			continue
		}
		out = append(out, memberView{UserID: u.ID, Email: u.Email, Name: u.Name, Role: string(m.Role), JoinedAt: m.CreatedAt})
	}
	respond.OK(w, out)
}

type memberAddRequest struct {
	Email string        `json:"email"`
	Role  model.OrgRole `json:"role"`
}

// Add handles POST /api/v1/orgs/{id}/members. Requires admin; grants the
// named existing user a membership directly, without an invitation. Only
// an owner may grant the owner role.
func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	var req memberAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respond.ValidationError(w, "email is required", map[string]string{"email": "required"})
		return
	}
	if req.Role == "" {
		req.Role = model.OrgRoleMember
	}
	if !access.ValidOrgRole(req.Role) {
		respond.ValidationError(w, "invalid role", map[string]string{"role": "must be one of owner, admin, member"})
		return
	}
	if req.Role == model.OrgRoleOwner && grant.Role != model.OrgRoleOwner {
		respond.Forbidden(w, "only an owner can grant the owner role")
		return
	}

	var u model.User
	err = h.db.WithContext(r.Context()).
		First(&u, "email = ?", strings.ToLower(req.Email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.NotFound(w, "no account with that email")
			return
		}
		renderResolveError(w, err)
		return
	}

	m := &model.OrganizationMember{OrganizationID: orgID, UserID: u.ID, Role: req.Role}
	if err := h.db.WithContext(r.Context()).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "user is already a member of this organization")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, memberView{UserID: u.ID, Email: u.Email, Name: u.Name, Role: string(m.Role), JoinedAt: m.CreatedAt})
}

type roleChangeRequest struct {
	Role model.OrgRole `json:"role"`
}

// UpdateRole handles PATCH /api/v1/orgs/{id}/members/{userId}. Requires
// admin; demoting an owner additionally requires the caller to be a
// different owner.
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	targetID := r.PathValue("userId")

	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !access.OrgAtLeast(grant.Role, model.OrgRoleAdmin) {
		respond.Forbidden(w, "organization admin role required")
		return
	}

	var req roleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !access.ValidOrgRole(req.Role) {
		respond.ValidationError(w, "invalid role", map[string]string{"role": "must be one of owner, admin, member"})
		return
	}
	// Only owners may grant ownership.
	if req.Role == model.OrgRoleOwner && grant.Role != model.OrgRoleOwner {
		respond.Forbidden(w, "only an owner can grant the owner role")
		return
	}

	var target model.OrganizationMember
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ? AND user_id = ?", orgID, targetID).
		First(&target).Error
	if err != nil {
		renderResolveError(w, err)
		return
	}

	if err := access.CheckRoleChange(claims.UserID, grant.Role, targetID, target.Role, req.Role); err != nil {
		renderResolveError(w, err)
		return
	}

	target.Role = req.Role
	if err := h.db.WithContext(r.Context()).Save(&target).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]string{"userId": targetID, "role": string(target.Role)})
}

// Remove handles DELETE /api/v1/orgs/{id}/members/{userId}. Requires admin
// to remove others; any member may remove themself (leave) unless they are
// an owner. Removal also drops the user's project memberships in the org.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	targetID := r.PathValue("userId")

	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if targetID != claims.UserID && !access.OrgAtLeast(grant.Role, model.OrgRoleAdmin) {
		respond.Forbidden(w, "organization admin role required")
		return
	}

	var target model.OrganizationMember
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ? AND user_id = ?", orgID, targetID).
		First(&target).Error
	if err != nil {
		renderResolveError(w, err)
		return
	}

	if err := access.CheckMemberRemoval(claims.UserID, grant.Role, targetID, target.Role); err != nil {
		renderResolveError(w, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var projects []model.Project
		if err := tx.Where("organization_id = ?", orgID).Find(&projects).Error; err != nil {
			return err
		}
		for _, p := range projects {
			if err := tx.Where("project_id = ? AND user_id = ?", p.ID, targetID).
				Delete(&model.ProjectMember{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.OrganizationMember{}, "id = ?", target.ID).Error
	})
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}
