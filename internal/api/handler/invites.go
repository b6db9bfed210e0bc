package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/model"
	"gorm.io/gorm"
)

// InviteHandler handles invitation routes.
type InviteHandler struct {
	db       *gorm.DB
	resolver *access.Resolver
	ttl      time.Duration
}

// NewInviteHandler creates an InviteHandler. ttl is how long a new
// invitation stays acceptable.
func NewInviteHandler(db *gorm.DB, resolver *access.Resolver, ttl time.Duration) *InviteHandler {
	return &InviteHandler{db: db, resolver: resolver, ttl: ttl}
}

type inviteView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type inviteCreateRequest struct {
	Email string        `json:"email"`
	Role  model.OrgRole `json:"role"`
}

// Create handles POST /api/v1/orgs/{id}/invites. Requires admin. At most
// one pending invitation may exist per (organization, email); inviting an
// existing member is a conflict too.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req inviteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respond.ValidationError(w, "invalid invitation", map[string]string{"email": "must be a valid email address"})
		return
	}
	// Ownership is granted through the member-role path, never by invite.
	if req.Role != model.OrgRoleAdmin && req.Role != model.OrgRoleMember {
		respond.ValidationError(w, "invalid invitation", map[string]string{"role": "must be admin or member"})
		return
	}

	// Existing member check.
	var existing model.User
	if err := h.db.WithContext(r.Context()).First(&existing, "email = ?", req.Email).Error; err == nil {
		var m model.OrganizationMember
		err := h.db.WithContext(r.Context()).
			Where("organization_id = ? AND user_id = ?", orgID, existing.ID).
			First(&m).Error
		if err == nil {
			respond.Conflict(w, "that user is already a member of this organization")
			return
		}
	}

	var pending int64
	err = h.db.WithContext(r.Context()).Model(&model.Invitation{}).
		Where("organization_id = ? AND email = ? AND status = ? AND expires_at > ?",
			orgID, req.Email, model.InviteStatusPending, time.Now()).
		Count(&pending).Error
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if pending > 0 {
		respond.Conflict(w, "a pending invitation already exists for that email")
		return
	}

	token, err := generateInviteToken()
	if err != nil {
		renderResolveError(w, err)
		return
	}
	inv := model.Invitation{
		OrganizationID: orgID,
		Email:          req.Email,
		Role:           req.Role,
		Token:          token,
		Status:         model.InviteStatusPending,
		InviterID:      claims.UserID,
		ExpiresAt:      time.Now().Add(h.ttl),
	}
	if err := h.db.WithContext(r.Context()).Create(&inv).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.Created(w, inviteView{
		ID: inv.ID, Email: inv.Email, Role: string(inv.Role), Status: string(inv.Status),
		Token: inv.Token, ExpiresAt: inv.ExpiresAt, CreatedAt: inv.CreatedAt,
	})
}

// List handles GET /api/v1/orgs/{id}/invites. Requires admin. Pending
// invitations past their expiry are reported as expired without waiting
// for the background sweep to flip them.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
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

	var invites []model.Invitation
	if err := h.db.WithContext(r.Context()).
		Where("organization_id = ?", orgID).
		Order("created_at desc").
		Find(&invites).Error; err != nil {
		renderResolveError(w, err)
		return
	}

	now := time.Now()
	out := make([]inviteView, 0, len(invites))
	for _, inv := range invites {
		status := inv.Status
		if status == model.InviteStatusPending && now.After(inv.ExpiresAt) {
			status = model.InviteStatusExpired
		}
		out = append(out, inviteView{
			ID: inv.ID, Email: inv.Email, Role: string(inv.Role), Status: string(status),
			ExpiresAt: inv.ExpiresAt, CreatedAt: inv.CreatedAt,
		})
	}
	respond.OK(w, out)
}

// Revoke handles DELETE /api/v1/orgs/{id}/invites/{inviteId}. Requires
// admin. Only pending invitations can be revoked.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	orgID := r.PathValue("id")
	inviteID := r.PathValue("inviteId")

	grant, err := h.resolver.Org(r.Context(), claims.UserID, orgID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if !access.OrgAtLeast(grant.Role, model.OrgRoleAdmin) {
		respond.Forbidden(w, "organization admin role required")
		return
	}

	var inv model.Invitation
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", inviteID, orgID).
		First(&inv).Error
	if err != nil {
		renderResolveError(w, err)
		return
	}
	if inv.Status != model.InviteStatusPending {
		respond.Conflict(w, fmt.Sprintf("invitation is already %s", inv.Status))
		return
	}
	inv.Status = model.InviteStatusRevoked
	if err := h.db.WithContext(r.Context()).Save(&inv).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}

// Accept handles POST /api/v1/invites/{token}/accept. The caller must be
// authenticated and their account email must match the invitation's.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	token := r.PathValue("token")
	if token == "" {
		respond.ValidationError(w, "invalid accept request", map[string]string{"token": "required"})
		return
	}

	var inv model.Invitation
	if err := h.db.WithContext(r.Context()).First(&inv, "token = ?", token).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	if !strings.EqualFold(inv.Email, claims.Email) {
		// The token exists but belongs to someone else. Report not found
		// rather than confirming the token is real.
		respond.NotFound(w, "resource not found")
		return
	}
	if inv.Status != model.InviteStatusPending {
		respond.Conflict(w, fmt.Sprintf("invitation is already %s", inv.Status))
		return
	}
	if time.Now().After(inv.ExpiresAt) {
		respond.Conflict(w, "invitation has expired")
		return
	}

	now := time.Now()
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var m model.OrganizationMember
		err := tx.Where("organization_id = ? AND user_id = ?", inv.OrganizationID, claims.UserID).
			First(&m).Error
		if err == nil {
			return gorm.ErrDuplicatedKey
		}
		if err := tx.Create(&model.OrganizationMember{
			OrganizationID: inv.OrganizationID,
			UserID:         claims.UserID,
			Role:           inv.Role,
		}).Error; err != nil {
			return err
		}
		inv.Status = model.InviteStatusAccepted
		inv.AcceptedAt = &now
		return tx.Save(&inv).Error
	})
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]string{
		"organizationId": inv.OrganizationID,
		"role":           string(inv.Role),
	})
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
