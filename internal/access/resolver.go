package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/envmgr/envmgr/internal/model"
	"gorm.io/gorm"
)

// Sentinel errors returned by the resolver. The HTTP layer maps these to
// status codes; ErrNotFound is deliberately returned instead of ErrForbidden
// for cross-tenant lookups so resource existence does not leak.
var (
	ErrForbidden = errors.New("insufficient permissions")
	ErrNotFound  = errors.New("resource not found")
)

// Resolver answers "what may this user do to this resource".
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver backed by the given GORM DB.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// OrgGrant is the caller's effective position in an organization.
type OrgGrant struct {
	OrganizationID string
	Role           model.OrgRole
}

// ProjectGrant is the caller's effective position in a project, including
// the organization context it was resolved through.
type ProjectGrant struct {
	OrganizationID string
	ProjectID      string
	OrgRole        model.OrgRole
	ProjectRole    model.ProjectRole
}

// CanWrite reports whether the grant allows variable and environment writes.
func (g *ProjectGrant) CanWrite() bool {
	return ProjectAtLeast(g.ProjectRole, model.ProjectRoleMaintainer)
}

// Org resolves the caller's role in an organization.
// Returns ErrNotFound if the organization does not exist, ErrForbidden if
// the caller is not a member.
func (r *Resolver) Org(ctx context.Context, userID, orgID string) (*OrgGrant, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load organization: %w", err)
	}

	var m model.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("load org membership: %w", err)
	}
	return &OrgGrant{OrganizationID: orgID, Role: m.Role}, nil
}

// Project resolves the caller's effective access to a project.
//
// Organization membership is required first; without it the caller learns
// nothing, not even that the project exists (ErrNotFound). With org
// membership but no ProjectMember record the answer is ErrForbidden: org
// owner and admin roles do not bypass project membership.
func (r *Resolver) Project(ctx context.Context, userID, projectID string) (*ProjectGrant, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	var om model.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", p.OrganizationID, userID).
		First(&om).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load org membership: %w", err)
	}

	var pm model.ProjectMember
	err = r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&pm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("load project membership: %w", err)
	}

	return &ProjectGrant{
		OrganizationID: p.OrganizationID,
		ProjectID:      projectID,
		OrgRole:        om.Role,
		ProjectRole:    pm.Role,
	}, nil
}

// ProjectAdmin resolves org-level administrative access to a project
// (create/delete projects, manage project members). It requires org
// admin or owner but not project membership.
func (r *Resolver) ProjectAdmin(ctx context.Context, userID, projectID string) (*OrgGrant, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	grant, err := r.Org(ctx, userID, p.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !OrgAtLeast(grant.Role, model.OrgRoleAdmin) {
		return nil, ErrForbidden
	}
	return grant, nil
}

// Environment resolves the caller's access to an environment by climbing to
// its project.
func (r *Resolver) Environment(ctx context.Context, userID, envID string) (*ProjectGrant, error) {
	var env model.Environment
	if err := r.db.WithContext(ctx).First(&env, "id = ?", envID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return r.Project(ctx, userID, env.ProjectID)
}

// Snapshot resolves access to a snapshot through its environment.
func (r *Resolver) Snapshot(ctx context.Context, userID, snapshotID string) (*ProjectGrant, string, error) {
	var snap model.Snapshot
	if err := r.db.WithContext(ctx).First(&snap, "id = ?", snapshotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("load snapshot: %w", err)
	}
	grant, err := r.Environment(ctx, userID, snap.EnvironmentID)
	if err != nil {
		return nil, "", err
	}
	return grant, snap.EnvironmentID, nil
}

// CheckMemberRemoval enforces the owner-protection rules for removing an
// organization member:
//   - owners can only be removed by owners
//   - an owner cannot remove themself
func CheckMemberRemoval(callerID string, callerRole model.OrgRole, targetUserID string, targetRole model.OrgRole) error {
	if targetRole == model.OrgRoleOwner {
		if callerID == targetUserID {
			return fmt.Errorf("%w: owners cannot remove themselves", ErrForbidden)
		}
		if callerRole != model.OrgRoleOwner {
			return fmt.Errorf("%w: only an owner can remove an owner", ErrForbidden)
		}
	}
	return nil
}

// CheckRoleChange enforces the owner-protection rules for changing an
// organization member's role: only owners may demote an owner, and an owner
// cannot demote themself.
func CheckRoleChange(callerID string, callerRole model.OrgRole, targetUserID string, targetRole, newRole model.OrgRole) error {
	if targetRole == model.OrgRoleOwner && newRole != model.OrgRoleOwner {
		if callerID == targetUserID {
			return fmt.Errorf("%w: owners cannot demote themselves", ErrForbidden)
		}
		if callerRole != model.OrgRoleOwner {
			return fmt.Errorf("%w: only an owner can demote an owner", ErrForbidden)
		}
	}
	return nil
}
