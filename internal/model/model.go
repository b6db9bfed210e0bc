// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgRole is a user's role inside an organization.
type OrgRole string

// Organization-scope roles, strongest first.
const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// ProjectRole is a user's role inside a project.
type ProjectRole string

// Project-scope roles, strongest first.
const (
	ProjectRoleMaintainer ProjectRole = "maintainer"
	ProjectRoleViewer     ProjectRole = "viewer"
)

// InviteStatus is the lifecycle state of an invitation.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
	InviteStatusExpired  InviteStatus = "expired"
)

// User is the GORM model for the users table. Email is stored lowercased
// so the unique index is effectively case-insensitive.
type User struct {
	ID           string `gorm:"type:text;primaryKey"`
	Email        string `gorm:"type:text;not null;uniqueIndex"`
	Name         string `gorm:"type:text;not null;default:''"`
	PasswordHash string `gorm:"type:text;not null;default:''"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// Organization is a tenant. Slug is globally unique.
type Organization struct {
	ID        string    `gorm:"type:text;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Slug      string    `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (o *Organization) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// OrganizationMember joins a user to an organization with a role.
type OrganizationMember struct {
	ID             string  `gorm:"type:text;primaryKey"`
	OrganizationID string  `gorm:"type:text;not null;uniqueIndex:idx_org_user"`
	UserID         string  `gorm:"type:text;not null;uniqueIndex:idx_org_user"`
	Role           OrgRole `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (m *OrganizationMember) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Invitation is a pending offer to join an organization. At most one
// pending invitation may exist per (organization, email).
type Invitation struct {
	ID             string       `gorm:"type:text;primaryKey"`
	OrganizationID string       `gorm:"type:text;not null;index"`
	Email          string       `gorm:"type:text;not null"`
	Role           OrgRole      `gorm:"type:text;not null"`
	Token          string       `gorm:"type:text;not null;uniqueIndex"`
	Status         InviteStatus `gorm:"type:text;not null;default:'pending'"`
	InviterID      string       `gorm:"type:text;not null"`
	ExpiresAt      time.Time    `gorm:"not null"`
	AcceptedAt     *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (i *Invitation) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Project belongs to exactly one organization. Slug is unique within it.
type Project struct {
	ID             string    `gorm:"type:text;primaryKey"`
	OrganizationID string    `gorm:"type:text;not null;uniqueIndex:idx_org_project_slug"`
	Name           string    `gorm:"type:text;not null"`
	Slug           string    `gorm:"type:text;not null;uniqueIndex:idx_org_project_slug"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// ProjectMember joins a user to a project with a role. The user must
// already hold an OrganizationMember record for the owning organization.
type ProjectMember struct {
	ID        string      `gorm:"type:text;primaryKey"`
	ProjectID string      `gorm:"type:text;not null;uniqueIndex:idx_project_user"`
	UserID    string      `gorm:"type:text;not null;uniqueIndex:idx_project_user"`
	Role      ProjectRole `gorm:"type:text;not null"`
	CreatedAt time.Time   `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (m *ProjectMember) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Environment is a deployment target within a project. Slug is unique
// within the project.
type Environment struct {
	ID        string    `gorm:"type:text;primaryKey"`
	ProjectID string    `gorm:"type:text;not null;uniqueIndex:idx_project_env_slug"`
	Name      string    `gorm:"type:text;not null"`
	Slug      string    `gorm:"type:text;not null;uniqueIndex:idx_project_env_slug"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (e *Environment) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// Variable is a single key/value pair in an environment. Value holds the
// ciphertext; plaintext never reaches the database. Key is normalized to
// upper-snake and unique within the environment.
type Variable struct {
	ID            string    `gorm:"type:text;primaryKey"`
	EnvironmentID string    `gorm:"type:text;not null;uniqueIndex:idx_env_key"`
	Key           string    `gorm:"type:text;not null;uniqueIndex:idx_env_key"`
	Value         []byte    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (v *Variable) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// Snapshot is an immutable point-in-time copy of an environment's variable
// set, stored as an encrypted dotenv blob. Used only for full restore.
type Snapshot struct {
	ID            string    `gorm:"type:text;primaryKey"`
	EnvironmentID string    `gorm:"type:text;not null;index"`
	Name          string    `gorm:"type:text;not null"`
	Content       []byte    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (s *Snapshot) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}
