package access_test

import (
	"context"
	"testing"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every session on the same in-memory DB
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Organization{}, &model.OrganizationMember{},
		&model.Invitation{}, &model.Project{}, &model.ProjectMember{},
		&model.Environment{}, &model.Variable{}, &model.Snapshot{},
	))
	return db
}

type fixture struct {
	db      *gorm.DB
	org     model.Organization
	project model.Project
	env     model.Environment
	owner   model.User
	member  model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{db: db}

	f.owner = model.User{Email: "owner@example.com", Name: "Owner"}
	f.member = model.User{Email: "member@example.com", Name: "Member"}
	require.NoError(t, db.Create(&f.owner).Error)
	require.NoError(t, db.Create(&f.member).Error)

	f.org = model.Organization{Name: "Acme Corp", Slug: "acme-corp"}
	require.NoError(t, db.Create(&f.org).Error)
	require.NoError(t, db.Create(&model.OrganizationMember{
		OrganizationID: f.org.ID, UserID: f.owner.ID, Role: model.OrgRoleOwner,
	}).Error)

	f.project = model.Project{OrganizationID: f.org.ID, Name: "API", Slug: "api"}
	require.NoError(t, db.Create(&f.project).Error)
	require.NoError(t, db.Create(&model.ProjectMember{
		ProjectID: f.project.ID, UserID: f.owner.ID, Role: model.ProjectRoleMaintainer,
	}).Error)

	f.env = model.Environment{ProjectID: f.project.ID, Name: "production", Slug: "production"}
	require.NoError(t, db.Create(&f.env).Error)
	return f
}

func TestOrg_Roles(t *testing.T) {
	f := newFixture(t)
	r := access.NewResolver(f.db)
	ctx := context.Background()

	grant, err := r.Org(ctx, f.owner.ID, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrgRoleOwner, grant.Role)

	// non-member of an existing org is forbidden at org scope
	_, err = r.Org(ctx, f.member.ID, f.org.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// unknown org is not found
	_, err = r.Org(ctx, f.owner.ID, "no-such-org")
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestProject_RequiresBothMemberships(t *testing.T) {
	f := newFixture(t)
	r := access.NewResolver(f.db)
	ctx := context.Background()

	// non-org-member: existence must not leak
	_, err := r.Project(ctx, f.member.ID, f.project.ID)
	assert.ErrorIs(t, err, access.ErrNotFound)

	// org member without project membership is forbidden
	require.NoError(t, f.db.Create(&model.OrganizationMember{
		OrganizationID: f.org.ID, UserID: f.member.ID, Role: model.OrgRoleMember,
	}).Error)
	_, err = r.Project(ctx, f.member.ID, f.project.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// adding a ProjectMember record grants read access immediately
	require.NoError(t, f.db.Create(&model.ProjectMember{
		ProjectID: f.project.ID, UserID: f.member.ID, Role: model.ProjectRoleViewer,
	}).Error)
	grant, err := r.Project(ctx, f.member.ID, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectRoleViewer, grant.ProjectRole)
	assert.False(t, grant.CanWrite())
}

func TestProject_OrgAdminDoesNotBypass(t *testing.T) {
	f := newFixture(t)
	r := access.NewResolver(f.db)
	ctx := context.Background()

	admin := model.User{Email: "admin@example.com"}
	require.NoError(t, f.db.Create(&admin).Error)
	require.NoError(t, f.db.Create(&model.OrganizationMember{
		OrganizationID: f.org.ID, UserID: admin.ID, Role: model.OrgRoleAdmin,
	}).Error)

	// org admin without an explicit ProjectMember record cannot touch the project
	_, err := r.Project(ctx, admin.ID, f.project.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// but retains org-level administrative access to it
	grant, err := r.ProjectAdmin(ctx, admin.ID, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrgRoleAdmin, grant.Role)
}

func TestEnvironment_ClimbsToProject(t *testing.T) {
	f := newFixture(t)
	r := access.NewResolver(f.db)
	ctx := context.Background()

	grant, err := r.Environment(ctx, f.owner.ID, f.env.ID)
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, grant.ProjectID)
	assert.True(t, grant.CanWrite())

	_, err = r.Environment(ctx, f.member.ID, f.env.ID)
	assert.ErrorIs(t, err, access.ErrNotFound)

	_, err = r.Environment(ctx, f.owner.ID, "no-such-env")
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestProjectAdmin_MemberRoleRejected(t *testing.T) {
	f := newFixture(t)
	r := access.NewResolver(f.db)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&model.OrganizationMember{
		OrganizationID: f.org.ID, UserID: f.member.ID, Role: model.OrgRoleMember,
	}).Error)
	_, err := r.ProjectAdmin(ctx, f.member.ID, f.project.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestCheckMemberRemoval_OwnerProtection(t *testing.T) {
	// an owner cannot remove themself
	err := access.CheckMemberRemoval("u1", model.OrgRoleOwner, "u1", model.OrgRoleOwner)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// an admin cannot remove an owner
	err = access.CheckMemberRemoval("u2", model.OrgRoleAdmin, "u1", model.OrgRoleOwner)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// another owner can remove an owner
	assert.NoError(t, access.CheckMemberRemoval("u2", model.OrgRoleOwner, "u1", model.OrgRoleOwner))

	// admins may remove plain members
	assert.NoError(t, access.CheckMemberRemoval("u2", model.OrgRoleAdmin, "u3", model.OrgRoleMember))
}

func TestCheckRoleChange_OwnerProtection(t *testing.T) {
	err := access.CheckRoleChange("u1", model.OrgRoleOwner, "u1", model.OrgRoleOwner, model.OrgRoleAdmin)
	assert.ErrorIs(t, err, access.ErrForbidden)

	err = access.CheckRoleChange("u2", model.OrgRoleAdmin, "u1", model.OrgRoleOwner, model.OrgRoleMember)
	assert.ErrorIs(t, err, access.ErrForbidden)

	assert.NoError(t, access.CheckRoleChange("u2", model.OrgRoleOwner, "u1", model.OrgRoleOwner, model.OrgRoleAdmin))
	assert.NoError(t, access.CheckRoleChange("u2", model.OrgRoleAdmin, "u3", model.OrgRoleMember, model.OrgRoleAdmin))
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, access.OrgAtLeast(model.OrgRoleOwner, model.OrgRoleAdmin))
	assert.True(t, access.OrgAtLeast(model.OrgRoleAdmin, model.OrgRoleAdmin))
	assert.False(t, access.OrgAtLeast(model.OrgRoleMember, model.OrgRoleAdmin))
	assert.False(t, access.OrgAtLeast("unknown", model.OrgRoleMember))

	assert.True(t, access.ProjectAtLeast(model.ProjectRoleMaintainer, model.ProjectRoleViewer))
	assert.False(t, access.ProjectAtLeast(model.ProjectRoleViewer, model.ProjectRoleMaintainer))
	assert.False(t, access.ProjectAtLeast("unknown", model.ProjectRoleViewer))
}
