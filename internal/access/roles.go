// Package access computes a caller's effective permissions for resources in
// the organization → project → environment → variable containment tree.
package access

import "github.com/envmgr/envmgr/internal/model"

// Role ranks define the strict partial order within each scope. A rank of
// zero means the role is unknown and grants nothing.

var orgRoleRank = map[model.OrgRole]int{
	model.OrgRoleOwner:  3,
	model.OrgRoleAdmin:  2,
	model.OrgRoleMember: 1,
}

var projectRoleRank = map[model.ProjectRole]int{
	model.ProjectRoleMaintainer: 2,
	model.ProjectRoleViewer:     1,
}

// ValidOrgRole reports whether r names a known organization role.
func ValidOrgRole(r model.OrgRole) bool { return orgRoleRank[r] > 0 }

// ValidProjectRole reports whether r names a known project role.
func ValidProjectRole(r model.ProjectRole) bool { return projectRoleRank[r] > 0 }

// OrgAtLeast reports whether have grants everything want does.
// Never compare role strings directly; ranks define the order.
func OrgAtLeast(have, want model.OrgRole) bool {
	return orgRoleRank[have] >= orgRoleRank[want] && orgRoleRank[have] > 0
}

// ProjectAtLeast reports whether have grants everything want does.
func ProjectAtLeast(have, want model.ProjectRole) bool {
	return projectRoleRank[have] >= projectRoleRank[want] && projectRoleRank[have] > 0
}
