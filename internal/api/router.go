// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"net/http"

	"github.com/envmgr/envmgr/internal/api/handler"
	"github.com/envmgr/envmgr/internal/api/middleware"
	"github.com/envmgr/envmgr/internal/health"
)

// Handlers collects the resource handlers the router mounts.
type Handlers struct {
	Health       *health.Handler
	Auth         *handler.AuthHandler
	Orgs         *handler.OrgHandler
	Members      *handler.MemberHandler
	Invites      *handler.InviteHandler
	Projects     *handler.ProjectHandler
	Environments *handler.EnvironmentHandler
	Variables    *handler.VariableHandler
	Snapshots    *handler.SnapshotHandler
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers, jwtSecret string) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.Health.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)

	// Auth-required routes go through RequireAuth.
	protected := middleware.RequireAuth(jwtSecret)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protected(fn))
	}

	handle("POST /api/v1/auth/logout", h.Auth.Logout)
	handle("GET /api/v1/auth/me", h.Auth.Me)
	handle("DELETE /api/v1/auth/me", h.Auth.DeleteMe)

	handle("GET /api/v1/orgs", h.Orgs.List)
	handle("POST /api/v1/orgs", h.Orgs.Create)
	handle("GET /api/v1/orgs/{id}", h.Orgs.Get)
	handle("PATCH /api/v1/orgs/{id}", h.Orgs.Update)
	handle("DELETE /api/v1/orgs/{id}", h.Orgs.Delete)

	handle("GET /api/v1/orgs/{id}/members", h.Members.List)
	handle("POST /api/v1/orgs/{id}/members", h.Members.Add)
	handle("PATCH /api/v1/orgs/{id}/members/{userId}", h.Members.UpdateRole)
	handle("DELETE /api/v1/orgs/{id}/members/{userId}", h.Members.Remove)

	handle("POST /api/v1/orgs/{id}/invites", h.Invites.Create)
	handle("GET /api/v1/orgs/{id}/invites", h.Invites.List)
	handle("DELETE /api/v1/orgs/{id}/invites/{inviteId}", h.Invites.Revoke)
	handle("POST /api/v1/invites/{token}/accept", h.Invites.Accept)

	handle("GET /api/v1/orgs/{id}/projects", h.Projects.List)
	handle("POST /api/v1/orgs/{id}/projects", h.Projects.Create)
	handle("GET /api/v1/projects/{id}", h.Projects.Get)
	handle("PATCH /api/v1/projects/{id}", h.Projects.Update)
	handle("DELETE /api/v1/projects/{id}", h.Projects.Delete)

	handle("GET /api/v1/projects/{id}/members", h.Projects.ListMembers)
	handle("POST /api/v1/projects/{id}/members", h.Projects.AddMember)
	handle("PATCH /api/v1/projects/{id}/members/{userId}", h.Projects.UpdateMemberRole)
	handle("DELETE /api/v1/projects/{id}/members/{userId}", h.Projects.RemoveMember)

	handle("GET /api/v1/projects/{id}/environments", h.Environments.List)
	handle("POST /api/v1/projects/{id}/environments", h.Environments.Create)
	handle("GET /api/v1/environments/{id}", h.Environments.Get)
	handle("PATCH /api/v1/environments/{id}", h.Environments.Update)
	handle("DELETE /api/v1/environments/{id}", h.Environments.Delete)

	handle("GET /api/v1/environments/{id}/variables", h.Variables.List)
	handle("PUT /api/v1/environments/{id}/variables/{key}", h.Variables.Upsert)
	handle("GET /api/v1/environments/{id}/variables/{key}", h.Variables.Get)
	handle("DELETE /api/v1/environments/{id}/variables/{key}", h.Variables.Delete)
	handle("POST /api/v1/environments/{id}/variables/import", h.Variables.Import)
	handle("POST /api/v1/environments/{id}/variables/replace", h.Variables.Replace)
	handle("GET /api/v1/environments/{id}/variables/export", h.Variables.Export)

	handle("GET /api/v1/environments/{id}/snapshots", h.Snapshots.List)
	handle("POST /api/v1/environments/{id}/snapshots", h.Snapshots.Create)
	handle("POST /api/v1/snapshots/{id}/restore", h.Snapshots.Restore)

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
