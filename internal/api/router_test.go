package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api"
	"github.com/envmgr/envmgr/internal/api/handler"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/health"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/envmgr/envmgr/internal/secret"
	"github.com/envmgr/envmgr/internal/store"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "router-test-secret"

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gormDB.AutoMigrate(
		&model.User{},
		&model.Organization{},
		&model.OrganizationMember{},
		&model.Invitation{},
		&model.Project{},
		&model.ProjectMember{},
		&model.Environment{},
		&model.Variable{},
		&model.Snapshot{},
		&model.RefreshToken{},
	))

	box, err := secret.NewBox(strings.Repeat("ab", 32))
	require.NoError(t, err)
	vars := store.NewVariables(gormDB, box)
	snaps := store.NewSnapshots(gormDB, box, vars)
	resolver := access.NewResolver(gormDB)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Handlers{
		Health:       health.New(nil),
		Auth:         handler.NewAuthHandler(gormDB, testJWTSecret, time.Hour, 24*time.Hour),
		Orgs:         handler.NewOrgHandler(gormDB, resolver),
		Members:      handler.NewMemberHandler(gormDB, resolver),
		Invites:      handler.NewInviteHandler(gormDB, resolver, 7*24*time.Hour),
		Projects:     handler.NewProjectHandler(gormDB, resolver),
		Environments: handler.NewEnvironmentHandler(gormDB, resolver),
		Variables:    handler.NewVariableHandler(resolver, vars),
		Snapshots:    handler.NewSnapshotHandler(resolver, snaps),
	}, testJWTSecret)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// doJSON issues a request with an optional bearer token and decodes the
// response envelope.
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, respond.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env respond.Envelope
	if res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	}
	return res.StatusCode, env
}

func dataMap(t *testing.T, env respond.Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", env.Data)
	return m
}

func dataList(t *testing.T, env respond.Envelope) []any {
	t.Helper()
	l, ok := env.Data.([]any)
	require.True(t, ok, "expected array data, got %T", env.Data)
	return l
}

// signupAndLogin registers a user and returns their access token.
func signupAndLogin(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "name": "Test User", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, code)
	token, _ := dataMap(t, env)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func createOrg(t *testing.T, ts *httptest.Server, token, name string) string {
	t.Helper()
	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/orgs", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, code)
	return dataMap(t, env)["id"].(string)
}

func createProject(t *testing.T, ts *httptest.Server, token, orgID, name string) string {
	t.Helper()
	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/projects", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, code)
	return dataMap(t, env)["id"].(string)
}

func createEnvironment(t *testing.T, ts *httptest.Server, token, projectID, name string) string {
	t.Helper()
	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/projects/"+projectID+"/environments", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, code)
	return dataMap(t, env)["id"].(string)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := setupServer(t)
	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/orgs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
}

func TestSignupLoginMe(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")

	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice@example.com", dataMap(t, env)["email"])
}

func TestOrgSlugCollision(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")

	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/orgs", token, map[string]string{"name": "Acme Corp"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "acme-corp", dataMap(t, env)["slug"])

	// Different name, same slug after normalization.
	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/orgs", token, map[string]string{"name": "Acme  Corp!!"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestVariableLifecycle(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, token, "Acme")
	projectID := createProject(t, ts, token, orgID, "Billing")
	envID := createEnvironment(t, ts, token, projectID, "Production")

	code, env := doJSON(t, ts, http.MethodPut, "/api/v1/environments/"+envID+"/variables/database_url", token, map[string]string{
		"value": "postgres://localhost/billing",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DATABASE_URL", dataMap(t, env)["key"])

	// List is masked.
	code, env = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables", token, nil)
	require.Equal(t, http.StatusOK, code)
	list := dataList(t, env)
	require.Len(t, list, 1)
	assert.Equal(t, secret.Mask, list[0].(map[string]any)["value"])

	// Get returns plaintext.
	code, env = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/DATABASE_URL", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "postgres://localhost/billing", dataMap(t, env)["value"])

	// Export serializes plaintext dotenv.
	code, env = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DATABASE_URL=postgres://localhost/billing\n", dataMap(t, env)["content"])

	code, _ = doJSON(t, ts, http.MethodDelete, "/api/v1/environments/"+envID+"/variables/DATABASE_URL", token, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/DATABASE_URL", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestImportMergesWithoutDeleting(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, token, "Acme")
	projectID := createProject(t, ts, token, orgID, "Billing")
	envID := createEnvironment(t, ts, token, projectID, "Staging")

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/import", token, map[string]string{
		"content": "A=1\nC=3\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/import", token, map[string]string{
		"content": "A=updated\nB=2\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A=updated\nB=2\nC=3\n", dataMap(t, env)["content"])
}

func TestReplaceMakesSetExact(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, token, "Acme")
	projectID := createProject(t, ts, token, orgID, "Billing")
	envID := createEnvironment(t, ts, token, projectID, "Staging")

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/import", token, map[string]string{
		"content": "A=1\nB=2\nC=3\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/replace", token, map[string]string{
		"content": "B=20\nD=4\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "B=20\nD=4\n", dataMap(t, env)["content"])

	// A document with an invalid key is rejected whole and changes nothing.
	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/replace", token, map[string]string{
		"content": "E=5\nbad key=6\n",
	})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "B=20\nD=4\n", dataMap(t, env)["content"])
}

func TestProjectAccessIsolation(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	mallory := signupAndLogin(t, ts, "mallory@example.com")
	orgID := createOrg(t, ts, alice, "Acme")
	projectID := createProject(t, ts, alice, orgID, "Billing")

	// Outsider: existence must not leak.
	code, _ := doJSON(t, ts, http.MethodGet, "/api/v1/projects/"+projectID, mallory, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Org member without project membership: forbidden, not hidden.
	bob := signupAndLogin(t, ts, "bob@example.com")
	inviteAndAccept(t, ts, alice, bob, orgID, "bob@example.com", "member")

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/projects/"+projectID, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

// inviteAndAccept runs the full invitation flow for the given email.
func inviteAndAccept(t *testing.T, ts *httptest.Server, ownerToken, inviteeToken, orgID, email, role string) {
	t.Helper()
	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/invites", ownerToken, map[string]string{
		"email": email, "role": role,
	})
	require.Equal(t, http.StatusCreated, code)
	token := dataMap(t, env)["token"].(string)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/invites/"+token+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestInviteDuplicatePendingConflict(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, alice, "Acme")

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/invites", alice, map[string]string{
		"email": "carol@example.com", "role": "member",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/invites", alice, map[string]string{
		"email": "carol@example.com", "role": "member",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestInviteOwnerRoleRejected(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, alice, "Acme")

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/invites", alice, map[string]string{
		"email": "carol@example.com", "role": "owner",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestOwnerCannotRemoveSelf(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, alice, "Acme")

	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", alice, nil)
	require.Equal(t, http.StatusOK, code)
	aliceID := dataMap(t, env)["id"].(string)

	code, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/%s/members/%s", orgID, aliceID), alice, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestDeleteAccountRevokesSessions(t *testing.T) {
	ts := setupServer(t)
	_ = signupAndLogin(t, ts, "alice@example.com")

	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, code)
	access, _ := dataMap(t, env)["accessToken"].(string)
	refresh, _ := dataMap(t, env)["refreshToken"].(string)
	require.NotEmpty(t, refresh)

	code, _ = doJSON(t, ts, http.MethodDelete, "/api/v1/auth/me", access, nil)
	require.Equal(t, http.StatusNoContent, code)

	// The refresh token dies with the account.
	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refreshToken": refresh,
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDirectMemberAdd(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	_ = signupAndLogin(t, ts, "bob@example.com")
	orgID := createOrg(t, ts, alice, "Acme")

	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/members", alice, map[string]string{
		"email": "Bob@Example.com", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "admin", dataMap(t, env)["role"])

	// Adding the same user again conflicts.
	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/members", alice, map[string]string{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusConflict, code)

	// Unknown accounts are not invited implicitly.
	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/orgs/"+orgID+"/members", alice, map[string]string{
		"email": "carol@example.com",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestViewerCannotWriteVariables(t *testing.T) {
	ts := setupServer(t)
	alice := signupAndLogin(t, ts, "alice@example.com")
	bob := signupAndLogin(t, ts, "bob@example.com")
	orgID := createOrg(t, ts, alice, "Acme")
	projectID := createProject(t, ts, alice, orgID, "Billing")
	envID := createEnvironment(t, ts, alice, projectID, "Production")

	inviteAndAccept(t, ts, alice, bob, orgID, "bob@example.com", "member")

	code, env := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", bob, nil)
	require.Equal(t, http.StatusOK, code)
	bobID := dataMap(t, env)["id"].(string)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/projects/"+projectID+"/members", alice, map[string]string{
		"userId": bobID, "role": "viewer",
	})
	require.Equal(t, http.StatusCreated, code)

	// Viewer reads succeed.
	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables", bob, nil)
	assert.Equal(t, http.StatusOK, code)

	// Viewer writes are rejected.
	code, _ = doJSON(t, ts, http.MethodPut, "/api/v1/environments/"+envID+"/variables/API_KEY", bob, map[string]string{
		"value": "nope",
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSnapshotRestore(t *testing.T) {
	ts := setupServer(t)
	token := signupAndLogin(t, ts, "alice@example.com")
	orgID := createOrg(t, ts, token, "Acme")
	projectID := createProject(t, ts, token, orgID, "Billing")
	envID := createEnvironment(t, ts, token, projectID, "Production")

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/import", token, map[string]string{
		"content": "A=1\nB=2\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/snapshots", token, map[string]string{
		"name": "before-migration",
	})
	require.Equal(t, http.StatusCreated, code)
	snapID := dataMap(t, env)["id"].(string)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/environments/"+envID+"/variables/replace", token, map[string]string{
		"content": "C=3\n",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/snapshots/"+snapID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = doJSON(t, ts, http.MethodGet, "/api/v1/environments/"+envID+"/variables/export", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A=1\nB=2\n", dataMap(t, env)["content"])
}
