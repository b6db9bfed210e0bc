package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/envmgr/envmgr/internal/access"
	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/envmgr/envmgr/internal/store"
)

// VariableHandler handles variable routes under an environment.
type VariableHandler struct {
	resolver *access.Resolver
	vars     *store.Variables
}

// NewVariableHandler creates a VariableHandler.
func NewVariableHandler(resolver *access.Resolver, vars *store.Variables) *VariableHandler {
	return &VariableHandler{resolver: resolver, vars: vars}
}

func (h *VariableHandler) grantFor(w http.ResponseWriter, r *http.Request, write bool) (string, bool) {
	claims := requireClaims(w, r)
	if claims == nil {
		return "", false
	}
	envID := r.PathValue("id")
	grant, err := h.resolver.Environment(r.Context(), claims.UserID, envID)
	if err != nil {
		renderResolveError(w, err)
		return "", false
	}
	if write && !grant.CanWrite() {
		respond.Forbidden(w, "project maintainer role required")
		return "", false
	}
	return envID, true
}

// List handles GET /api/v1/environments/{id}/variables. Values come back
// masked; use Get or Export for plaintext.
func (h *VariableHandler) List(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, false)
	if !ok {
		return
	}
	records, err := h.vars.List(r.Context(), envID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, records)
}

// Get handles GET /api/v1/environments/{id}/variables/{key} and returns
// the plaintext value.
func (h *VariableHandler) Get(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, false)
	if !ok {
		return
	}
	rec, err := h.vars.Get(r.Context(), envID, r.PathValue("key"))
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, rec)
}

type variableUpsertRequest struct {
	Value string `json:"value"`
}

// Upsert handles PUT /api/v1/environments/{id}/variables/{key}. Requires
// maintainer. The key is normalized to upper-snake; invalid keys are
// rejected.
func (h *VariableHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, true)
	if !ok {
		return
	}
	var req variableUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	rec, err := h.vars.Upsert(r.Context(), envID, r.PathValue("key"), req.Value)
	if err != nil {
		if errors.Is(err, store.ErrInvalidKey) {
			respond.ValidationError(w, "invalid variable key", map[string]string{"key": "must contain only letters, digits and underscores"})
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.OK(w, rec)
}

type dotenvImportRequest struct {
	Content string `json:"content"`
}

type importResult struct {
	Applied []string `json:"applied"`
	Count   int      `json:"count"`
}

// Import handles POST /api/v1/environments/{id}/variables/import. The body
// carries a dotenv document; entries merge into the environment without
// deleting keys absent from the document. Invalid keys are dropped, not
// fatal.
func (h *VariableHandler) Import(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, true)
	if !ok {
		return
	}
	vars, ok := h.decodeDotenvBody(w, r)
	if !ok {
		return
	}
	applied, err := h.vars.BulkUpsert(r.Context(), envID, vars)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, importResult{Applied: applied, Count: len(applied)})
}

// Replace handles POST /api/v1/environments/{id}/variables/replace. The
// environment's variable set becomes exactly the document's entries, in
// one transaction. A document with an invalid key is rejected whole.
func (h *VariableHandler) Replace(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, true)
	if !ok {
		return
	}
	vars, ok := h.decodeDotenvBody(w, r)
	if !ok {
		return
	}
	count, err := h.vars.ReplaceAll(r.Context(), envID, vars)
	if err != nil {
		if errors.Is(err, store.ErrInvalidKey) {
			respond.ValidationError(w, "invalid variable key in document", nil)
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]int{"count": count})
}

// Delete handles DELETE /api/v1/environments/{id}/variables/{key}.
func (h *VariableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, true)
	if !ok {
		return
	}
	if err := h.vars.Delete(r.Context(), envID, r.PathValue("key")); err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}

// Export handles GET /api/v1/environments/{id}/variables/export and
// returns the
// environment as a plaintext dotenv document, keys sorted.
func (h *VariableHandler) Export(w http.ResponseWriter, r *http.Request) {
	envID, ok := h.grantFor(w, r, false)
	if !ok {
		return
	}
	doc, err := h.vars.Export(r.Context(), envID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, map[string]string{"content": doc})
}

func (h *VariableHandler) decodeDotenvBody(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var req dotenvImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return nil, false
	}
	return dotenv.ParseMap(req.Content), true
}
