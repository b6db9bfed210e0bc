package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/envmgr/envmgr/internal/api/respond"
	"github.com/envmgr/envmgr/internal/auth"
	"github.com/envmgr/envmgr/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles /api/v1/auth/* routes.
type AuthHandler struct {
	db        *gorm.DB
	refresh   *auth.RefreshStore
	jwtSecret string
	accessTTL time.Duration
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		db:        db,
		refresh:   auth.NewRefreshStore(db, refreshTTL),
		jwtSecret: jwtSecret,
		accessTTL: accessTTL,
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	fields := map[string]string{}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		fields["email"] = "a valid email address is required"
	}
	if len(req.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		respond.ValidationError(w, "invalid signup request", fields)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	u := model.User{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	if err := h.db.WithContext(r.Context()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respond.Conflict(w, "an account with that email already exists")
			return
		}
		renderResolveError(w, err)
		return
	}
	respond.Created(w, userView{ID: u.ID, Email: u.Email, Name: u.Name})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Client   string `json:"client"`
}

type tokenView struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		respond.ValidationError(w, "email and password are required", nil)
		return
	}

	ctx := r.Context()
	var u model.User
	if err := h.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&u).Error; err != nil {
		respond.Unauthorized(w, "email or password is incorrect")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		respond.Unauthorized(w, "email or password is incorrect")
		return
	}

	accessToken, err := auth.IssueAccessToken(u.ID, u.Email, h.jwtSecret, h.accessTTL)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	refreshToken, err := h.refresh.Issue(ctx, u.ID)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, tokenView{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "Bearer"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.Error(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	ctx := r.Context()
	newRefresh, userID, err := h.refresh.Rotate(ctx, req.RefreshToken)
	if err != nil {
		respond.Unauthorized(w, "refresh token is invalid or expired")
		return
	}

	var u model.User
	if err := h.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		respond.Unauthorized(w, "user account does not exist")
		return
	}

	accessToken, err := auth.IssueAccessToken(u.ID, u.Email, h.jwtSecret, h.accessTTL)
	if err != nil {
		renderResolveError(w, err)
		return
	}
	respond.OK(w, tokenView{AccessToken: accessToken, RefreshToken: newRefresh, TokenType: "Bearer"})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.Error(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	// Revoking an unknown token still yields 204.
	_ = h.refresh.Revoke(r.Context(), req.RefreshToken)
	respond.NoContent(w)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	var u model.User
	if err := h.db.WithContext(r.Context()).First(&u, "id = ?", claims.UserID).Error; err != nil {
		respond.Unauthorized(w, "user account does not exist")
		return
	}
	respond.OK(w, userView{ID: u.ID, Email: u.Email, Name: u.Name})
}

// DeleteMe handles DELETE /api/v1/auth/me. Deleting the account revokes
// every refresh token the user holds.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}
	ctx := r.Context()
	if err := h.refresh.RevokeAllForUser(ctx, claims.UserID); err != nil {
		renderResolveError(w, err)
		return
	}
	if err := h.db.WithContext(ctx).Delete(&model.User{}, "id = ?", claims.UserID).Error; err != nil {
		renderResolveError(w, err)
		return
	}
	respond.NoContent(w)
}
