package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/docqa/internal/api/middleware"
	"github.com/Rrens/docqa/internal/api/response"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/security"
	"github.com/Rrens/docqa/internal/session"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	sessions      *session.Registry
	jwtManager    *security.JWTManager
	sealer        *security.Sealer
	newController middleware.ControllerFactory
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Registry, jwtManager *security.JWTManager, sealer *security.Sealer, newController middleware.ControllerFactory) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		jwtManager:    jwtManager,
		sealer:        sealer,
		newController: newController,
	}
}

// TokenResponse is returned by login and registration
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        domain.User `json:"user"`
}

type openFunc func(c *session.Controller, ctx context.Context, creds domain.Credentials) (*domain.User, error)

// Register creates an account on the QA service and opens a session for it
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, (*session.Controller).Register, http.StatusCreated)
}

// Login authenticates against the QA service and opens a session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, (*session.Controller).Login, http.StatusOK)
}

func (h *AuthHandler) open(w http.ResponseWriter, r *http.Request, fn openFunc, status int) {
	var input domain.Credentials
	if !decodeAndValidate(w, r, &input) {
		return
	}

	ctrl := h.newController()
	user, err := fn(ctrl, r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	id := h.sessions.Open(ctrl)
	sealed, err := h.sealer.Seal(user.Token)
	if err != nil {
		h.sessions.Close(id)
		log.Error().Err(err).Msg("failed to seal QA token")
		response.InternalError(w, "failed to issue token")
		return
	}
	token, err := h.jwtManager.GenerateAccessToken(id, user.Username, sealed)
	if err != nil {
		h.sessions.Close(id)
		log.Error().Err(err).Msg("failed to generate access token")
		response.InternalError(w, "failed to issue token")
		return
	}

	response.JSON(w, status, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.jwtManager.AccessTokenTTL().Seconds()),
		User:        *user,
	})
}

// Logout ends the session and revokes its token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := ctrl.Logout(r.Context()); err != nil {
		// the local session is gone either way
		log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("logout reported an error")
	}
	if claims.ExpiresAt != nil {
		h.sessions.Revoke(claims.SessionID, claims.ExpiresAt.Time)
	} else {
		h.sessions.Close(claims.SessionID)
	}

	response.OK(w, map[string]string{"message": "Logged out successfully"})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	user, ok := ctrl.CurrentUser()
	if !ok {
		response.FromError(w, domain.ErrNoSession)
		return
	}
	response.OK(w, user)
}

// controller fetches the caller's session controller, writing a 401 when absent
func controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, ok := middleware.GetController(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}
	return ctrl, true
}
