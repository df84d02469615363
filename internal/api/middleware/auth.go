package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Rrens/docqa/internal/api/response"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/security"
	"github.com/Rrens/docqa/internal/session"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	SessionIDKey  contextKey = "sessionID"
	UsernameKey   contextKey = "username"
	ControllerKey contextKey = "controller"
	ClaimsKey     contextKey = "claims"
)

var errNoSealedToken = errors.New("token carries no QA credentials")

// ControllerFactory builds a controller with no active session
type ControllerFactory func() *session.Controller

// AuthMiddleware handles JWT authentication and binds the caller's session
type AuthMiddleware struct {
	jwtManager    *security.JWTManager
	sealer        *security.Sealer
	sessions      *session.Registry
	newController ControllerFactory
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager, sealer *security.Sealer, sessions *session.Registry, newController ControllerFactory) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:    jwtManager,
		sealer:        sealer,
		sessions:      sessions,
		newController: newController,
	}
}

// Authenticate validates the JWT token and loads its session. A session
// lost to eviction or a restart is resumed from the sealed QA token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token: "+err.Error())
			return
		}

		if m.sessions.Revoked(claims.SessionID) {
			response.Unauthorized(w, "session has been logged out")
			return
		}

		ctrl, ok := m.sessions.Get(claims.SessionID)
		if !ok {
			ctrl, err = m.resume(r.Context(), claims)
			if err != nil {
				log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("failed to resume session")
				response.Unauthorized(w, "session expired, please login again")
				return
			}
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, claims.SessionID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, ClaimsKey, claims)
		ctx = context.WithValue(ctx, ControllerKey, ctrl)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resume(ctx context.Context, claims *security.Claims) (*session.Controller, error) {
	if claims.QAToken == "" {
		return nil, errNoSealedToken
	}
	token, err := m.sealer.Open(claims.QAToken)
	if err != nil {
		return nil, err
	}

	fresh := m.newController()
	if _, err := fresh.Resume(ctx, domain.User{Username: claims.Username, Token: token}); err != nil {
		return nil, err
	}

	ctrl, adopted := m.sessions.Adopt(claims.SessionID, fresh)
	if !adopted {
		// lost a race with a concurrent resume or a logout
		_ = fresh.Logout(context.WithoutCancel(ctx))
		if ctrl == nil {
			return nil, domain.ErrNoSession
		}
		return ctrl, nil
	}

	log.Info().Str("session_id", claims.SessionID).Str("username", claims.Username).Msg("resumed session")
	return ctrl, nil
}

// GetSessionID gets the gateway session ID from context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok
}

// GetUsername gets the username from context
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetClaims gets the validated token claims from context
func GetClaims(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*security.Claims)
	return claims, ok
}

// GetController gets the caller's session controller from context
func GetController(ctx context.Context) (*session.Controller, bool) {
	ctrl, ok := ctx.Value(ControllerKey).(*session.Controller)
	return ctrl, ok
}
