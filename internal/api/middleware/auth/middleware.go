package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/internal/session"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type userIDCtxKey struct{}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDCtxKey{}).(int64)
	return userID, ok
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDCtxKey{}, userID)
}

// SessionResolver resolves session tokens.
type SessionResolver interface {
	Get(ctx context.Context, token string) (*types.Session, error)
}

// Middleware resolves the session token of a request into a user ID.
// Requests without a valid session continue anonymously.
type Middleware struct {
	sessions   SessionResolver
	cookieName string
	logger     *zap.Logger
}

// New creates a new auth middleware.
func New(sessions SessionResolver, cookieName string, logger *zap.Logger) *Middleware {
	return &Middleware{
		sessions:   sessions,
		cookieName: cookieName,
		logger:     logger.Named("auth_middleware"),
	}
}

// Middleware returns a bunrouter middleware handler for session resolution.
func (m *Middleware) Middleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		token := m.token(req.Request)
		if token == "" {
			return next(w, req)
		}

		sess, err := m.sessions.Get(req.Context(), token)
		switch {
		case err == nil:
			return next(w, req.WithContext(WithUserID(req.Context(), sess.UserID)))
		case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrSessionNotFound):
			m.logger.Debug("Ignoring unknown session token", zap.Error(err))
			return next(w, req)
		default:
			m.logger.Error("Failed to resolve session", zap.Error(err))
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return nil
		}
	}
}

// token extracts the session token from the session cookie or a bearer header.
func (m *Middleware) token(req *http.Request) string {
	if cookie, err := req.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := req.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}

	return ""
}
