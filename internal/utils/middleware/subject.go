package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/genrelay/server/internal/model"
	apperrors "github.com/genrelay/server/internal/utils/errors"
	"github.com/genrelay/server/internal/utils/logger"
	"github.com/genrelay/server/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// SubjectKey is the gin context key for the resolved caller.
	SubjectKey = "subject"

	sessionIDKey = "sid"
)

// TokenValidator resolves a bearer token to a subject.
type TokenValidator interface {
	Validate(token string) (*model.Subject, error)
}

// SessionConfig holds the anonymous session cookie settings.
type SessionConfig struct {
	MaxAge time.Duration
	Secure bool
}

// NewSessionStore creates a signed cookie store for anonymous subjects.
func NewSessionStore(secret []byte, cfg SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Subject resolves the caller of each request. A bearer token, when present,
// must be valid; without one the caller is an anonymous free-tier subject
// identified by a session cookie. validator may be nil to disable tokens.
func Subject(validator TokenValidator, store sessions.Store, sessionName string) gin.HandlerFunc {
	if sessionName == "" {
		sessionName = "genrelay_session"
	}

	return func(c *gin.Context) {
		var subject model.Subject

		if tok := extractBearerToken(c); tok != "" && validator != nil {
			resolved, err := validator.Validate(tok)
			if err != nil {
				appErr := apperrors.Unauthorized("invalid or expired token")
				c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
				return
			}
			subject = *resolved
		} else {
			id, err := anonymousID(c, store, sessionName)
			if err != nil {
				logger.FromContext(c.Request.Context()).Warn("Session save failed", logger.Err(err))
			}
			subject = model.Subject{ID: id, Tier: model.PlanTierFree}
		}

		c.Set(SubjectKey, subject)
		c.Request = c.Request.WithContext(requestctx.WithSubject(c.Request.Context(), subject))
		c.Next()
	}
}

// anonymousID returns the session's anonymous id, issuing one if needed.
// A tampered or undecodable cookie yields a fresh session.
func anonymousID(c *gin.Context, store sessions.Store, name string) (string, error) {
	session, _ := store.Get(c.Request, name)
	if id, ok := session.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := "anon-" + uuid.NewString()
	session.Values[sessionIDKey] = id
	return id, session.Save(c.Request, c.Writer)
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(header, BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
}

// GetSubject returns the resolved caller.
func GetSubject(c *gin.Context) (model.Subject, bool) {
	val, exists := c.Get(SubjectKey)
	if !exists {
		return model.Subject{}, false
	}
	s, ok := val.(model.Subject)
	return s, ok
}
