// Package auth resolves request credentials to a user identity. Two token
// kinds are accepted interchangeably: opaque server-side session tokens
// created on OAuth login, and signed JWTs issued on password login. The
// session table is checked first so revocation takes effect immediately.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/security"
	"gorm.io/gorm"
)

// ErrUnauthenticated indicates missing or invalid credentials.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Context keys set by Middleware on authenticated requests.
const (
	ContextUserID = "userID"
	ContextEmail  = "userEmail"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_token"

// Identity is the resolved caller identity.
type Identity struct {
	UserID string
	Email  string
}

// Validator resolves bearer credentials against the session store and the
// JWT signing secret.
type Validator struct {
	db  *gorm.DB
	jwt config.JWTConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewValidator constructs a Validator.
func NewValidator(db *gorm.DB, jwtCfg config.JWTConfig) *Validator {
	return &Validator{db: db, jwt: jwtCfg, now: func() time.Time { return time.Now().UTC() }}
}

// Resolve maps a raw token to an Identity. Opaque session tokens are looked
// up first; anything else is tried as a JWT.
func (v *Validator) Resolve(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var sess models.UserSession
	errFind := v.db.WithContext(ctx).First(&sess, "session_token = ?", token).Error
	switch {
	case errFind == nil:
		if v.now().After(sess.ExpiresAt) {
			return nil, ErrUnauthenticated
		}
		var user models.User
		if errUser := v.db.WithContext(ctx).First(&user, "id = ?", sess.UserID).Error; errUser != nil {
			return nil, ErrUnauthenticated
		}
		return &Identity{UserID: user.ID, Email: user.Email}, nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		// Fall through to JWT parsing.
	default:
		return nil, fmt.Errorf("auth: session lookup: %w", errFind)
	}

	claims, errParse := security.ParseUserToken(v.jwt.Secret, token)
	if errParse != nil {
		return nil, ErrUnauthenticated
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// CreateSession stores a fresh opaque session for a user and returns the token.
func (v *Validator) CreateSession(ctx context.Context, userID string) (string, error) {
	token, errToken := security.NewSessionToken()
	if errToken != nil {
		return "", errToken
	}
	sess := models.UserSession{
		UserID:       userID,
		SessionToken: token,
		ExpiresAt:    v.now().Add(v.jwt.Expiry),
	}
	if errCreate := v.db.WithContext(ctx).Create(&sess).Error; errCreate != nil {
		return "", fmt.Errorf("auth: create session: %w", errCreate)
	}
	return token, nil
}

// DestroySession removes the opaque session for a token. Unknown tokens are
// a no-op so logout is idempotent.
func (v *Validator) DestroySession(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if errDelete := v.db.WithContext(ctx).Delete(&models.UserSession{}, "session_token = ?", token).Error; errDelete != nil {
		return fmt.Errorf("auth: destroy session: %w", errDelete)
	}
	return nil
}

// TokenFromRequest extracts the credential from the session cookie or the
// Authorization bearer header, cookie first.
func TokenFromRequest(c *gin.Context) string {
	if cookie, errCookie := c.Cookie(SessionCookieName); errCookie == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Middleware rejects unauthenticated requests and stores the resolved
// identity on the gin context.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, errResolve := v.Resolve(c.Request.Context(), TokenFromRequest(c))
		if errResolve != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextEmail, identity.Email)
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user ID set by Middleware.
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
