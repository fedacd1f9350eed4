// Package handlers implements the public API endpoints.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/security"
	"gorm.io/gorm"
)

// AuthHandler serves signup, login, and logout.
type AuthHandler struct {
	db        *gorm.DB
	jwtCfg    config.JWTConfig
	validator *auth.Validator
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(conn *gorm.DB, jwtCfg config.JWTConfig, validator *auth.Validator) *AuthHandler {
	return &AuthHandler{db: conn, jwtCfg: jwtCfg, validator: validator}
}

// signupRequest defines the request body for account creation.
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Signup creates an email/password account on the daily free tier.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body signupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}
	if len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create account failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		FullName:           strings.TrimSpace(body.FullName),
		PasswordHash:       &hash,
		SubscriptionTier:   models.TierDailyFree,
		PagesRemaining:     models.DailyFreePages,
		PagesLimit:         models.DailyFreePages,
		DailyResetTime:     now,
		LanguagePreference: "en",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create account failed"})
		return
	}

	token, errToken := security.NewUserToken(h.jwtCfg.Secret, user.ID, user.Email, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  formatUser(&user),
	})
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies email/password credentials and issues a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).First(&user, "email = ?", email).Error
	if errFind != nil || user.PasswordHash == nil || !security.VerifyPassword(*user.PasswordHash, body.Password) {
		// One response for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, errToken := security.NewUserToken(h.jwtCfg.Secret, user.ID, user.Email, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  formatUser(&user),
	})
}

// Logout destroys the server-side session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := auth.TokenFromRequest(c)
	if errDestroy := h.validator.DestroySession(c.Request.Context(), token); errDestroy != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// formatUser converts a user model to a response payload.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":                  user.ID,
		"email":               user.Email,
		"full_name":           user.FullName,
		"subscription_tier":   user.SubscriptionTier,
		"subscription_status": user.SubscriptionStatus,
		"pages_remaining":     user.PagesRemaining,
		"pages_limit":         user.PagesLimit,
		"language_preference": user.LanguagePreference,
		"created_at":          user.CreatedAt,
	}
}
