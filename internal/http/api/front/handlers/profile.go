package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/security"
	"gorm.io/gorm"
)

// ProfileHandler serves the authenticated user's account endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(conn *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: conn}
}

// Get returns the authenticated user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := auth.UserIDFromContext(c)

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	out := formatUser(&user)
	out["billing_cycle_start"] = user.BillingCycleStart
	out["billing_cycle_end"] = user.BillingCycleEnd
	out["has_password"] = user.PasswordHash != nil
	out["google_linked"] = user.GoogleID != ""
	c.JSON(http.StatusOK, gin.H{"user": out})
}

// updateProfileRequest defines the request body for profile updates.
type updateProfileRequest struct {
	FullName           *string `json:"full_name"`
	LanguagePreference *string `json:"language_preference"`
}

// Update changes the mutable profile fields.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := auth.UserIDFromContext(c)

	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*body.FullName)
	}
	if body.LanguagePreference != nil {
		lang := strings.ToLower(strings.TrimSpace(*body.LanguagePreference))
		if lang == "" || len(lang) > 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid language preference"})
			return
		}
		updates["language_preference"] = lang
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": formatUser(&user)})
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the password after verifying the current one.
// OAuth-only accounts set their first password with an empty current value.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	userID := auth.UserIDFromContext(c)

	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.PasswordHash != nil && !security.VerifyPassword(*user.PasswordHash, body.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	hash, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
