package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/security"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// oauthStateCookie carries the CSRF state between redirect and callback.
const oauthStateCookie = "oauth_state"

// googleUserInfoURL returns the authenticated Google profile.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthHandler serves the Google OAuth login flow.
type OAuthHandler struct {
	db        *gorm.DB
	cfg       config.GoogleOAuthConfig
	validator *auth.Validator

	// userInfoURL is swappable for tests.
	userInfoURL string
}

// NewOAuthHandler constructs an OAuthHandler.
func NewOAuthHandler(conn *gorm.DB, cfg config.GoogleOAuthConfig, validator *auth.Validator) *OAuthHandler {
	return &OAuthHandler{db: conn, cfg: cfg, validator: validator, userInfoURL: googleUserInfoURL}
}

// oauthConfig builds the oauth2 exchange config.
func (h *OAuthHandler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.ClientID,
		ClientSecret: h.cfg.ClientSecret,
		RedirectURL:  h.cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// configured reports whether Google credentials are present.
func (h *OAuthHandler) configured() bool {
	return strings.TrimSpace(h.cfg.ClientID) != "" && strings.TrimSpace(h.cfg.ClientSecret) != ""
}

// Start redirects the browser to Google's consent screen with a fresh
// CSRF state bound to a cookie.
func (h *OAuthHandler) Start(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login not configured"})
		return
	}

	state, errState := security.NewSessionToken()
	if errState != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start login failed"})
		return
	}

	c.SetCookie(oauthStateCookie, state, int((10 * time.Minute).Seconds()), "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauthConfig().AuthCodeURL(state))
}

// googleProfile is the subset of the Google userinfo response we read.
type googleProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Callback exchanges the authorization code, links or creates the account,
// opens a server-side session, and redirects back to the frontend.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login not configured"})
		return
	}

	wantState, errCookie := c.Cookie(oauthStateCookie)
	gotState := c.Query("state")
	if errCookie != nil || wantState == "" || gotState != wantState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	token, errExchange := h.oauthConfig().Exchange(c.Request.Context(), code)
	if errExchange != nil {
		log.WithError(errExchange).Warn("google code exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "google login failed"})
		return
	}

	profile, errProfile := h.fetchProfile(c.Request.Context(), token)
	if errProfile != nil {
		log.WithError(errProfile).Warn("google profile fetch failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "google login failed"})
		return
	}
	if profile.Email == "" || profile.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "google login failed"})
		return
	}

	user, errUser := h.findOrCreateUser(c.Request.Context(), profile)
	if errUser != nil {
		log.WithError(errUser).Error("google account linking failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "google login failed"})
		return
	}

	sessionToken, errSession := h.validator.CreateSession(c.Request.Context(), user.ID)
	if errSession != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "google login failed"})
		return
	}

	c.SetCookie(auth.SessionCookieName, sessionToken, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)

	redirect := strings.TrimSpace(h.cfg.FrontendCallbackURL)
	if redirect == "" {
		c.JSON(http.StatusOK, gin.H{"user": formatUser(user)})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, redirect)
}

// fetchProfile loads the Google profile with the exchanged token.
func (h *OAuthHandler) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	client := h.oauthConfig().Client(ctx, token)
	resp, errGet := client.Get(h.userInfoURL)
	if errGet != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", errGet)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return nil, fmt.Errorf("read userinfo: %w", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo responded %d", resp.StatusCode)
	}

	var profile googleProfile
	if errUnmarshal := json.Unmarshal(raw, &profile); errUnmarshal != nil {
		return nil, fmt.Errorf("decode userinfo: %w", errUnmarshal)
	}
	return &profile, nil
}

// findOrCreateUser resolves the Google identity to an account: match on
// Google ID first, then link by email, then create a fresh free-tier account.
func (h *OAuthHandler) findOrCreateUser(ctx context.Context, profile *googleProfile) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	var user models.User
	errByGoogle := h.db.WithContext(ctx).First(&user, "google_id = ?", profile.ID).Error
	if errByGoogle == nil {
		return &user, nil
	}

	errByEmail := h.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errByEmail == nil {
		if user.GoogleID == "" {
			if errLink := h.db.WithContext(ctx).Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("google_id", profile.ID).Error; errLink != nil {
				return nil, fmt.Errorf("link google id: %w", errLink)
			}
			user.GoogleID = profile.ID
		}
		return &user, nil
	}

	now := time.Now().UTC()
	user = models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		FullName:           strings.TrimSpace(profile.Name),
		GoogleID:           profile.ID,
		SubscriptionTier:   models.TierDailyFree,
		PagesRemaining:     models.DailyFreePages,
		PagesLimit:         models.DailyFreePages,
		DailyResetTime:     now,
		LanguagePreference: "en",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return nil, fmt.Errorf("create google account: %w", errCreate)
	}
	return &user, nil
}
