// Package front wires the public API routes: account auth, conversion,
// billing, and the webhook endpoints.
package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/extract"
	"github.com/statement2sheet/backend/internal/http/api/front/handlers"
	"github.com/statement2sheet/backend/internal/http/blogproxy"
	"github.com/statement2sheet/backend/internal/payments"
	"github.com/statement2sheet/backend/internal/quota"
	"github.com/statement2sheet/backend/internal/subscription"
	"gorm.io/gorm"
)

// Deps bundles the shared components the front routes depend on.
type Deps struct {
	DB        *gorm.DB
	JWT       config.JWTConfig
	Google    config.GoogleOAuthConfig
	Server    config.ServerConfig
	Validator *auth.Validator
	Quota     *quota.Engine
	Limiter   *quota.AnonymousLimiter
	Machine   *subscription.Machine
	Stripe    *payments.StripeAdapter
	Dodo      *payments.DodoAdapter
	Extractor *extract.Client
}

// RegisterFrontRoutes registers public routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	r.Use(corsMiddleware(deps.Server.FrontendURL))

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT, deps.Validator)
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	oauthHandler := handlers.NewOAuthHandler(deps.DB, deps.Google, deps.Validator)
	api.GET("/auth/google", oauthHandler.Start)
	api.GET("/auth/google/callback", oauthHandler.Callback)

	billingHandler := handlers.NewBillingHandler(deps.DB, deps.Machine, deps.Stripe, deps.Dodo, deps.Server)
	api.GET("/plans", billingHandler.Plans)
	api.POST("/webhooks/stripe", billingHandler.StripeWebhook)
	api.POST("/webhooks/dodo", billingHandler.DodoWebhook)

	contactHandler := handlers.NewContactHandler(deps.DB)
	api.POST("/contact/enterprise", contactHandler.SubmitEnterprise)

	anonymousHandler := handlers.NewAnonymousHandler(deps.Limiter, deps.Extractor)
	api.GET("/anonymous/check", anonymousHandler.Check)
	api.POST("/anonymous/convert", anonymousHandler.Convert)

	authed := api.Group("")
	authed.Use(deps.Validator.Middleware())

	profileHandler := handlers.NewProfileHandler(deps.DB)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	convertHandler := handlers.NewConvertHandler(deps.DB, deps.Quota, deps.Extractor)
	authed.GET("/pages/check", convertHandler.CheckPages)
	authed.POST("/convert", convertHandler.ProcessPDF)
	authed.GET("/documents", convertHandler.Documents)

	authed.POST("/checkout/stripe", billingHandler.CreateStripeCheckout)
	authed.POST("/checkout/dodo", billingHandler.CreateDodoSubscription)
	authed.GET("/subscription/status", billingHandler.Status)
	authed.POST("/subscription/portal", billingHandler.DodoPortal)

	// The trailing-slash redirect folds bare /blog into the catch-all.
	blog := blogproxy.New(deps.Server.BlogUpstream)
	r.Any("/blog/*path", blog.Handler)
}

// corsMiddleware allows the configured frontend origin.
func corsMiddleware(frontendURL string) gin.HandlerFunc {
	origin := strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	return func(c *gin.Context) {
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Fingerprint")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
