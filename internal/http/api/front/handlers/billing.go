package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/catalog"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/payments"
	"github.com/statement2sheet/backend/internal/subscription"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// maxWebhookBytes caps accepted webhook payloads.
const maxWebhookBytes = 1 << 20

// BillingHandler serves the pricing catalog, checkout creation, and the
// provider webhook endpoints.
type BillingHandler struct {
	db      *gorm.DB
	machine *subscription.Machine
	stripe  *payments.StripeAdapter
	dodo    *payments.DodoAdapter
	server  config.ServerConfig
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(conn *gorm.DB, machine *subscription.Machine, stripeAdapter *payments.StripeAdapter, dodoAdapter *payments.DodoAdapter, server config.ServerConfig) *BillingHandler {
	return &BillingHandler{db: conn, machine: machine, stripe: stripeAdapter, dodo: dodoAdapter, server: server}
}

// Plans returns the static pricing catalog.
func (h *BillingHandler) Plans(c *gin.Context) {
	pkgs := catalog.Packages()
	out := make([]gin.H, 0, len(pkgs))
	for _, pkg := range pkgs {
		entry := gin.H{
			"id":            pkg.ID,
			"name":          pkg.Name,
			"tier":          pkg.Tier,
			"price_monthly": pkg.PriceMonthly,
			"price_annual":  pkg.PriceAnnual,
			"pages_limit":   pkg.PagesLimit,
			"features":      pkg.Features,
			"is_popular":    pkg.IsPopular,
		}
		if pkg.PagesLimit >= catalog.UnlimitedPages {
			entry["pages_limit"] = "unlimited"
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// checkoutRequest defines the request body for checkout creation.
type checkoutRequest struct {
	PackageID string `json:"package_id"`
	Interval  string `json:"interval"`
}

// resolveCheckout validates the request against the server-side catalog.
func (h *BillingHandler) resolveCheckout(c *gin.Context) (*models.User, catalog.Package, models.BillingInterval, bool) {
	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, catalog.Package{}, "", false
	}

	pkg, errPkg := catalog.Lookup(body.PackageID)
	if errPkg != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown package"})
		return nil, catalog.Package{}, "", false
	}
	if pkg.ID == "enterprise" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enterprise plans are arranged through sales"})
		return nil, catalog.Package{}, "", false
	}
	interval, errInterval := catalog.ParseInterval(body.Interval)
	if errInterval != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be monthly or annual"})
		return nil, catalog.Package{}, "", false
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", auth.UserIDFromContext(c)).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, catalog.Package{}, "", false
	}
	return &user, pkg, interval, true
}

// CreateStripeCheckout opens a Stripe checkout session and records the
// pending transaction keyed by the session ID.
func (h *BillingHandler) CreateStripeCheckout(c *gin.Context) {
	user, pkg, interval, ok := h.resolveCheckout(c)
	if !ok {
		return
	}

	frontend := strings.TrimRight(h.server.FrontendURL, "/")
	sess, errCreate := h.stripe.CreateCheckoutSession(payments.CheckoutParams{
		PackageID:     pkg.ID,
		PackageName:   pkg.Name,
		Interval:      string(interval),
		AmountCents:   int64(pkg.Price(interval) * 100),
		Currency:      "usd",
		CustomerEmail: user.Email,
		CustomerName:  user.FullName,
		SuccessURL:    frontend + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     frontend + "/pricing",
		Metadata:      map[string]string{"user_id": user.ID, "package_id": pkg.ID, "interval": string(interval)},
	})
	if errCreate != nil {
		if errors.Is(errCreate, payments.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe not configured"})
			return
		}
		log.WithError(errCreate).Error("stripe checkout failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "create checkout failed"})
		return
	}

	if _, errPending := h.machine.CreatePending(c.Request.Context(), user.ID, models.ProviderStripe, sess.SessionID, pkg.ID, interval); errPending != nil {
		log.WithError(errPending).Error("record pending stripe checkout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create checkout failed"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CreateDodoSubscription opens a Dodo subscription with a hosted payment link
// and records the pending transaction keyed by the subscription ID.
func (h *BillingHandler) CreateDodoSubscription(c *gin.Context) {
	user, pkg, interval, ok := h.resolveCheckout(c)
	if !ok {
		return
	}

	frontend := strings.TrimRight(h.server.FrontendURL, "/")
	sess, errCreate := h.dodo.CreateSubscription(c.Request.Context(), payments.CheckoutParams{
		PackageID:     pkg.ID,
		PackageName:   pkg.Name,
		Interval:      string(interval),
		CustomerEmail: user.Email,
		CustomerName:  user.FullName,
		SuccessURL:    frontend + "/billing/success",
		Metadata:      map[string]string{"user_id": user.ID, "package_id": pkg.ID, "interval": string(interval)},
	})
	if errCreate != nil {
		if errors.Is(errCreate, payments.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dodo payments not configured"})
			return
		}
		log.WithError(errCreate).Error("dodo subscription failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "create subscription failed"})
		return
	}

	if _, errPending := h.machine.CreatePending(c.Request.Context(), user.ID, models.ProviderDodo, sess.SessionID, pkg.ID, interval); errPending != nil {
		log.WithError(errPending).Error("record pending dodo subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create subscription failed"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DodoPortal opens the Dodo customer portal for the user's active
// subscription.
func (h *BillingHandler) DodoPortal(c *gin.Context) {
	sub, errFind := h.machine.FindLatestActive(c.Request.Context(), auth.UserIDFromContext(c))
	if errFind != nil || sub.Provider != models.ProviderDodo || sub.CustomerID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active dodo subscription"})
		return
	}

	link, errPortal := h.dodo.CreatePortalSession(c.Request.Context(), sub.CustomerID)
	if errPortal != nil {
		log.WithError(errPortal).Error("dodo portal session failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "open portal failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"portal_url": link})
}

// Status reports the stored transaction state for a checkout session, used by
// the frontend to poll after the provider redirect.
func (h *BillingHandler) Status(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	sub, errFind := h.machine.FindBySessionID(c.Request.Context(), sessionID)
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if sub.UserID != auth.UserIDFromContext(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":          sub.SessionID,
		"package_id":          sub.PackageID,
		"interval":            sub.Interval,
		"payment_status":      sub.PaymentStatus,
		"subscription_status": sub.SubscriptionStatus,
		"activated_at":        sub.ActivatedAt,
	})
}

// StripeWebhook verifies and applies Stripe lifecycle events. Replayed or
// unknown events are acknowledged so the provider stops retrying.
func (h *BillingHandler) StripeWebhook(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read payload failed"})
		return
	}

	event, errVerify := h.stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errVerify != nil {
		log.WithError(errVerify).Warn("stripe webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	errApply := h.applyStripeEvent(c, event, payload)
	switch {
	case errApply == nil,
		errors.Is(errApply, subscription.ErrDuplicateEvent),
		errors.Is(errApply, subscription.ErrUnknownSubscription):
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		log.WithError(errApply).WithField("type", event.Type).Error("stripe event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
	}
}

// applyStripeEvent routes one verified Stripe event to the state machine.
func (h *BillingHandler) applyStripeEvent(c *gin.Context, event stripe.Event, payload []byte) error {
	ctx := c.Request.Context()
	base := subscription.Event{
		Provider:  models.ProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   payload,
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
			return errUnmarshal
		}
		base.SessionID = sess.ID
		customerID, subID := "", ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			subID = sess.Subscription.ID
		}
		return h.machine.Activate(ctx, base, customerID, subID)

	case "invoice.paid":
		var inv stripe.Invoice
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &inv); errUnmarshal != nil {
			return errUnmarshal
		}
		if inv.Subscription == nil {
			return nil
		}
		if errPayment := h.machine.RecordPayment(ctx, models.ProviderStripe, inv.ID, inv.Subscription.ID, inv.AmountPaid); errPayment != nil {
			return errPayment
		}
		// The first invoice belongs to activation, which checkout.session.completed
		// already applied.
		if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
			return nil
		}
		sessionID, errResolve := h.machine.ResolveSessionID(ctx, inv.Subscription.ID)
		if errResolve != nil {
			return errResolve
		}
		base.SessionID = sessionID
		return h.machine.Renew(ctx, base)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &inv); errUnmarshal != nil {
			return errUnmarshal
		}
		if inv.Subscription == nil {
			return nil
		}
		sessionID, errResolve := h.machine.ResolveSessionID(ctx, inv.Subscription.ID)
		if errResolve != nil {
			return errResolve
		}
		base.SessionID = sessionID
		return h.machine.Fail(ctx, base)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sub); errUnmarshal != nil {
			return errUnmarshal
		}
		sessionID, errResolve := h.machine.ResolveSessionID(ctx, sub.ID)
		if errResolve != nil {
			return errResolve
		}
		base.SessionID = sessionID
		return h.machine.Cancel(ctx, base)

	default:
		// Unhandled event types are acknowledged without state changes.
		return nil
	}
}

// DodoWebhook verifies and applies Dodo Payments lifecycle events.
func (h *BillingHandler) DodoWebhook(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read payload failed"})
		return
	}

	event, errVerify := h.dodo.VerifyWebhook(payload, c.Request.Header)
	if errVerify != nil {
		log.WithError(errVerify).Warn("dodo webhook rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	errApply := h.applyDodoEvent(c, event)
	switch {
	case errApply == nil,
		errors.Is(errApply, subscription.ErrDuplicateEvent),
		errors.Is(errApply, subscription.ErrUnknownSubscription):
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		log.WithError(errApply).WithField("type", event.Type).Error("dodo event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
	}
}

// applyDodoEvent routes one verified Dodo event to the state machine. Dodo
// keys everything by the subscription ID, which is also our session ID.
func (h *BillingHandler) applyDodoEvent(c *gin.Context, event *payments.DodoEvent) error {
	ctx := c.Request.Context()
	base := subscription.Event{
		Provider:  models.ProviderDodo,
		EventID:   event.EventID,
		EventType: event.Type,
		SessionID: dodoDataString(event.Data, "subscription_id"),
		Payload:   event.Raw,
	}

	switch event.Type {
	case "subscription.active":
		customerID := dodoDataString(event.Data, "customer_id")
		if customerID == "" {
			if nested, ok := event.Data["customer"].(map[string]any); ok {
				if id, okID := nested["customer_id"].(string); okID {
					customerID = id
				}
			}
		}
		return h.machine.Activate(ctx, base, customerID, "")
	case "subscription.renewed":
		return h.machine.Renew(ctx, base)
	case "subscription.on_hold":
		return h.machine.Hold(ctx, base)
	case "subscription.cancelled":
		return h.machine.Cancel(ctx, base)
	case "subscription.failed":
		return h.machine.Fail(ctx, base)
	case "payment.succeeded":
		paymentID := dodoDataString(event.Data, "payment_id")
		if paymentID == "" {
			return nil
		}
		amount := int64(0)
		if v, ok := event.Data["total_amount"].(float64); ok {
			amount = int64(v)
		}
		return h.machine.RecordPayment(ctx, models.ProviderDodo, paymentID, base.SessionID, amount)
	default:
		return nil
	}
}

// dodoDataString reads a string field from the event data object.
func dodoDataString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
