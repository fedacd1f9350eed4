package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/statement2sheet/backend/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeAdapter wraps the Stripe SDK.
type StripeAdapter struct {
	cfg config.StripeConfig
}

// NewStripeAdapter constructs a StripeAdapter.
func NewStripeAdapter(cfg config.StripeConfig) *StripeAdapter {
	return &StripeAdapter{cfg: cfg}
}

// Configured reports whether Stripe credentials are present.
func (a *StripeAdapter) Configured() bool {
	return strings.TrimSpace(a.cfg.SecretKey) != ""
}

// CreateCheckoutSession opens a Stripe subscription checkout and returns the
// hosted payment URL.
func (a *StripeAdapter) CreateCheckoutSession(p CheckoutParams) (*CheckoutSession, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	recurring := "month"
	if p.Interval == "annual" {
		recurring = "year"
	}

	stripe.Key = a.cfg.SecretKey
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(recurring),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.PackageName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: p.Metadata,
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, errNew := session.New(params)
	if errNew != nil {
		var stripeErr *stripe.Error
		if errors.As(errNew, &stripeErr) {
			return nil, fmt.Errorf("payments: stripe %s: %s", stripeErr.Code, stripeErr.Msg)
		}
		return nil, fmt.Errorf("payments: create stripe session: %w", errNew)
	}
	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
func (a *StripeAdapter) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if strings.TrimSpace(a.cfg.WebhookSecret) == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	event, errConstruct := webhook.ConstructEvent(payload, sigHeader, a.cfg.WebhookSecret)
	if errConstruct != nil {
		return stripe.Event{}, ErrVerificationFailed
	}
	return event, nil
}
