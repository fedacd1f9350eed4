// Package payments wraps the Stripe and Dodo Payments vendor APIs behind
// small adapters: create a checkout session, verify an inbound webhook.
// State transitions triggered by verified events live in the subscription
// package; nothing here mutates stores.
package payments

import "errors"

// Sentinel errors shared by the adapters.
var (
	// ErrNotConfigured indicates missing provider credentials.
	ErrNotConfigured = errors.New("payments: provider not configured")
	// ErrVerificationFailed indicates a webhook signature mismatch.
	// No state is mutated; the request is rejected and logged.
	ErrVerificationFailed = errors.New("payments: webhook verification failed")
)

// CheckoutParams describe a checkout session request. Amounts come from the
// server-side catalog, never from client input.
type CheckoutParams struct {
	PackageID     string            // Catalog package identifier.
	PackageName   string            // Display name shown at checkout.
	Interval      string            // "monthly" or "annual".
	AmountCents   int64             // Price in minor units.
	Currency      string            // ISO currency code.
	CustomerEmail string            // Buyer email.
	CustomerName  string            // Buyer name.
	SuccessURL    string            // Redirect after successful payment.
	CancelURL     string            // Redirect after abandoned payment.
	Metadata      map[string]string // Opaque values echoed back on webhooks.
}

// CheckoutSession is the provider-issued redirect target.
type CheckoutSession struct {
	URL       string `json:"checkout_url"` // Hosted checkout page.
	SessionID string `json:"session_id"`   // Provider session or subscription ID.
}
