package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/statement2sheet/backend/internal/config"
)

// Dodo API base URLs per environment.
const (
	dodoTestBaseURL = "https://test.dodopayments.com"
	dodoLiveBaseURL = "https://live.dodopayments.com"
)

// dodoProductIDs maps packageID_interval to the provisioned Dodo product.
var dodoProductIDs = map[string]string{
	"starter_monthly":      "pdt_tfooh1hgdtu28iMdXSRl3",
	"professional_monthly": "pdt_q0ZUGAq69LZ4vNUZGYjFS",
	"business_monthly":     "pdt_FInGMoMySf6lYrxia8qgq",
	"starter_annual":       "pdt_uO0U9F22GbAd87C6S7CzG",
	"professional_annual":  "pdt_eewWmwQNJ26eMyvhRoG62",
	"business_annual":      "pdt_rQiqTXDkiarEO0HW4WrIS",
}

// webhookTolerance bounds webhook timestamp skew.
const webhookTolerance = 5 * time.Minute

// DodoAdapter is a thin REST client for the Dodo Payments API with
// Standard Webhooks signature verification.
type DodoAdapter struct {
	cfg    config.DodoConfig
	client *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewDodoAdapter constructs a DodoAdapter.
func NewDodoAdapter(cfg config.DodoConfig) *DodoAdapter {
	return &DodoAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Configured reports whether Dodo credentials are present.
func (a *DodoAdapter) Configured() bool {
	return strings.TrimSpace(a.cfg.APIKey) != ""
}

// baseURL selects the API host for the configured environment.
func (a *DodoAdapter) baseURL() string {
	if a.cfg.Environment == "live_mode" {
		return dodoLiveBaseURL
	}
	return dodoTestBaseURL
}

// ProductID resolves the Dodo product for a package and interval.
func ProductID(packageID, interval string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(packageID)) + "_" + strings.ToLower(strings.TrimSpace(interval))
	id, ok := dodoProductIDs[key]
	if !ok {
		return "", fmt.Errorf("payments: no dodo product for %s", key)
	}
	return id, nil
}

// dodoSubscriptionRequest is the create-subscription request body.
type dodoSubscriptionRequest struct {
	ProductID   string            `json:"product_id"`
	Quantity    int               `json:"quantity"`
	PaymentLink bool              `json:"payment_link"`
	ReturnURL   string            `json:"return_url"`
	Customer    dodoCustomer      `json:"customer"`
	Billing     dodoCustomer      `json:"billing"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// dodoCustomer carries buyer identity fields.
type dodoCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// dodoSubscriptionResponse is the create-subscription response body.
type dodoSubscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
	PaymentLink    string `json:"payment_link"`
}

// CreateSubscription opens a Dodo subscription with a hosted payment link.
func (a *DodoAdapter) CreateSubscription(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	productID, errProduct := ProductID(p.PackageID, p.Interval)
	if errProduct != nil {
		return nil, errProduct
	}

	body := dodoSubscriptionRequest{
		ProductID:   productID,
		Quantity:    1,
		PaymentLink: true,
		ReturnURL:   p.SuccessURL,
		Customer:    dodoCustomer{Email: p.CustomerEmail, Name: p.CustomerName},
		Billing:     dodoCustomer{Email: p.CustomerEmail, Name: p.CustomerName},
		Metadata:    p.Metadata,
	}

	var resp dodoSubscriptionResponse
	if errPost := a.post(ctx, "/subscriptions", body, &resp); errPost != nil {
		return nil, errPost
	}
	if resp.SubscriptionID == "" || resp.PaymentLink == "" {
		return nil, fmt.Errorf("payments: dodo returned incomplete subscription response")
	}
	return &CheckoutSession{URL: resp.PaymentLink, SessionID: resp.SubscriptionID}, nil
}

// CreatePortalSession opens a customer-portal session for self-service
// subscription management.
func (a *DodoAdapter) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", fmt.Errorf("payments: empty dodo customer id")
	}

	// portalResponse is the customer-portal session response body.
	var portalResponse struct {
		Link string `json:"link"`
	}
	path := "/customers/" + customerID + "/customer-portal/session"
	if errPost := a.post(ctx, path, struct{}{}, &portalResponse); errPost != nil {
		return "", errPost
	}
	if portalResponse.Link == "" {
		return "", fmt.Errorf("payments: dodo returned empty portal link")
	}
	return portalResponse.Link, nil
}

// post sends an authenticated JSON request and decodes the response.
func (a *DodoAdapter) post(ctx context.Context, path string, body, out any) error {
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return fmt.Errorf("payments: marshal dodo request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+path, bytes.NewReader(payload))
	if errReq != nil {
		return fmt.Errorf("payments: build dodo request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := a.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("payments: dodo request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return fmt.Errorf("payments: read dodo response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("payments: dodo responded %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if errUnmarshal := json.Unmarshal(raw, out); errUnmarshal != nil {
		return fmt.Errorf("payments: decode dodo response: %w", errUnmarshal)
	}
	return nil
}

// DodoEvent is a verified Dodo webhook payload.
type DodoEvent struct {
	EventID string         // Delivery ID from the webhook-id header.
	Type    string         // Event type, e.g. "subscription.active".
	Data    map[string]any // Event data object.
	Raw     []byte         // Raw payload for audit storage.
}

// VerifyWebhook checks a Standard Webhooks signature (HMAC-SHA256 over
// "id.timestamp.payload") and parses the event. The timestamp must be within
// tolerance to defeat replay of captured deliveries.
func (a *DodoAdapter) VerifyWebhook(payload []byte, headers http.Header) (*DodoEvent, error) {
	secret := strings.TrimSpace(a.cfg.WebhookSecret)
	if secret == "" {
		return nil, ErrNotConfigured
	}

	msgID := strings.TrimSpace(headers.Get("webhook-id"))
	msgTimestamp := strings.TrimSpace(headers.Get("webhook-timestamp"))
	msgSignature := strings.TrimSpace(headers.Get("webhook-signature"))
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		return nil, ErrVerificationFailed
	}

	ts, errParse := strconv.ParseInt(msgTimestamp, 10, 64)
	if errParse != nil {
		return nil, ErrVerificationFailed
	}
	skew := a.now().Sub(time.Unix(ts, 0))
	if skew > webhookTolerance || skew < -webhookTolerance {
		return nil, ErrVerificationFailed
	}

	key, errDecode := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if errDecode != nil {
		return nil, ErrVerificationFailed
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + msgTimestamp + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// The signature header holds space-separated "v1,<base64>" entries.
	verified := false
	for _, part := range strings.Fields(msgSignature) {
		versioned := strings.SplitN(part, ",", 2)
		if len(versioned) != 2 || versioned[0] != "v1" {
			continue
		}
		candidate, errSig := base64.StdEncoding.DecodeString(versioned[1])
		if errSig != nil {
			continue
		}
		if hmac.Equal(expected, candidate) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrVerificationFailed
	}

	// envelope maps the verified payload fields.
	var envelope struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(payload, &envelope); errUnmarshal != nil {
		return nil, ErrVerificationFailed
	}
	return &DodoEvent{EventID: msgID, Type: envelope.Type, Data: envelope.Data, Raw: payload}, nil
}
