package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/statement2sheet/backend/internal/config"
)

// signWebhook produces Standard Webhooks headers for a payload.
func signWebhook(secret []byte, msgID string, ts time.Time, payload []byte) http.Header {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(payload)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("webhook-id", msgID)
	headers.Set("webhook-timestamp", timestamp)
	headers.Set("webhook-signature", "v1,"+sig)
	return headers
}

func newTestAdapter(secret []byte, now time.Time) *DodoAdapter {
	adapter := NewDodoAdapter(config.DodoConfig{
		APIKey:        "test-key",
		WebhookSecret: "whsec_" + base64.StdEncoding.EncodeToString(secret),
		Environment:   "test_mode",
	})
	adapter.now = func() time.Time { return now }
	return adapter
}

func TestVerifyWebhook(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now().UTC()
	adapter := newTestAdapter(secret, now)

	payload := []byte(`{"type":"subscription.active","data":{"subscription_id":"sub_1","customer":{"customer_id":"cus_1"}}}`)
	headers := signWebhook(secret, "msg_1", now, payload)

	event, errVerify := adapter.VerifyWebhook(payload, headers)
	if errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	if event.EventID != "msg_1" || event.Type != "subscription.active" {
		t.Fatalf("event = %q/%q", event.EventID, event.Type)
	}
	if id, _ := event.Data["subscription_id"].(string); id != "sub_1" {
		t.Fatalf("data subscription_id = %q", id)
	}
}

func TestVerifyWebhookRejectsTampering(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now().UTC()
	adapter := newTestAdapter(secret, now)

	payload := []byte(`{"type":"subscription.active","data":{}}`)
	headers := signWebhook(secret, "msg_2", now, payload)

	if _, errVerify := adapter.VerifyWebhook([]byte(`{"type":"subscription.cancelled","data":{}}`), headers); !errors.Is(errVerify, ErrVerificationFailed) {
		t.Fatalf("tampered payload = %v, want ErrVerificationFailed", errVerify)
	}

	wrong := signWebhook([]byte("another-secret-another-secret-00"), "msg_2", now, payload)
	if _, errVerify := adapter.VerifyWebhook(payload, wrong); !errors.Is(errVerify, ErrVerificationFailed) {
		t.Fatalf("wrong key = %v, want ErrVerificationFailed", errVerify)
	}

	missing := http.Header{}
	if _, errVerify := adapter.VerifyWebhook(payload, missing); !errors.Is(errVerify, ErrVerificationFailed) {
		t.Fatalf("missing headers = %v, want ErrVerificationFailed", errVerify)
	}
}

func TestVerifyWebhookRejectsStaleTimestamp(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now().UTC()
	adapter := newTestAdapter(secret, now)

	payload := []byte(`{"type":"payment.succeeded","data":{}}`)
	stale := signWebhook(secret, "msg_3", now.Add(-10*time.Minute), payload)
	if _, errVerify := adapter.VerifyWebhook(payload, stale); !errors.Is(errVerify, ErrVerificationFailed) {
		t.Fatalf("stale timestamp = %v, want ErrVerificationFailed", errVerify)
	}

	future := signWebhook(secret, "msg_3", now.Add(10*time.Minute), payload)
	if _, errVerify := adapter.VerifyWebhook(payload, future); !errors.Is(errVerify, ErrVerificationFailed) {
		t.Fatalf("future timestamp = %v, want ErrVerificationFailed", errVerify)
	}
}

func TestVerifyWebhookMultipleSignatures(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	now := time.Now().UTC()
	adapter := newTestAdapter(secret, now)

	payload := []byte(`{"type":"subscription.renewed","data":{}}`)
	headers := signWebhook(secret, "msg_4", now, payload)
	// Prepend a signature from a rotated key; the valid one must still match.
	headers.Set("webhook-signature", fmt.Sprintf("v1,%s %s",
		base64.StdEncoding.EncodeToString([]byte("stale-signature")),
		headers.Get("webhook-signature")))

	if _, errVerify := adapter.VerifyWebhook(payload, headers); errVerify != nil {
		t.Fatalf("multi-signature header rejected: %v", errVerify)
	}
}

func TestProductID(t *testing.T) {
	id, err := ProductID("professional", "annual")
	if err != nil {
		t.Fatalf("professional annual: %v", err)
	}
	if id == "" {
		t.Fatalf("empty product id")
	}

	if _, err = ProductID("enterprise", "monthly"); err == nil {
		t.Fatalf("enterprise has no self-serve product but lookup succeeded")
	}
}
