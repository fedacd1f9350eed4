package front

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/extract"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/payments"
	"github.com/statement2sheet/backend/internal/quota"
	"github.com/statement2sheet/backend/internal/subscription"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "front-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	deps := Deps{
		DB:        conn,
		JWT:       jwtCfg,
		Validator: auth.NewValidator(conn, jwtCfg),
		Quota:     quota.NewEngine(conn),
		Limiter:   quota.NewAnonymousLimiter(conn),
		Machine:   subscription.NewMachine(conn),
		Stripe:    payments.NewStripeAdapter(config.StripeConfig{}),
		Dodo:      payments.NewDodoAdapter(config.DodoConfig{}),
		Extractor: extract.NewClient(""),
	}

	r := gin.New()
	RegisterFrontRoutes(r, deps)
	return r, conn
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignupLoginFlow(t *testing.T) {
	r, conn := newTestRouter(t)

	w := postJSON(t, r, "/api/auth/signup", map[string]string{
		"email":     "Alice@Example.com",
		"password":  "secret-password",
		"full_name": "Alice",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Token string `json:"token"`
		User  struct {
			ID             string `json:"id"`
			Email          string `json:"email"`
			PagesRemaining int    `json:"pages_remaining"`
		} `json:"user"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode signup: %v", errDecode)
	}
	if created.Token == "" {
		t.Fatalf("signup returned no token")
	}
	if created.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", created.User.Email)
	}
	if created.User.PagesRemaining != models.DailyFreePages {
		t.Fatalf("new account pages = %d, want %d", created.User.PagesRemaining, models.DailyFreePages)
	}

	// Duplicate signup conflicts.
	w = postJSON(t, r, "/api/auth/signup", map[string]string{
		"email":    "alice@example.com",
		"password": "secret-password",
	}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", w.Code)
	}

	// Wrong password rejected.
	w = postJSON(t, r, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}

	// Correct login issues a usable token.
	w = postJSON(t, r, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "secret-password",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &login); errDecode != nil {
		t.Fatalf("decode login: %v", errDecode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count users: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("users = %d, want 1", count)
	}
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/api/profile", "/api/pages/check", "/api/documents"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without credentials = %d, want 401", path, w.Code)
		}
	}
}

func TestPlansEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("plans status = %d", w.Code)
	}

	var body struct {
		Plans []struct {
			ID         string `json:"id"`
			PagesLimit any    `json:"pages_limit"`
		} `json:"plans"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode plans: %v", errDecode)
	}
	if len(body.Plans) != 4 {
		t.Fatalf("plans = %d, want 4", len(body.Plans))
	}
	last := body.Plans[len(body.Plans)-1]
	if last.ID != "enterprise" {
		t.Fatalf("last plan = %q, want enterprise", last.ID)
	}
	if limit, ok := last.PagesLimit.(string); !ok || limit != "unlimited" {
		t.Fatalf("enterprise pages_limit = %v, want \"unlimited\"", last.PagesLimit)
	}
}

func TestEnterpriseContact(t *testing.T) {
	r, conn := newTestRouter(t)

	w := postJSON(t, r, "/api/contact/enterprise", map[string]string{
		"name":         "Bob",
		"company_name": "Acme Corp",
		"email":        "bob@acme.example",
		"phone":        "+1 555 0100",
		"message":      "We need 50k pages a month.",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("contact status = %d: %s", w.Code, w.Body.String())
	}

	var row models.EnterpriseContact
	if errFind := conn.First(&row, "email = ?", "bob@acme.example").Error; errFind != nil {
		t.Fatalf("load contact: %v", errFind)
	}
	if row.Status != "pending" || row.CompanyName != "Acme Corp" {
		t.Fatalf("stored contact = %+v", row)
	}

	// Missing required fields rejected.
	w = postJSON(t, r, "/api/contact/enterprise", map[string]string{"name": "Bob"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("incomplete contact status = %d", w.Code)
	}
}

func TestAnonymousCheckRequiresFingerprint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/anonymous/check", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fingerprint status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/anonymous/check", nil)
	req.Header.Set("X-Fingerprint", "fp-test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Allowed bool `json:"allowed"`
		Limit   int  `json:"limit"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode check: %v", errDecode)
	}
	if !body.Allowed || body.Limit != 1 {
		t.Fatalf("fresh visitor check = %+v", body)
	}
}

func TestStripeWebhookRejectsUnsigned(t *testing.T) {
	r, _ := newTestRouter(t)

	// No webhook secret configured: the endpoint must refuse rather than apply.
	w := postJSON(t, r, "/api/webhooks/stripe", map[string]string{"type": "checkout.session.completed"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsigned stripe webhook = %d, want 400", w.Code)
	}

	w = postJSON(t, r, "/api/webhooks/dodo", map[string]string{"type": "subscription.active"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned dodo webhook = %d, want 401", w.Code)
	}
}
