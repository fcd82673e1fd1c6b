package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"impactflow/api/internal/config"
	"impactflow/api/internal/mail"
	"impactflow/api/internal/otp"
	"impactflow/api/internal/ratelimit"
	"impactflow/api/internal/service"
	"impactflow/api/internal/store"
)

type captureSender struct {
	sent []mail.Email
}

func (c *captureSender) Send(_ context.Context, msg mail.Email) error {
	c.sent = append(c.sent, msg)
	return nil
}

type apiFixture struct {
	engine *gin.Engine
	gw     *store.Gateway
	sender *captureSender
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "db.json")
	file, err := store.OpenFileStore(path, store.CollectionNames()...)
	if err != nil {
		t.Fatal(err)
	}
	sel := store.NewSelector(nil, 0, zerolog.Nop())
	gw := store.NewGateway(nil, file, sel)

	cfg := &config.AppConfig{
		Environment: "test",
		Security:    config.SecurityConfig{JWTSecret: "handlers-test-secret", TokenTTL: time.Hour},
		OTP:         config.OTPConfig{CodeTTL: 10 * time.Minute, MaxVerifyAttempts: 5, MaxResends: 3, ResendWindow: time.Hour},
	}

	logger := zerolog.Nop()
	sender := &captureSender{}
	dispatcher := otp.NewDispatcher(gw.Users, sender, cfg.OTP.CodeTTL, time.Second, logger)
	limiter := ratelimit.New(nil, logger)

	accounts := service.NewAccountService(gw, dispatcher, limiter, nil, cfg.Security, cfg.OTP, logger)
	events := service.NewEventService(gw, logger)
	tasks := service.NewTaskService(gw, logger)

	hs := NewHandlerSet(logger, cfg, gw, sel, accounts, events, tasks, sender)
	engine := gin.New()
	hs.Register(engine.Group("/api"))

	return &apiFixture{engine: engine, gw: gw, sender: sender}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *apiFixture) pendingCode(t *testing.T, email string) string {
	t.Helper()
	user, err := f.gw.Users.FindOne(context.Background(), store.Predicate{"email": email})
	if err != nil {
		t.Fatal(err)
	}
	if user.PendingCode == "" {
		t.Fatalf("no pending code for %s", email)
	}
	return user.PendingCode
}

// registerAndVerify walks an account through registration and code
// verification and returns its token (empty for a gated admin).
func (f *apiFixture) registerAndVerify(t *testing.T, email, role string) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Test User",
		"email":    email,
		"password": "hunter2hunter2",
		"role":     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/verify", "", gin.H{
		"email": email,
		"code":  f.pendingCode(t, email),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	return token
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	f := newAPI(t)

	token := f.registerAndVerify(t, "ada@example.org", "volunteer")
	if token == "" {
		t.Fatal("no token after verification")
	}

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ada@example.org",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]any)
	if user["role"] != "volunteer" {
		t.Fatalf("login user wrong: %v", user)
	}
	if _, leaks := user["passwordHash"]; leaks {
		t.Fatal("password hash leaked in login response")
	}

	// One code email from registration.
	if len(f.sender.sent) != 1 || f.sender.sent[0].To != "ada@example.org" {
		t.Fatalf("unexpected outbound mail: %+v", f.sender.sent)
	}
}

func TestLoginBeforeVerificationRejected(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Test User",
		"email":    "ada@example.org",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ada@example.org",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unverified login: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPI(t)

	if rec := f.do(t, http.MethodGet, "/api/tasks/my-tasks", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tasks/my-tasks", "garbage-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	token := f.registerAndVerify(t, "ada@example.org", "volunteer")
	if rec := f.do(t, http.MethodGet, "/api/tasks/my-tasks", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	f := newAPI(t)
	token := f.registerAndVerify(t, "organizer@example.org", "coordinator")

	rec := f.do(t, http.MethodPost, "/api/events", token, gin.H{
		"title":    "Beach Cleanup",
		"date":     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"location": "North Shore",
		"category": "Environment",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: status %d body %s", rec.Code, rec.Body.String())
	}
	eventID, _ := decodeBody(t, rec)["_id"].(string)
	if eventID == "" {
		t.Fatal("created event has no id")
	}

	// Listing is public.
	rec = f.do(t, http.MethodGet, "/api/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list events: status %d", rec.Code)
	}

	volToken := f.registerAndVerify(t, "vol@example.org", "volunteer")
	if rec := f.do(t, http.MethodPost, "/api/volunteers/"+eventID+"/join", volToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("join: status %d body %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/volunteers/"+eventID+"/join", volToken, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("double join: status %d body %s", rec.Code, rec.Body.String())
	}

	// A volunteer cannot modify someone else's event.
	if rec := f.do(t, http.MethodPut, "/api/events/"+eventID, volToken, gin.H{"title": "Hijacked"}); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign update: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminGateOverHTTP(t *testing.T) {
	f := newAPI(t)

	adminToken := f.registerAndVerify(t, "admin1@example.org", "admin")
	if adminToken == "" {
		t.Fatal("first admin should be approved and tokened")
	}

	// Second admin is gated: verification succeeds but yields no token.
	rec := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Second Admin",
		"email":    "admin2@example.org",
		"password": "hunter2hunter2",
		"role":     "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register second admin: status %d", rec.Code)
	}
	if got := decodeBody(t, rec)["requiresApproval"]; got != true {
		t.Fatalf("second admin not flagged: %v", got)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/verify", "", gin.H{
		"email": "admin2@example.org",
		"code":  f.pendingCode(t, "admin2@example.org"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify second admin: status %d", rec.Code)
	}
	if _, hasToken := decodeBody(t, rec)["token"]; hasToken {
		t.Fatal("gated admin received a token")
	}

	// Approve over the admin API, then the second admin can log in.
	rec = f.do(t, http.MethodGet, "/api/auth/admin/pending", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending list: status %d body %s", rec.Code, rec.Body.String())
	}
	pending, _ := decodeBody(t, rec)["pendingAdmins"].([]any)
	if len(pending) != 1 {
		t.Fatalf("want 1 pending admin, got %d", len(pending))
	}
	target, _ := pending[0].(map[string]any)
	targetID, _ := target["id"].(string)

	if rec := f.do(t, http.MethodPut, "/api/auth/admin/approve/"+targetID, adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("approve: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "admin2@example.org",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approved admin login: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	f := newAPI(t)

	adminToken := f.registerAndVerify(t, "admin@example.org", "admin")
	volToken := f.registerAndVerify(t, "vol@example.org", "volunteer")

	if rec := f.do(t, http.MethodGet, "/api/stats/dashboard", volToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("volunteer reached dashboard: status %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/stats/dashboard", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin dashboard: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["totalUsers"] != float64(2) {
		t.Fatalf("totalUsers wrong: %v", body["totalUsers"])
	}

	if rec := f.do(t, http.MethodGet, "/api/volunteers/all", volToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("volunteer listed accounts: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/volunteers/all", adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin account list: status %d", rec.Code)
	}
}

func TestContactIsPublic(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/contact", "", gin.H{
		"name":    "Visitor",
		"email":   "visitor@example.org",
		"message": "How do I help?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("contact: status %d body %s", rec.Code, rec.Body.String())
	}

	stored, err := f.gw.Contacts.Find(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Email != "visitor@example.org" {
		t.Fatalf("contact not persisted: %+v", stored)
	}
}

func TestHealthReportsBackend(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	db, _ := body["database"].(map[string]any)
	if db["active"] != "file" {
		t.Fatalf("expected file backend, got %v", db["active"])
	}
}

func TestValidationErrors(t *testing.T) {
	f := newAPI(t)

	cases := []gin.H{
		{"name": "X", "email": "not-an-email", "password": "hunter2hunter2"},
		{"name": "X", "email": "x@example.org", "password": "short"},
		{"name": "X", "email": "x@example.org", "password": "hunter2hunter2", "role": "superuser"},
	}
	for _, payload := range cases {
		if rec := f.do(t, http.MethodPost, "/api/auth/register", "", payload); rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %v: status %d", payload, rec.Code)
		}
	}

	users, err := f.gw.Users.Find(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Fatalf("invalid registrations persisted: %d", len(users))
	}
}
