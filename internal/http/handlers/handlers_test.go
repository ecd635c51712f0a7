package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/service"
	"github.com/traceveil/forensics-portal/internal/store"
	"github.com/traceveil/forensics-portal/internal/store/file"
	"github.com/traceveil/forensics-portal/pkg/events"
)

type nullMailer struct{ code string }

func (m *nullMailer) SendResetCode(toEmail, toName, code string, expiresAt time.Time) error {
	m.code = code
	return nil
}

type fixture struct {
	srv    *httptest.Server
	store  *store.Store
	issuer *auth.Issuer
	mailer *nullMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	bundle, err := file.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	issuer := auth.NewIssuer("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	bus := events.NewNoopEventBus()
	m := &nullMailer{}

	authSvc := service.NewAuthService(bundle, issuer, bus)
	resetSvc := service.NewResetService(bundle, m, bus, 30*time.Minute)

	r := chi.NewRouter()
	New(authSvc, resetSvc, bundle.Audit, issuer).Routes(r, nil)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: bundle, issuer: issuer, mailer: m}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (f *fixture) register(t *testing.T, email, password string) *domain.AuthResponse {
	t.Helper()
	resp, raw := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": "Test",
		"lastName":  "User",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	return decodeAuthResponse(t, raw)
}

func decodeAuthResponse(t *testing.T, raw map[string]json.RawMessage) *domain.AuthResponse {
	t.Helper()
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	var out domain.AuthResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	return &out
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()

	admin := &domain.User{
		ID:        "admin-1",
		Email:     "admin@traceveil.com",
		Role:      domain.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.Users.Create(context.Background(), admin); err != nil {
		t.Fatal(err)
	}

	tok, err := f.issuer.IssueAccess(admin.ID, domain.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestRegisterLoginFlow(t *testing.T) {
	f := newFixture(t)

	reg := f.register(t, "flow@example.com", "initial-pass-1")
	if reg.User.Role != domain.RoleCustomer {
		t.Fatalf("role = %q", reg.User.Role)
	}

	resp, raw := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "flow@example.com", "password": "initial-pass-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	login := decodeAuthResponse(t, raw)
	if login.ExpiresIn != 3600 {
		t.Fatalf("expiresIn = %d, want 3600", login.ExpiresIn)
	}

	resp, _ = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "flow@example.com", "password": "wrong-pass",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "flow@example.com", "password": "another-pass-1", "firstName": "A", "lastName": "B",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", resp.StatusCode)
	}
}

func TestExpiredTokenThenRefreshThenRetry(t *testing.T) {
	f := newFixture(t)

	reg := f.register(t, "refresh@example.com", "initial-pass-1")

	// An access token that is already expired, signed with the same secrets.
	expiredIssuer := auth.NewIssuer("access-secret", "refresh-secret", -time.Minute, 7*24*time.Hour)
	expired, err := expiredIssuer.IssueAccess(reg.User.ID, reg.User.Role)
	if err != nil {
		t.Fatal(err)
	}

	resp, _ := f.do(t, http.MethodGet, "/auth/me", expired, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token: status %d, want 401", resp.StatusCode)
	}

	resp, raw := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": reg.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	var pair domain.TokenPairResponse
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &pair); err != nil {
		t.Fatal(err)
	}

	resp, raw = f.do(t, http.MethodGet, "/auth/me", pair.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry with refreshed token: status %d", resp.StatusCode)
	}
	var me struct {
		User domain.UserInfo `json:"user"`
	}
	data, _ = json.Marshal(raw)
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.User.ID != reg.User.ID {
		t.Fatalf("me returned %q, want %q", me.User.ID, reg.User.ID)
	}
}

func TestAdminResetCodeFlow(t *testing.T) {
	f := newFixture(t)

	f.register(t, "customer@example.com", "original-pass-1")
	adminTok := f.adminToken(t)

	resp, raw := f.do(t, http.MethodPost, "/admin/reset-codes", adminTok, map[string]string{
		"email": "customer@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin reset-codes: status %d", resp.StatusCode)
	}
	var issued domain.AdminResetCodeResponse
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &issued); err != nil {
		t.Fatal(err)
	}
	if len(issued.Code) != 6 {
		t.Fatalf("code %q is not six digits", issued.Code)
	}

	resp, _ = f.do(t, http.MethodPost, "/auth/reset/confirm", "", map[string]string{
		"email": "customer@example.com", "code": issued.Code, "newPassword": "fresh-pass-22",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}

	resp, raw = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "customer@example.com", "password": "fresh-pass-22",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: status %d", resp.StatusCode)
	}
	login := decodeAuthResponse(t, raw)
	if login.User.Role != domain.RoleCustomer {
		t.Fatalf("role changed to %q during reset", login.User.Role)
	}

	// The code is gone now.
	resp, _ = f.do(t, http.MethodPost, "/auth/reset/confirm", "", map[string]string{
		"email": "customer@example.com", "code": issued.Code, "newPassword": "yet-another-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reused code: status %d, want 400", resp.StatusCode)
	}
}

func TestSelfServiceResetFlow(t *testing.T) {
	f := newFixture(t)

	f.register(t, "self@example.com", "original-pass-1")

	resp, _ := f.do(t, http.MethodPost, "/auth/reset/request", "", map[string]string{
		"email": "self@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset request: status %d", resp.StatusCode)
	}
	if f.mailer.code == "" {
		t.Fatal("no code was mailed")
	}

	// Unknown emails get the identical response.
	resp, _ = f.do(t, http.MethodPost, "/auth/reset/request", "", map[string]string{
		"email": "ghost@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown email reset request: status %d, want 200", resp.StatusCode)
	}

	resp, raw := f.do(t, http.MethodPost, "/auth/reset/verify", "", map[string]string{
		"email": "self@example.com", "code": f.mailer.code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: status %d", resp.StatusCode)
	}
	var verify domain.ResetVerifyResponse
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &verify); err != nil {
		t.Fatal(err)
	}
	if !verify.Valid {
		t.Fatalf("verify: %+v", verify)
	}

	resp, _ = f.do(t, http.MethodPost, "/auth/reset/confirm", "", map[string]string{
		"email": "self@example.com", "code": f.mailer.code, "newPassword": "renewed-pass-9",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}
}

func TestDisabledAccountAndAdminGuards(t *testing.T) {
	f := newFixture(t)

	reg := f.register(t, "locked@example.com", "original-pass-1")

	user, err := f.store.Users.FindByID(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	user.IsActive = false
	if err := f.store.Users.Update(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	resp, _ := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "locked@example.com", "password": "original-pass-1",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disabled login: status %d, want 403", resp.StatusCode)
	}

	// Customer tokens cannot reach admin routes.
	resp, _ = f.do(t, http.MethodGet, "/admin/activity", reg.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer on admin route: status %d, want 403", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodGet, "/admin/activity", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous on admin route: status %d, want 401", resp.StatusCode)
	}
}

func TestAdminActivityListing(t *testing.T) {
	f := newFixture(t)

	adminTok := f.adminToken(t)
	f.register(t, "a1@example.com", "some-password-1")
	for i := 0; i < 2; i++ {
		f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "a1@example.com", "password": fmt.Sprintf("wrong-%d", i),
		})
	}

	resp, raw := f.do(t, http.MethodGet, "/admin/activity?action=login_failed", adminTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity: status %d", resp.StatusCode)
	}
	var out struct {
		Entries []domain.AuditEntry `json:"entries"`
		Total   int                 `json:"total"`
	}
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || len(out.Entries) != 2 {
		t.Fatalf("total=%d len=%d, want 2/2", out.Total, len(out.Entries))
	}
	for _, e := range out.Entries {
		if e.Action != domain.AuditLoginFailed {
			t.Fatalf("unexpected action %q", e.Action)
		}
	}
}
