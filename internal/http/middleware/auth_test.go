package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
)

func newTestIssuer() *auth.Issuer {
	return auth.NewIssuer("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
}

func protected(t *testing.T, issuer *auth.Issuer, wrap func(http.Handler) http.Handler, invoked *bool) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*invoked = true
		w.WriteHeader(http.StatusOK)
	})
	h := wrap(inner)
	return RequireAuth(issuer)(h)
}

func TestRequireAuth_NoHeader(t *testing.T) {
	issuer := newTestIssuer()
	var invoked bool
	h := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if invoked {
		t.Fatal("handler must not run without credentials")
	}
}

func TestRequireAuth_BadToken(t *testing.T) {
	issuer := newTestIssuer()
	var invoked bool
	h := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	}))

	for _, header := range []string{"Bearer garbage", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
	if invoked {
		t.Fatal("handler must not run with bad credentials")
	}
}

func TestRequireAuth_RefreshTokenRejected(t *testing.T) {
	issuer := newTestIssuer()
	refresh, err := issuer.IssueRefresh("user-1")
	if err != nil {
		t.Fatal(err)
	}

	h := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("refresh token must not authenticate a request")
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_ClaimsInContext(t *testing.T) {
	issuer := newTestIssuer()
	tok, err := issuer.IssueAccess("user-7", domain.RoleCustomer)
	if err != nil {
		t.Fatal(err)
	}

	h := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r)
		if claims == nil || claims.Subject != "user-7" || claims.Role != domain.RoleCustomer {
			t.Fatalf("claims = %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdmin_WrongRoleIs403(t *testing.T) {
	issuer := newTestIssuer()
	tok, err := issuer.IssueAccess("user-1", domain.RoleCustomer)
	if err != nil {
		t.Fatal(err)
	}

	var invoked bool
	h := protected(t, issuer, RequireAdmin(), &invoked)

	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if invoked {
		t.Fatal("handler must not run for the wrong role")
	}
}

func TestRequireAdmin_NoTokenIs401(t *testing.T) {
	issuer := newTestIssuer()
	var invoked bool
	h := protected(t, issuer, RequireAdmin(), &invoked)

	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 before any role check", rec.Code)
	}
	if invoked {
		t.Fatal("handler must not run")
	}
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	issuer := newTestIssuer()
	tok, err := issuer.IssueAccess("admin-1", domain.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}

	var invoked bool
	h := protected(t, issuer, RequireAdmin(), &invoked)

	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !invoked {
		t.Fatalf("status = %d, invoked = %v", rec.Code, invoked)
	}
}
