// Package middleware carries the authorization chain: RequireAuth
// authenticates a bearer token, RequireRole layers an authorization check on
// top of it. Failures short-circuit before the wrapped handler runs.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/http/response"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireAuth rejects requests without a valid access token. Missing,
// malformed, expired and mis-typed tokens all read as 401.
func RequireAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.WriteError(w, http.StatusUnauthorized, "missing authorization header", response.CodeUnauthorized)
				return
			}

			claims, err := issuer.VerifyAccess(strings.TrimPrefix(authz, "Bearer "))
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid or expired token", response.CodeInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole composes over RequireAuth: the caller is authenticated but
// holds the wrong role, so the answer is 403, never 401.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r)
			if claims == nil {
				response.WriteError(w, http.StatusUnauthorized, "missing authorization", response.CodeUnauthorized)
				return
			}
			if claims.Role != role {
				response.Forbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is the usual composition for admin-only routes.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)
}

// Claims returns the verified token claims, or nil outside RequireAuth.
func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
