// Package handlers exposes the authentication service over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/http/middleware"
	"github.com/traceveil/forensics-portal/internal/http/response"
	"github.com/traceveil/forensics-portal/internal/ratelimit"
	"github.com/traceveil/forensics-portal/internal/service"
	"github.com/traceveil/forensics-portal/internal/store"
)

type Handlers struct {
	authService  service.AuthService
	resetService service.ResetService
	auditStore   store.Audit
	issuer       *auth.Issuer
}

func New(authService service.AuthService, resetService service.ResetService, auditStore store.Audit, issuer *auth.Issuer) *Handlers {
	return &Handlers{
		authService:  authService,
		resetService: resetService,
		auditStore:   auditStore,
		issuer:       issuer,
	}
}

// Routes mounts all authentication and admin endpoints. loginLimiter guards
// the credential-bearing routes; nil disables rate limiting (tests).
func (h *Handlers) Routes(r chi.Router, loginLimiter *ratelimit.Limiter) {
	limited := func(fn http.HandlerFunc) http.Handler {
		if loginLimiter == nil {
			return fn
		}
		return loginLimiter.Middleware()(fn)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/register", limited(h.Register))
		r.Method(http.MethodPost, "/login", limited(h.Login))
		r.Method(http.MethodPost, "/oauth", limited(h.OAuth))
		r.Post("/refresh", h.Refresh)

		r.Route("/reset", func(r chi.Router) {
			r.Method(http.MethodPost, "/request", limited(h.ResetRequest))
			r.Method(http.MethodPost, "/verify", limited(h.ResetVerify))
			r.Method(http.MethodPost, "/confirm", limited(h.ResetConfirm))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.issuer))
			r.Get("/me", h.Me)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.issuer))
		r.Use(middleware.RequireAdmin())
		r.Post("/reset-codes", h.AdminResetCode)
		r.Get("/activity", h.Activity)
	})
}

// writeServiceError maps service sentinels onto HTTP statuses and codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.WriteError(w, http.StatusUnauthorized, err.Error(), response.CodeUnauthorized)
	case errors.Is(err, service.ErrAccountDisabled):
		response.WriteError(w, http.StatusForbidden, err.Error(), response.CodeAccountDisabled)
	case errors.Is(err, service.ErrEmailExists):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeEmailExists)
	case errors.Is(err, service.ErrInvalidRefresh):
		response.WriteError(w, http.StatusUnauthorized, err.Error(), response.CodeInvalidToken)
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrCodeUsed),
		errors.Is(err, service.ErrCodeExpired):
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeInvalidCode)
	default:
		response.InternalError(w, "internal server error")
	}
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
