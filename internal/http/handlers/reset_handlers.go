package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/http/middleware"
	"github.com/traceveil/forensics-portal/internal/http/response"
	"github.com/traceveil/forensics-portal/internal/ratelimit"
	"github.com/traceveil/forensics-portal/internal/service"
	"github.com/traceveil/forensics-portal/internal/store"
)

// ResetRequest starts a self-service password reset. The response is the
// same whether or not the email has an account.
func (h *Handlers) ResetRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "Email is required")
		return
	}

	if err := h.resetService.Request(r.Context(), req.Email, ratelimit.ClientIP(r)); err != nil {
		if errors.Is(err, service.ErrValidation) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "internal server error")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "If an account exists for this email, a reset code has been sent.",
	})
}

// ResetVerify checks a code without consuming it
func (h *Handlers) ResetVerify(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetVerifyBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		response.BadRequest(w, "Email and code are required")
		return
	}

	err := h.resetService.Verify(r.Context(), req.Email, req.Code)
	switch {
	case err == nil:
		response.WriteJSON(w, http.StatusOK, domain.ResetVerifyResponse{Valid: true})
	case errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrCodeUsed),
		errors.Is(err, service.ErrCodeExpired):
		response.WriteJSON(w, http.StatusOK, domain.ResetVerifyResponse{Valid: false, Error: err.Error()})
	default:
		response.InternalError(w, "internal server error")
	}
}

// ResetConfirm consumes the code and sets the new password
func (h *Handlers) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetConfirmBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "Email is required")
		return
	}

	if err := h.resetService.Confirm(r.Context(), &req, ratelimit.ClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})
}

// AdminResetCode generates a code on behalf of a customer and returns it
// in-band instead of emailing it.
func (h *Handlers) AdminResetCode(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "Email is required")
		return
	}

	adminEmail := ""
	if claims := middleware.Claims(r); claims != nil {
		if info, err := h.authService.Me(r.Context(), claims.Subject); err == nil {
			adminEmail = info.Email
		}
	}

	resp, err := h.resetService.AdminGenerate(r.Context(), adminEmail, req.Email, ratelimit.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, resp)
}

// Activity lists the authentication audit log
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	filter := store.AuditFilter{
		Action: r.URL.Query().Get("action"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	entries, total, err := h.auditStore.List(r.Context(), filter)
	if err != nil {
		response.InternalError(w, "internal server error")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}
