package domain

import "time"

// AuditEntry is one record in the append-only authentication activity log.
type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorEmail string    `json:"actor_email"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Audit actions recorded by the authentication core.
const (
	AuditLogin          = "login"
	AuditLoginFailed    = "login_failed"
	AuditRegister       = "register"
	AuditOAuthLogin     = "oauth_login"
	AuditResetRequested = "password_reset_requested"
	AuditResetConfirmed = "password_reset_confirmed"
	AuditAdminResetCode = "admin_reset_code_generated"
)
