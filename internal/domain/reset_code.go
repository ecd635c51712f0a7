package domain

import "time"

// ResetCode is a single-use password-reset authorization keyed by normalized
// email. At most one active code exists per email: a new request overwrites
// the previous one. The code itself is stored bcrypt-hashed.
type ResetCode struct {
	Email         string    `json:"email"` // normalized key
	CodeHash      string    `json:"code_hash"`
	OriginalEmail string    `json:"original_email"` // as entered, for display
	ExpiresAt     time.Time `json:"expires_at"`
	Used          bool      `json:"used"`
	CreatedAt     time.Time `json:"created_at"`
}

func (c *ResetCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type ResetRequestBody struct {
	Email string `json:"email"`
}

type ResetVerifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetConfirmBody struct {
	Email       string `json:"email"`
	Code        string `json:"code,omitempty"`
	NewPassword string `json:"newPassword"`
}

type ResetVerifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// AdminResetCodeResponse is the in-band reply of the admin-initiated mode:
// the admin relays the code to the customer over a trusted channel.
type AdminResetCodeResponse struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}
