package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Phone           string    `json:"phone"`
	Company         string    `json:"company"`
	Role            string    `json:"role"`
	IsActive        bool      `json:"is_active"`
	GoogleID        string    `json:"google_id,omitempty"`
	IsGoogleAccount bool      `json:"is_google_account,omitempty"`
	EmailVerified   bool      `json:"email_verified,omitempty"`
	Avatar          string    `json:"avatar,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CustomerProfile is the one-to-one extension of a customer-role User,
// looked up by the owning user id. It is never merged into the User record.
type CustomerProfile struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	CompanyName       string    `json:"company_name"`
	BillingAddress    string    `json:"billing_address,omitempty"`
	BillingCity       string    `json:"billing_city,omitempty"`
	BillingState      string    `json:"billing_state,omitempty"`
	BillingPostalCode string    `json:"billing_postal_code,omitempty"`
	BillingCountry    string    `json:"billing_country,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OAuthRequest struct {
	IDToken   string `json:"idToken"`
	GoogleID  string `json:"googleId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresIn    int64     `json:"expiresIn"`
	User         *UserInfo `json:"user"`
	IsNewUser    bool      `json:"isNewUser,omitempty"`
}

type TokenPairResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// UserInfo is the user payload returned to clients: the User record minus
// secrets, plus the linked customer-profile id when one exists.
type UserInfo struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Company    string    `json:"company"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	Avatar     string    `json:"avatar,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User roles
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Company = strings.TrimSpace(r.Company)
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !IsValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.FirstName == "" {
		return fmt.Errorf("first name is required")
	}
	if r.LastName == "" {
		return fmt.Errorf("last name is required")
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func (r *OAuthRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *OAuthRequest) Validate() error {
	if r.IDToken == "" || r.GoogleID == "" {
		return fmt.Errorf("invalid provider token")
	}
	if !IsValidEmail(r.Email) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeEmail lower-cases and trims an address. Every store lookup and
// every reset-code key goes through this, so case-insensitive matching is
// decided in exactly one place.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ToUserInfo strips secrets from a User for client payloads.
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Company:   u.Company,
		Role:      u.Role,
		IsActive:  u.IsActive,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
