package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
	"github.com/traceveil/forensics-portal/pkg/events"
	"github.com/traceveil/forensics-portal/pkg/logger"
)

// Sentinel errors the handlers translate to HTTP statuses.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrValidation         = errors.New("validation failed")
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest, ip string) (*domain.AuthResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest, ip string) (*domain.AuthResponse, error)
	OAuth(ctx context.Context, req *domain.OAuthRequest, ip string) (*domain.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPairResponse, error)
	Me(ctx context.Context, userID string) (*domain.UserInfo, error)
}

type authService struct {
	store    *store.Store
	issuer   *auth.Issuer
	eventBus events.EventBus
}

func NewAuthService(st *store.Store, issuer *auth.Issuer, eventBus events.EventBus) AuthService {
	return &authService{store: st, issuer: issuer, eventBus: eventBus}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest, ip string) (*domain.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Company:      req.Company,
		Role:         domain.RoleCustomer,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &domain.CustomerProfile{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		CompanyName: req.Company,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Customers.Create(ctx, profile); err != nil {
		logger.WarnContext(ctx, "Failed to create customer profile", "error", err, "user_id", user.ID)
	}

	s.audit(ctx, user, domain.AuditRegister, "", ip)
	s.publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})

	return s.authResponse(ctx, user, false)
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest, ip string) (*domain.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.store.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.auditFailedLogin(ctx, req.Email, ip)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.auditFailedLogin(ctx, req.Email, ip)
		return nil, ErrAccountDisabled
	}

	s.audit(ctx, user, domain.AuditLogin, "", ip)
	s.publish(ctx, events.UserLoggedIn, events.UserLoggedInEvent{
		UserID:   user.ID,
		Email:    user.Email,
		LoggedAt: time.Now().UTC(),
	})

	return s.authResponse(ctx, user, false)
}

func (s *authService) OAuth(ctx context.Context, req *domain.OAuthRequest, ip string) (*domain.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.store.Users.FindByGoogleID(ctx, req.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	isNew := false
	switch {
	case user != nil:
		// returning OAuth user

	default:
		user, err = s.store.Users.FindByEmail(ctx, req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user != nil {
			// Existing password account logging in via Google for the first
			// time: link the provider id, keep everything else.
			user.GoogleID = req.GoogleID
			user.IsGoogleAccount = true
			user.EmailVerified = true
			if req.Picture != "" {
				user.Avatar = req.Picture
			}
			if err := s.store.Users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to link google account: %w", err)
			}
		} else {
			user, err = s.createOAuthUser(ctx, req)
			if err != nil {
				return nil, err
			}
			isNew = true
		}
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	s.audit(ctx, user, domain.AuditOAuthLogin, "", ip)
	s.publish(ctx, events.UserOAuthLogin, events.UserLoggedInEvent{
		UserID:   user.ID,
		Email:    user.Email,
		OAuth:    true,
		LoggedAt: time.Now().UTC(),
	})

	return s.authResponse(ctx, user, isNew)
}

func (s *authService) createOAuthUser(ctx context.Context, req *domain.OAuthRequest) (*domain.User, error) {
	// OAuth accounts never log in with a password; store an unguessable one
	// so the record still satisfies the schema.
	passwordHash, err := auth.HashPassword(uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	user := &domain.User{
		ID:              uuid.New().String(),
		Email:           req.Email,
		PasswordHash:    passwordHash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            domain.RoleCustomer,
		IsActive:        true,
		GoogleID:        req.GoogleID,
		IsGoogleAccount: true,
		EmailVerified:   true,
		Avatar:          req.Picture,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &domain.CustomerProfile{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Customers.Create(ctx, profile); err != nil {
		logger.WarnContext(ctx, "Failed to create customer profile", "error", err, "user_id", user.ID)
	}

	return user, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPairResponse, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	// Re-check the account; a refresh token must not outlive a deactivation.
	user, err := s.store.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidRefresh
	}

	access, refresh, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TokenRefreshed, events.UserLoggedInEvent{
		UserID:   user.ID,
		Email:    user.Email,
		LoggedAt: time.Now().UTC(),
	})

	return &domain.TokenPairResponse{
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.UserInfo, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	info := user.ToUserInfo()
	if profile, err := s.store.Customers.FindByUserID(ctx, user.ID); err == nil && profile != nil {
		info.CustomerID = profile.ID
	}
	return info, nil
}

func (s *authService) issueTokens(user *domain.User) (access, refresh string, err error) {
	access, err = s.issuer.IssueAccess(user.ID, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err = s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *authService) authResponse(ctx context.Context, user *domain.User, isNew bool) (*domain.AuthResponse, error) {
	access, refresh, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	info := user.ToUserInfo()
	if profile, err := s.store.Customers.FindByUserID(ctx, user.ID); err == nil && profile != nil {
		info.CustomerID = profile.ID
	}

	return &domain.AuthResponse{
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
		User:         info,
		IsNewUser:    isNew,
	}, nil
}

func (s *authService) audit(ctx context.Context, user *domain.User, action, details, ip string) {
	err := s.store.Audit.Append(ctx, &domain.AuditEntry{
		ActorID:    user.ID,
		ActorEmail: user.Email,
		Action:     action,
		Details:    details,
		IP:         ip,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", action)
	}
}

func (s *authService) auditFailedLogin(ctx context.Context, email, ip string) {
	err := s.store.Audit.Append(ctx, &domain.AuditEntry{
		ActorEmail: email,
		Action:     domain.AuditLoginFailed,
		IP:         ip,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", domain.AuditLoginFailed)
	}
	s.publish(ctx, events.UserLoginFailed, events.UserLoggedInEvent{Email: email, LoggedAt: time.Now().UTC()})
}

func (s *authService) publish(ctx context.Context, subject string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
