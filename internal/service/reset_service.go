package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/mailer"
	"github.com/traceveil/forensics-portal/internal/store"
	"github.com/traceveil/forensics-portal/pkg/events"
	"github.com/traceveil/forensics-portal/pkg/logger"
)

var (
	// ErrInvalidCode covers both "no code requested" and "wrong code" so the
	// caller cannot probe which emails have pending resets.
	ErrInvalidCode = errors.New("invalid reset code")
	ErrCodeExpired = errors.New("reset code expired")
	ErrCodeUsed    = errors.New("reset code already used")
)

type ResetService interface {
	// Request issues a code and emails it. Unknown emails succeed silently.
	Request(ctx context.Context, email, ip string) error
	// AdminGenerate issues a code and returns it in-band so an admin can
	// relay it to the customer over a trusted channel.
	AdminGenerate(ctx context.Context, adminEmail, targetEmail, ip string) (*domain.AdminResetCodeResponse, error)
	// Verify checks a code without consuming it.
	Verify(ctx context.Context, email, code string) error
	// Confirm consumes the active code and sets the new password.
	Confirm(ctx context.Context, body *domain.ResetConfirmBody, ip string) error
}

type resetService struct {
	store    *store.Store
	mailer   mailer.Service
	eventBus events.EventBus
	codeTTL  time.Duration
}

func NewResetService(st *store.Store, m mailer.Service, eventBus events.EventBus, codeTTL time.Duration) ResetService {
	return &resetService{store: st, mailer: m, eventBus: eventBus, codeTTL: codeTTL}
}

func (s *resetService) Request(ctx context.Context, email, ip string) error {
	original := email
	email = domain.NormalizeEmail(email)
	if !domain.IsValidEmail(email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	user, err := s.store.Users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		// Same outward behavior as the happy path.
		logger.InfoContext(ctx, "Reset requested for unknown or inactive email", "email", email)
		return nil
	}

	code, expiresAt, err := s.issueCode(ctx, email, original)
	if err != nil {
		return err
	}

	if err := s.mailer.SendResetCode(user.Email, user.FirstName, code, expiresAt); err != nil {
		// Delivery problems must not change the response shape, or a
		// degraded mailer would reveal which emails have accounts. The
		// code is stored and an admin can still issue one in-band.
		logger.ErrorContext(ctx, "Failed to send reset code email", "error", err, "email", email)
		return nil
	}

	s.audit(ctx, user.ID, email, domain.AuditResetRequested, "", ip)
	s.publish(ctx, events.ResetRequested, events.ResetRequestedEvent{
		Email:     email,
		ExpiresAt: expiresAt,
	})

	return nil
}

func (s *resetService) AdminGenerate(ctx context.Context, adminEmail, targetEmail, ip string) (*domain.AdminResetCodeResponse, error) {
	original := targetEmail
	targetEmail = domain.NormalizeEmail(targetEmail)
	if !domain.IsValidEmail(targetEmail) {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	user, err := s.store.Users.FindByEmail(ctx, targetEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	code, expiresAt, err := s.issueCode(ctx, targetEmail, original)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "", adminEmail, domain.AuditAdminResetCode, "for "+targetEmail, ip)
	s.publish(ctx, events.AdminResetGenerated, events.ResetRequestedEvent{
		Email:       targetEmail,
		AdminIssued: true,
		ExpiresAt:   expiresAt,
	})

	return &domain.AdminResetCodeResponse{
		Email:     targetEmail,
		Code:      code,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *resetService) Verify(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)

	rc, err := s.store.ResetCodes.Find(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up reset code: %w", err)
	}
	if rc == nil {
		return ErrInvalidCode
	}
	if rc.Used {
		return ErrCodeUsed
	}
	if rc.Expired(time.Now()) {
		return ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(rc.CodeHash), []byte(code)) != nil {
		return ErrInvalidCode
	}
	return nil
}

func (s *resetService) Confirm(ctx context.Context, body *domain.ResetConfirmBody, ip string) error {
	email := domain.NormalizeEmail(body.Email)
	if len(body.NewPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	if body.Code != "" {
		if err := s.Verify(ctx, email, body.Code); err != nil {
			return err
		}
	}

	if _, err := s.store.ResetCodes.Consume(ctx, email); err != nil {
		switch {
		case errors.Is(err, store.ErrNoResetRequest):
			return ErrInvalidCode
		case errors.Is(err, store.ErrCodeUsed):
			return ErrCodeUsed
		case errors.Is(err, store.ErrCodeExpired):
			return ErrCodeExpired
		default:
			return fmt.Errorf("failed to consume reset code: %w", err)
		}
	}

	user, err := s.store.Users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	passwordHash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// The role is written back verbatim; a reset changes credentials only.
	if err := s.store.Users.SetPassword(ctx, user.ID, passwordHash, user.Role); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.audit(ctx, user.ID, email, domain.AuditResetConfirmed, "", ip)
	s.publish(ctx, events.ResetConfirmed, events.ResetConfirmedEvent{
		UserID:      user.ID,
		Email:       email,
		IP:          ip,
		ConfirmedAt: time.Now().UTC(),
	})

	return nil
}

// issueCode generates a 6-digit code, stores its bcrypt hash keyed by the
// normalized email (replacing any earlier code) and returns the plaintext.
func (s *resetService) issueCode(ctx context.Context, email, original string) (string, time.Time, error) {
	code, err := generateCode()
	if err != nil {
		return "", time.Time{}, err
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash reset code: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.codeTTL)
	err = s.store.ResetCodes.Upsert(ctx, &domain.ResetCode{
		Email:         email,
		CodeHash:      string(codeHash),
		OriginalEmail: original,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store reset code: %w", err)
	}

	return code, expiresAt, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *resetService) audit(ctx context.Context, actorID, actorEmail, action, details, ip string) {
	err := s.store.Audit.Append(ctx, &domain.AuditEntry{
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Action:     action,
		Details:    details,
		IP:         ip,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", action)
	}
}

func (s *resetService) publish(ctx context.Context, subject string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
