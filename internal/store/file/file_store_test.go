package file

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	bundle, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return bundle, dir
}

func testUser(email string) *domain.User {
	return &domain.User{
		ID:           "id-" + email,
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         domain.RoleCustomer,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestUsers_CreateAndFind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u := testUser("alice@example.com")
	u.GoogleID = "g-123"
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Users.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("FindByEmail returned %+v", got)
	}
	if got.PasswordHash != "hash" {
		t.Fatalf("password hash not persisted: %q", got.PasswordHash)
	}

	got, err = s.Users.FindByGoogleID(ctx, "g-123")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Email != "alice@example.com" {
		t.Fatalf("FindByGoogleID returned %+v", got)
	}

	got, err = s.Users.FindByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown email, got %+v", got)
	}
}

func TestUsers_DuplicateEmailRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Users.Create(ctx, testUser("dup@example.com")); err != nil {
		t.Fatal(err)
	}
	err := s.Users.Create(ctx, testUser("dup@example.com"))
	if !errors.Is(err, store.ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestUsers_SetPasswordKeepsRole(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u := testUser("bob@example.com")
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}

	if err := s.Users.SetPassword(ctx, u.ID, "new-hash", domain.RoleCustomer); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}

	got, err := s.Users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("hash = %q, want new-hash", got.PasswordHash)
	}
	if got.Role != domain.RoleCustomer {
		t.Fatalf("role changed to %q", got.Role)
	}

	err = s.Users.SetPassword(ctx, "missing-id", "x", domain.RoleCustomer)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUsers_SurvivesReopen(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	if err := s.Users.Create(ctx, testUser("carol@example.com")); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.Users.FindByEmail(ctx, "carol@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PasswordHash != "hash" {
		t.Fatalf("user not persisted across reopen: %+v", got)
	}
}

func TestCustomers_CreateAndFind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := &domain.CustomerProfile{
		ID:          "cust-1",
		UserID:      "user-1",
		CompanyName: "Acme Forensics",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Customers.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Customers.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "cust-1" {
		t.Fatalf("FindByUserID returned %+v", got)
	}

	got, err = s.Customers.FindByUserID(ctx, "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown user, got %+v", got)
	}
}

func TestResetCodes_Lifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code := &domain.ResetCode{
		Email:     "dave@example.com",
		CodeHash:  "hash-1",
		ExpiresAt: time.Now().Add(30 * time.Minute),
		CreatedAt: time.Now(),
	}
	if err := s.ResetCodes.Upsert(ctx, code); err != nil {
		t.Fatal(err)
	}

	// A new request replaces the previous code.
	code2 := *code
	code2.CodeHash = "hash-2"
	if err := s.ResetCodes.Upsert(ctx, &code2); err != nil {
		t.Fatal(err)
	}
	got, err := s.ResetCodes.Find(ctx, "dave@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.CodeHash != "hash-2" {
		t.Fatalf("upsert did not replace code: %q", got.CodeHash)
	}

	consumed, err := s.ResetCodes.Consume(ctx, "dave@example.com")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !consumed.Used {
		t.Fatal("consumed code must be marked used")
	}

	_, err = s.ResetCodes.Consume(ctx, "dave@example.com")
	if !errors.Is(err, store.ErrCodeUsed) {
		t.Fatalf("second consume: want ErrCodeUsed, got %v", err)
	}
}

func TestResetCodes_ExpiredAndMissing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.ResetCodes.Consume(ctx, "nobody@example.com")
	if !errors.Is(err, store.ErrNoResetRequest) {
		t.Fatalf("want ErrNoResetRequest, got %v", err)
	}

	expired := &domain.ResetCode{
		Email:     "late@example.com",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := s.ResetCodes.Upsert(ctx, expired); err != nil {
		t.Fatal(err)
	}
	_, err = s.ResetCodes.Consume(ctx, "late@example.com")
	if !errors.Is(err, store.ErrCodeExpired) {
		t.Fatalf("want ErrCodeExpired, got %v", err)
	}
}

func TestResetCodes_ConsumeIsSingleUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code := &domain.ResetCode{
		Email:     "race@example.com",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	if err := s.ResetCodes.Upsert(ctx, code); err != nil {
		t.Fatal(err)
	}

	const n = 8
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.ResetCodes.Consume(ctx, "race@example.com")
			results <- err
		}()
	}

	var wins int
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			wins++
		} else if !errors.Is(err, store.ErrCodeUsed) {
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one consume must win, got %d", wins)
	}
}

func TestAudit_NewestFirstAndCapped(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < maxAuditEntries+10; i++ {
		err := s.Audit.Append(ctx, &domain.AuditEntry{
			ActorEmail: fmt.Sprintf("user-%d@example.com", i),
			Action:     domain.AuditLogin,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := s.Audit.List(ctx, store.AuditFilter{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if total != maxAuditEntries {
		t.Fatalf("total = %d, want %d", total, maxAuditEntries)
	}
	if len(entries) != 5 {
		t.Fatalf("len = %d, want 5", len(entries))
	}
	wantNewest := fmt.Sprintf("user-%d@example.com", maxAuditEntries+9)
	if entries[0].ActorEmail != wantNewest {
		t.Fatalf("newest entry is %q, want %q", entries[0].ActorEmail, wantNewest)
	}
}

func TestAudit_FilterByAction(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, action := range []string{domain.AuditLogin, domain.AuditLoginFailed, domain.AuditLogin} {
		if err := s.Audit.Append(ctx, &domain.AuditEntry{ActorEmail: "e@example.com", Action: action}); err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := s.Audit.List(ctx, store.AuditFilter{Action: domain.AuditLoginFailed})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(entries))
	}
	if entries[0].Action != domain.AuditLoginFailed {
		t.Fatalf("action = %q", entries[0].Action)
	}
}
