// Package file implements the store interfaces on flat JSON files under a
// data directory. It suits single-node deployments; every collection is held
// in memory behind one RWMutex and rewritten to disk on mutation.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

const (
	usersFile     = "users.json"
	customersFile = "customers.json"
	codesFile     = "reset-codes.json"
	auditFile     = "activity-log.json"

	// activity-log.json is bounded; oldest entries fall off the end.
	maxAuditEntries = 1000
)

// userRecord is the on-disk shape of a User. The domain type hides the
// password hash from JSON, so the file backend shadows that one field.
type userRecord struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

func (r *userRecord) toDomain() *domain.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

func fromDomain(u *domain.User) userRecord {
	return userRecord{User: *u, PasswordHash: u.PasswordHash}
}

// Store holds all four collections. It implements store.Users,
// store.Customers, store.ResetCodes and store.Audit.
type Store struct {
	mu  sync.RWMutex
	dir string

	users     []userRecord
	customers []domain.CustomerProfile
	codes     map[string]domain.ResetCode
	audit     []domain.AuditEntry // newest first
}

// New loads (or creates) the data directory and returns a store bundle
// backed by it.
func New(dataDir string) (*store.Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:   dataDir,
		codes: make(map[string]domain.ResetCode),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}

	return &store.Store{Users: s, Customers: customers{s}, ResetCodes: s, Audit: s}, nil
}

// customers adapts *Store to store.Customers; the method name Create is
// already taken by the user collection.
type customers struct{ *Store }

func (c customers) Create(ctx context.Context, p *domain.CustomerProfile) error {
	return c.Store.CreateCustomer(ctx, p)
}

func (s *Store) loadAll() error {
	if err := s.loadFile(usersFile, &s.users); err != nil {
		return err
	}
	if err := s.loadFile(customersFile, &s.customers); err != nil {
		return err
	}
	if err := s.loadFile(codesFile, &s.codes); err != nil {
		return err
	}
	return s.loadFile(auditFile, &s.audit)
}

func (s *Store) loadFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) saveLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// --- store.Users ---

func (s *Store) Create(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].Email == u.Email {
			return store.ErrEmailExists
		}
	}

	s.users = append(s.users, fromDomain(u))
	return s.saveLocked(usersFile, s.users)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].Email == email {
			return s.users[i].toDomain(), nil
		}
	}
	return nil, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].ID == id {
			return s.users[i].toDomain(), nil
		}
	}
	return nil, nil
}

func (s *Store) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	if googleID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].GoogleID == googleID {
			return s.users[i].toDomain(), nil
		}
	}
	return nil, nil
}

func (s *Store) Update(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == u.ID {
			s.users[i] = fromDomain(u)
			return s.saveLocked(usersFile, s.users)
		}
	}
	return store.ErrNotFound
}

func (s *Store) SetPassword(ctx context.Context, id, passwordHash, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].PasswordHash = passwordHash
			s.users[i].Role = role
			return s.saveLocked(usersFile, s.users)
		}
	}
	return store.ErrNotFound
}

// --- store.Customers ---

func (s *Store) CreateCustomer(ctx context.Context, c *domain.CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = append(s.customers, *c)
	return s.saveLocked(customersFile, s.customers)
}

func (s *Store) FindByUserID(ctx context.Context, userID string) (*domain.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.customers {
		if s.customers[i].UserID == userID {
			c := s.customers[i]
			return &c, nil
		}
	}
	return nil, nil
}

// --- store.ResetCodes ---

func (s *Store) Upsert(ctx context.Context, code *domain.ResetCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Email] = *code
	return s.saveLocked(codesFile, s.codes)
}

func (s *Store) Find(ctx context.Context, email string) (*domain.ResetCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.codes[email]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) Consume(ctx context.Context, email string) (*domain.ResetCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[email]
	if !ok {
		return nil, store.ErrNoResetRequest
	}
	if c.Used {
		return nil, store.ErrCodeUsed
	}
	if c.Expired(time.Now()) {
		return nil, store.ErrCodeExpired
	}

	c.Used = true
	s.codes[email] = c
	if err := s.saveLocked(codesFile, s.codes); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- store.Audit ---

func (s *Store) Append(ctx context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *e
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.audit = append([]domain.AuditEntry{entry}, s.audit...)
	if len(s.audit) > maxAuditEntries {
		s.audit = s.audit[:maxAuditEntries]
	}
	return s.saveLocked(auditFile, s.audit)
}

func (s *Store) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.AuditEntry, 0, len(s.audit))
	for _, e := range s.audit {
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		filtered = append(filtered, e)
	}

	total := len(filtered)
	if f.Offset > 0 {
		if f.Offset >= total {
			return []domain.AuditEntry{}, total, nil
		}
		filtered = filtered[f.Offset:]
	}
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, total, nil
}
