// Package users provides an in-memory account directory for goSession's
// sign-up and sign-in flows.
package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/google/uuid"
)

// Directory is a process-local [goSession.UserDirectory]. Records are keyed by
// lower-cased email.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]goSession.UserRecord
	now     func() time.Time
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byEmail: make(map[string]goSession.UserRecord),
		now:     time.Now,
	}
}

func (d *Directory) GetUserByEmail(_ context.Context, email string) (*goSession.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byEmail[normalize(email)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// CreateUser stores a new account under a random UUID.
func (d *Directory) CreateUser(_ context.Context, in goSession.CreateUserInput) (*goSession.UserRecord, error) {
	email := normalize(in.Email)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byEmail[email]; ok {
		return nil, goSession.ErrAccountExists
	}
	rec := goSession.UserRecord{
		User: goSession.User{
			ID:        uuid.NewString(),
			Email:     email,
			Name:      in.Name,
			CreatedAt: d.now().UTC(),
		},
		PasswordHash: in.PasswordHash,
	}
	d.byEmail[email] = rec
	return &rec, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (d *Directory) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for email, rec := range d.byEmail {
		if rec.ID == userID {
			rec.PasswordHash = passwordHash
			d.byEmail[email] = rec
			return nil
		}
	}
	return fmt.Errorf("users: no account with id %q", userID)
}

// Len reports the number of stored accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byEmail)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ goSession.UserDirectory    = (*Directory)(nil)
	_ goSession.PasswordRehasher = (*Directory)(nil)
)
