package goSession

import (
	"context"
	"time"
)

// User is the public account view returned by sign-up and sign-in.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRecord is a [User] plus its stored password hash.
type UserRecord struct {
	User
	PasswordHash string
}

// CreateUserInput is passed to [UserDirectory.CreateUser]. The password is
// already hashed.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
}

// UserDirectory is the account store consulted by sign-up and sign-in.
//
// GetUserByEmail returns (nil, nil) for an unknown email. CreateUser returns
// [ErrAccountExists] when the email is taken.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*UserRecord, error)
}

// PasswordRehasher is an optional [UserDirectory] extension. When the
// directory implements it, a successful sign-in against a hash produced with
// weaker argon2 parameters stores a fresh hash under the current parameters.
type PasswordRehasher interface {
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// SignUpRequest carries the sign-up form.
type SignUpRequest struct {
	Email    string
	Name     string
	Password string
}

// SignInRequest carries the sign-in form.
type SignInRequest struct {
	Email    string
	Password string
}

// AccountResult is returned by sign-up and sign-in.
type AccountResult struct {
	User   User
	Tokens *TokenPair
}
