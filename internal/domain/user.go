package domain

import "context"

// User is the authenticated identity owning a session
type User struct {
	Username string `json:"username"`
	Token    string `json:"-"`
}

// Credentials represents login or registration data
type Credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

// AuthResult is returned by a successful login or registration
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Authenticator is the authentication collaborator
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Register(ctx context.Context, creds Credentials) (*AuthResult, error)
	Logout(ctx context.Context, token string) error
}
