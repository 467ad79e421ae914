package ports

import (
	"context"

	"github.com/authstack/authstack/internal/core/domain"
)

// CreateUserInput carries the fields accepted by registration.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthService interface {
	Register(ctx context.Context, in CreateUserInput) (*domain.Principal, error)
	// Login returns the signed access token and the authenticated principal,
	// or domain.ErrInvalidCredentials for both unknown identifiers and wrong
	// passwords.
	Login(ctx context.Context, identifier, password string) (string, *domain.Principal, error)
	ListUsers(ctx context.Context) ([]*domain.Principal, error)
}

// CredentialValidator resolves an identifier and verifies the secret against
// the stored hash. Absence (unknown identifier or mismatch) is reported as a
// nil principal with a nil error; errors are reserved for infrastructure
// failures.
type CredentialValidator interface {
	Validate(ctx context.Context, identifier, password string) (*domain.Principal, error)
}

// TokenIssuer produces a signed, time-bounded access token for a validated
// principal.
type TokenIssuer interface {
	Issue(principal *domain.Principal) (string, error)
}
