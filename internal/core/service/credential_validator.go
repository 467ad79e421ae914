package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/authstack/authstack/internal/core/domain"
	"github.com/authstack/authstack/internal/core/ports"
)

// CredentialValidator resolves an identifier against the user store and
// verifies the supplied secret against the stored bcrypt hash. Read-only; it
// never mutates the store.
type CredentialValidator struct {
	repo ports.UserRepository
}

func NewCredentialValidator(repo ports.UserRepository) *CredentialValidator {
	return &CredentialValidator{repo: repo}
}

// Validate returns the principal projection on a match, or (nil, nil) when
// the identifier is unknown or the password does not match. The two absence
// cases are indistinguishable to callers; only infrastructure failures
// surface as errors.
//
// The hash comparison runs only on the found-user path, so the two absence
// cases are not timing-equalized.
func (v *CredentialValidator) Validate(ctx context.Context, identifier, password string) (*domain.Principal, error) {
	user, err := v.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve identifier: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}

	return user.Principal(), nil
}
