package ports

import (
	"context"

	"github.com/authstack/authstack/internal/core/domain"
)

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// FindByIdentifier resolves a user whose username or email equals
	// identifier, case-sensitive as stored.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	FindAll(ctx context.Context) ([]*domain.User, error)
}
