package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authstack/authstack/internal/core/domain"
	"github.com/authstack/authstack/internal/core/ports"
)

// AuthService composes the user store, credential validator, and token issuer
// behind the three auth operations the dispatcher routes to.
type AuthService struct {
	repo       ports.UserRepository
	validator  ports.CredentialValidator
	issuer     ports.TokenIssuer
	bcryptCost int
}

func NewAuthService(repo ports.UserRepository, validator ports.CredentialValidator, issuer ports.TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, validator: validator, issuer: issuer, bcryptCost: bcryptCost}
}

// Register hashes the incoming password and inserts a new user with default
// role and flags. Uniqueness violations surface as domain.ErrUserExists.
func (s *AuthService) Register(ctx context.Context, in ports.CreateUserInput) (*domain.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  string(hash),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Role:          domain.RoleUser,
		IsActive:      true,
		RefreshTokens: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	return created.Principal(), nil
}

// Login converts the validator's absence result into ErrInvalidCredentials.
// Unknown identifier and wrong password are deliberately indistinguishable.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, *domain.Principal, error) {
	principal, err := s.validator.Validate(ctx, identifier, password)
	if err != nil {
		return "", nil, err
	}
	if principal == nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(principal)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, principal, nil
}

// ListUsers returns every stored user projected to its principal.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.Principal, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	principals := make([]*domain.Principal, 0, len(users))
	for _, u := range users {
		principals = append(principals, u.Principal())
	}
	return principals, nil
}
