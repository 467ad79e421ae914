package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/authstack/authstack/internal/core/domain"
	"github.com/authstack/authstack/internal/core/ports"
)

type stubUserRepo struct {
	users map[string]*domain.User // keyed by username
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	created := cloneUser(user)
	created.ID = "id_" + user.Username
	r.users[created.Username] = cloneUser(created)
	return created, nil
}

func (r *stubUserRepo) FindByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindAll(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func newTestAuthService(repo ports.UserRepository) *AuthService {
	validator := NewCredentialValidator(repo)
	issuer := NewTokenIssuer("secret", time.Hour)
	return NewAuthService(repo, validator, issuer, bcrypt.MinCost)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	principal, err := svc.Register(context.Background(), ports.CreateUserInput{
		Username:  "alice",
		Email:     "a@x.com",
		Password:  "secret123",
		FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if principal.ID == "" {
		t.Fatalf("expected id to be set")
	}
	if principal.Role != domain.RoleUser {
		t.Fatalf("expected default role %q, got %q", domain.RoleUser, principal.Role)
	}

	stored := repo.users["alice"]
	if stored.PasswordHash == "secret123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if !stored.IsActive {
		t.Fatalf("expected new user to be active")
	}
	if stored.RefreshTokens == nil || len(stored.RefreshTokens) != 0 {
		t.Fatalf("expected empty refresh token list, got %v", stored.RefreshTokens)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	in := ports.CreateUserInput{Username: "bob", Email: "b@x.com", Password: "pass"}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), in); err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	if _, err := svc.Register(context.Background(), ports.CreateUserInput{
		Username: "carol", Email: "carol@x.com", Password: "s3cret",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, principal, err := svc.Login(context.Background(), "carol", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token, got empty")
	}
	if principal.Username != "carol" || principal.Email != "carol@x.com" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims["sub"] != principal.ID {
		t.Fatalf("expected sub %q, got %v", principal.ID, claims["sub"])
	}
	if claims["username"] != "carol" || claims["email"] != "carol@x.com" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestAuthService_Login_ByEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	_, _ = svc.Register(context.Background(), ports.CreateUserInput{
		Username: "dave", Email: "dave@x.com", Password: "goodpass",
	})

	if _, _, err := svc.Login(context.Background(), "dave@x.com", "goodpass"); err != nil {
		t.Fatalf("login by email failed: %v", err)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	_, _ = svc.Register(context.Background(), ports.CreateUserInput{
		Username: "erin", Email: "erin@x.com", Password: "goodpass",
	})

	if _, _, err := svc.Login(context.Background(), "erin", "badpass"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownIdentifier(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	_, _, err := svc.Login(context.Background(), "ghost@x.com", "pass")
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

// Unknown identifier and wrong password must be indistinguishable to callers.
func TestAuthService_Login_FailuresCollapse(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	_, _ = svc.Register(context.Background(), ports.CreateUserInput{
		Username: "frank", Email: "frank@x.com", Password: "goodpass",
	})

	_, _, errUnknown := svc.Login(context.Background(), "nobody", "whatever")
	_, _, errWrong := svc.Login(context.Background(), "frank", "wrong")
	if errUnknown != errWrong {
		t.Fatalf("expected identical errors, got %v vs %v", errUnknown, errWrong)
	}
}

func TestAuthService_ListUsers(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestAuthService(repo)

	_, _ = svc.Register(context.Background(), ports.CreateUserInput{Username: "u1", Email: "u1@x.com", Password: "p1"})
	_, _ = svc.Register(context.Background(), ports.CreateUserInput{Username: "u2", Email: "u2@x.com", Password: "p2"})

	principals, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(principals) != 2 {
		t.Fatalf("expected 2 principals, got %d", len(principals))
	}
	for _, p := range principals {
		if p.ID == "" || p.Username == "" {
			t.Fatalf("incomplete principal: %+v", p)
		}
	}
}
