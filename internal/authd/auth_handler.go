// Package authd binds the auth operations to the RPC dispatcher: it decodes
// pattern payloads, applies explicit field validation, and converts domain
// errors into coded error envelopes.
package authd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/core/domain"
	"github.com/authstack/authstack/internal/core/ports"
	"github.com/authstack/authstack/internal/rpc"
)

type AuthHandler struct {
	service ports.AuthService
	log     zerolog.Logger
}

func NewAuthHandler(service ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{service: service, log: log}
}

// Register handles auth.register.
func (h *AuthHandler) Register(ctx context.Context, data json.RawMessage) (any, error) {
	in, err := parseCreateUser(data)
	if err != nil {
		return nil, err
	}

	principal, err := h.service.Register(ctx, *in)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, rpc.NewError(rpc.CodeConflict, "username or email already exists")
		}
		return nil, err
	}

	h.log.Info().Str("username", principal.Username).Msg("user registered")
	return principal, nil
}

// Login handles auth.login.
func (h *AuthHandler) Login(ctx context.Context, data json.RawMessage) (any, error) {
	in, err := parseLogin(data)
	if err != nil {
		return nil, err
	}

	token, principal, err := h.service.Login(ctx, in.Identifier, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			// Unknown identifier and wrong password collapse into one
			// message so callers cannot tell which half failed.
			return nil, rpc.NewError(rpc.CodeInvalidCredentials, "Invalid credentials")
		}
		return nil, err
	}

	return &loginResponse{AccessToken: token, User: principal}, nil
}

// GetAllUsers handles auth.getAllUsers.
func (h *AuthHandler) GetAllUsers(ctx context.Context, _ json.RawMessage) (any, error) {
	principals, err := h.service.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if principals == nil {
		principals = []*domain.Principal{}
	}
	return principals, nil
}

type createUserPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	AccessToken string            `json:"access_token"`
	User        *domain.Principal `json:"user"`
}

// parseCreateUser decodes and validates a registration payload, reporting
// every failing field at once.
func parseCreateUser(data json.RawMessage) (*ports.CreateUserInput, error) {
	var p createUserPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, rpc.NewError(rpc.CodeValidation, "malformed payload")
	}

	var fields []string
	if p.Username == "" {
		fields = append(fields, "username is required")
	}
	if p.Email == "" {
		fields = append(fields, "email is required")
	} else if !strings.Contains(p.Email, "@") {
		fields = append(fields, "email must be a valid email")
	}
	if p.Password == "" {
		fields = append(fields, "password is required")
	}
	if len(fields) > 0 {
		return nil, rpc.NewError(rpc.CodeValidation, strings.Join(fields, "; "))
	}

	return &ports.CreateUserInput{
		Username:  p.Username,
		Email:     p.Email,
		Password:  p.Password,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}, nil
}

func parseLogin(data json.RawMessage) (*loginPayload, error) {
	var p loginPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, rpc.NewError(rpc.CodeValidation, "malformed payload")
	}

	var fields []string
	if p.Identifier == "" {
		fields = append(fields, "identifier is required")
	}
	if p.Password == "" {
		fields = append(fields, "password is required")
	}
	if len(fields) > 0 {
		return nil, rpc.NewError(rpc.CodeValidation, strings.Join(fields, "; "))
	}
	return &p, nil
}
