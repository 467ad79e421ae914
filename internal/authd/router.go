package authd

import (
	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/core/ports"
	"github.com/authstack/authstack/internal/rpc"
)

// NewServer builds the RPC server with the static pattern routing table. The
// table is registered once here; unknown patterns are rejected by the
// dispatcher itself.
func NewServer(service ports.AuthService, log zerolog.Logger) *rpc.Server {
	h := NewAuthHandler(service, log)

	s := rpc.NewServer(log)
	s.Handle(ports.PatternRegister, h.Register)
	s.Handle(ports.PatternLogin, h.Login)
	s.Handle(ports.PatternGetAllUsers, h.GetAllUsers)
	return s
}
