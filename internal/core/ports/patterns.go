package ports

// RPC patterns routed by the authd dispatcher. The gateway and the backend
// must agree on these; an unknown pattern is answered with a no_handler error.
const (
	PatternRegister    = "auth.register"
	PatternLogin       = "auth.login"
	PatternGetAllUsers = "auth.getAllUsers"
)
