package ports

import (
	"context"
	"encoding/json"
	"time"
)

// RPCCaller is the gateway-side view of the backend connection: one logical
// call in, one correlated reply (or error) out.
type RPCCaller interface {
	Send(ctx context.Context, pattern string, payload any, timeout time.Duration) (json.RawMessage, error)
}
