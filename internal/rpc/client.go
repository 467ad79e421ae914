package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/metrics"
)

const defaultDialTimeout = 5 * time.Second

// callResult is what a pending slot resolves to: a response envelope or a
// transport-level error, never both.
type callResult struct {
	resp *Response
	err  error
}

// Client multiplexes concurrent logical calls over one persistent connection.
// Correlation ids bind responses to callers; a shared pending table hands each
// response to exactly one waiter.
type Client struct {
	addr string
	log  zerolog.Logger

	mu      sync.Mutex // guards conn, pending, closed
	conn    net.Conn
	pending map[string]chan callResult
	closed  bool

	writeMu sync.Mutex // serializes frame writes
}

// Dial establishes the persistent connection to the backend. Connection
// failure is logged, not fatal: the returned client is usable and every Send
// fails fast with ErrNotConnected until the process restarts. The edge comes
// up even when the backend is down.
func Dial(addr string, log zerolog.Logger) *Client {
	c := &Client{
		addr:    addr,
		log:     log,
		pending: make(map[string]chan callResult),
	}

	conn, err := net.DialTimeout("tcp", addr, defaultDialTimeout)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("rpc connect failed")
		return c
	}

	c.conn = conn
	log.Info().Str("addr", addr).Msg("rpc connected")
	go c.readLoop(conn)
	return c
}

// Connected reports whether the transport is currently usable.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// Send issues one logical call and blocks only its caller until the
// correlated response arrives or timeout elapses. The call resolves exactly
// once:
//   - response envelope with data → payload
//   - response envelope with error → *Error carrying the remote code
//   - timeout first → ErrTimeout; a late response for this id is discarded
//   - transport failure → ErrClosed (all pending calls are rejected together)
func (c *Client) Send(ctx context.Context, pattern string, payload any, timeout time.Duration) (json.RawMessage, error) {
	start := time.Now()
	data, err := c.send(ctx, pattern, payload, timeout)
	metrics.RPCClientRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	metrics.RPCClientRequestsTotal.WithLabelValues(pattern, outcomeLabel(err)).Inc()
	return data, err
}

func (c *Client) send(ctx context.Context, pattern string, payload any, timeout time.Duration) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.NewString()
	ch := make(chan callResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	c.pending[id] = ch
	c.mu.Unlock()

	metrics.RPCClientPending.Inc()
	defer metrics.RPCClientPending.Dec()

	req := Request{Pattern: pattern, ID: id, Data: body}
	c.writeMu.Lock()
	err = writeFrame(conn, &req)
	c.writeMu.Unlock()
	if err != nil {
		c.discard(id)
		c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
		return nil, ErrClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp.Error != nil {
			return nil, NewError(res.resp.Error.Code, res.resp.Error.Message)
		}
		return res.resp.Data, nil
	case <-timer.C:
		c.discard(id)
		c.log.Warn().Str("pattern", pattern).Str("correlation_id", id).
			Dur("timeout", timeout).Msg("rpc call timed out")
		return nil, ErrTimeout
	case <-ctx.Done():
		c.discard(id)
		return nil, ctx.Err()
	}
}

// Close tears down the connection and rejects every pending call.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

// readLoop is the single reader of the receive stream. It never blocks on a
// slow caller: pending channels are buffered and receive exactly one result.
func (c *Client) readLoop(conn net.Conn) {
	for {
		var resp Response
		if err := readFrame(conn, &resp); err != nil {
			c.log.Error().Err(err).Msg("rpc connection lost")
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Late reply for a timed-out or cancelled call.
			c.log.Debug().Str("correlation_id", resp.ID).Msg("discarding unmatched response")
			continue
		}
		ch <- callResult{resp: &resp}
	}
}

// discard removes a pending slot so a late response cannot resolve it.
func (c *Client) discard(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// fail marks the client closed and rejects all pending calls with err.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case err == ErrTimeout:
		return "timeout"
	default:
		if _, ok := err.(*Error); ok {
			return "remote_error"
		}
		return "connection"
	}
}
