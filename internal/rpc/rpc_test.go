package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// startServer runs s on an ephemeral loopback port and returns its address.
func startServer(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Close() })
	return ln.Addr().String()
}

func TestClientServer_RoundTrip(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Handle("echo", func(_ context.Context, data json.RawMessage) (any, error) {
		var in map[string]string
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return map[string]string{"echo": in["msg"]}, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()
	if !c.Connected() {
		t.Fatalf("client should be connected")
	}

	payload, err := c.Send(context.Background(), "echo", map[string]string{"msg": "hello"}, time.Second)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["echo"] != "hello" {
		t.Fatalf("unexpected response: %v", out)
	}
}

func TestClientServer_NoHandler(t *testing.T) {
	s := NewServer(zerolog.Nop())
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	_, err := c.Send(context.Background(), "auth.unknown", struct{}{}, time.Second)
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if re.Code != CodeNoHandler {
		t.Fatalf("expected no_handler, got %s", re.Code)
	}
}

func TestClientServer_HandlerErrorKeepsConnectionOpen(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Handle("fail", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, NewError(CodeConflict, "already exists")
	})
	s.Handle("ok", func(_ context.Context, _ json.RawMessage) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	_, err := c.Send(context.Background(), "fail", struct{}{}, time.Second)
	var re *Error
	if !errors.As(err, &re) || re.Code != CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if re.Message != "already exists" {
		t.Fatalf("unexpected message: %s", re.Message)
	}

	// The failed dispatch must not have torn down the connection.
	if _, err := c.Send(context.Background(), "ok", struct{}{}, time.Second); err != nil {
		t.Fatalf("connection unusable after handler error: %v", err)
	}
}

func TestClientServer_HandlerPanicIsContained(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Handle("boom", func(_ context.Context, _ json.RawMessage) (any, error) {
		panic("handler bug")
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	_, err := c.Send(context.Background(), "boom", struct{}{}, time.Second)
	var re *Error
	if !errors.As(err, &re) || re.Code != CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

// Concurrent calls on one connection must each resolve with their own
// payload, even when the server completes them in reverse order.
func TestClientServer_ConcurrentCallsOutOfOrder(t *testing.T) {
	const n = 8

	arrived := make(chan int, n)
	release := make([]chan struct{}, n)
	for i := range release {
		release[i] = make(chan struct{})
	}

	s := NewServer(zerolog.Nop())
	s.Handle("slot", func(_ context.Context, data json.RawMessage) (any, error) {
		var in struct {
			I int `json:"i"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		arrived <- in.I
		<-release[in.I]
		return map[string]int{"i": in.I}, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	results := make([]json.RawMessage, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Send(context.Background(), "slot", map[string]int{"i": i}, 5*time.Second)
		}(i)
	}

	// Wait for every request to reach its handler, then complete them in
	// reverse send order.
	for i := 0; i < n; i++ {
		select {
		case <-arrived:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for request %d to arrive", i)
		}
	}
	for i := n - 1; i >= 0; i-- {
		close(release[i])
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		var out struct {
			I int `json:"i"`
		}
		if err := json.Unmarshal(results[i], &out); err != nil {
			t.Fatalf("decode result %d: %v", i, err)
		}
		if out.I != i {
			t.Fatalf("call %d resolved with payload for %d", i, out.I)
		}
	}
}

// A call that times out must reject with ErrTimeout, and the late response
// must be discarded without disturbing a subsequent call.
func TestClientServer_TimeoutDiscardsLateResponse(t *testing.T) {
	block := make(chan struct{})
	s := NewServer(zerolog.Nop())
	s.Handle("slow", func(_ context.Context, _ json.RawMessage) (any, error) {
		<-block
		return map[string]string{"from": "slow"}, nil
	})
	s.Handle("fast", func(_ context.Context, _ json.RawMessage) (any, error) {
		return map[string]string{"from": "fast"}, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	_, err := c.Send(context.Background(), "slow", struct{}{}, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Let the slow handler flush its late response, then issue a fresh call.
	close(block)
	payload, err := c.Send(context.Background(), "fast", struct{}{}, time.Second)
	if err != nil {
		t.Fatalf("fresh call after timeout failed: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["from"] != "fast" {
		t.Fatalf("late response leaked into fresh call: %v", out)
	}
}

func TestClient_SendFailsFastWhenNeverConnected(t *testing.T) {
	// Grab a port that is guaranteed to refuse connections.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := Dial(addr, zerolog.Nop())
	defer c.Close()
	if c.Connected() {
		t.Fatalf("client should not report connected")
	}

	start := time.Now()
	_, err = c.Send(context.Background(), "auth.login", struct{}{}, 5*time.Second)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("disconnected Send must fail fast, took %v", time.Since(start))
	}
}

func TestClient_ConnectionLossRejectsAllPending(t *testing.T) {
	block := make(chan struct{})

	s := NewServer(zerolog.Nop())
	arrived := make(chan struct{}, 4)
	s.Handle("hang", func(_ context.Context, _ json.RawMessage) (any, error) {
		arrived <- struct{}{}
		<-block
		return nil, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	const n = 4
	errsCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.Send(context.Background(), "hang", struct{}{}, 10*time.Second)
			errsCh <- err
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-arrived:
		case <-time.After(5 * time.Second):
			t.Fatalf("request %d never reached the server", i)
		}
	}

	// Drop the server; every pending call must reject with a connection
	// error, not hang until its timeout. Close blocks on the hung handlers,
	// so run it aside and release them once the rejections are observed.
	closeDone := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closeDone)
	}()

	for i := 0; i < n; i++ {
		select {
		case err := <-errsCh:
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("pending call %d not rejected after connection loss", i)
		}
	}

	// And the client stays failed-fast afterwards.
	if _, err := c.Send(context.Background(), "hang", struct{}{}, time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on post-disconnect send, got %v", err)
	}

	close(block)
	<-closeDone
}

func TestServer_DuplicatePatternPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate pattern")
		}
	}()
	s := NewServer(zerolog.Nop())
	h := func(_ context.Context, _ json.RawMessage) (any, error) { return nil, nil }
	s.Handle("dup", h)
	s.Handle("dup", h)
}

func TestClientServer_ManySequentialCalls(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Handle("n", func(_ context.Context, data json.RawMessage) (any, error) {
		var in struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return map[string]string{"v": fmt.Sprintf("r%d", in.N)}, nil
	})
	addr := startServer(t, s)

	c := Dial(addr, zerolog.Nop())
	defer c.Close()

	for i := 0; i < 50; i++ {
		payload, err := c.Send(context.Background(), "n", map[string]int{"n": i}, time.Second)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		var out map[string]string
		if err := json.Unmarshal(payload, &out); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if out["v"] != fmt.Sprintf("r%d", i) {
			t.Fatalf("call %d got %q", i, out["v"])
		}
	}
}
