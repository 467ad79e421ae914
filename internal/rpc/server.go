package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/metrics"
)

// HandlerFunc processes one decoded request payload. Returning a *Error
// controls the code on the wire; any other error is reported as internal.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Server accepts connections, reads framed request envelopes, and routes each
// by pattern to a registered handler. Frames are dispatched independently: a
// slow handler never stalls the read loop, so responses may complete out of
// order and are matched purely by correlation id.
type Server struct {
	log      zerolog.Logger
	handlers map[string]HandlerFunc

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(log zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		log:      log,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle registers a handler for a pattern. The routing table is built once
// at startup, before Serve; registration is not safe concurrently with
// serving.
func (s *Server) Handle(pattern string, h HandlerFunc) {
	if _, dup := s.handlers[pattern]; dup {
		panic(fmt.Sprintf("rpc: duplicate handler for pattern %q", pattern))
	}
	s.handlers[pattern] = h
}

// Listen binds addr and starts serving. It blocks until Close.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln. It blocks until Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("rpc server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("rpc accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr returns the bound listener address, for tests and logs.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting, closes all live connections, and waits for in-flight
// dispatches to drain.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
	return nil
}

// serveConn reads frames until the peer disconnects. Each frame is dispatched
// on its own goroutine; a per-connection write mutex keeps response frames
// intact under concurrent completion.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.log.Info().Str("remote", remote).Msg("rpc connection accepted")

	var writeMu sync.Mutex
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			s.log.Info().Str("remote", remote).Msg("rpc connection closed")
			return
		}

		s.wg.Add(1)
		go func(req Request) {
			defer s.wg.Done()
			s.dispatch(conn, &writeMu, req)
		}(req)
	}
}

// dispatch routes one request and writes the correlated response. Handler
// errors become error envelopes; the connection stays open.
func (s *Server) dispatch(conn net.Conn, writeMu *sync.Mutex, req Request) {
	start := time.Now()
	data, detail := s.invoke(req)

	pattern := req.Pattern
	outcome := "ok"
	if detail != nil {
		outcome = "error"
		if detail.Code == CodeNoHandler {
			pattern = "unknown"
		}
		s.log.Warn().Str("pattern", req.Pattern).Str("correlation_id", req.ID).
			Str("code", detail.Code).Str("error", detail.Message).Msg("rpc dispatch failed")
	}
	metrics.RPCServerRequestsTotal.WithLabelValues(pattern, outcome).Inc()
	metrics.RPCServerRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())

	resp := Response{ID: req.ID, Data: data, Error: detail}
	writeMu.Lock()
	err := writeFrame(conn, &resp)
	writeMu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Str("correlation_id", req.ID).Msg("rpc response write failed")
	}
}

// invoke runs the handler for req and normalizes its result for the wire.
func (s *Server) invoke(req Request) (data json.RawMessage, detail *ErrorDetail) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("pattern", req.Pattern).Interface("panic", r).Msg("rpc handler panicked")
			data, detail = nil, &ErrorDetail{Code: CodeInternal, Message: "internal error"}
		}
	}()

	handler, ok := s.handlers[req.Pattern]
	if !ok {
		return nil, &ErrorDetail{
			Code:    CodeNoHandler,
			Message: fmt.Sprintf("no handler for pattern %q", req.Pattern),
		}
	}

	result, err := handler(s.ctx, req.Data)
	if err != nil {
		var coded *Error
		if errors.As(err, &coded) {
			return nil, &ErrorDetail{Code: coded.Code, Message: coded.Message}
		}
		return nil, &ErrorDetail{Code: CodeInternal, Message: err.Error()}
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, &ErrorDetail{Code: CodeInternal, Message: "encode response: " + err.Error()}
	}
	return body, nil
}
