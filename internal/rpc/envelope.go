// Package rpc implements the pattern-addressed request/response channel
// between the gateway and the authd backend: length-prefixed JSON frames over
// a persistent TCP connection, with correlation ids binding each response to
// the call that issued it.
package rpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize bounds a single envelope on the wire.
const maxFrameSize = 1 << 20 // 1 MiB

// Request is the client→server envelope.
type Request struct {
	Pattern string          `json:"pattern"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is the server→client envelope. Exactly one of Data and Error is
// meaningful; ID echoes the request's correlation id.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the wire form of a failed dispatch.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeFrame marshals v and writes it as a single 4-byte big-endian
// length-prefixed frame. The prefix and body go out in one Write so concurrent
// writers only need to serialize the call itself.
func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(body))
	}

	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and unmarshals it into v.
func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxFrameSize {
		return fmt.Errorf("invalid frame size %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}
