package sse

import (
	"fmt"
	"net/http"
)

// SSEKeepAliveWriter implements KeepAliveWriter for SSE connections
// Writes SSE comment lines (: keepalive) to maintain the connection
type SSEKeepAliveWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEKeepAliveWriter creates a new SSE keep-alive writer
func NewSSEKeepAliveWriter(w http.ResponseWriter, flusher http.Flusher) *SSEKeepAliveWriter {
	return &SSEKeepAliveWriter{
		w:       w,
		flusher: flusher,
	}
}

// WriteKeepAlive writes an SSE comment (: keepalive\n\n) and flushes
// Returns error if connection is closed or write fails
func (s *SSEKeepAliveWriter) WriteKeepAlive() error {
	// SSE spec: Lines starting with : are comments (ignored by client)
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}

	s.flusher.Flush()

	// Attempt zero-byte write to detect closed connections
	if _, err := s.w.Write([]byte{}); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}

	return nil
}

// WriteEvent writes a named SSE event with a data payload and flushes.
func (s *SSEKeepAliveWriter) WriteEvent(event string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write event failed: %w", err)
	}

	s.flusher.Flush()
	return nil
}
