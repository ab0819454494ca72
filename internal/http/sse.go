package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
)

var errSinkClosed = errors.New("stream already closed")

// sseSink writes relay lines to an HTTP response as server-sent events.
// Headers are committed on the first write or on Close, so the handler can
// still answer with a plain error until the relay produces output.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	closed  bool
}

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{
		mu:      sync.Mutex{},
		w:       w,
		rc:      http.NewResponseController(w),
		started: false,
		closed:  false,
	}
}

// WriteLine writes one line followed by the blank line that ends an event.
func (s *sseSink) WriteLine(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.start()

	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return err
	}

	return s.flush()
}

// Close commits the headers if nothing was written yet. It is idempotent.
func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.start()
	return s.flush()
}

// Started reports whether the response headers were committed.
func (s *sseSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true

	// Set headers for SSE.
	header := s.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
