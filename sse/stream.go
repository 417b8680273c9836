// Package sse streams typed chat events to the client as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/shopchat/domain"
)

// SendFunc pushes one event frame onto the stream. It is safe to call after
// the peer has disconnected; such writes are silently dropped.
type SendFunc func(event domain.StreamEvent)

// Sender writes event frames to one HTTP response. It is used by a single
// goroutine, so the closed flag needs no locking: "write after close" is a
// local check, not an error path.
type Sender struct {
	w       io.Writer
	flusher http.Flusher
	closed  bool
	logger  *slog.Logger
}

// NewSender prepares an SSE response on the given echo context.
func NewSender(c echo.Context, logger *slog.Logger) (*Sender, error) {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	return &Sender{w: c.Response().Writer, flusher: flusher, logger: logger}, nil
}

// Send encodes one event as a discrete frame. A send against a terminated
// stream is a logged no-op: tool-dispatch callbacks may still be mid-flight
// when the client goes away, and they must not crash the turn.
func (s *Sender) Send(event domain.StreamEvent) {
	if s.closed {
		s.logger.Debug("dropping event on closed stream", "type", event.Type)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode stream event", "type", event.Type, "error", err)
		return
	}
	s.write(data)
}

// write frames and flushes one payload, marking the stream closed on the
// first write failure.
func (s *Sender) write(payload []byte) {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.closed = true
		s.logger.Debug("stream closed by peer", "error", err)
		return
	}
	s.flusher.Flush()
}

// Done writes the literal [DONE] transport terminator, if the stream is
// still open, then marks the stream closed. Closing twice is a no-op.
func (s *Sender) Done() {
	if s.closed {
		return
	}
	s.write([]byte("[DONE]"))
	s.closed = true
}

// Serve runs produce with a send function bound to an SSE response on c.
// When produce returns normally the [DONE] terminator is written; when it
// fails the stream is simply ended. Headers are already out at that point,
// so the error is logged rather than turned into a status code.
func Serve(c echo.Context, logger *slog.Logger, produce func(send SendFunc) error) error {
	sender, err := NewSender(c, logger)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	if err := produce(sender.Send); err != nil {
		// The producer failed mid-stream. Headers are already out, so end
		// the response without the [DONE] marker; the client treats the
		// truncated stream as an error.
		logger.Error("streaming turn failed", "error", err)
		sender.closed = true
		return nil
	}

	sender.Done()
	return nil
}
