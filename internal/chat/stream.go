package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edibez/mcplab/internal/settings"
)

const writeWait = 10 * time.Second

// SettingsResolver returns the settings of a session.
type SettingsResolver func(ctx context.Context, sessionID string) (*settings.Settings, error)

// StreamWriter serializes events onto a websocket connection.
type StreamWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewStreamWriter wraps conn.
func NewStreamWriter(conn *websocket.Conn) *StreamWriter {
	return &StreamWriter{conn: conn}
}

// Write sends one step as a JSON text frame.
func (w *StreamWriter) Write(step Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(step)
}

// Serve reads chat requests from conn until the client goes away, running
// each one and streaming its steps. sessionID is the fallback session of
// requests that do not carry their own.
func (s *Service) Serve(ctx context.Context, conn *websocket.Conn, sessionID string, resolve SettingsResolver) {
	w := NewStreamWriter(conn)
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("chat stream read failed", zap.Error(err))
			}
			return
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		if err := s.serveOne(ctx, w, req, resolve); err != nil {
			s.logger.Info("chat stream closed", zap.String("session_id", req.SessionID), zap.Error(err))
			return
		}
	}
}

// serveOne runs a single request. Request level problems are reported to
// the client as error events; only write failures are returned.
func (s *Service) serveOne(ctx context.Context, w *StreamWriter, req Request, resolve SettingsResolver) error {
	var st *settings.Settings
	if resolve != nil {
		resolved, err := resolve(ctx, req.SessionID)
		if err != nil {
			return w.Write(Step{Type: EventError, Error: err.Error()})
		}
		if err := resolved.Validate(); err != nil {
			return w.Write(Step{Type: EventError, Error: err.Error() + ". Please configure your settings."})
		}
		st = resolved
	}

	_, err := s.Run(ctx, req, st, w.Write)
	var writeErr *websocket.CloseError
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyPrompt):
		return w.Write(Step{Type: EventError, Error: err.Error()})
	case errors.As(err, &writeErr), errors.Is(err, context.Canceled):
		return err
	default:
		if werr := w.Write(Step{Type: EventError, Error: err.Error()}); werr != nil {
			return werr
		}
	}
	return w.Write(Step{Type: EventDone})
}
