package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ldrpitr/samvaad/internal/dialogue"
)

// stream upgrades the request to a websocket and forwards the session's
// transcript events as JSON text frames until either side goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		slog.Warn("server: websocket accept failed", "session_id", s.ID(), "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "stream ended")

	events, cancel := s.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Read loop: the client sends nothing meaningful, but reading is how a
	// peer close is noticed.
	go func() {
		defer stop()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				// Session closed underneath us.
				ws.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("server: websocket write failed", "session_id", s.ID(), "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev dialogue.Event) error {
	w, err := ws.Writer(ctx, websocket.MessageText)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(ev); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (h *Handler) originPatterns() []string {
	if len(h.origins) == 0 {
		return nil
	}
	return h.origins
}
