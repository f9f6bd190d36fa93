package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/vedicwatch/internal/config"
)

const streamWriteWait = 10 * time.Second

// StreamMessage is one frame pushed over /v1/stream
type StreamMessage struct {
	Type     string      `json:"type"` // "snapshot" or "error"
	Sequence int         `json:"sequence"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// handleStream upgrades to a websocket and pushes a snapshot immediately and
// then once per interval until the client goes away or the server stops.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	interval := s.config.StreamInterval
	if raw := r.URL.Query().Get("interval"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			fail(w, r, badRequest("interval must be a duration, got %q", raw))
			return
		}
		interval = d
	}
	if interval < config.MinStreamInterval {
		fail(w, r, badRequest("interval must be at least %s", config.MinStreamInterval))
		return
	}
	site, err := s.site(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("Stream upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Inbound frames are discarded; a read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info().
		Str("request_id", RequestID(r.Context())).
		Str("site", site.Name).
		Dur("interval", interval).
		Msg("Stream opened")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		seq++
		msg := StreamMessage{Type: "snapshot", Sequence: seq}
		snap, err := s.svc.Snapshot(ctx, s.svc.Now(), site)
		if err != nil {
			msg.Type = "error"
			msg.Error = err.Error()
		} else {
			msg.Data = snap
		}

		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Msg("Stream write failed")
			return
		}

		select {
		case <-ctx.Done():
			log.Info().Int("sent", seq).Msg("Stream closed by client")
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}
