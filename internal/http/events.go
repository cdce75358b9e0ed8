package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/moviewatch/internal/watchlist"
)

const (
	eventBuffer       = 32
	heartbeatInterval = 15 * time.Second
)

type changeEvent struct {
	Kind    string                   `json:"kind"`
	MovieID int64                    `json:"movieId,omitempty"`
	Count   int                      `json:"count"`
	Items   []watchlistEntryResponse `json:"items"`
}

// handleWatchlistEvents streams watchlist changes as server-sent events. The
// first event is a snapshot of the current list. A client that falls more
// than eventBuffer changes behind is disconnected and expected to reconnect.
func (s *Server) handleWatchlistEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming is not supported")
		return
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	clientID := uuid.New()
	changes := make(chan watchlist.Change, eventBuffer)
	overflow := make(chan struct{})
	var overflowed bool
	unsubscribe := s.watchlist.Subscribe(func(c watchlist.Change) {
		if overflowed {
			return
		}
		select {
		case changes <- c:
		default:
			overflowed = true
			close(overflow)
		}
	})
	defer unsubscribe()

	logger := s.logger.With("client_id", clientID.String())
	logger.Debug("http: event stream opened")
	defer logger.Debug("http: event stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	snapshot := watchlist.Change{Kind: "snapshot", Entries: s.watchlist.List()}
	if err := s.writeEvent(w, snapshot); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.events:
			return
		case <-overflow:
			logger.Warn("http: event stream fell behind, closing")
			return
		case c := <-changes:
			if err := s.writeEvent(w, c); err != nil {
				logger.Debug("http: event write failed", "error", err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, c watchlist.Change) error {
	evt := changeEvent{
		Kind:    string(c.Kind),
		MovieID: c.MovieID,
		Count:   len(c.Entries),
		Items:   make([]watchlistEntryResponse, 0, len(c.Entries)),
	}
	for _, e := range c.Entries {
		evt.Items = append(evt.Items, s.toEntryResponse(e))
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
	return err
}
