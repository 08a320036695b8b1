package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// handleEvents streams state changes as server-sent events. The first event is an
// init snapshot; every later mutation produces an update with the combined state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Subscribe and snapshot under the engine lock so no update falls between them.
	s.mu.Lock()
	id, events := s.hub.Subscribe()
	initial, err := json.Marshal(s.snapshotLocked())
	s.mu.Unlock()
	defer s.hub.Unsubscribe(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("encoding snapshot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, rc, Event{Type: EventInit, Data: initial}); err != nil {
		logrus.Debugf("subscriber %s: %v", id, err)
		return
	}

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, ev); err != nil {
				logrus.Debugf("subscriber %s: %v", id, err)
				return
			}
		case <-tick:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Type, err)
	}
	if err := rc.Flush(); err != nil {
		return fmt.Errorf("flushing %s event: %w", ev.Type, err)
	}
	return nil
}
