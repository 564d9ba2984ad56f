package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/room/session"
)

// newStatusServer serves the current session snapshot as JSON on localhost
// so a browser-based dev UI can poll it. CORS is open because the listener
// binds loopback only.
func newStatusServer(addr string, store *session.Store) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusView(snap, store)); err != nil {
			log.Error().Err(err).Msg("failed to encode status")
		}
	})

	return &http.Server{
		Addr:    addr,
		Handler: cors.AllowAll().Handler(mux),
	}
}

func statusView(snap session.Snapshot, store *session.Store) map[string]interface{} {
	view := map[string]interface{}{
		"status":       snap.Status,
		"status_text":  snap.StatusText,
		"display_name": snap.DisplayName,
		"rooms":        snap.Rooms,
		"playlist":     snap.Playlist,
		"items":        snap.Items,
		"has_more":     snap.HasMoreItems,
		"suggestions":  snap.Suggestions,
		"in_flight":    snap.InFlight,
		"server_now":   store.Clock().ServerNow(),
	}
	if snap.Room != nil {
		view["room"] = snap.Room
	}
	if snap.Game != nil {
		view["game"] = snap.Game
	}
	return view
}
