package api

import (
	"context"
	"dashregiond/internal/hls"
	"dashregiond/internal/session"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// SessionProvider looks up or lazily creates a channel session.
type SessionProvider interface {
	GetOrCreateSession(ctx context.Context, channelId string) (*session.Session, error)
}

type API struct {
	sessions SessionProvider
}

func New(sessions SessionProvider) http.Handler {
	api := &API{
		sessions: sessions,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /regions/{channelId}", api.handleRegions)
	mux.HandleFunc("GET /regions/{channelId}/daterange.m3u8", api.handleDateRanges)
	mux.HandleFunc("GET /events/{channelId}", api.handleEvents)
	mux.HandleFunc("GET /healthz", api.handleHealth)

	return mux
}

// session resolves the channel of the request, writing the error response on failure.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	channelId := r.PathValue("channelId")
	sess, err := a.sessions.GetOrCreateSession(r.Context(), channelId)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, fmt.Sprintf("Failed to get session: %v", err), status)
		return nil, false
	}
	return sess, true
}

func (a *API) handleRegions(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, sess.Regions())
}

func (a *API) handleDateRanges(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	playlist := hls.GenerateDateRanges(sess.TimelineRegions(), sess.Anchor())
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write([]byte(playlist))
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, sess.RecentEvents())
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
