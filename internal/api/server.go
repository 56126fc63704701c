// Package api exposes the HTTP control surface: speak submission, the
// admin operations and the live event stream.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"voxgate/pkg/version"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, speak *SpeakHandler, usersH *UsersHandler, queueH *QueueHandler, stats *StatsHandler, events *EventsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// Speak submission
	mux.HandleFunc("POST /api/speak", speak.HandleSpeak)
	mux.HandleFunc("GET /api/providers", speak.HandleProviders)

	// User administration
	mux.HandleFunc("GET /api/users", usersH.HandleList)
	mux.HandleFunc("GET /api/users/{id}", usersH.HandleGet)
	mux.HandleFunc("PUT /api/users/{id}/state", usersH.HandleSetState)
	mux.HandleFunc("POST /api/users/{id}/blacklist", usersH.HandleBlacklist)
	mux.HandleFunc("PUT /api/users/{id}/voice", usersH.HandleAssignVoice)
	mux.HandleFunc("DELETE /api/users/{id}/voice", usersH.HandleRemoveVoice)
	mux.HandleFunc("PUT /api/users/{id}/gain", usersH.HandleSetGain)

	// Queue operations
	mux.HandleFunc("GET /api/queue", queueH.HandleStatus)
	mux.HandleFunc("POST /api/queue/clear", queueH.HandleClear)
	mux.HandleFunc("POST /api/queue/skip", queueH.HandleSkip)
	mux.HandleFunc("POST /api/queue/pause", queueH.HandlePause)
	mux.HandleFunc("POST /api/queue/resume", queueH.HandleResume)
	mux.HandleFunc("PUT /api/queue/rate-limit", queueH.HandleSetRateLimit)
	mux.HandleFunc("PUT /api/filter/profanity-mode", queueH.HandleSetProfanityMode)

	// Stats
	mux.HandleFunc("GET /api/stats", stats.HandleStats)
	mux.HandleFunc("POST /api/stats/reset", stats.HandleReset)

	// Event stream
	mux.HandleFunc("GET /api/events", events.HandleRecent)
	mux.HandleFunc("GET /api/events/ws", events.HandleWebSocket)

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow the response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
