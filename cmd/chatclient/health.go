package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/chatlink/internal/session"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

type conversationHealth struct {
	State  string `json:"state"`
	Queued int    `json:"queued"`
}

type healthResponse struct {
	Status        string                        `json:"status"`
	Conversations map[string]conversationHealth `json:"conversations"`
	Database      string                        `json:"database,omitempty"`
	Error         string                        `json:"error,omitempty"`
}

// newHandler serves /health and the Prometheus endpoint. db may be nil.
func newHandler(registry *session.Registry, db pinger, gatherer prometheus.Gatherer, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := healthResponse{
			Status:        "healthy",
			Conversations: make(map[string]conversationHealth),
		}

		// Degraded while any conversation is not open; unhealthy once one
		// has given up.
		for _, id := range registry.Conversations() {
			s, ok := registry.Get(id)
			if !ok {
				continue
			}
			state := s.State()
			health.Conversations[string(id)] = conversationHealth{
				State:  state.String(),
				Queued: s.QueueLen(),
			}
			switch state {
			case session.StateOpen:
			case session.StateClosed:
				health.Status = "unhealthy"
			default:
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
			}
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Database = "disconnected"
				health.Error = err.Error()
			} else {
				health.Database = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}
