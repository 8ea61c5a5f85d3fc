package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backing store reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler returns GET /health. A nil pinger reports the in-memory
// store, which is always up.
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
