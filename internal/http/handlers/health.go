package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness pings every registered dependency with a short deadline.
func (a *App) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, ping := range a.Ready {
		if err := ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("readiness check failed")
			a.error(w, http.StatusServiceUnavailable, "unavailable", "dependency unavailable")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ready"})
}
